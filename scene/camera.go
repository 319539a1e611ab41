package scene

import "render-core/math"

const maxPitch = 1.5

// FlyCamera is a free camera steered by yaw about Y and pitch about its
// own X axis. Yaw and pitch are in radians; zero looks down -Z.
type FlyCamera struct {
	Position math.Vec3
	Yaw      float32
	Pitch    float32
}

func (c *FlyCamera) rotation() math.Quaternion {
	return math.QuaternionFromYawPitch(c.Yaw, c.Pitch)
}

// World is the camera's world matrix, as the renderer takes it.
func (c *FlyCamera) World() math.Mat4 {
	return math.Mat4TRS(c.Position, c.rotation(), math.Vec3One)
}

func (c *FlyCamera) Forward() math.Vec3 {
	return c.rotation().RotateVector(math.Vec3Back)
}

func (c *FlyCamera) Right() math.Vec3 {
	return c.rotation().RotateVector(math.Vec3Right)
}

// Turn adds to yaw and pitch. Pitch is clamped short of straight up or down.
func (c *FlyCamera) Turn(yaw, pitch float32) {
	c.Yaw += yaw
	c.Pitch = min(max(c.Pitch+pitch, -maxPitch), maxPitch)
}

// Move translates along the view direction, the camera's right and world up.
func (c *FlyCamera) Move(forward, right, up float32) {
	c.Position = c.Position.
		Add(c.Forward().Mul(forward)).
		Add(c.Right().Mul(right)).
		Add(math.Vec3Up.Mul(up))
}
