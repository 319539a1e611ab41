package main

import (
	"render-core/scene"
	"render-core/window"
)

// controller steers a FlyCamera: WASD to move, Q/E down and up, arrows or
// a right-button drag to look, shift to run.
type controller struct {
	moveSpeed float32
	turnSpeed float32
	lookSpeed float32

	dragging bool
	lastX    float64
	lastY    float64
}

func newController() *controller {
	return &controller{moveSpeed: 6, turnSpeed: 1.5, lookSpeed: 0.003}
}

func axis(w *window.Window, neg, pos int) float32 {
	var v float32
	if w.IsKeyPressed(neg) {
		v--
	}
	if w.IsKeyPressed(pos) {
		v++
	}
	return v
}

func (c *controller) update(w *window.Window, cam *scene.FlyCamera, dt float32) {
	// Long stalls would teleport the camera.
	dt = min(dt, 0.05)

	speed := c.moveSpeed * dt
	if w.IsKeyPressed(window.KeyLeftShift) {
		speed *= 3
	}
	cam.Move(
		axis(w, window.KeyS, window.KeyW)*speed,
		axis(w, window.KeyA, window.KeyD)*speed,
		axis(w, window.KeyQ, window.KeyE)*speed,
	)
	cam.Turn(
		axis(w, window.KeyRight, window.KeyLeft)*c.turnSpeed*dt,
		axis(w, window.KeyDown, window.KeyUp)*c.turnSpeed*dt,
	)

	if !w.IsMouseButtonPressed(window.MouseButtonRight) {
		c.dragging = false
		return
	}
	x, y := w.GetCursorPos()
	if c.dragging {
		cam.Turn(float32(c.lastX-x)*c.lookSpeed, float32(c.lastY-y)*c.lookSpeed)
	}
	c.dragging = true
	c.lastX, c.lastY = x, y
}
