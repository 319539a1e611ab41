package window

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"render-core/core"
)

func init() {
	runtime.LockOSThread()
}

type Window struct {
	Handle *glfw.Window
	Width  int
	Height int
	Title  string

	onResize  func(width, height int)
	onIconify func(iconified bool)
}

type Config struct {
	Width      int
	Height     int
	Title      string
	Resizable  bool
	VSync      bool
	Fullscreen bool
}

func DefaultConfig() Config {
	return Config{
		Width:      1280,
		Height:     720,
		Title:      "Render Core",
		Resizable:  true,
		VSync:      true,
		Fullscreen: false,
	}
}

// New creates a window with a current OpenGL 4.1 core context.
func New(config Config) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, boolToInt(config.Resizable))

	monitor := (*glfw.Monitor)(nil)
	if config.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
	}

	handle, err := glfw.CreateWindow(config.Width, config.Height, config.Title, monitor, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	handle.MakeContextCurrent()
	if config.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	window := &Window{
		Handle: handle,
		Width:  config.Width,
		Height: config.Height,
		Title:  config.Title,
	}

	handle.SetSizeCallback(func(w *glfw.Window, width, height int) {
		window.Width = width
		window.Height = height
	})
	handle.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if window.onResize != nil {
			window.onResize(width, height)
		}
	})
	handle.SetIconifyCallback(func(w *glfw.Window, iconified bool) {
		core.Logger().Info("window iconify", "iconified", iconified)
		if window.onIconify != nil {
			window.onIconify(iconified)
		}
	})

	return window, nil
}

func (w *Window) MakeCurrent() {
	w.Handle.MakeContextCurrent()
}

func (w *Window) ShouldClose() bool {
	return w.Handle.ShouldClose()
}

func (w *Window) SetShouldClose(v bool) {
	w.Handle.SetShouldClose(v)
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

func (w *Window) SwapBuffers() {
	w.Handle.SwapBuffers()
}

func (w *Window) FramebufferSize() (int, int) {
	return w.Handle.GetFramebufferSize()
}

// OnResize is called with the new framebuffer size in pixels.
func (w *Window) OnResize(fn func(width, height int)) {
	w.onResize = fn
}

// OnIconify signals context validity: the renderer stops while minimised.
func (w *Window) OnIconify(fn func(iconified bool)) {
	w.onIconify = fn
}

func (w *Window) Destroy() {
	w.Handle.Destroy()
	glfw.Terminate()
}

func (w *Window) IsKeyPressed(key int) bool {
	return w.Handle.GetKey(glfw.Key(key)) == glfw.Press
}

func (w *Window) SetTitle(title string) {
	w.Handle.SetTitle(title)
	w.Title = title
}

func (w *Window) IsMouseButtonPressed(button int) bool {
	return w.Handle.GetMouseButton(glfw.MouseButton(button)) == glfw.Press
}

func (w *Window) GetCursorPos() (float64, float64) {
	return w.Handle.GetCursorPos()
}

func (w *Window) Time() float64 {
	return glfw.GetTime()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const (
	MouseButtonLeft  = int(glfw.MouseButtonLeft)
	MouseButtonRight = int(glfw.MouseButtonRight)
)

const (
	KeySpace       = int(glfw.KeySpace)
	KeyA           = int(glfw.KeyA)
	KeyD           = int(glfw.KeyD)
	KeyE           = int(glfw.KeyE)
	KeyF           = int(glfw.KeyF)
	KeyN           = int(glfw.KeyN)
	KeyP           = int(glfw.KeyP)
	KeyQ           = int(glfw.KeyQ)
	KeyS           = int(glfw.KeyS)
	KeyW           = int(glfw.KeyW)
	KeyEscape      = int(glfw.KeyEscape)
	KeyRight       = int(glfw.KeyRight)
	KeyLeft        = int(glfw.KeyLeft)
	KeyDown        = int(glfw.KeyDown)
	KeyUp          = int(glfw.KeyUp)
	KeyLeftShift   = int(glfw.KeyLeftShift)
	KeyLeftControl = int(glfw.KeyLeftControl)
	KeyF1          = int(glfw.KeyF1)
)
