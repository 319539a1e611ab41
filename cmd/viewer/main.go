// Command viewer opens a window and renders the demo scene, optionally
// with a glTF or OBJ model in it.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"render-core/config"
	"render-core/core"
	"render-core/internal/opengl"
	"render-core/renderer"
	"render-core/resource"
	"render-core/shader"
	"render-core/window"
)

type options struct {
	config   string
	model    string
	width    int
	height   int
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "viewer",
		Short:        "Render the demo scene with the deferred renderer",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			lvl, err := cfg.Log.SlogLevel()
			if err != nil {
				return err
			}
			core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
			return run(cfg)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "TOML or YAML config file")
	f.StringVarP(&opts.model, "model", "m", "", "glTF or OBJ model to add to the scene")
	f.IntVar(&opts.width, "width", 0, "window width, overriding the config")
	f.IntVar(&opts.height, "height", 0, "window height, overriding the config")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

// load reads the config file and applies the flags the user set.
func (o *options) load(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.config != "" {
		var err error
		if cfg, err = config.Load(o.config); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Assets.Model = o.model
	}
	if flags.Changed("width") {
		cfg.Window.Width = o.width
	}
	if flags.Changed("height") {
		cfg.Window.Height = o.height
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	return cfg, cfg.Validate()
}

// lifecycle is the part of the renderer the window callbacks drive.
type lifecycle interface {
	Started() bool
	Start() error
	Resize(w, h int) error
}

// resize follows the framebuffer size. A zero size stops the renderer; the
// next non-zero size starts it again even when no restore event arrives.
func resize(r lifecycle, w, h int) error {
	if w > 0 && h > 0 && !r.Started() {
		return r.Start()
	}
	return r.Resize(w, h)
}

func run(cfg config.Config) error {
	log := core.Logger()
	win, err := window.New(window.Config{
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Title:      cfg.Window.Title,
		Resizable:  cfg.Window.Resizable,
		VSync:      cfg.Window.VSync,
		Fullscreen: cfg.Window.Fullscreen,
	})
	if err != nil {
		return err
	}
	defer win.Destroy()

	dev, err := opengl.New()
	if err != nil {
		return err
	}
	res := resource.NewManagers(dev, shader.Options{Validate: cfg.Renderer.ValidateUniforms}, cfg.Renderer.ShaderDir)
	defer res.Release()

	r, err := renderer.New(dev, res, cfg.Renderer, win)
	if err != nil {
		return err
	}
	defer r.Release()

	d, err := newDemo(res, cfg.Assets)
	if err != nil {
		return fmt.Errorf("demo scene: %w", err)
	}
	if err := r.Start(); err != nil {
		return err
	}

	win.OnResize(func(w, h int) {
		if err := resize(r, w, h); err != nil {
			log.Error("resize failed", "err", err)
		}
	})
	win.OnIconify(func(iconified bool) {
		if iconified {
			r.Stop()
			return
		}
		if err := r.Start(); err != nil {
			log.Error("restart failed", "err", err)
		}
	})

	ctl := newController()
	last := win.Time()
	for !win.ShouldClose() {
		win.PollEvents()
		if win.IsKeyPressed(window.KeyEscape) {
			win.SetShouldClose(true)
		}
		if !r.Started() {
			time.Sleep(50 * time.Millisecond)
			last = win.Time()
			continue
		}

		now := win.Time()
		dt := float32(now - last)
		last = now

		ctl.update(win, &d.fly, dt)
		d.update(dt)
		d.submit(r)

		var frameErr *renderer.FrameError
		if _, err := r.Render(); err != nil && !errors.As(err, &frameErr) {
			return err
		}
	}
	return nil
}
