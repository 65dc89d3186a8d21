package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/lumenrt/lumen/renderer"
	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/rt/sim"
	"github.com/lumenrt/lumen/scene"
	"github.com/lumenrt/lumen/tracer/optix"
)

func parseEnvironment(name string) (scene.EnvironmentType, error) {
	switch name {
	case "none":
		return scene.EnvironmentNone, nil
	case "constant":
		return scene.EnvironmentConstant, nil
	case "sphere":
		return scene.EnvironmentSphere, nil
	default:
		return 0, fmt.Errorf("unknown environment type %q", name)
	}
}

func tracerOptions(ctx *cli.Context) (optix.Options, error) {
	env, err := parseEnvironment(ctx.String("env"))
	if err != nil {
		return optix.Options{}, err
	}

	opts := optix.Options{
		Width:          ctx.Int("width"),
		Height:         ctx.Int("height"),
		Environment:    env,
		EnvironmentMap: ctx.String("env-map"),
		AreaLight:      ctx.Bool("light"),
		AlbedoTexture:  ctx.String("albedo-texture"),
		CutoutTexture:  ctx.String("cutout-texture"),
	}
	if dir := ctx.String("modules"); dir != "" {
		opts.Loader = optix.FileModuleLoader(dir)
	} else {
		// No compiled shader set on disk; feed the simulation backend
		// a placeholder image.
		opts.Loader = optix.StaticModuleLoader([]byte{0})
	}
	if opts.Width < 1 || opts.Height < 1 {
		return optix.Options{}, errors.New("invalid frame dimensions")
	}
	return opts, nil
}

func newBackend() rt.API {
	return sim.NewBackend()
}

// RenderFrame accumulates a fixed iteration budget without a window
// and writes the tonemapped result to a PNG file.
func RenderFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	opts, err := tracerOptions(ctx)
	if err != nil {
		return err
	}

	frames := uint32(ctx.Int("spp"))
	if frames == 0 {
		return errors.New("spp must be positive for offline rendering")
	}

	api := newBackend()
	tracer := optix.NewTracer(api, opts)
	if !tracer.Setup() {
		return errors.New("tracer setup failed")
	}
	defer tracer.Close()

	camera := scene.NewCamera()
	camera.SetViewport(opts.Width, opts.Height)

	display := renderer.NewHeadlessDisplay(opts.Width, opts.Height)
	loop := renderer.NewLoop(tracer, camera, display, frames, false)
	if err = loop.Run(); err != nil {
		return err
	}

	out := ctx.String("out")
	if err = display.WritePNG(out); err != nil {
		return err
	}
	logger.Noticef("wrote %q after %d iterations", out, frames)
	return nil
}

// RenderInteractive runs the accumulation loop against an OpenGL
// window with mouse-driven camera controls.
func RenderInteractive(ctx *cli.Context) error {
	setupLogging(ctx)

	opts, err := tracerOptions(ctx)
	if err != nil {
		return err
	}

	api := newBackend()
	tracer := optix.NewTracer(api, opts)
	if !tracer.Setup() {
		return errors.New("tracer setup failed")
	}
	defer tracer.Close()

	camera := scene.NewCamera()
	display, err := renderer.NewOpenGLDisplay("lumen", opts.Width, opts.Height, camera)
	if err != nil {
		return err
	}
	defer display.Close()

	loop := renderer.NewLoop(tracer, camera, display, uint32(ctx.Int("spp")), ctx.Bool("continuous"))
	return loop.Run()
}
