package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/lumenrt/lumen/cmd"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	renderFlags := []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Value: 512,
			Usage: "frame width",
		},
		cli.IntFlag{
			Name:  "height",
			Value: 512,
			Usage: "frame height",
		},
		cli.IntFlag{
			Name:  "spp",
			Value: 64,
			Usage: "accumulation iterations (0 for unbounded)",
		},
		cli.StringFlag{
			Name:  "env",
			Value: "constant",
			Usage: "environment light type (none, constant, sphere)",
		},
		cli.StringFlag{
			Name:  "env-map",
			Usage: "spherical environment map image",
		},
		cli.BoolFlag{
			Name:  "light",
			Usage: "add the parallelogram area light",
		},
		cli.StringFlag{
			Name:  "modules",
			Usage: "directory holding the compiled shader modules",
		},
		cli.StringFlag{
			Name:  "albedo-texture",
			Usage: "albedo texture image",
		},
		cli.StringFlag{
			Name:  "cutout-texture",
			Usage: "cutout opacity texture image",
		},
	}

	app := cli.NewApp()
	app.Name = "lumen"
	app.Usage = "interactive GPU path-tracing demo"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render the built-in scene",
			Subcommands: []cli.Command{
				{
					Name:  "frame",
					Usage: "accumulate a fixed iteration budget and write a PNG",
					Flags: append(renderFlags, cli.StringFlag{
						Name:  "out, o",
						Value: "frame.png",
						Usage: "image filename for the rendered frame",
					}),
					Action: cmd.RenderFrame,
				},
				{
					Name:  "interactive",
					Usage: "progressive accumulation in an OpenGL window",
					Flags: append(renderFlags, cli.BoolFlag{
						Name:  "continuous",
						Usage: "present every frame instead of once per second",
					}),
					Action: cmd.RenderInteractive,
				},
			},
		},
		{
			Name:  "info",
			Usage: "print the program catalog and material set",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "env",
					Value: "constant",
					Usage: "environment light type (none, constant, sphere)",
				},
			},
			Action: cmd.Info,
		},
	}

	app.Run(os.Args)
}
