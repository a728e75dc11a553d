package main

import (
	"os"

	"github.com/achilleasa/accel/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "accel"
	app.Usage = "build ray tracing acceleration structures"
	app.Version = "0.0.1"
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
			Name:  "build",
			Usage: "build a two-level BVH for a scene",
			Description: `
Parse a scene definition from a wavefront obj file, build a BVH for each of its
geometries and combine them under a top-level BVH.

The flattened hierarchy can optionally be written to a file.`,
			ArgsUsage: "scene_file.obj",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 4,
					Usage: "BVH branching factor (2, 4 or 8)",
				},
				cli.BoolFlag{
					Name:  "no-open",
					Usage: "disable top-level node opening",
				},
				cli.StringFlag{
					Name:  "quality, q",
					Value: "medium",
					Usage: "object build quality (low, medium or high)",
				},
				cli.StringSliceFlag{
					Name:  "disable, d",
					Value: &cli.StringSlice{},
					Usage: "exclude the geometries of the named object from the build",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "write the flattened hierarchy to this file",
				},
			},
			Action: cmd.BuildScene,
		},
		{
			Name:  "tessellate",
			Usage: "tessellate subdivision patches through the tessellation cache",
			Description: `
Parse a scene definition from a wavefront obj file and look up the subtree of
every quad patch from concurrent workers. Cache counters are reported once all
workers finish.`,
			ArgsUsage: "scene_file.obj",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "workers, w",
					Value: 4,
					Usage: "number of concurrent workers",
				},
				cli.IntFlag{
					Name:  "passes",
					Value: 2,
					Usage: "number of passes over the patch list per worker",
				},
				cli.IntFlag{
					Name:  "slots",
					Usage: "shared cache slots (defaults to one per patch)",
				},
				cli.IntFlag{
					Name:  "local-slots",
					Value: 8,
					Usage: "per-worker cache entries",
				},
			},
			Action: cmd.TessellateScene,
		},
	}

	app.Run(os.Args)
}
