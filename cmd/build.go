package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/achilleasa/accel/scene"
	"github.com/achilleasa/accel/twolevel"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// BuildScene parses a scene and builds its two-level hierarchy.
func BuildScene(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file")
	}

	sc, err := scene.ReadWavefront(ctx.Args().First())
	if err != nil {
		return err
	}

	if err = configureGeometries(sc, ctx.String("quality"), ctx.StringSlice("disable")); err != nil {
		return err
	}

	opts := twolevel.DefaultOptions(ctx.Int("width"))
	opts.Open = !ctx.Bool("no-open")
	accel, err := twolevel.New(sc, opts)
	if err != nil {
		return err
	}

	buildCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	stats, err := accel.Build(buildCtx)
	if err != nil {
		return err
	}
	hierarchy, err := accel.CollectStats()
	if err != nil {
		return err
	}
	displayBuildStats(stats, hierarchy.Nodes, hierarchy.Leaves, hierarchy.MaxDepth)

	if out := ctx.String("out"); out != "" {
		arena, root, err := accel.Flatten()
		if err != nil {
			return err
		}
		if err = os.WriteFile(out, arena.Bytes(), 0644); err != nil {
			return errors.Wrapf(err, "could not write %s", out)
		}
		logger.Noticef("wrote %d blocks to %s (root %s)", arena.Used(), out, root)
	}
	return nil
}

// The state setters shared by all scene geometries.
type configurable interface {
	SetQuality(scene.Quality)
	SetEnabled(bool)
}

// Apply the build quality to every geometry and disable the named ones.
func configureGeometries(sc *scene.Scene, quality string, disabled []string) error {
	q, err := scene.ParseQuality(quality)
	if err != nil {
		return err
	}

	for id := 0; id < sc.Size(); id++ {
		geom := sc.Geometry(uint32(id))
		g, ok := geom.(configurable)
		if !ok {
			continue
		}
		g.SetQuality(q)
		for _, name := range disabled {
			if geometryName(geom) == name {
				g.SetEnabled(false)
				logger.Infof("disabled geometry %d (%s)", id, name)
			}
		}
	}
	return nil
}

func geometryName(geom scene.Geometry) string {
	switch g := geom.(type) {
	case *scene.TriangleMesh:
		return g.Name
	case *scene.SubdivMesh:
		return g.Name
	}
	return ""
}

func displayBuildStats(stats twolevel.BuildStats, nodes, leaves, depth int) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Stage", "Metric", "Value"})
	table.Append([]string{"Objects", "Geometries", fmt.Sprintf("%d", stats.Objects)})
	table.Append([]string{"", "Rebuilt", fmt.Sprintf("%d", stats.Rebuilt)})
	table.Append([]string{"", "Primitives", fmt.Sprintf("%d", stats.NumPrimitives)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Top level", "References", fmt.Sprintf("%d", stats.Refs)})
	table.Append([]string{"", "Opened nodes", fmt.Sprintf("%d", stats.Opened)})
	table.Append([]string{"", "After opening", fmt.Sprintf("%d", stats.OpenedRefs)})
	table.Append([]string{"", "Fast path", fmt.Sprintf("%t", stats.FastPath)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Hierarchy", "Nodes", fmt.Sprintf("%d", nodes)})
	table.Append([]string{"", "Leaves", fmt.Sprintf("%d", leaves)})
	table.Append([]string{"", "Max depth", fmt.Sprintf("%d", depth)})
	table.SetFooter([]string{"Build time", " ", stats.Duration.String()})

	table.Render()
	logger.Noticef("build statistics\n%s", buf.String())
}
