package cmd

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/achilleasa/accel/scene"
	"github.com/achilleasa/accel/tesscache"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

// TessellateScene runs concurrent workers over the subdivision patches of a
// scene through the tessellation cache and reports the cache counters.
func TessellateScene(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file")
	}
	numWorkers := ctx.Int("workers")
	passes := ctx.Int("passes")
	if numWorkers < 1 || passes < 1 {
		return errors.New("workers and passes must be positive")
	}

	sc, err := scene.ReadWavefront(ctx.Args().First())
	if err != nil {
		return err
	}

	var keys []tesscache.Key
	for id := 0; id < sc.Size(); id++ {
		mesh, ok := sc.Geometry(uint32(id)).(*scene.SubdivMesh)
		if !ok || !mesh.Enabled() {
			continue
		}
		for prim := 0; prim < mesh.NumPrimitives(); prim++ {
			keys = append(keys, tesscache.Key{GeomID: uint32(id), PrimID: uint32(prim)})
		}
	}
	if len(keys) == 0 {
		return errors.New("scene contains no subdivision patches")
	}

	opts := tesscache.DefaultOptions(len(keys))
	if slots := ctx.Int("slots"); slots > 0 {
		opts.Slots = slots
	}
	opts.LocalSlots = ctx.Int("local-slots")
	registry := prometheus.NewRegistry()
	opts.Registerer = registry

	cache, err := tesscache.NewSharedCache(tesscache.SceneTessellator(sc), opts)
	if err != nil {
		return err
	}

	commit := sc.Commit()
	start := time.Now()
	var group errgroup.Group
	for w := 0; w < numWorkers; w++ {
		w := w
		group.Go(func() error {
			worker := cache.NewWorker()
			defer worker.Release()
			for pass := 0; pass < passes; pass++ {
				for i := range keys {
					key := keys[(i+w*len(keys)/numWorkers)%len(keys)]
					if _, err := cache.Lookup(worker, key, commit); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		return err
	}

	return displayCacheStats(registry, len(keys), time.Since(start))
}

func displayCacheStats(registry *prometheus.Registry, numPatches int, elapsed time.Duration) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}

	var rows [][]string
	for _, mf := range families {
		name := strings.TrimPrefix(mf.GetName(), "accel_tess_cache_")
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			rows = append(rows, []string{name, strings.Join(labels, ","), fmt.Sprintf("%.0f", m.GetCounter().GetValue())})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i][0]+rows[i][1] < rows[j][0]+rows[j][1]
	})

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Counter", "Labels", "Value"})
	table.AppendBulk(rows)
	table.SetFooter([]string{fmt.Sprintf("%d patches", numPatches), "TOTAL", elapsed.String()})

	table.Render()
	logger.Noticef("tessellation cache statistics\n%s", buf.String())
	return nil
}
