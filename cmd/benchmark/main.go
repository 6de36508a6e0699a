// Headless engine benchmark. Spins up one or more worlds, each with a
// swarm of moving entities and a watched health component, and pumps
// synthetic 16ms ticks for the requested duration. Worlds run in
// parallel on an errgroup to measure multi-world scaling; per-system
// averages come from the scheduler's own profiling.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/manifold/engine"
)

var (
	duration   = flag.Duration("duration", 10*time.Second, "Benchmark duration")
	entities   = flag.Int("entities", 10000, "Entities per world")
	worlds     = flag.Int("worlds", 1, "Parallel worlds")
	cpuProfile = flag.Bool("cpuprofile", false, "Write a CPU profile")
)

type Position struct {
	X, Y float64
}

type Velocity struct {
	DX, DY float64
}

type Health struct {
	Current, Max int
}

type result struct {
	ticks   uint64
	stats   engine.WorldStats
	elapsed time.Duration
}

func buildWorld(n int) (*engine.World, error) {
	w := engine.NewWorld(engine.Config{Logger: zap.NewNop()})

	posID, err := engine.RegisterComponent[Position](w, "position")
	if err != nil {
		return nil, err
	}
	velID, err := engine.RegisterComponent[Velocity](w, "velocity")
	if err != nil {
		return nil, err
	}
	hpID, err := engine.RegisterComponent[Health](w, "health")
	if err != nil {
		return nil, err
	}

	err = w.CreateSystem(engine.SystemConfig{
		Name:     "movement",
		Priority: 10,
		Fixed:    true,
		Query:    engine.QuerySpec{All: []engine.ComponentID{posID, velID}},
		Act: func(t *engine.Tick, e engine.Entity) {
			pos, _ := engine.Get[Position](t.World, e)
			vel, _ := engine.Get[Velocity](t.World, e)
			pos.X += vel.DX * t.Seconds()
			pos.Y += vel.DY * t.Seconds()
			_ = engine.Set(t.World, e, pos)
		},
	})
	if err != nil {
		return nil, err
	}

	err = w.CreateSystem(engine.SystemConfig{
		Name:  "decay",
		After: []string{"movement"},
		Query: engine.QuerySpec{All: []engine.ComponentID{hpID}},
		Act: func(t *engine.Tick, e engine.Entity) {
			hp, _ := engine.Get[Health](t.World, e)
			if hp.Current > 1 {
				hp.Current--
				_ = engine.Set(t.World, e, hp)
				_ = t.World.MarkDirty(e, hpID)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	// Watched path: exercises baseline capture and end-of-tick dispatch
	err = w.CreateSystem(engine.SystemConfig{
		Name:  "observer",
		Watch: []engine.ComponentID{hpID},
		OnComponentChanged: func(_ *engine.World, _ engine.Entity, _ engine.ComponentID, _, _ any) {
		},
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		e := w.CreateEntity("")
		if err := engine.Add(w, e, Position{X: rand.Float64() * 100, Y: rand.Float64() * 100}); err != nil {
			return nil, err
		}
		if err := engine.Add(w, e, Velocity{DX: rand.Float64() - 0.5, DY: rand.Float64() - 0.5}); err != nil {
			return nil, err
		}
		if i%4 == 0 {
			if err := engine.Add(w, e, Health{Current: 1 << 30, Max: 1 << 30}); err != nil {
				return nil, err
			}
		}
	}
	return w, nil
}

func runWorld(n int, d time.Duration) (result, error) {
	w, err := buildWorld(n)
	if err != nil {
		return result{}, err
	}

	const dt = 16 * time.Millisecond
	var ticks uint64
	start := time.Now()
	for time.Since(start) < d {
		w.Update(dt)
		ticks++
	}
	return result{ticks: ticks, stats: w.Stats(), elapsed: time.Since(start)}, nil
}

func main() {
	flag.Parse()

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	fmt.Printf("manifold benchmark: %d world(s) x %d entities, %v, GOMAXPROCS=%d\n",
		*worlds, *entities, *duration, runtime.GOMAXPROCS(0))

	results := make([]result, *worlds)
	var g errgroup.Group
	for i := 0; i < *worlds; i++ {
		g.Go(func() error {
			r, err := runWorld(*entities, *duration)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "benchmark failed: %v\n", err)
		os.Exit(1)
	}

	var totalTicks uint64
	for i, r := range results {
		rate := float64(r.ticks) / r.elapsed.Seconds()
		fmt.Printf("\nworld %d: %d ticks (%.0f/s), %d entities, %d components, mem ~%d KiB\n",
			i, r.ticks, rate, r.stats.Entities, r.stats.Components, r.stats.MemoryEstimate/1024)
		for _, s := range r.stats.Systems {
			fmt.Printf("  %-10s calls=%-8d avg=%-10v matched=%d\n",
				s.Name, s.Calls, s.AvgDuration, s.LastMatched)
		}
		totalTicks += r.ticks
	}
	fmt.Printf("\ntotal: %d ticks across %d world(s)\n", totalTicks, *worlds)
}
