// Swarm sandbox: a tcell playground for the runtime. A flock of glyph
// entities drifts around the terminal, bouncing off the edges; movement
// runs on the fixed timestep, rendering on the variable one, edge
// bounces travel over the bus to a small beep synth, and a watcher
// system counts position changes into the status registry. A script
// directory from the config installs the Lua plugin on top.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"go.uber.org/zap"

	"github.com/lixenwraith/manifold/bus"
	"github.com/lixenwraith/manifold/config"
	"github.com/lixenwraith/manifold/engine"
	"github.com/lixenwraith/manifold/plugin"
	"github.com/lixenwraith/manifold/plugin/luascript"
	"github.com/lixenwraith/manifold/prefab"
	"github.com/lixenwraith/manifold/status"
)

var (
	configPath = flag.String("config", "", "TOML config file (optional)")
	prefabDir  = flag.String("prefabs", "", "Directory of prefab YAML files (optional)")
	boids      = flag.Int("boids", 40, "Swarm size")
)

type Position struct {
	X, Y float64
}

type Velocity struct {
	DX, DY float64
}

type Glyph struct {
	Rune  rune
	Color int32
}

// Bounds is the singleton holding the playfield size
type Bounds struct {
	W, H int
}

type sandbox struct {
	screen    tcell.Screen
	world     *engine.World
	bus       *bus.Bus
	stats     *status.Registry
	log       *zap.Logger
	audioInit bool
	debug     bool

	posID engine.ComponentID
}

func newSandbox(cfg *config.Config, logger *zap.Logger) (*sandbox, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	s := &sandbox{
		screen: screen,
		bus:    bus.New(),
		stats:  status.NewRegistry(),
		log:    logger,
		debug:  cfg.Engine.Debug,
	}

	if err := s.initAudio(); err != nil {
		// Non-fatal, the sandbox can run without sound
		logger.Warn("audio initialization failed", zap.Error(err))
	}

	s.world = engine.NewWorld(engine.Config{
		Debug:               cfg.Engine.Debug,
		FixedUpdateHz:       cfg.Engine.FixedUpdateHz,
		EnableProxyTracking: cfg.Engine.EnableProxyTracking,
		Logger:              logger,
		Status:              s.stats,
	})
	if err := s.setupWorld(); err != nil {
		return nil, err
	}

	// Lua scripts from the configured directory run against the same
	// world through the plugin host
	if cfg.Scripts.Dir != "" {
		host := plugin.NewHost(s.world, s.bus, logger)
		err := host.Install(luascript.New(luascript.Options{ScriptDir: cfg.Scripts.Dir}))
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *sandbox) initAudio() error {
	sampleRate := beep.SampleRate(44100)
	err := speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	if err == nil {
		s.audioInit = true
	}
	return err
}

func (s *sandbox) playBounce() {
	if !s.audioInit {
		return
	}
	sampleRate := beep.SampleRate(44100)
	sine, _ := generators.SineTone(sampleRate, 660)
	speaker.Play(beep.Take(sampleRate.N(30*time.Millisecond), sine))
}

func (s *sandbox) setupWorld() error {
	w := s.world

	posID, err := engine.RegisterComponent[Position](w, "position")
	if err != nil {
		return err
	}
	s.posID = posID
	velID, err := engine.RegisterComponent[Velocity](w, "velocity")
	if err != nil {
		return err
	}
	glyphID, err := engine.RegisterComponent[Glyph](w, "glyph")
	if err != nil {
		return err
	}

	width, height := s.screen.Size()
	if err := engine.SetSingleton(w, Bounds{W: width, H: height}); err != nil {
		return err
	}

	// Bounce sounds arrive over the bus so the audio side needs no
	// reference into the movement system
	s.bus.Subscribe("swarm.bounce", func(bus.Message) {
		s.playBounce()
	})

	if err := w.RegisterPrefab(engine.Prefab{
		Name: "boid",
		Tags: []string{"boid"},
		Components: []engine.PrefabComponent{
			{ID: posID},
			{ID: velID},
			{ID: glyphID},
		},
	}); err != nil {
		return err
	}
	if *prefabDir != "" {
		if err := prefab.LoadDir(w, *prefabDir); err != nil {
			return err
		}
	}

	// Movement integrates on the fixed step and reflects at the edges
	if err := w.CreateSystem(engine.SystemConfig{
		Name:     "movement",
		Priority: 10,
		Fixed:    true,
		Query:    engine.QuerySpec{All: []engine.ComponentID{posID, velID}},
		Act: func(t *engine.Tick, e engine.Entity) {
			pos, _ := engine.Get[Position](t.World, e)
			vel, _ := engine.Get[Velocity](t.World, e)
			b, _ := engine.Singleton[Bounds](t.World)

			pos.X += vel.DX * t.Seconds()
			pos.Y += vel.DY * t.Seconds()
			bounced := false
			if pos.X < 0 || pos.X >= float64(b.W) {
				vel.DX = -vel.DX
				pos.X += 2 * vel.DX * t.Seconds()
				bounced = true
			}
			if pos.Y < 0 || pos.Y >= float64(b.H-1) {
				vel.DY = -vel.DY
				pos.Y += 2 * vel.DY * t.Seconds()
				bounced = true
			}

			_ = engine.Set(t.World, e, pos)
			_ = engine.Set(t.World, e, vel)
			_ = t.World.MarkDirty(e, s.posID)
			if bounced {
				s.bus.Publish("swarm.bounce", e, "movement")
			}
		},
	}); err != nil {
		return err
	}

	// Render draws after movement, once per frame
	if err := w.CreateSystem(engine.SystemConfig{
		Name:     "render",
		Priority: 0,
		After:    []string{"movement"},
		Query:    engine.QuerySpec{All: []engine.ComponentID{posID, glyphID}},
		Act: func(t *engine.Tick, e engine.Entity) {
			pos, _ := engine.Get[Position](t.World, e)
			g, _ := engine.Get[Glyph](t.World, e)
			style := tcell.StyleDefault.Foreground(tcell.NewHexColor(g.Color))
			s.screen.SetContent(int(pos.X), int(pos.Y), g.Rune, nil, style)
		},
	}); err != nil {
		return err
	}

	// Telemetry counts position changes through the watched path
	moved := s.stats.Ints.Get("sandbox.moves")
	if err := w.CreateSystem(engine.SystemConfig{
		Name:  "telemetry",
		Watch: []engine.ComponentID{posID},
		OnComponentChanged: func(_ *engine.World, _ engine.Entity, _ engine.ComponentID, _, _ any) {
			moved.Add(1)
		},
	}); err != nil {
		return err
	}

	return s.spawnSwarm(*boids)
}

func (s *sandbox) spawnSwarm(n int) error {
	glyphs := []rune("oO*+x#@%&")
	b, _ := engine.Singleton[Bounds](s.world)
	for i := 0; i < n; i++ {
		e, err := s.world.CreateFromPrefab("boid")
		if err != nil {
			return err
		}
		if err := engine.Set(s.world, e, Position{
			X: rand.Float64() * float64(b.W),
			Y: rand.Float64() * float64(b.H-1),
		}); err != nil {
			return err
		}
		if err := engine.Set(s.world, e, Velocity{
			DX: (rand.Float64() - 0.5) * 30,
			DY: (rand.Float64() - 0.5) * 15,
		}); err != nil {
			return err
		}
		if err := engine.Set(s.world, e, Glyph{
			Rune:  glyphs[rand.Intn(len(glyphs))],
			Color: int32(rand.Intn(0xFFFFFF)),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *sandbox) handleResize() {
	width, height := s.screen.Size()
	_ = engine.SetSingleton(s.world, Bounds{W: width, H: height})
	s.screen.Sync()
}

func (s *sandbox) drawHUD() {
	ws := s.world.Stats()
	line := fmt.Sprintf(" entities:%d  frame:%d  mem:%dB  moves:%d  metrics:%d  q to quit ",
		ws.Entities, ws.Frame, ws.MemoryEstimate,
		s.stats.Ints.Get("sandbox.moves").Load(), s.stats.TotalCount())
	style := tcell.StyleDefault.Reverse(true)
	_, height := s.screen.Size()
	for i, r := range line {
		s.screen.SetContent(i, height-1, r, nil, style)
	}
	if s.debug {
		s.drawMetrics()
	}
}

// drawMetrics dumps the status registry down the left edge in debug
// mode, one metric per row in key order
func (s *sandbox) drawMetrics() {
	style := tcell.StyleDefault.Dim(true)
	row := 0
	put := func(line string) {
		for i, r := range line {
			s.screen.SetContent(i, row, r, nil, style)
		}
		row++
	}
	s.stats.Ints.Range(func(key string, v *atomic.Int64) {
		put(fmt.Sprintf("%s %d", key, v.Load()))
	})
	s.stats.Floats.Range(func(key string, v *status.AtomicFloat) {
		put(fmt.Sprintf("%s %.3f", key, v.Get()))
	})
	s.stats.Strings.Range(func(key string, v *status.AtomicString) {
		put(fmt.Sprintf("%s %s", key, v.Load()))
	})
	s.stats.Bools.Range(func(key string, v *atomic.Bool) {
		put(fmt.Sprintf("%s %t", key, v.Load()))
	})
}

func (s *sandbox) run() {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- s.screen.PollEvent()
		}
	}()

	last := time.Now()
	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return
				}
			case *tcell.EventResize:
				s.handleResize()
			}

		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			s.screen.Clear()
			s.world.Update(dt)
			s.drawHUD()
			s.screen.Show()
		}
	}
}

func (s *sandbox) cleanup() {
	if s.audioInit {
		speaker.Close()
	}
	s.screen.Fini()
}

func main() {
	flag.Parse()

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	s, err := newSandbox(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer s.cleanup()

	s.run()
}
