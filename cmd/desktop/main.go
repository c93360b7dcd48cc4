// Command desktop runs the emulator in a window that shows a live register
// panel for every core and the console output below them.
package main

import (
	"context"
	"image/color"
	"os"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	getopt "github.com/pborman/getopt/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font/basicfont"

	"gocpu8/pkg/computer"
	"gocpu8/pkg/cpu"
	"gocpu8/pkg/peripherals"
	"gocpu8/pkg/utils"
)

var (
	textColor   = color.RGBA{220, 220, 220, 255}
	haltedColor = color.RGBA{120, 120, 120, 255}
	breakColor  = color.RGBA{230, 80, 80, 255}
	statusColor = color.RGBA{0, 220, 90, 255}
)

type Game struct {
	m       *computer.Computer
	clock   *computer.Clock
	ctx     context.Context
	console *peripherals.Console
	output  *outputLog
	log     *logrus.Entry

	width, height, cols int
	coresPerCPU         int

	mu      sync.Mutex
	snaps   []computer.CoreSnapshot
	running bool
	err     error
}

func newGame(ctx context.Context, m *computer.Computer, console *peripherals.Console, output *outputLog, log *logrus.Entry) *Game {
	g := &Game{
		m:       m,
		clock:   computer.NewClock(m, m.Config().ClockHz),
		ctx:     ctx,
		console: console,
		output:  output,
		log:     log,
		snaps:   m.Snapshot(),

		coresPerCPU: m.Config().CoresPerCPU,
	}
	g.width, g.height, g.cols = screenSize(len(g.snaps))
	m.Subscribe(g.observe)
	return g
}

// observe runs on whichever goroutine ticks the machine, with the machine
// locked, so it only records what it sees.
func (g *Game) observe(ev computer.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch e := ev.(type) {
	case computer.CoreSnapshot:
		i := e.CPU*g.coresPerCPU + e.Core
		if i < len(g.snaps) {
			g.snaps[i] = e
		}
	case computer.ClockChange:
		g.running = e.Running
		if e.Err != nil {
			g.err = e.Err
		}
	}
}

func (g *Game) Update() error {
	for _, r := range ebiten.AppendInputChars(nil) {
		if r < 0x80 {
			g.console.PushInput(byte(r))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		g.console.PushInput('\n')
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		g.console.PushInput(8)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) && !g.clock.Running() {
		if err := g.m.Step(1); err != nil {
			g.setErr(err)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if g.clock.Running() {
			g.clock.Stop()
		} else {
			g.setErr(nil)
			g.clock.Start(g.ctx)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) && g.m.Paused() {
		g.m.Resume()
		g.clock.Start(g.ctx)
	}

	if g.ctx.Err() != nil {
		g.clock.Stop()
		return ebiten.Termination
	}
	return nil
}

func (g *Game) setErr(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
	if err != nil {
		g.log.WithError(err).Error("machine stopped")
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	face := basicfont.Face7x13

	g.mu.Lock()
	snaps := append([]computer.CoreSnapshot(nil), g.snaps...)
	running, err := g.running, g.err
	g.mu.Unlock()

	for i, s := range snaps {
		x, y := panelOrigin(i, g.cols)
		c := textColor
		switch s.State {
		case cpu.Halted:
			c = haltedColor
		case cpu.WaitingOnBreakpoint:
			c = breakColor
		}
		for row, line := range panelLines(s) {
			text.Draw(screen, line, face, x+padding, y+padding+ascent+row*lineHeight, c)
		}
	}

	y := g.height - padding - (outputRows+1)*lineHeight + ascent
	for _, line := range g.output.Lines() {
		text.Draw(screen, line, face, padding, y, textColor)
		y += lineHeight
	}

	status := statusLine(running, g.m.Paused(), g.m.Idle(), g.m.Ticks(), err)
	text.Draw(screen, status, face, padding, g.height-padding-lineHeight+ascent, statusColor)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.width, g.height
}

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Machine configuration file (TOML)")
	optHz := getopt.IntLong("hz", 0, 0, "Clock rate in ticks per second, 0 runs free")
	optPaused := getopt.BoolLong("paused", 'p', "Start with the clock stopped")
	optLevel := getopt.StringLong("log-level", 'l', "warn", "Log level (trace, debug, info, warn, error)")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.SetParameters("[program]")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(*optLevel); err == nil {
		logger.SetLevel(level)
	}
	log := logger.WithField("component", "desktop")

	cfg, baseDir, err := utils.LoadMachineConfig(*optConfig)
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if args := getopt.Args(); len(args) > 0 {
		cfg.Program, _, _ = utils.GetPathInfo(args[0])
	}
	if *optHz > 0 {
		cfg.ClockHz = *optHz
	}
	output := newOutputLog(outputRows)
	cfg.Logger = logger
	cfg.Syscalls = computer.ConsoleSyscalls(output)

	m, err := computer.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("machine setup")
	}
	devices, err := utils.MountStandardDevices(m, output, baseDir)
	if err != nil {
		log.WithError(err).Fatal("devices")
	}
	if err := utils.LoadImages(m, baseDir); err != nil {
		log.WithError(err).Fatal("images")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	game := newGame(ctx, m, devices.Console, output, log)
	if !*optPaused {
		game.clock.Start(ctx)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(game.width*2, game.height*2)
	ebiten.SetWindowTitle("gocpu8")
	if err := ebiten.RunGame(game); err != nil {
		log.WithError(err).Error("window closed")
	}
	game.clock.Stop()
	if err := devices.Sync(); err != nil {
		log.WithError(err).Error("disk sync failed")
	}
}
