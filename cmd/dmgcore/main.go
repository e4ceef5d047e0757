package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli"

	"dmgcore/jeebie/gameboy"
)

// frameTime is the Δt the host feeds Core.Tick once per loop iteration; it
// need not match any real display refresh rate since the core has no PPU,
// but slicing at roughly 60 Hz keeps status-view updates readable.
const frameTime = time.Second / 60

func main() {
	app := cli.NewApp()
	app.Name = "dmgcore"
	app.Description = "A headless DMG core: runs a ROM for a fixed simulated duration"
	app.Usage = "dmgcore --rom <path> [--seconds N] [--status]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.Float64Flag{
			Name:  "seconds",
			Usage: "Simulated seconds to run before exiting",
			Value: 1.0,
		},
		cli.BoolFlag{
			Name:  "status",
			Usage: "Show a live register/interrupt status view in the terminal",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("dmgcore exited with an error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	data, err := os.ReadFile(romPath)
	if err != nil {
		return err
	}

	core, err := gameboy.New(data)
	if err != nil {
		return err
	}

	header := core.CartridgeHeader()
	slog.Info("loaded cartridge", "title", header.Title, "mbc", header.MBC.String(), "rom_banks", header.ROMBanks, "ram_banks", header.RAMBanks)

	seconds := c.Float64("seconds")

	if c.Bool("status") {
		view, err := newStatusView(core)
		if err != nil {
			return err
		}
		return view.Run(seconds)
	}

	return runHeadless(core, seconds)
}

// runHeadless ticks the core in frameTime slices until the requested
// simulated duration has elapsed, stopping early (and returning an error)
// if any slice reports a Fault.
func runHeadless(core *gameboy.Core, seconds float64) error {
	dt := frameTime.Seconds()
	elapsed := 0.0

	for elapsed < seconds {
		if fault := core.Tick(dt); fault != nil {
			return fault
		}
		elapsed += dt
	}

	slog.Info("run completed", "seconds", seconds)
	return nil
}

// statusView renders a read-only panel of CPU state to the terminal,
// refreshing once per Tick call. It never writes to the bus itself.
type statusView struct {
	screen tcell.Screen
	core   *gameboy.Core
}

func newStatusView(core *gameboy.Core) (*statusView, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}

	return &statusView{screen: screen, core: core}, nil
}

func (v *statusView) Run(seconds float64) error {
	defer v.screen.Fini()

	v.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	dt := frameTime.Seconds()
	elapsed := 0.0

	for elapsed < seconds {
		select {
		case <-ticker.C:
			if fault := v.core.Tick(dt); fault != nil {
				return fault
			}
			elapsed += dt
			v.render(elapsed, seconds)
		case <-signals:
			slog.Info("received signal to stop")
			return nil
		}
	}

	return nil
}

func (v *statusView) render(elapsed, total float64) {
	v.screen.Clear()

	s := v.core.State()
	header := v.core.CartridgeHeader()

	lines := []string{
		fmt.Sprintf("dmgcore — %s (%s)", header.Title, header.MBC.String()),
		fmt.Sprintf("elapsed %.2fs / %.2fs", elapsed, total),
		"",
		fmt.Sprintf("AF=%04X  BC=%04X  DE=%04X  HL=%04X", s.AF, s.BC, s.DE, s.HL),
		fmt.Sprintf("SP=%04X  PC=%04X  IME=%v  HALT=%v", s.SP, s.PC, s.IME, s.Halted),
		fmt.Sprintf("cycles=%d", s.Cycles),
		fmt.Sprintf("IF=%02X  IE=%02X", v.core.Read(0xFF0F), v.core.Read(0xFFFF)),
	}

	for y, line := range lines {
		for x, r := range line {
			v.screen.SetContent(x, y, r, nil, tcell.StyleDefault)
		}
	}

	v.screen.Show()
}
