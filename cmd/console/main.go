// Command console is an interactive debugger for the emulator. It builds a
// machine from a config file and hands control to a Lua monitor, reading
// commands from a script or from stdin.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	getopt "github.com/pborman/getopt/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"gocpu8/pkg/computer"
	"gocpu8/pkg/monitor"
	"gocpu8/pkg/utils"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Machine configuration file (TOML)")
	optScript := getopt.StringLong("script", 's', "", "Lua script to run instead of the prompt")
	optStats := getopt.BoolLong("statsview", 0, "Serve runtime statistics over HTTP")
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

	var program string
	if args := getopt.Args(); len(args) > 0 {
		program = args[0]
	}

	if *optStats {
		launchStats(os.Stderr)
	}

	m, devices, err := setup(*optConfig, program, logger, os.Stdout)
	if err != nil {
		logger.WithError(err).Error("machine setup failed")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mon := monitor.New(m, os.Stdout, logger)
	defer mon.Close()

	err = session(ctx, mon, *optScript, os.Stdin, term.IsTerminal(int(os.Stdin.Fd())))
	if syncErr := devices.Sync(); syncErr != nil {
		logger.WithError(syncErr).Error("disk sync failed")
	}
	if err != nil {
		logger.WithError(err).Error("monitor stopped")
		os.Exit(1)
	}
}

// setup builds the machine described by configPath, with program
// overriding the config's program image.
func setup(configPath, program string, logger *logrus.Logger, out io.Writer) (*computer.Computer, *utils.Devices, error) {
	cfg, baseDir, err := utils.LoadMachineConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if program != "" {
		if cfg.Program, _, err = utils.GetPathInfo(program); err != nil {
			return nil, nil, err
		}
	}
	cfg.Logger = logger
	cfg.Syscalls = computer.ConsoleSyscalls(out)

	m, err := computer.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	devices, err := utils.MountStandardDevices(m, out, baseDir)
	if err != nil {
		return nil, nil, err
	}
	if err := utils.LoadImages(m, baseDir); err != nil {
		return nil, nil, err
	}
	return m, devices, nil
}

// session runs script if one is given, otherwise reads commands from in.
func session(ctx context.Context, mon *monitor.Monitor, script string, in io.Reader, interactive bool) error {
	if script != "" {
		if err := mon.DoFile(ctx, script); err != nil {
			return fmt.Errorf("%s: %w", script, err)
		}
		return nil
	}
	return mon.REPL(ctx, in, interactive)
}
