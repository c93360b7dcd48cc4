//go:build !js

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	getopt "github.com/pborman/getopt/v2"
	"github.com/sirupsen/logrus"

	"gocpu8/pkg/computer"
	"gocpu8/pkg/utils"
)

// options are the command line settings that override the config file.
type options struct {
	configPath string
	program    string
	rom        string
	osImage    string
	cpus       int
	cores      int
	hz         int
	maxTicks   uint64
	logLevel   string
	restore    string
	hibernate  string
}

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Machine configuration file (TOML)")
	optROM := getopt.StringLong("rom", 'r', "", "ROM image (.bin or .asm)")
	optOS := getopt.StringLong("os", 'o', "", "OS image (.bin or .asm)")
	optCPUs := getopt.IntLong("cpus", 0, 0, "Number of CPUs")
	optCores := getopt.IntLong("cores", 0, 0, "Cores per CPU")
	optHz := getopt.IntLong("hz", 0, 0, "Clock rate in ticks per second, 0 runs free")
	optMax := getopt.Uint64Long("max", 'm', 0, "Stop after this many ticks, 0 for no limit")
	optLevel := getopt.StringLong("log-level", 'l', "warn", "Log level (trace, debug, info, warn, error)")
	optRestore := getopt.StringLong("restore", 0, "", "Resume from a hibernation archive")
	optHibernate := getopt.StringLong("hibernate", 0, "", "Write a hibernation archive on exit")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.SetParameters("[program]")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	opts := options{
		configPath: *optConfig,
		rom:        *optROM,
		osImage:    *optOS,
		cpus:       *optCPUs,
		cores:      *optCores,
		hz:         *optHz,
		maxTicks:   *optMax,
		logLevel:   *optLevel,
		restore:    *optRestore,
		hibernate:  *optHibernate,
	}
	if args := getopt.Args(); len(args) > 0 {
		opts.program = args[0]
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(opts.logLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithError(err).Warn("bad log level, using warn")
		logger.SetLevel(logrus.WarnLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, devices, err := buildMachine(opts, logger, os.Stdout)
	if err != nil {
		logger.WithError(err).Error("machine setup failed")
		os.Exit(1)
	}

	ticks, runErr := runMachine(ctx, m, opts)
	fmt.Println()
	printState(os.Stdout, m, ticks)

	if err := devices.Sync(); err != nil {
		logger.WithError(err).Error("disk sync failed")
	}

	if opts.hibernate != "" {
		if err := m.HibernateToFile(opts.hibernate); err != nil {
			logger.WithError(err).Error("hibernate failed")
			os.Exit(1)
		}
		logger.WithField("path", opts.hibernate).Info("machine hibernated")
	}
	if runErr != nil {
		logger.WithError(runErr).Error("run failed")
		os.Exit(1)
	}
}

// buildMachine loads the config, applies command line overrides, mounts
// the standard devices, and loads images or a hibernation archive.
func buildMachine(opts options, logger *logrus.Logger, out io.Writer) (*computer.Computer, *utils.Devices, error) {
	cfg, baseDir, err := utils.LoadMachineConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.cpus > 0 {
		cfg.CPUs = opts.cpus
	}
	if opts.cores > 0 {
		cfg.CoresPerCPU = opts.cores
	}
	if opts.hz > 0 {
		cfg.ClockHz = opts.hz
	}
	// Command line images are relative to the working directory.
	if opts.rom != "" {
		cfg.ROM, _, _ = utils.GetPathInfo(opts.rom)
	}
	if opts.osImage != "" {
		cfg.OS, _, _ = utils.GetPathInfo(opts.osImage)
	}
	if opts.program != "" {
		cfg.Program, _, _ = utils.GetPathInfo(opts.program)
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

	if opts.restore != "" {
		if err := m.RestoreFromFile(opts.restore); err != nil {
			return nil, nil, err
		}
		return m, devices, nil
	}
	if err := utils.LoadImages(m, baseDir); err != nil {
		return nil, nil, err
	}
	return m, devices, nil
}

// runMachine runs until every core halts, a breakpoint is hit, ctx ends or
// the tick limit is reached. A configured clock rate is honoured unless a
// tick limit is given.
func runMachine(ctx context.Context, m *computer.Computer, opts options) (uint64, error) {
	hz := m.Config().ClockHz
	if hz <= 0 || opts.maxTicks > 0 {
		n, err := m.Run(ctx, opts.maxTicks)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		return n, err
	}

	start := m.Ticks()
	clock := computer.NewClock(m, hz)
	clock.Start(ctx)
	err := clock.Wait()
	return m.Ticks() - start, err
}

func printState(w io.Writer, m *computer.Computer, ticks uint64) {
	fmt.Fprintf(w, "ran %d ticks (total %d)", ticks, m.Ticks())
	if m.Paused() {
		fmt.Fprint(w, ", paused on breakpoint")
	}
	fmt.Fprintln(w)
	for _, s := range m.Snapshot() {
		fmt.Fprintf(w, "cpu%d core%d %-10s %s cycles=%d\n", s.CPU, s.Core, s.State, s.Registers, s.Cycles)
	}
}
