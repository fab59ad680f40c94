package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"codeberg.org/mutker/socpowerhintd/internal/config"
	"codeberg.org/mutker/socpowerhintd/internal/coordinator"
	"codeberg.org/mutker/socpowerhintd/internal/gpuidle"
	"codeberg.org/mutker/socpowerhintd/internal/hfi"
	"codeberg.org/mutker/socpowerhintd/internal/hintsink"
	"codeberg.org/mutker/socpowerhintd/internal/logger"
	"codeberg.org/mutker/socpowerhintd/internal/monitor"
	"codeberg.org/mutker/socpowerhintd/internal/pid"
	"codeberg.org/mutker/socpowerhintd/internal/sysload"
	"codeberg.org/mutker/socpowerhintd/internal/wlt"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to acquire pid file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove pid file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	monitors := buildMonitors()

	sysloadMon, _ := findMonitor(monitors, monitor.NameSysLoad).(*sysload.Monitor)
	gpuMon, _ := findMonitor(monitors, monitor.NameGpuIdle).(*gpuidle.Monitor)

	coord := coordinator.New(
		coordinator.Config{
			SendHint:    cfg.SendHint,
			SendGfxHint: cfg.SendGfxHint,
			SocHint:     cfg.SocHint,
		},
		coordinator.NewRealClock(),
		hintsink.LoggingSink{},
		gpuMon,
		sysloadMon,
		sysloadMon,
	)

	active := initMonitors(monitors, coord.Dispatch)

	if err := runMonitors(ctx, active); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("monitor worker failed")
	}

	logger.Info().Msg("exiting")
}

// buildMonitors constructs the monitor set implied by cfg.SocHint. The WLT
// monitor is omitted entirely under socHint=hfi, matching source behavior:
// the containment state machine never arms in that configuration. The GPU
// idle-residency monitor is always constructed, starting paused; only the
// coordinator resumes it.
func buildMonitors() []monitor.Monitor {
	monitors := []monitor.Monitor{
		sysload.New(0),
		gpuidle.New(gpuidle.DefaultSysfsPath, gpuidle.DefaultInterval),
	}

	if cfg.SocHint == "wlt" || cfg.SocHint == "swlt" {
		monitors = append(monitors, wlt.New(wlt.DefaultPath, cfg.NotificationDelay))
	}

	if cfg.SocHint == "hfi" {
		monitors = append(monitors, hfi.New(nil))
	}

	return monitors
}

func findMonitor(monitors []monitor.Monitor, name string) monitor.Monitor {
	for _, m := range monitors {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// initMonitors runs Init on every monitor, excluding (and logging) any
// that fail, and wires the survivors' change callbacks to dispatch.
func initMonitors(monitors []monitor.Monitor, dispatch monitor.ChangeFunc) []monitor.Monitor {
	active := make([]monitor.Monitor, 0, len(monitors))
	for _, m := range monitors {
		if err := m.Init(); err != nil {
			logger.Error().Err(err).Str("monitor", m.Name()).Msg("monitor init failed, excluding")
			continue
		}
		m.SetOnChange(dispatch)
		active = append(active, m)
	}
	return active
}

func runMonitors(ctx context.Context, monitors []monitor.Monitor) error {
	g, gCtx := errgroup.WithContext(ctx)

	for _, m := range monitors {
		m := m
		g.Go(func() error {
			return m.Run(gCtx)
		})
	}

	<-gCtx.Done()
	for _, m := range monitors {
		m.Stop()
	}

	return g.Wait()
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("received termination signal")
	cancel()
}
