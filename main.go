package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/sadopc/dong/internal/config"
	"github.com/sadopc/dong/internal/httpapi"
	"github.com/sadopc/dong/internal/interval"
	xglog "github.com/sadopc/dong/internal/log"
	"github.com/sadopc/dong/internal/store"
	"github.com/sadopc/dong/internal/tui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	headless   bool
	action     float64
	brk        float64
	sets       int
	listen     string
	set        map[string]bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("dong", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "path to config.yaml (default: user config dir)")
	fs.BoolVar(&f.headless, "headless", false, "run one countdown without the terminal UI")
	fs.Float64Var(&f.action, "action", 0, "action minutes (headless; default: last used)")
	fs.Float64Var(&f.brk, "break", 0, "break minutes (headless; default: last used)")
	fs.IntVar(&f.sets, "sets", 0, "number of sets (headless; default: last used)")
	fs.StringVar(&f.listen, "listen", "", "HTTP address for state and control in headless mode")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// timerConfig overlays explicitly set flags on the stored defaults.
func (f flags) timerConfig(defaults interval.Config) (interval.Config, error) {
	cfg := defaults
	if f.set["action"] {
		cfg.ActionMinutes = f.action
	}
	if f.set["break"] {
		cfg.BreakMinutes = f.brk
	}
	if f.set["sets"] {
		cfg.Sets = f.sets
	}
	return cfg, cfg.CheckLimits()
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	dir, err := config.Dir()
	if err != nil {
		return err
	}
	path := f.configPath
	if path == "" {
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = cfg.WithPaths(dir)
	if f.set["listen"] {
		cfg.Listen = f.listen
	}

	if f.headless {
		xglog.Configure(xglog.Config{Level: cfg.LogLevel, Console: true})
	} else {
		logFile, err := openLogFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer logFile.Close()
		xglog.Configure(xglog.Config{Level: cfg.LogLevel, Output: logFile})
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	if f.headless {
		timerCfg, err := f.timerConfig(s.TimerDefaults())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runHeadless(ctx, s, timerCfg, cfg.Listen)
	}

	p := tea.NewProgram(tui.NewApp(s), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// runHeadless runs one countdown to completion, recording it in the store.
// Cancelling ctx stops the countdown.
func runHeadless(ctx context.Context, s *store.Store, cfg interval.Config, listen string) error {
	logger := xglog.WithComponent("headless")

	session, err := interval.Build(cfg)
	if err != nil {
		return err
	}
	run, err := s.StartRun(session)
	if err != nil {
		return err
	}

	runner := interval.NewRunner(session, interval.RunnerOptions{})
	defer runner.Close()
	events := runner.Subscribe(64)

	if listen != "" {
		srv := &http.Server{
			Addr:              listen,
			Handler:           httpapi.NewRouter(runner),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", listen).Msg("http server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info().Str("addr", listen).Msg("http listening")
	}

	logger.Info().
		Str("session", session.ID).
		Int("action_seconds", session.ActionSeconds).
		Int("break_seconds", session.BreakSeconds).
		Int("sets", len(session.Sets)).
		Msg("countdown started")
	if err := runner.Start(ctx); err != nil {
		return err
	}

	done := ctx.Done()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.RecordEvent(run.ID, ev); err != nil {
				logger.Error().Err(err).Msg("record event")
			}
			logEvent(logger, ev)

		case <-done:
			done = nil
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := runner.Stop(stopCtx); err != nil && !errors.Is(err, interval.ErrRunnerClosed) {
				logger.Warn().Err(err).Msg("stop countdown")
			}
			cancel()
		}
	}
}

func logEvent(logger zerolog.Logger, ev interval.Event) {
	switch ev.Type {
	case interval.EventSnapshot:
		phase, _ := ev.Snapshot.Current()
		logger.Debug().
			Stringer("state", ev.Snapshot.State).
			Stringer("phase", phase.Kind).
			Int("set", ev.Snapshot.Cursor.Set+1).
			Int("remaining", ev.Snapshot.Remaining).
			Msg("tick")
	case interval.EventPhaseCompleted:
		phase := ev.Snapshot.Sets[ev.Cursor.Set].Phases[ev.Cursor.Phase]
		logger.Info().
			Stringer("phase", phase.Kind).
			Int("set", ev.Cursor.Set+1).
			Msg("phase completed \a")
	case interval.EventFinished:
		logger.Info().Int("sets", len(ev.Snapshot.Sets)).Msg("Congratulations! Countdown complete.")
	case interval.EventStopped:
		logger.Info().Stringer("cursor", ev.Snapshot.Cursor).Msg("countdown stopped")
	}
}
