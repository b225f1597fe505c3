package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blesensor/internal/devicefactory"
	"github.com/srg/blesensor/internal/metrics"
	"github.com/srg/blesensor/internal/sensor"
	"github.com/srg/blesensor/internal/session"
	"github.com/srg/blesensor/pkg/config"
	"golang.org/x/sync/errgroup"
)

type runOptions struct {
	configPath string
	duration   time.Duration
	output     string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run --config <file>",
		Short: "Run several sensor sessions from a config file",
		Long: `Starts every session listed in a YAML config file and prints their readings,
one line per envelope tagged with the session label. A session that fails for
good is reported and the others keep running; the command exits when all
sessions have ended or it is interrupted.

Config file:
  log_level: info
  metrics_addr: ":9100"
  sessions:
    - kind: heart-rate
    - kind: pressure
      label: tank
      address: 40:4C:CA:47:11:6A
      poll_interval: 500ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessions(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to the sessions YAML file")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop after this long; 0 runs until interrupted")
	cmd.Flags().StringVarP(&opts.output, "output", "o", config.OutputText, "Output format: text or json")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runSessions(cmd *cobra.Command, opts *runOptions) error {
	file, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	cfg.OutputFormat = opts.output
	file.Apply(cfg)
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}

	render, err := newRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.OutputFormat)
	if err != nil {
		return err
	}

	var fileCfg *config.Config
	if file.LogLevel != "" {
		fileCfg = cfg
	}
	logger, err := configureLogger(cmd, fileCfg)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	central := devicefactory.NewCentral(logger)
	defer stopCentral(central, logger)

	m := metrics.New()
	sessions := make([]*session.Session[sensor.Reading], 0, len(file.Sessions))
	for i, sc := range file.Sessions {
		codec, err := sensor.Lookup(sc.Kind)
		if err != nil {
			return fmt.Errorf("sessions[%d]: %w", i, err)
		}
		sess, err := session.New[sensor.Reading](sc, central, codec,
			session.WithLogger(logger),
			session.WithMetrics(m),
		)
		if err != nil {
			return fmt.Errorf("sessions[%d]: %w", i, err)
		}
		sessions = append(sessions, sess)
	}

	ctx, cancel := interruptContext(cmd.Context(), opts.duration)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m.Register(reg)
		g.Go(func() error {
			return serveMetrics(serverCtx, cfg.MetricsAddr, reg, logger)
		})
	}

	var (
		mu       sync.Mutex
		failures []error
		renderMu sync.Mutex
	)
	var sessionsWG sync.WaitGroup
	for _, sess := range sessions {
		sessionsWG.Add(1)
		g.Go(func() error {
			defer sessionsWG.Done()
			err := superviseSession(gctx, sess, render, &renderMu, logger)
			if err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
			return nil
		})
	}

	// stop serving metrics once every session has ended
	go func() {
		sessionsWG.Wait()
		stopServer()
	}()

	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(failures...)
}

// superviseSession runs one session until ctx ends or the session stops
// producing readings. It returns the reason a session ended early.
func superviseSession(ctx context.Context, sess *session.Session[sensor.Reading], render *renderer, renderMu *sync.Mutex, logger *logrus.Logger) error {
	cfg := sess.Config()
	label := cfg.DisplayLabel()

	sub := sess.Results().Subscribe()
	defer sub.Unsubscribe()

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	defer sess.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-sub.C():
			if !ok {
				return nil
			}

			renderMu.Lock()
			err := render.render(label, cfg.Kind, env)
			renderMu.Unlock()
			if err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}

			if err := sessionEnd(label, sess.Phase(), env); err != nil {
				logger.WithFields(logrus.Fields{"session": label, "error": err}).Warn("Session ended")
				return err
			}
		}
	}
}
