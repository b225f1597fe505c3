package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blesensor/internal/device"
	"github.com/srg/blesensor/internal/devicefactory"
	"github.com/srg/blesensor/internal/metrics"
	"github.com/srg/blesensor/internal/result"
	"github.com/srg/blesensor/internal/sensor"
	"github.com/srg/blesensor/internal/session"
	"github.com/srg/blesensor/pkg/config"
)

type watchOptions struct {
	address        string
	name           string
	label          string
	service        string
	char           string
	mtu            int
	pollInterval   time.Duration
	mtuTimeout     time.Duration
	connectTimeout time.Duration
	maxAttempts    int
	duration       time.Duration
	output         string
}

func newWatchCmd() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <kind>",
		Short: "Stream readings from one sensor",
		Long: fmt.Sprintf(`Scans for the sensor, connects and prints every decoded reading until
interrupted. Without --address or --name the sensor kind's preset peripheral
is used; without --service/--char the preset GATT target.

Kinds: %s

Examples:
  # Heart rate strap by its advertised name
  blesensor watch heart-rate

  # Pressure sensor by address, polling twice a second, as JSON lines
  blesensor watch pressure --address 40:4C:CA:47:11:6A --poll-interval 500ms --output json

  # Give up after a minute
  blesensor watch data --duration 1m`, joinKinds()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.address, "address", "", "Peripheral address (overrides the preset identity)")
	f.StringVar(&opts.name, "name", "", "Advertised local name (overrides the preset identity)")
	f.StringVar(&opts.label, "label", "", "Name used in progress messages")
	f.StringVar(&opts.service, "service", "", "Service UUID of the target characteristic")
	f.StringVar(&opts.char, "char", "", "Target characteristic UUID")
	f.IntVar(&opts.mtu, "mtu", 0, "MTU to request; 0 uses the preset")
	f.DurationVar(&opts.pollInterval, "poll-interval", 0, "Polling interval for readable characteristics (default 1s)")
	f.DurationVar(&opts.mtuTimeout, "mtu-timeout", 0, "How long to wait for the MTU exchange (default 3s)")
	f.DurationVar(&opts.connectTimeout, "connect-timeout", 0, "Per-attempt connect timeout; 0 waits for the transport")
	f.IntVar(&opts.maxAttempts, "max-attempts", 0, "Connection attempts before giving up (default 5)")
	f.DurationVar(&opts.duration, "duration", 0, "Stop after this long; 0 runs until interrupted")
	f.StringVarP(&opts.output, "output", "o", config.OutputText, "Output format: text or json")

	return cmd
}

func (o *watchOptions) session(kind sensor.Kind) config.Session {
	return config.Session{
		Kind:                  kind,
		Label:                 o.label,
		Address:               o.address,
		Name:                  o.name,
		Service:               o.service,
		Characteristic:        o.char,
		MTU:                   o.mtu,
		PollInterval:          o.pollInterval,
		MTUTimeout:            o.mtuTimeout,
		ConnectTimeout:        o.connectTimeout,
		MaxConnectionAttempts: o.maxAttempts,
	}
}

func runWatch(cmd *cobra.Command, kindArg string, opts *watchOptions) error {
	kind, err := sensor.ParseKind(kindArg)
	if err != nil {
		return err
	}
	if opts.duration < 0 {
		return fmt.Errorf("--duration must not be negative")
	}

	render, err := newRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.output)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, nil)
	if err != nil {
		return err
	}

	codec, err := sensor.Lookup(kind)
	if err != nil {
		return err
	}

	central := devicefactory.NewCentral(logger)
	defer stopCentral(central, logger)

	m := metrics.New()
	sess, err := session.New[sensor.Reading](opts.session(kind), central, codec,
		session.WithLogger(logger),
		session.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := interruptContext(cmd.Context(), opts.duration)
	defer cancel()

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		m.Register(reg)
		go func() {
			if err := serveMetrics(ctx, addr, reg, logger); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	var progress *ProgressPrinter
	if opts.output == config.OutputText && isTerminal(cmd.ErrOrStderr()) {
		progress = NewProgressPrinter(cmd.ErrOrStderr(), sess.Config().DisplayLabel())
		progress.Start()
		defer progress.Stop()
	}

	sub := sess.Results().Subscribe()
	defer sub.Unsubscribe()

	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Close()

	return consume(ctx, sess, sub.C(), progress, render)
}

// consume renders envelopes until ctx ends, the session fails or the link is lost.
func consume(ctx context.Context, sess *session.Session[sensor.Reading], envs <-chan result.Envelope[sensor.Reading],
	progress *ProgressPrinter, render *renderer) error {
	cfg := sess.Config()
	label := cfg.DisplayLabel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-envs:
			if !ok {
				return nil
			}

			if env.IsLoading() && progress.Active() {
				progress.Update(env.Message)
				continue
			}
			progress.Stop()

			if err := render.render(label, cfg.Kind, env); err != nil {
				return err
			}

			if err := sessionEnd(label, sess.Phase(), env); err != nil {
				return err
			}
		}
	}
}

// sessionEnd reports why env is the last envelope worth waiting for: a
// terminal error or the loss of a streaming link. It returns nil otherwise.
func sessionEnd(label string, phase session.Phase, env result.Envelope[sensor.Reading]) error {
	switch {
	case env.IsError() && phase == session.PhaseFailed:
		return fmt.Errorf("%s: %w: %s", label, ErrSessionFailed, env.Message)
	case env.IsSuccess() && env.Value != nil && env.Value.ConnectionState() == sensor.Disconnected:
		return fmt.Errorf("%s: %w", label, ErrConnectionLost)
	}
	return nil
}

// stopCentral releases the adapter when the transport holds one.
func stopCentral(central device.Central, logger *logrus.Logger) {
	stopper, ok := central.(interface{ Stop() error })
	if !ok {
		return
	}
	if err := stopper.Stop(); err != nil {
		logger.WithError(err).Debug("Stopping BLE adapter failed")
	}
}

func joinKinds() string {
	return strings.Join(sensor.KindNames(), ", ")
}
