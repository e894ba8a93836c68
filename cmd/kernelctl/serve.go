package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Kihui/minix/internal/config"
	"github.com/Kihui/minix/internal/introspect"
	"github.com/Kihui/minix/internal/kernel"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		cfgPath    string
		tickPeriod time.Duration
		overrides  []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Boot the kernel and serve its introspection endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr, cfgPath, tickPeriod, overrides)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "introspection HTTP listen address")
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to a kernel tuning YAML file (optional)")
	cmd.Flags().DurationVar(&tickPeriod, "tick", 10*time.Millisecond, "simulated clock tick interval")
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "override a config field, key=value (repeatable)")

	return cmd
}

// runServe mirrors the teacher's daemon startup sequencing: build the
// config, build the long-lived object, start its supervised background
// tasks under one errgroup (in place of the teacher's own task.Group), and
// shut everything down together on SIGINT/SIGTERM.
func runServe(ctx context.Context, addr, cfgPath string, tickPeriod time.Duration, overrides []string) error {
	log := newLogger()

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	set, err := parseSetFlags(overrides)
	if err != nil {
		return err
	}
	cfg, err = cfg.WithOverrides(set)
	if err != nil {
		return err
	}

	k, err := kernel.Bootstrap(cfg, log)
	if err != nil {
		return err
	}

	trace := introspect.NewTrace(512)
	k.SetObserver(func(ev kernel.Event) {
		trace.Record(introspect.Event{
			Kind:   ev.Kind,
			Caller: int(ev.Caller),
			Target: int(ev.Target),
			Result: ev.Result.String(),
		})
	})

	srv := introspect.NewServer(trace, log, procViewFunc(k), k.Uptime)

	httpServer := &http.Server{Addr: addr, Handler: srv}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("introspection server listening on %s", addr)
		err := httpServer.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return runClockTick(gctx, k, tickPeriod)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runClockTick simulates the hardware clock interrupt driving sched(),
// the external collaborator spec.md §1 places outside the kernel proper.
func runClockTick(ctx context.Context, k *kernel.Kernel, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			k.Tick()
		}
	}
}

func procViewFunc(k *kernel.Kernel) func() []introspect.ProcView {
	return func() []introspect.ProcView {
		snaps := k.Snapshot()
		out := make([]introspect.ProcView, len(snaps))
		for i, s := range snaps {
			rts := "runnable"
			if s.RTS&kernel.Sending != 0 {
				rts = "sending"
			} else if s.RTS&kernel.Receiving != 0 {
				rts = "receiving"
			}

			out[i] = introspect.ProcView{
				Nr:          int(s.Nr),
				InUse:       s.InUse,
				Priority:    s.Priority,
				QuantumSize: s.QuantumSize,
				Blocked:     s.Blocked,
				RTS:         rts,
			}
		}
		return out
	}
}
