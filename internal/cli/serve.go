package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/avelios/maestro/internal/config"
	"github.com/avelios/maestro/internal/daemon"
	"github.com/avelios/maestro/internal/logger"
	"github.com/avelios/maestro/internal/metrics"
	"github.com/avelios/maestro/internal/observability"
	"github.com/avelios/maestro/pkg/executor"
	"github.com/avelios/maestro/pkg/gateway"
	"github.com/avelios/maestro/pkg/history"
	"github.com/avelios/maestro/pkg/plan"
	"github.com/avelios/maestro/pkg/schedule"
	"github.com/avelios/maestro/pkg/toolregistry"
)

// serveCmd runs the long-lived daemon
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the maestro daemon",
	Long: `Run the event gateway, metrics endpoint, scheduler and config watcher
under one process until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	pidFile := daemon.New(cfg.DataDir)
	if err := pidFile.Acquire(); err != nil {
		return err
	}
	defer pidFile.Release()

	logg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return err
	}
	defer logg.Close()

	m := metrics.NewMetrics()

	var audit *observability.AuditLogger
	if cfg.Audit.Enabled {
		audit, err = observability.OpenAuditLogger(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("failed to open audit trail: %w", err)
		}
		defer audit.Close()
	}

	registry, err := buildToolRegistry(cfg, m, logg.GetZerolog())
	if err != nil {
		return err
	}

	execOpts := []executor.Option{
		executor.WithMetrics(m),
		executor.WithLogger(logg.GetZerolog()),
	}
	if audit != nil {
		execOpts = append(execOpts, executor.WithAudit(audit))
	}
	exec := executor.New(registry, execOpts...)

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(history.Config{Path: cfg.History.Path, Logger: logg.GetZerolog()})
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var gw *gateway.Server
	if cfg.Gateway.Enabled {
		gw, err = gateway.NewServer(gateway.Config{
			Addr:   cfg.Gateway.Addr,
			Token:  cfg.Gateway.Token,
			Logger: logg.GetZerolog(),
		})
		if err != nil {
			return err
		}
		if err := gw.Start(); err != nil {
			return err
		}
		defer gw.Stop()
	}

	if cfg.Metrics.Enabled {
		metricsServer := startMetricsServer(cfg.Metrics.Addr, m, logg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(ctx)
		}()
	}

	runner := buildRunner(exec, gw, store)

	if cfg.Schedule.Enabled {
		scheduler, err := schedule.NewService(schedule.ServiceOptions{
			StorePath: cfg.Schedule.StorePath,
			Runner:    runner,
			ExecOptions: executor.Options{
				Timeout:     time.Duration(cfg.Executor.PlanTimeout) * time.Second,
				StepTimeout: time.Duration(cfg.Executor.StepTimeout) * time.Second,
			},
			OnEvent: scheduleEventHook(m, gw),
		})
		if err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	applyToggles := toolToggler(registry, cfg.Tools.Disabled)

	watcher, err := config.NewWatcher(loader, logg.GetZerolog(), func(next *config.Config) {
		applyToggles(next.Tools.Disabled)
	})
	if err != nil {
		logg.Warn().Err(err).Msg("Config watcher unavailable")
	} else {
		defer watcher.Stop()
	}

	logg.Info().
		Str("version", version).
		Str("dataDir", cfg.DataDir).
		Msg("Maestro daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logg.Info().Str("signal", sig.String()).Msg("Shutting down")
	return nil
}

// buildRunner wraps the executor so scheduled and gateway-observed runs are
// streamed and archived the same way ad hoc ones are
func buildRunner(exec *executor.Executor, gw *gateway.Server, store *history.Store) schedule.RunFunc {
	return func(ctx context.Context, p *plan.ExecutionPlan, userID string, opts executor.Options) (*plan.ExecutionResult, error) {
		if gw != nil {
			opts.OnStepStart, opts.OnStepComplete = gateway.StreamCallbacks(gw.Broadcaster(), p.PlanID)
		}

		result, err := exec.ExecutePlan(ctx, p, userID, opts)
		if err != nil || result == nil {
			return result, err
		}

		if gw != nil {
			gw.Broadcaster().Broadcast("plan.completed", map[string]interface{}{
				"planId":         p.PlanID,
				"status":         string(result.Status),
				"completedSteps": result.CompletedSteps,
				"totalSteps":     result.TotalSteps,
			})
		}
		if store != nil {
			if _, herr := store.Record(context.Background(), p, result, userID); herr != nil {
				log.Warn().Err(herr).Str("planId", p.PlanID).Msg("Failed to archive run")
			}
		}
		return result, nil
	}
}

// scheduleEventHook counts finished scheduled runs and mirrors scheduler
// lifecycle events onto the gateway
func scheduleEventHook(m *metrics.Metrics, gw *gateway.Server) func(schedule.Event) {
	return func(evt schedule.Event) {
		if evt.Action == schedule.EventActionFinished && evt.Status != "" {
			m.ScheduledRunsTotal.WithLabelValues(evt.Status).Inc()
		}
		if gw != nil {
			gw.Broadcaster().Broadcast("schedule."+string(evt.Action), evt)
		}
	}
}

// toolToggler tracks which tools the config disabled so a reload can
// re-enable the ones that left the list
func toolToggler(registry *toolregistry.Registry, initial []string) func([]string) {
	var mu sync.Mutex
	current := map[string]bool{}

	apply := func(disabled []string) {
		mu.Lock()
		defer mu.Unlock()

		next := make(map[string]bool, len(disabled))
		for _, name := range disabled {
			next[name] = true
		}
		for name := range current {
			if !next[name] {
				registry.SetEnabled(name, true)
			}
		}
		for name := range next {
			if !current[name] {
				registry.SetEnabled(name, false)
			}
		}
		current = next
	}

	apply(initial)
	return apply
}

func startMetricsServer(addr string, m *metrics.Metrics, logg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	logg.Info().Str("addr", addr).Msg("Starting metrics endpoint")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return srv
}
