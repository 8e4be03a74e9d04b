package main

import (
	"context"
	gosql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-jobq/jobq"
	"github.com/go-jobq/jobq/config"
	"github.com/go-jobq/jobq/exec"
	"github.com/go-jobq/jobq/internal/metrics"
	"github.com/go-jobq/jobq/internal/pool"
	"github.com/go-jobq/jobq/job"
	gsql "github.com/go-jobq/jobq/store/sql"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite"
)

var (
	configPath string
	dbPath     string
)

// BuildCLI assembles the jobq root command and its subcommands.
func BuildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:     "jobq",
		Short:   "A durable, multi-worker shell-command job queue",
		Version: "0.1.0",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "jobq.yaml", "config file path")
	root.PersistentFlags().StringVar(&dbPath, "db", "jobq.db", "path to the sqlite database file")

	root.AddCommand(buildWorkerCommand())
	root.AddCommand(buildEnqueueCommand())
	root.AddCommand(buildDLQCommand())
	root.AddCommand(buildStatsCommand())
	root.AddCommand(buildConfigCommand())

	return root
}

func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to load config, using defaults", "path", configPath, "err", err)
		}
		return config.Default()
	}
	return cfg
}

func openStore() (*bun.DB, *gsql.Store, error) {
	sqlDB, err := gosql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := gsql.InitDB(context.Background(), db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, gsql.New(db), nil
}

func buildWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage the worker pool",
	}
	cmd.AddCommand(buildWorkerStartCommand())
	return cmd
}

func buildWorkerStartCommand() *cobra.Command {
	var metricsPort int
	var metricsEnabled bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the worker pool, sweepers, and metrics server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueue(metricsEnabled, metricsPort)
		},
	}
	cmd.Flags().BoolVar(&metricsEnabled, "metrics", true, "expose Prometheus metrics over HTTP")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 9090, "port for the metrics HTTP server")
	return cmd
}

func runQueue(metricsEnabled bool, metricsPort int) error {
	cfg := loadConfig()
	log := slog.Default()

	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	var collector *metrics.Collector
	if metricsEnabled {
		collector = metrics.NewCollector(nil)
		go func() {
			log.Info("starting metrics server", "port", metricsPort)
			if err := metrics.StartServer(metricsPort); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	retry := jobq.NewRetryPolicy(jobq.BackoffConfig{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
		Jitter:     0.2,
	})

	svc := jobq.NewService(store, jobq.ServiceConfig{
		DefaultPriority:   job.MEDIUM,
		DefaultMaxRetries: cfg.Retry.MaxRetries,
		DefaultTimeout:    cfg.Jobs.DefaultTimeout,
		Retry:             retry,
	}, collector, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	workerCfg := jobq.WorkerConfig{
		PollInterval: cfg.Workers.PollInterval,
		Executor:     exec.NewShellExecutor(),
		Retry:        retry,
	}
	workers := pool.New(func(id string) pool.Worker {
		return jobq.NewWorker(id, svc, workerCfg, log)
	}, log)
	if err := workers.Start(ctx, cfg.Workers.Max); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	log.Info("jobq running", "workers", cfg.Workers.Max, "db", dbPath)

	<-ctx.Done()
	log.Info("shutting down")

	if err := workers.StopGraceful(cfg.Workers.ShutdownTimeout); err != nil {
		log.Error("error stopping workers", "err", err)
	}
	if err := svc.Stop(cfg.Workers.ShutdownTimeout); err != nil {
		log.Error("error stopping service", "err", err)
	}
	return nil
}

func buildEnqueueCommand() *cobra.Command {
	var command string
	var priority string
	var maxRetries uint32
	var timeout time.Duration
	var runAt string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a shell command",
		RunE: func(cmd *cobra.Command, args []string) error {
			if command == "" {
				return fmt.Errorf("a command is required (use --command)")
			}
			p, err := job.ParsePriority(priority)
			if err != nil {
				return err
			}

			var runAtPtr *time.Time
			if runAt != "" {
				t, err := time.Parse(time.RFC3339, runAt)
				if err != nil {
					return fmt.Errorf("invalid --run-at: %w", err)
				}
				runAtPtr = &t
			}

			cfg := loadConfig()
			_, store, err := openStore()
			if err != nil {
				return err
			}
			svc := jobq.NewService(store, jobq.ServiceConfig{
				DefaultMaxRetries: cfg.Retry.MaxRetries,
				DefaultTimeout:    cfg.Jobs.DefaultTimeout,
			}, nil, slog.Default())

			spec := jobq.EnqueueSpec{Command: command, Priority: p, RunAt: runAtPtr}
			if cmd.Flags().Changed("max-retries") {
				spec.MaxRetries = &maxRetries
			}
			if cmd.Flags().Changed("timeout") {
				spec.Timeout = &timeout
			}

			j, err := svc.Enqueue(context.Background(), spec)
			if err != nil {
				return err
			}
			fmt.Printf("enqueued job %s (state=%s)\n", j.ID, j.State)
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "shell command to run")
	cmd.Flags().StringVar(&priority, "priority", "MEDIUM", "priority: LOW, MEDIUM, HIGH, CRITICAL")
	cmd.Flags().Uint32Var(&maxRetries, "max-retries", 0, "override the configured max retry count")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override the configured execution timeout")
	cmd.Flags().StringVar(&runAt, "run-at", "", "RFC3339 timestamp to delay execution until")
	cmd.MarkFlagRequired("command")
	return cmd
}

func buildDLQCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and manage the dead letter queue",
	}
	cmd.AddCommand(buildDLQListCommand())
	cmd.AddCommand(buildDLQRetryCommand())
	cmd.AddCommand(buildDLQPurgeCommand())
	return cmd
}

func buildDLQListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs currently in the dead letter queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			svc := jobq.NewService(store, jobq.ServiceConfig{}, nil, slog.Default())
			jobs, err := svc.DLQList(context.Background(), limit)
			if err != nil {
				return err
			}
			for _, j := range jobs {
				fmt.Printf("%s\t%-9s\t attempts=%d\t%s\n", j.ID, j.Priority, j.Attempts, j.Command)
			}
			fmt.Printf("%d jobs\n", len(jobs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of jobs to list")
	return cmd
}

func buildDLQRetryCommand() *cobra.Command {
	var resetAttempts bool
	var newMaxRetries uint32
	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Move a dead-lettered job back to Pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}
			_, store, err := openStore()
			if err != nil {
				return err
			}
			svc := jobq.NewService(store, jobq.ServiceConfig{}, nil, slog.Default())

			var newMaxRetriesPtr *uint32
			if cmd.Flags().Changed("max-retries") {
				newMaxRetriesPtr = &newMaxRetries
			}
			j, err := svc.DLQRetry(context.Background(), id, resetAttempts, newMaxRetriesPtr)
			if err != nil {
				return err
			}
			fmt.Printf("job %s is now %s\n", j.ID, j.State)
			return nil
		},
	}
	cmd.Flags().BoolVar(&resetAttempts, "reset-attempts", false, "reset the attempt counter to zero")
	cmd.Flags().Uint32Var(&newMaxRetries, "max-retries", 0, "set a new max retry budget")
	return cmd
}

func buildDLQPurgeCommand() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently delete dead-lettered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			svc := jobq.NewService(store, jobq.ServiceConfig{}, nil, slog.Default())

			var n int64
			if olderThan > 0 {
				n, err = svc.DLQPurgeOlderThan(context.Background(), olderThan)
			} else {
				n, err = svc.DLQPurgeAll(context.Background())
			}
			if err != nil {
				return err
			}
			fmt.Printf("purged %d jobs\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only purge jobs dead-lettered longer than this")
	return cmd
}

func buildStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by state and priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			svc := jobq.NewService(store, jobq.ServiceConfig{}, nil, slog.Default())
			stats, err := svc.Stats(context.Background())
			if err != nil {
				return err
			}
			for _, state := range []job.State{job.Pending, job.Scheduled, job.Processing, job.Completed, job.Dead, job.Cancelled} {
				fmt.Printf("%-10s %d\n", state, stats.ByState[state])
				for _, p := range []job.Priority{job.CRITICAL, job.HIGH, job.MEDIUM, job.LOW} {
					if n := stats.ByPriority[state][p]; n > 0 {
						fmt.Printf("  %-9s %d\n", p, n)
					}
				}
			}
			return nil
		},
	}
	return cmd
}

func buildConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit runtime configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every configuration option",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewStore(loadConfig())
			for k, v := range store.List() {
				fmt.Printf("%s = %s\n", k, v)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a single configuration option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewStore(loadConfig())
			v, ok := store.List()[args[0]]
			if !ok {
				return fmt.Errorf("config: unknown option %q", args[0])
			}
			fmt.Println(v)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a configuration option to the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewStore(loadConfig())
			if err := store.Set(args[0], args[1]); err != nil {
				return err
			}
			return writeConfig(store.Get())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore every configuration option to its default value",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeConfig(config.Default())
		},
	})
	return cmd
}

func writeConfig(cfg config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}
	return nil
}
