package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/civicflow/civicflow/internal/config"
	"github.com/civicflow/civicflow/internal/database"
	"github.com/civicflow/civicflow/internal/database/seed"
	"github.com/civicflow/civicflow/internal/scheduler"
	"github.com/civicflow/civicflow/internal/server"
	"github.com/civicflow/civicflow/internal/tui"
	"github.com/civicflow/civicflow/internal/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, pipeline workers and scheduled jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, util.SystemClock{})
		if err != nil {
			return err
		}
		defer a.close()

		cfg := a.cfg
		a.complaints.StartWorkers(ctx, cfg.Pipeline.Workers, cfg.Pipeline.QueueSize)
		defer a.complaints.Close()

		srv := server.New(server.Config{
			Addr:           cfg.Server.Addr,
			AdminToken:     cfg.Server.AdminToken,
			RequestTimeout: cfg.Server.RequestTimeout(),
		}, server.Deps{
			Complaints: a.complaints,
			Admin:      a.admin,
			Briefings:  a.briefings,
			SLA:        a.sla,
			Clusters:   a.clusters,
			Bus:        a.bus,
			Logger:     a.logger,
		})
		if cfg.Server.AdminToken == "" {
			a.logger.Warn("admin token not set; admin routes will reject every request")
		}

		sched := newScheduler(a)

		// Complaints queued before a restart are picked up once at start.
		if res, err := a.complaints.Backfill(ctx); err != nil {
			a.logger.Warn("startup backfill failed", "error", err)
		} else if res.Processed > 0 {
			a.logger.Info("startup backfill", "processed", res.Processed, "updated", res.Updated)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(gctx) })
		g.Go(func() error { return sched.Run(gctx) })
		err = g.Wait()
		a.logger.Info("CivicFlow shutdown complete")
		return err
	},
}

func newScheduler(a *app) *scheduler.Scheduler {
	s := scheduler.New(scheduler.WithClock(a.clock), scheduler.WithLogger(a.logger))
	s.Add(scheduler.Job{
		Name: "sla-monitor",
		Next: scheduler.Every(a.cfg.SLA.ScanInterval()),
		Run: func(ctx context.Context) error {
			_, err := a.sla.Scan(ctx)
			return err
		},
	})
	s.Add(scheduler.Job{
		Name: "cluster-detector",
		Next: scheduler.Every(a.cfg.Cluster.Interval()),
		Run: func(ctx context.Context) error {
			_, err := a.clusters.Detect(ctx)
			return err
		},
	})
	if a.briefings != nil {
		s.Add(scheduler.Job{
			Name: "daily-briefing",
			Next: scheduler.DailyAt(a.cfg.Briefing.Hour, time.Local),
			Run: func(ctx context.Context) error {
				_, err := a.briefings.Generate(ctx)
				return err
			},
		})
	}
	return s
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the operations console",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		clock, err := consoleClock()
		if err != nil {
			return err
		}
		a, err := openApp(ctx, clock)
		if err != nil {
			return err
		}
		defer a.close()

		tui.Version = Version
		tui.BuildTime = BuildTime

		a.logger.Info("starting console", "simulation", a.cfg.Simulation.Enabled)
		return tui.Run(ctx, a.cfg, tui.Services{
			Complaints: a.complaints,
			Admin:      a.admin,
			Briefings:  a.briefings,
		}, a.clock)
	},
}

// consoleClock returns a simulation clock when simulation is enabled. The
// config is read twice so the clock exists before services are wired.
func consoleClock() (util.Clock, error) {
	cfg, _, err := config.Load(configPath, true)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if !cfg.Simulation.Enabled {
		return util.SystemClock{}, nil
	}
	return util.NewSimClock(time.Now(), cfg.Simulation.TimeScale), nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// openDB migrates up.
		return withDB(cmd, func(db *database.DB) error {
			m, err := database.NewMigrator(db)
			if err != nil {
				return err
			}
			v, err := m.CurrentVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd, func(db *database.DB) error {
			m, err := database.NewMigrator(db)
			if err != nil {
				return err
			}
			res, err := m.MigrateDown(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back to version %d\n", res.TargetVersion)
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd, func(db *database.DB) error {
			m, err := database.NewMigrator(db)
			if err != nil {
				return err
			}
			migrations, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tDESCRIPTION\tAPPLIED\tNOTE")
			for _, mig := range migrations {
				applied := "-"
				if mig.Applied {
					applied = util.FormatDateTime(mig.AppliedAt)
				}
				note := ""
				if mig.Drifted {
					note = "checksum changed"
				}
				fmt.Fprintf(w, "%03d\t%s\t%s\t%s\n", mig.Version, mig.Description, applied, note)
			}
			return w.Flush()
		})
	},
}

var seedDemo int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default tenant and contractors, optionally with demo complaints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, util.SystemClock{})
		if err != nil {
			return err
		}
		defer a.close()

		data, err := seed.DefaultDataset()
		if err != nil {
			return err
		}
		if a.cfg.Service.DefaultTenant != "" {
			data.Tenant = a.cfg.Service.DefaultTenant
		}
		seedCfg := seed.DefaultConfig()
		seedCfg.DemoComplaints = seedDemo

		res, err := seed.NewGenerator(a.db.DB, data, seedCfg, a.clock).Generate(ctx)
		if err != nil {
			return fmt.Errorf("generating seed data: %w", err)
		}
		if res.Complaints > 0 {
			// Demo complaints go through the pipeline like real ones.
			if _, err := a.complaints.Backfill(ctx); err != nil {
				return fmt.Errorf("processing demo complaints: %w", err)
			}
		}
		return printJSON(cmd, res)
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Reprocess complaints that were never classified",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) (any, error) { return a.complaints.Backfill(cmd.Context()) })
	},
}

var slaScanCmd = &cobra.Command{
	Use:   "sla-scan",
	Short: "Run one SLA monitor pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) (any, error) { return a.sla.Scan(cmd.Context()) })
	},
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Run one cluster detection pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) (any, error) {
			n, err := a.clusters.Detect(cmd.Context())
			return map[string]int{"clusters": n}, err
		})
	},
}

var briefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Generate and print today's briefing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) (any, error) {
			if a.briefings == nil {
				return nil, fmt.Errorf("briefings are disabled in %s", a.cfgPath)
			}
			return a.briefings.Generate(cmd.Context())
		})
	},
}

var doctorReconcile bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database health and contractor workload counters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) (any, error) {
			ctx := cmd.Context()
			report := map[string]any{}

			if err := a.db.HealthCheck(ctx); err != nil {
				report["health"] = err.Error()
			} else {
				report["health"] = "ok"
			}
			if stats, err := a.db.GetStats(ctx); err == nil {
				report["stats"] = stats
			}

			drift, err := a.admin.CheckWorkloads(ctx)
			if err != nil {
				return nil, err
			}
			report["workload_drift"] = drift
			if doctorReconcile && len(drift) > 0 {
				n, err := a.admin.ReconcileWorkloads(ctx)
				if err != nil {
					return nil, err
				}
				report["reconciled"] = n
			}
			return report, nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and exit",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "CivicFlow version %s (built %s)\n", Version, BuildTime)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	seedCmd.Flags().IntVar(&seedDemo, "demo", 0, "Number of demo complaints to create")
	doctorCmd.Flags().BoolVar(&doctorReconcile, "reconcile", false, "Rewrite drifted workload counters")
}

// withDB runs fn against the migrated database without wiring services.
func withDB(cmd *cobra.Command, fn func(*database.DB) error) error {
	cfg, _, _, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	db, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

// withApp runs fn against the wired services and prints its result.
func withApp(cmd *cobra.Command, fn func(*app) (any, error)) error {
	a, err := openApp(cmd.Context(), util.SystemClock{})
	if err != nil {
		return err
	}
	defer a.close()

	out, err := fn(a)
	if err != nil {
		return err
	}
	return printJSON(cmd, out)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
