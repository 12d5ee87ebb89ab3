package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AntonStoeckl/dynamic-collections-go/carhire"
	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/postgresengine"
	"github.com/AntonStoeckl/dynamic-collections-go/config"
	"github.com/AntonStoeckl/dynamic-collections-go/logging"
	"github.com/AntonStoeckl/dynamic-collections-go/settings"
)

var ErrNotPostgres = errors.New("migrations need the postgres store engine")

func newMigrateCommand(c *cli) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Store.Engine != config.EnginePostgres {
				return ErrNotPostgres
			}

			db, err := c.cfg.Store.Postgres.OpenSQLDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if down {
				if err := postgresengine.MigrateDown(db); err != nil {
					return err
				}
				c.logger.Info("reverted all migrations")
				return nil
			}

			return postgresengine.Migrate(db, logging.Sugared(c.logger))
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "revert all migrations instead")

	return cmd
}

func newSeedCommand(c *cli) *cobra.Command {
	plan := carhire.DefaultPlan()
	var seed uint64
	var password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the store with generated vehicles, customers, employees and bookings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			if err := ensureSettingsDocuments(ctx, a); err != nil {
				return err
			}

			options := []carhire.SeederOption{
				carhire.WithHarvester(a.settings.HarvestRecord),
				carhire.WithSeedLogger(logging.Sugared(c.logger)),
			}
			if seed != 0 {
				options = append(options, carhire.WithSeed(seed))
			}
			if password != "" {
				options = append(options, carhire.WithEmployeePassword(password))
			}

			seeder, err := carhire.NewSeeder(a.store, options...)
			if err != nil {
				return err
			}

			report, err := seeder.Seed(ctx, plan)
			c.logger.Info("seeding finished",
				zap.Int("vehicles", report.Vehicles),
				zap.Int("customers", report.Customers),
				zap.Int("employees", report.Employees),
				zap.Int("bookings", report.Bookings),
				zap.Int("skipped_bookings", report.SkippedBookings),
			)

			return err
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&plan.Vehicles, "vehicles", plan.Vehicles, "number of vehicles")
	flags.IntVar(&plan.Customers, "customers", plan.Customers, "number of customers")
	flags.IntVar(&plan.Employees, "employees", plan.Employees, "number of employees")
	flags.IntVar(&plan.Bookings, "bookings", plan.Bookings, "number of booking attempts")
	flags.Uint64Var(&seed, "seed", 0, "random seed for reproducible data (0 picks one)")
	flags.StringVar(&password, "employee-password", "", "password of the seeded employees")

	return cmd
}

// ensureSettingsDocuments creates the settings documents referenced by select fields that do not
// exist yet, so that harvesting seeded values has a document to extend.
func ensureSettingsDocuments(ctx context.Context, a *app) error {
	seen := make(map[string]bool)

	for _, collection := range a.store.Collections() {
		fields, err := a.store.Schema(collection)
		if err != nil {
			return err
		}

		for _, f := range fields {
			name, _, ok := strings.Cut(f.Meta.Setting, "#")
			if !ok || name == "" || seen[name] {
				continue
			}
			seen[name] = true

			_, err := a.settings.Get(ctx, name)
			switch {
			case err == nil:
			case errors.Is(err, settings.ErrDocumentNotFound):
				if err := a.settings.Put(ctx, name, settings.NewBranch()); err != nil {
					return err
				}
			default:
				return err
			}
		}
	}

	return nil
}

func newHashPasswordCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password, read from stdin when not given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hooks, err := carhire.NewHooks(c.cfg.Server.BcryptCost)
			if err != nil {
				return err
			}

			hash, err := hooks.Hash(password)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hash)

			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// no config needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, ok := debug.ReadBuildInfo()
			if !ok {
				return errors.New("failed to read build info")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Module:       %s %s\n", info.Main.Path, info.Main.Version)
			fmt.Fprintf(out, "Go:           %s\n", info.GoVersion)

			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					fmt.Fprintf(out, "Commit:       %s\n", setting.Value)
				case "vcs.time":
					fmt.Fprintf(out, "Commit time:  %s\n", setting.Value)
				case "vcs.modified":
					if setting.Value == "true" {
						fmt.Fprintln(out, "Dirty:        true")
					}
				}
			}

			return nil
		},
	}
}
