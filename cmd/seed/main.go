package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"irisapi/internal/auth"
	"irisapi/internal/config"
	"irisapi/internal/db"
	"irisapi/internal/logging"
	"irisapi/internal/model"
	"irisapi/internal/repository"
	"irisapi/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "seed",
		Short:        "Manage users of the Iris Data API database",
		SilenceUsage: true,
	}
	root.AddCommand(newUsersCmd(), newListCmd())
	return root
}

func newUsersCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Create the demo users (setosa, virginica, admin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, users, err := openUserStore(reset)
			if err != nil {
				return err
			}

			logging.Info().Msg("seeding demo users")
			created, updated, err := service.SeedUsers(cmd.Context(), users, auth.NewPasswordHasher(cfg.BcryptCost), service.DemoUsers)
			if err != nil {
				return fmt.Errorf("seed users: %w", err)
			}

			logging.Info().
				Int("created", created).
				Int("reactivated", updated).
				Int("total", len(service.DemoUsers)).
				Msg("seed completed successfully")
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop the users table before seeding")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, users, err := openUserStore(false)
			if err != nil {
				return err
			}
			all, err := users.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tACCESS LEVEL\tACTIVE")
			for _, u := range all {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", u.ID, u.Email, u.AccessLevel, u.Active)
			}
			return w.Flush()
		},
	}
}

func openUserStore(reset bool) (*config.Config, repository.UserRepository, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console"})

	if cfg.MySQLDSN == "" {
		return nil, nil, fmt.Errorf("mysql_dsn is not configured (set %sMYSQL_DSN)", config.EnvPrefix)
	}
	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	logging.Info().Msg("connected to database")

	if reset {
		if err := gormDB.Migrator().DropTable(&model.User{}); err != nil {
			logging.Warn().Err(err).Msg("drop users table (may not exist)")
		}
	}
	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return cfg, repository.NewUserRepository(gormDB), nil
}
