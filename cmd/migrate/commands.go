package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/db"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/migrate"
)

// runner applies goose commands against an open database.
type runner interface {
	Run(ctx context.Context, command string, out io.Writer) error
	To(ctx context.Context, version string) error
}

// connect opens the database named by the environment for dir. The returned
// func closes it.
type connect func(ctx context.Context, dir string) (runner, func(), error)

func newRootCmd(open connect) *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply and author SRMS database migrations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory; defaults to the embedded set, or "+migrate.DefaultDir+" for create and validate")

	sourceDir := func() string {
		if dir == "" {
			return migrate.EmbeddedDir
		}
		return dir
	}
	treeDir := func() string {
		if dir == "" {
			return migrate.DefaultDir
		}
		return dir
	}

	for _, goose := range []struct{ use, short string }{
		{"up", "Apply every pending migration"},
		{"down", "Roll back the most recent migration"},
		{"status", "Print applied and pending migrations"},
	} {
		command := goose.use
		root.AddCommand(&cobra.Command{
			Use:   command,
			Short: goose.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				r, done, err := open(cmd.Context(), sourceDir())
				if err != nil {
					return err
				}
				defer done()
				return r.Run(cmd.Context(), command, cmd.OutOrStdout())
			},
		})
	}

	root.AddCommand(&cobra.Command{
		Use:   "to VERSION",
		Short: "Migrate up or down to VERSION (YYYYMMDDHHMMSS)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, done, err := open(cmd.Context(), sourceDir())
			if err != nil {
				return err
			}
			defer done()
			return r.To(cmd.Context(), args[0])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Write an empty SQL migration named after NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := migrate.CreateSQLMigration(treeDir(), args[0])
			if err != nil {
				return err
			}
			cmd.Println("created", path)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check migration file names and goose markers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := migrate.ValidateDir(treeDir()); err != nil {
				return err
			}
			cmd.Println("migrations ok")
			return nil
		},
	})
	return root
}

type gooseRunner struct {
	db  *sql.DB
	dir string
}

func (g gooseRunner) Run(ctx context.Context, command string, out io.Writer) error {
	return migrate.Run(ctx, g.db, g.dir, command, out)
}

func (g gooseRunner) To(ctx context.Context, version string) error {
	return migrate.MigrateToVersion(ctx, g.db, g.dir, version)
}

// postgres loads the environment config and connects with the same client
// the services use.
func postgres(logg *logger.Logger) connect {
	return func(ctx context.Context, dir string) (runner, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		sqlDB, err := client.DB().DB()
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		logg.Info(logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": dir}), "migrate.ready")
		return gooseRunner{db: sqlDB, dir: dir}, func() { _ = client.Close() }, nil
	}
}
