package cli

import (
	"fmt"

	"team-quiz-service/internal/catalog"
	pgstore "team-quiz-service/internal/infra/postgres"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewValidateCmd checks the config and the catalog it points at without serving.
func NewValidateCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config and quiz catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(opts)
			if err != nil {
				return err
			}
			b, err := openBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			cat, err := loadCatalog(cmd.Context(), cfg, b)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"questions": len(cat.Questions),
				"teams":     len(cfg.Teams),
				"source":    cfg.Quiz.Source,
			}).Info("config and catalog are valid")
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

// NewImportCatalogCmd stores a YAML catalog file in postgres under quiz.catalog_name.
func NewImportCatalogCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "import-catalog <file>",
		Short: "Validate a YAML catalog and store it in postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			cat, err := catalog.Load(cmd.Context(), catalog.NewFileLoader(args[0]))
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg, log); err != nil {
				return err
			}

			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			if err := pgstore.NewCatalogLoader(pool, cfg.Quiz.CatalogName).StoreCatalog(cmd.Context(), cat); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"catalog":   cfg.Quiz.CatalogName,
				"questions": len(cat.Questions),
			}).Info("catalog imported")
			return nil
		},
	}
}
