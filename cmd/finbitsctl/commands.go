package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"finbits/internal/auth"
	"finbits/internal/cli"
	"finbits/internal/config"
	"finbits/internal/core"
	applog "finbits/internal/log"
	"finbits/internal/services"
	"finbits/internal/storage"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "finbitsctl",
		Short:         "Operate a finbits deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile()
		},
	}
	root.AddCommand(newTokenCmd(), newMigrateCmd(), newGenerateCmd())
	return root
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a signed bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if len(cfg.JWTSecret) < 32 {
				return fmt.Errorf("JWT_SECRET must be at least 32 characters")
			}
			if ttl <= 0 {
				ttl = cfg.JWTTTL
			}
			token, err := auth.NewIssuer(cfg.JWTSecret, ttl).Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:       "migrate <up|down|version>",
		Short:     "Manage the SQLite schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = config.Load().SQLiteDBPath
			}
			out := cmd.OutOrStdout()
			switch args[0] {
			case "up":
				if err := storage.RunMigrations(dbPath); err != nil {
					return err
				}
			case "down":
				if err := storage.RollbackMigrations(dbPath); err != nil {
					return err
				}
			}
			version, dirty, err := storage.MigrationVersion(dbPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (defaults to SQLITE_DB_PATH)")
	return cmd
}

type generateFlags struct {
	title    string
	topic    string
	category string
	language string
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a lesson and store it in the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&f.title, "title", "", "lesson title (required)")
	cmd.Flags().StringVar(&f.topic, "topic", "", "lesson topic")
	cmd.Flags().StringVar(&f.category, "category", string(core.CategoryGeneral), "lesson category")
	cmd.Flags().StringVar(&f.language, "language", core.DefaultLanguage, "lesson language")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func runGenerate(ctx context.Context, out io.Writer, f generateFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	logger := applog.Discard()
	if cfg.DataBackend == "memory" {
		return fmt.Errorf("generate needs a persistent backend; set DATA_BACKEND to sqlite or mongo")
	}

	req, err := core.NewGenerateRequest(f.title, f.topic, f.category, f.language)
	if err != nil {
		return err
	}

	store, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if store.Cleanup != nil {
			_ = store.Cleanup()
		}
	}()

	gen, err := cli.InitGenerator(logger, cfg)
	if err != nil {
		return err
	}

	// Generation publishes no events, so no publisher or cache is needed.
	learning := services.NewLearningService(store.Backend, store.Backend, gen, nil, nil, logger)
	bit, err := learning.Generate(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(bit)
}
