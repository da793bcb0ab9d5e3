package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jordanlanch/commercebi/config"
	"github.com/jordanlanch/commercebi/pkg/database"
	"github.com/jordanlanch/commercebi/pkg/logger"
)

// app carries the settings shared by every subcommand
type app struct {
	v       *viper.Viper
	cfgFile string
	stderr  io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), stderr: os.Stderr}

	rootCmd := &cobra.Command{
		Use:           "commercebi-pipeline",
		Short:         "Clean, load and attribute e-commerce extracts",
		Long:          "commercebi-pipeline - batch tooling for the CommerceBI store: generate demo extracts, clean them, attribute orders to campaigns and compute KPIs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stderr = cmd.ErrOrStderr()
			return a.initConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./commercebi.yaml or $HOME/.commercebi/commercebi.yaml)")
	flags.String("raw-dir", "", "directory holding the raw extracts")
	flags.String("cleaned-dir", "", "directory receiving the cleaned tables")
	flags.String("db-driver", "", "database driver (postgres, pgx, sqlite3)")
	flags.String("database-url", "", "database connection string")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("storage-type", "", "attribution sink (local, s3)")
	flags.String("storage-path", "", "local sink directory")

	for _, name := range []string{"raw-dir", "cleaned-dir", "db-driver", "database-url", "log-level", "storage-type", "storage-path"} {
		_ = a.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newGenerateCmd(a),
		newCleanCmd(a),
		newAttributeCmd(a),
		newRunCmd(a),
		newKPIsCmd(a),
		newRunsCmd(a),
	)
	return rootCmd
}

func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("commercebi")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home + "/.commercebi")
		}
	}

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || a.cfgFile != "" {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// config starts from the environment and applies config file and flag overrides
func (a *app) config() *config.Config {
	cfg := config.Load()
	override := func(key string, dst *string) {
		if v := a.v.GetString(key); v != "" {
			*dst = v
		}
	}
	override("raw_dir", &cfg.DataRawDir)
	override("cleaned_dir", &cfg.DataCleanedDir)
	override("db_driver", &cfg.DBDriver)
	override("database_url", &cfg.DatabaseURL)
	override("log_level", &cfg.LogLevel)
	override("storage_type", &cfg.StorageType)
	override("storage_path", &cfg.StorageLocalPath)
	if a.v.IsSet("recompute_segments") {
		cfg.RecomputeSegments = a.v.GetBool("recompute_segments")
	}
	return cfg
}

// logger writes JSON logs to stderr so stdout stays readable
func (a *app) logger(cfg *config.Config) logger.Logger {
	return logger.NewWithWriter(a.stderr, cfg.LogLevel)
}

func (a *app) openDB(ctx context.Context, cfg *config.Config, log logger.Logger) (*database.Client, error) {
	return database.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, database.DefaultPoolConfig(),
		&database.SSLConfig{Mode: cfg.DBSSLMode}, log)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}
