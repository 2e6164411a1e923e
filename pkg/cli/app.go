package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/mchmarny/leadpulse/pkg/config"
	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/mchmarny/leadpulse/pkg/logging"
	"github.com/urfave/cli/v3"
)

const (
	appName      = "leadpulse"
	appConfigKey = "app-config"

	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	formats = []string{formatJSON, formatYAML, formatTable}
)

const (
	debugFlagName  = "debug"
	dbFlagName     = "db"
	configFlagName = "config"
	formatFlagName = "format"
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	DBPath    string
	ConfigDir string
	Format    string
	Debug     bool
	DB        *sql.DB
	Config    *config.Config
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Lead churn risk scoring, funnel insights and A/B test power analysis",
		Metadata:              map[string]any{},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  debugFlagName,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&cli.StringFlag{
				Name:    dbFlagName,
				Usage:   fmt.Sprintf("Path to the Sqlite database file (optional, defaults to $HOME/.%s/%s)", appName, data.DataFileName),
				Sources: cli.EnvVars("LEADPULSE_DB"),
			},
			&cli.StringFlag{
				Name:    configFlagName,
				Usage:   fmt.Sprintf("Directory holding config.yaml (optional, defaults to $HOME/.%s)", appName),
				Sources: cli.EnvVars("LEADPULSE_CONFIG"),
			},
			&cli.StringFlag{
				Name:  formatFlagName,
				Usage: "Output format [json, yaml, table]",
				Value: formatJSON,
			},
		},
		Commands: []*cli.Command{
			importCmd(),
			summaryCmd(),
			insightsCmd(),
			scoreCmd(),
			explainCmd(),
			powerCmd(),
			reportCmd(),
			serverCmd(),
			resetCmd(),
		},
		Before: before,
		After: func(_ context.Context, cmd *cli.Command) error {
			if cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				cfg.DB.Close()
			}
			return nil
		},
	}
}

func before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	debug := cmd.Bool(debugFlagName)
	if debug {
		logging.SetDefaultCLILogger("debug")
	}

	format := cmd.String(formatFlagName)
	if format == "yml" {
		format = formatYAML
	}
	if !slices.Contains(formats, format) {
		return ctx, fmt.Errorf("unsupported output format %q, expected one of %v", format, formats)
	}

	configDir := cmd.String(configFlagName)
	dbPath := cmd.String(dbFlagName)
	if configDir == "" || dbPath == "" {
		home, _, err := config.GetOrCreateHomeDir(appName)
		if err != nil {
			return ctx, fmt.Errorf("resolving home dir: %w", err)
		}
		if configDir == "" {
			configDir = home
		}
		if dbPath == "" {
			dbPath = filepath.Join(home, data.DataFileName)
		}
	}

	conf, err := config.ReadOrCreate(configDir)
	if err != nil {
		return ctx, fmt.Errorf("loading config: %w", err)
	}

	if err := data.Init(dbPath); err != nil {
		return ctx, fmt.Errorf("initializing database: %w", err)
	}

	db, err := data.GetDB(dbPath)
	if err != nil {
		return ctx, fmt.Errorf("opening database: %w", err)
	}

	slog.Debug("app configured", "db", dbPath, "config", configDir, "format", format)

	cmd.Root().Metadata[appConfigKey] = &appConfig{
		DBPath:    dbPath,
		ConfigDir: configDir,
		Format:    format,
		Debug:     debug,
		DB:        db,
		Config:    conf,
	}
	return ctx, nil
}
