package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mchmarny/leadpulse/pkg/config"
	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/mchmarny/leadpulse/pkg/power"
	"github.com/mchmarny/leadpulse/pkg/report"
	"github.com/mchmarny/leadpulse/pkg/risk"
	"github.com/urfave/cli/v3"
)

const (
	outFlagName = "out"

	reportFileMode = 0600
)

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Aliases:   []string{"r"},
		Usage:     "Export KPIs, insights, model explanation and test plan into an xlsx workbook",
		UsageText: "leadpulse report --out leads.xlsx --baseline 0.05 --uplift 0.2",
		Action:    cmdReport,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     outFlagName,
				Aliases:  []string{"o"},
				Usage:    "Path of the workbook to write",
				Required: true,
			},
		}, planFlags()...),
	}
}

type ReportResult struct {
	Path   string   `json:"path" yaml:"path"`
	Sheets []string `json:"sheets" yaml:"sheets"`
}

// buildReport collects every section of the workbook. A snapshot the model
// cannot be trained on yields a workbook without the importance sheet.
func buildReport(db *sql.DB, conf *config.Config, params power.SampleSizeParams) (*report.Input, error) {
	sum, err := getSummary(db, conf)
	if err != nil {
		return nil, err
	}

	platforms, err := data.GetPlatformStatus(db)
	if err != nil {
		return nil, fmt.Errorf("failed to get platform status: %w", err)
	}

	funnel, err := data.GetFunnel(db, conf.Funnel.EngagedSessionSec)
	if err != nil {
		return nil, fmt.Errorf("failed to get funnel: %w", err)
	}

	plan, err := power.NewPlan(params)
	if err != nil {
		return nil, err
	}

	in := &report.Input{
		Summary:    sum.Summary,
		Benchmarks: sum.Benchmarks,
		Platforms:  platforms,
		Funnel:     funnel,
		Plan:       plan,
	}

	m, err := trainModel(db)
	switch {
	case err == nil:
		in.Importance = m.Explain()
	case errors.Is(err, risk.ErrInsufficientData):
		slog.Warn("skipping feature importance", "reason", err)
	default:
		return nil, err
	}

	return in, nil
}

func cmdReport(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	path := cmd.String(outFlagName)

	in, err := buildReport(cfg.DB, cfg.Config, sampleSizeParams(cmd, cfg.Config.Experiment))
	if err != nil {
		return err
	}

	f, err := report.Build(in)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	defer f.Close()

	w, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, reportFileMode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer w.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	slog.Info("report written", "path", path)
	return output(cmd, &ReportResult{Path: path, Sheets: f.GetSheetList()})
}
