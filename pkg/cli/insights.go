package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mchmarny/leadpulse/pkg/config"
	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/urfave/cli/v3"
)

const (
	insightPlatform  = "platform"
	insightLoss      = "loss"
	insightTreatment = "treatment"
	insightXRay      = "xray"
	insightDuration  = "duration"
	insightFunnel    = "funnel"

	engagedFlagName = "engaged"
)

func summaryCmd() *cli.Command {
	return &cli.Command{
		Name:    "summary",
		Aliases: []string{"s"},
		Usage:   "Show snapshot KPIs compared against the configured benchmarks",
		Action:  cmdSummary,
	}
}

func insightsCmd() *cli.Command {
	return &cli.Command{
		Name:            "insights",
		Aliases:         []string{"in"},
		Usage:           "Exploratory breakdowns of the lead snapshot",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:   insightPlatform,
				Usage:  "Status counts and won rate per acquisition platform",
				Action: cmdGroupInsight(data.GetPlatformStatus),
			},
			{
				Name:   insightLoss,
				Usage:  "Loss reason distribution of lost leads",
				Action: cmdLossInsight,
			},
			{
				Name:   insightTreatment,
				Usage:  "Status counts per treatment type",
				Action: cmdGroupInsight(data.GetTreatmentStatus),
			},
			{
				Name:   insightXRay,
				Usage:  "Status counts with and without an x-ray submission",
				Action: cmdGroupInsight(data.GetXRayOutcome),
			},
			{
				Name:   insightDuration,
				Usage:  "Session duration distribution of churned and retained leads",
				Action: cmdDurationInsight,
			},
			{
				Name:   insightFunnel,
				Usage:  "Conversion funnel from total leads to won",
				Action: cmdFunnelInsight,
				Flags: []cli.Flag{
					&cli.FloatFlag{
						Name:  engagedFlagName,
						Usage: "Session length in seconds above which a lead counts as engaged (optional, defaults to config)",
					},
				},
			},
		},
	}
}

type SummaryResult struct {
	Summary    *data.Summary           `json:"summary" yaml:"summary"`
	Benchmarks []*data.BenchmarkResult `json:"benchmarks" yaml:"benchmarks"`
	LastImport *data.ImportInfo        `json:"last_import,omitempty" yaml:"lastImport,omitempty"`
}

func (r *SummaryResult) table() *table {
	t := &table{
		headers: []string{"Metric", "Current", "Benchmark", "Goal", "Beats Benchmark", "Meets Goal"},
		rows: [][]string{
			{"leads", fmtInt(r.Summary.Leads), "", "", "", ""},
			{"total_spend", fmtFloat(r.Summary.TotalSpend), "", "", "", ""},
			{"churn_rate_pct", fmtFloat(r.Summary.ChurnRatePct), "", "", "", ""},
		},
	}
	for _, b := range r.Benchmarks {
		t.rows = append(t.rows, []string{b.Metric, fmtFloat(b.Current), fmtFloat(b.Benchmark),
			fmtFloat(b.Goal), fmtBool(b.BeatsBenchmark), fmtBool(b.MeetsGoal)})
	}
	return t
}

func getSummary(db *sql.DB, conf *config.Config) (*SummaryResult, error) {
	s, err := data.GetSummary(db)
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	b, err := data.CompareBenchmarks(s, conf.Benchmarks)
	if err != nil {
		return nil, fmt.Errorf("failed to compare benchmarks: %w", err)
	}

	last, err := data.GetLastImport(db)
	if err != nil {
		return nil, fmt.Errorf("failed to get last import: %w", err)
	}

	return &SummaryResult{Summary: s, Benchmarks: b, LastImport: last}, nil
}

func cmdSummary(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	res, err := getSummary(cfg.DB, cfg.Config)
	if err != nil {
		return err
	}
	return output(cmd, res)
}

type groupStatusList []*data.GroupStatus

func (l groupStatusList) table() *table {
	t := &table{headers: []string{"Group", "Total", "Won", "Lost", "Nurturing", "No Response", "Won Rate %"}}
	for _, g := range l {
		t.rows = append(t.rows, []string{g.Group, fmtInt(g.Total), fmtInt(g.Won), fmtInt(g.Lost),
			fmtInt(g.Nurturing), fmtInt(g.NoResponse), fmtFloat(g.WonRatePct)})
	}
	return t
}

type countList []*data.CountItem

func (l countList) table() *table {
	t := &table{headers: []string{"Label", "Count", "Share %"}}
	for _, c := range l {
		t.rows = append(t.rows, []string{c.Label, fmtInt(c.Count), fmtFloat(c.SharePct)})
	}
	return t
}

type distributionList []*data.Distribution

func (l distributionList) table() *table {
	t := &table{headers: []string{"Label", "Count", "Min", "Q1", "Median", "Q3", "Max", "Mean"}}
	for _, d := range l {
		t.rows = append(t.rows, []string{d.Label, fmtInt(d.Count), fmtFloat(d.Min), fmtFloat(d.Q1),
			fmtFloat(d.Median), fmtFloat(d.Q3), fmtFloat(d.Max), fmtFloat(d.Mean)})
	}
	return t
}

type funnelView data.Funnel

func (f *funnelView) table() *table {
	t := &table{headers: []string{"Stage", "Count", "Initial %", "Step %"}}
	for _, s := range f.Steps {
		t.rows = append(t.rows, []string{s.Stage, fmtInt(s.Count), fmtFloat(s.InitialPct), fmtFloat(s.StepPct)})
	}
	return t
}

type groupProvider func(db *sql.DB) ([]*data.GroupStatus, error)

func cmdGroupInsight(fn groupProvider) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		list, err := fn(getConfig(cmd).DB)
		if err != nil {
			return fmt.Errorf("failed to get %s insight: %w", cmd.Name, err)
		}
		return output(cmd, groupStatusList(list))
	}
}

func cmdLossInsight(_ context.Context, cmd *cli.Command) error {
	list, err := data.GetLossReasons(getConfig(cmd).DB)
	if err != nil {
		return fmt.Errorf("failed to get loss reasons: %w", err)
	}
	return output(cmd, countList(list))
}

func cmdDurationInsight(_ context.Context, cmd *cli.Command) error {
	list, err := data.GetDurationByChurn(getConfig(cmd).DB)
	if err != nil {
		return fmt.Errorf("failed to get session durations: %w", err)
	}
	return output(cmd, distributionList(list))
}

func cmdFunnelInsight(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	engaged := cfg.Config.Funnel.EngagedSessionSec
	if cmd.IsSet(engagedFlagName) {
		engaged = float64(cmd.Float(engagedFlagName))
	}

	f, err := data.GetFunnel(cfg.DB, engaged)
	if err != nil {
		return fmt.Errorf("failed to get funnel: %w", err)
	}
	return output(cmd, (*funnelView)(f))
}
