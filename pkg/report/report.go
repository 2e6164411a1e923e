package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/mchmarny/leadpulse/pkg/power"
	"github.com/mchmarny/leadpulse/pkg/risk"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary    = "Summary"
	SheetPlatforms  = "Platforms"
	SheetFunnel     = "Funnel"
	SheetImportance = "Importance"
	SheetExperiment = "Experiment"

	colWidth = 22
)

// Input is everything the workbook renders. Only Summary is required,
// sheets for nil or empty sections are omitted.
type Input struct {
	Summary    *data.Summary
	Benchmarks []*data.BenchmarkResult
	Platforms  []*data.GroupStatus
	Funnel     *data.Funnel
	Importance []risk.Importance
	Plan       *power.Plan
}

type sheet struct {
	name    string
	headers []string
	rows    [][]any
}

// Build renders the input into a new workbook. The caller closes the file.
func Build(in *Input) (*excelize.File, error) {
	if in == nil || in.Summary == nil {
		return nil, errors.New("report summary required")
	}

	sheets := []*sheet{summarySheet(in.Summary, in.Benchmarks)}
	if len(in.Platforms) > 0 {
		sheets = append(sheets, platformSheet(in.Platforms))
	}
	if in.Funnel != nil && len(in.Funnel.Steps) > 0 {
		sheets = append(sheets, funnelSheet(in.Funnel))
	}
	if len(in.Importance) > 0 {
		sheets = append(sheets, importanceSheet(in.Importance))
	}
	if in.Plan != nil {
		sheets = append(sheets, experimentSheet(in.Plan))
	}

	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename default sheet: %w", err)
	}

	header, err := headerStyle(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, s := range sheets {
		if i > 0 {
			if _, err := f.NewSheet(s.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to create sheet %s: %w", s.name, err)
			}
		}
		if err := writeSheet(f, s, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write sheet %s: %w", s.name, err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write renders the workbook into w.
func Write(w io.Writer, in *Input) error {
	f, err := Build(in)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s *sheet, headerStyle int) error {
	headers := make([]any, len(s.headers))
	for i, h := range s.headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &headers); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(s.headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(s.headers))
	if err != nil {
		return err
	}
	return f.SetColWidth(s.name, "A", lastCol, colWidth)
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2874A6"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
}

func summarySheet(s *data.Summary, benchmarks []*data.BenchmarkResult) *sheet {
	sh := &sheet{
		name:    SheetSummary,
		headers: []string{"Metric", "Current", "Benchmark", "Goal", "Beats Benchmark", "Meets Goal"},
		rows: [][]any{
			{"leads", s.Leads},
			{"won", s.Won},
			{"churned", s.Churned},
			{"total_spend", s.TotalSpend},
			{"churn_rate_pct", s.ChurnRatePct},
		},
	}

	compared := make(map[string]bool, len(benchmarks))
	for _, b := range benchmarks {
		sh.rows = append(sh.rows, []any{b.Metric, b.Current, b.Benchmark, b.Goal, b.BeatsBenchmark, b.MeetsGoal})
		compared[b.Metric] = true
	}
	if !compared[data.MetricWonRate] {
		sh.rows = append(sh.rows, []any{data.MetricWonRate, s.WonRatePct})
	}
	if !compared[data.MetricCPL] {
		sh.rows = append(sh.rows, []any{data.MetricCPL, s.AvgCPL})
	}
	return sh
}

func platformSheet(list []*data.GroupStatus) *sheet {
	sh := &sheet{
		name:    SheetPlatforms,
		headers: []string{"Platform", "Total", "Won", "Lost", "Nurturing", "No Response", "Won Rate %"},
	}
	for _, g := range list {
		sh.rows = append(sh.rows, []any{g.Group, g.Total, g.Won, g.Lost, g.Nurturing, g.NoResponse, g.WonRatePct})
	}
	return sh
}

func funnelSheet(fn *data.Funnel) *sheet {
	sh := &sheet{
		name:    SheetFunnel,
		headers: []string{"Stage", "Count", "Initial %", "Step %"},
	}
	for _, s := range fn.Steps {
		sh.rows = append(sh.rows, []any{s.Stage, s.Count, s.InitialPct, s.StepPct})
	}
	return sh
}

// importanceSheet lists the features most important first.
func importanceSheet(list []risk.Importance) *sheet {
	sh := &sheet{
		name:    SheetImportance,
		headers: []string{"Feature", "Weight"},
	}
	for i := len(list) - 1; i >= 0; i-- {
		sh.rows = append(sh.rows, []any{list[i].Feature, list[i].Weight})
	}
	return sh
}

func experimentSheet(p *power.Plan) *sheet {
	return &sheet{
		name:    SheetExperiment,
		headers: []string{"Parameter", "Value"},
		rows: [][]any{
			{"baseline", p.Baseline},
			{"target", p.Target},
			{"uplift", p.Uplift},
			{"effect_size", p.EffectSize},
			{"alpha", p.Alpha},
			{"power", p.Power},
			{"ratio", p.Ratio},
			{"group_a", p.GroupA},
			{"group_b", p.GroupB},
			{"total", p.Total},
		},
	}
}
