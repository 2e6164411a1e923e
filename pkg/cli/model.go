package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/mchmarny/leadpulse/pkg/lead"
	"github.com/mchmarny/leadpulse/pkg/risk"
	"github.com/urfave/cli/v3"
)

const (
	spendFlagName    = "spend"
	qualityFlagName  = "quality"
	scrollFlagName   = "scroll"
	durationFlagName = "duration"
	xrayFlagName     = "xray"
	platformFlagName = "platform"
)

func platformFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    platformFlagName,
		Aliases: []string{"p"},
		Usage:   "Train only on leads from this platform (can be specified multiple times)",
	}
}

func scoreCmd() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Train the churn model on the snapshot and score a candidate lead",
		UsageText: `leadpulse score --spend 80 --quality 2 --scroll 65 --duration 250 --xray
   leadpulse score --spend 35 --quality 1 --scroll 10 --duration 40 --xray=false --platform Meta`,
		Action: cmdScore,
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:  spendFlagName,
				Usage: "Acquisition cost of the lead",
			},
			&cli.IntFlag{
				Name:  qualityFlagName,
				Usage: fmt.Sprintf("Sales team quality score [%d-%d]", lead.QualityMin, lead.QualityMax),
			},
			&cli.FloatFlag{
				Name:  scrollFlagName,
				Usage: "Landing page scroll depth in percent [0-100]",
			},
			&cli.FloatFlag{
				Name:  durationFlagName,
				Usage: "Session duration in seconds",
			},
			&cli.BoolFlag{
				Name:  xrayFlagName,
				Usage: "Whether the lead submitted an x-ray",
			},
			platformFlag(),
		},
	}
}

func explainCmd() *cli.Command {
	return &cli.Command{
		Name:   "explain",
		Usage:  "Train the churn model on the snapshot and rank the feature importances",
		Action: cmdExplain,
		Flags: []cli.Flag{
			platformFlag(),
		},
	}
}

type ScoreResult struct {
	Model          *risk.Model       `json:"model" yaml:"model"`
	Features       lead.Features     `json:"features" yaml:"features"`
	Prediction     *risk.Prediction  `json:"prediction" yaml:"prediction"`
	Recommendation string            `json:"recommendation" yaml:"recommendation"`
	Importance     []risk.Importance `json:"importance" yaml:"importance"`
}

func (r *ScoreResult) table() *table {
	return &table{
		headers: []string{"Churn", "Probability", "Confidence %", "Recommendation"},
		rows: [][]string{{
			fmtBool(r.Prediction.Churn),
			fmtFloat(r.Prediction.Probability),
			fmtFloat(r.Prediction.Confidence),
			r.Recommendation,
		}},
	}
}

type ExplainResult struct {
	Model      *risk.Model       `json:"model" yaml:"model"`
	Importance []risk.Importance `json:"importance" yaml:"importance"`
}

func (r *ExplainResult) table() *table {
	t := &table{headers: []string{"Feature", "Weight"}}
	for i := len(r.Importance) - 1; i >= 0; i-- {
		t.rows = append(t.rows, []string{r.Importance[i].Feature, fmtFloat(r.Importance[i].Weight)})
	}
	return t
}

// trainModel fits the default ensemble over the stored snapshot.
func trainModel(db *sql.DB, platforms ...string) (*risk.Model, error) {
	leads, err := data.GetLeads(db, platforms...)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	m, err := risk.Train(leads)
	if err != nil {
		return nil, fmt.Errorf("failed to train churn model: %w", err)
	}

	slog.Debug("model ready", "fingerprint", m.Fingerprint, "records", m.TrainedOn)
	return m, nil
}

// featureRequest collects the feature flags, leaving the ones not set nil.
func featureRequest(cmd *cli.Command) *lead.FeatureRequest {
	r := &lead.FeatureRequest{}
	if cmd.IsSet(spendFlagName) {
		v := float64(cmd.Float(spendFlagName))
		r.SpendPerLead = &v
	}
	if cmd.IsSet(qualityFlagName) {
		v := int(cmd.Int(qualityFlagName))
		r.QualityScore = &v
	}
	if cmd.IsSet(scrollFlagName) {
		v := float64(cmd.Float(scrollFlagName))
		r.ScrollDepthPct = &v
	}
	if cmd.IsSet(durationFlagName) {
		v := float64(cmd.Float(durationFlagName))
		r.SessionDurationSec = &v
	}
	if cmd.IsSet(xrayFlagName) {
		v := cmd.Bool(xrayFlagName)
		r.XRaySubmitted = &v
	}
	return r
}

func cmdScore(_ context.Context, cmd *cli.Command) error {
	f, err := featureRequest(cmd).Features()
	if err != nil {
		return err
	}

	m, err := trainModel(getConfig(cmd).DB, cmd.StringSlice(platformFlagName)...)
	if err != nil {
		return err
	}

	p, err := m.Score(f)
	if err != nil {
		return fmt.Errorf("failed to score lead: %w", err)
	}

	return output(cmd, &ScoreResult{
		Model:          m,
		Features:       f,
		Prediction:     p,
		Recommendation: risk.Recommend(f, p),
		Importance:     m.Explain(),
	})
}

func cmdExplain(_ context.Context, cmd *cli.Command) error {
	m, err := trainModel(getConfig(cmd).DB, cmd.StringSlice(platformFlagName)...)
	if err != nil {
		return err
	}

	return output(cmd, &ExplainResult{Model: m, Importance: m.Explain()})
}
