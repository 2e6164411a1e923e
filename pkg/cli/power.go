package cli

import (
	"context"
	"log/slog"

	"github.com/mchmarny/leadpulse/pkg/config"
	"github.com/mchmarny/leadpulse/pkg/power"
	"github.com/urfave/cli/v3"
)

const (
	baselineFlagName = "baseline"
	upliftFlagName   = "uplift"
	alphaFlagName    = "alpha"
	powerFlagName    = "power"
	ratioFlagName    = "ratio"
	nFlagName        = "n"
	rateAFlagName    = "a"
	rateBFlagName    = "b"

	baselineDefault = 0.05
	upliftDefault   = 0.20
)

func alphaFlag() cli.Flag {
	return &cli.FloatFlag{
		Name:  alphaFlagName,
		Usage: "Two-sided significance level (optional, defaults to config)",
	}
}

func planFlags() []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{
			Name:  baselineFlagName,
			Usage: "Baseline conversion rate of group A as a fraction",
			Value: baselineDefault,
		},
		&cli.FloatFlag{
			Name:  upliftFlagName,
			Usage: "Expected relative uplift of group B as a fraction (0.2 is +20%)",
			Value: upliftDefault,
		},
		alphaFlag(),
		&cli.FloatFlag{
			Name:  powerFlagName,
			Usage: "Target statistical power (optional, defaults to config)",
		},
		&cli.FloatFlag{
			Name:  ratioFlagName,
			Usage: "Size of group B relative to group A (optional, defaults to config)",
		},
	}
}

func powerCmd() *cli.Command {
	return &cli.Command{
		Name:            "power",
		Aliases:         []string{"p"},
		Usage:           "A/B test sample size planning and observed power",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:      "sample-size",
				Aliases:   []string{"n"},
				Usage:     "Subjects per group needed to detect the expected uplift",
				UsageText: "leadpulse power sample-size --baseline 0.05 --uplift 0.2",
				Action:    cmdSampleSize,
				Flags:     planFlags(),
			},
			{
				Name:      "observed",
				Aliases:   []string{"o"},
				Usage:     "Power achieved by a test with the given size and rates",
				UsageText: "leadpulse power observed --n 500 --a 0.052 --b 0.071",
				Action:    cmdObservedPower,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     nFlagName,
						Usage:    "Subjects per group",
						Required: true,
					},
					&cli.FloatFlag{
						Name:     rateAFlagName,
						Usage:    "Observed conversion rate of group A as a fraction",
						Required: true,
					},
					&cli.FloatFlag{
						Name:     rateBFlagName,
						Usage:    "Observed conversion rate of group B as a fraction",
						Required: true,
					},
					alphaFlag(),
				},
			},
		},
	}
}

// floatOr returns the flag value when set on the command line, def otherwise.
func floatOr(cmd *cli.Command, name string, def float64) float64 {
	if cmd.IsSet(name) {
		return float64(cmd.Float(name))
	}
	return def
}

func sampleSizeParams(cmd *cli.Command, exp config.Experiment) power.SampleSizeParams {
	return power.SampleSizeParams{
		Baseline: float64(cmd.Float(baselineFlagName)),
		Uplift:   float64(cmd.Float(upliftFlagName)),
		Alpha:    floatOr(cmd, alphaFlagName, exp.Alpha),
		Power:    floatOr(cmd, powerFlagName, exp.Power),
		Ratio:    floatOr(cmd, ratioFlagName, exp.Ratio),
	}
}

type planView power.Plan

func (p *planView) table() *table {
	return &table{
		headers: []string{"Baseline", "Target", "Effect Size", "Alpha", "Power", "Group A", "Group B", "Total"},
		rows: [][]string{{
			fmtFloat(p.Baseline), fmtFloat(p.Target), fmtFloat(p.EffectSize), fmtFloat(p.Alpha),
			fmtFloat(p.Power), fmtInt(p.GroupA), fmtInt(p.GroupB), fmtInt(p.Total),
		}},
	}
}

type assessmentView power.Assessment

func (a *assessmentView) table() *table {
	return &table{
		headers: []string{"N", "Rate A", "Rate B", "Effect Size", "Power", "Target", "Sufficient"},
		rows: [][]string{{
			fmtInt(a.N), fmtFloat(a.RateA), fmtFloat(a.RateB), fmtFloat(a.EffectSize),
			fmtFloat(a.Power), fmtFloat(a.Target), fmtBool(a.Sufficient),
		}},
	}
}

func cmdSampleSize(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	p, err := power.NewPlan(sampleSizeParams(cmd, cfg.Config.Experiment))
	if err != nil {
		return err
	}

	slog.Debug("sample size solved", "baseline", p.Baseline, "target", p.Target, "n", p.GroupA)
	return output(cmd, (*planView)(p))
}

func cmdObservedPower(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	params := power.ObservedParams{
		N:     int(cmd.Int(nFlagName)),
		RateA: float64(cmd.Float(rateAFlagName)),
		RateB: float64(cmd.Float(rateBFlagName)),
		Alpha: floatOr(cmd, alphaFlagName, cfg.Config.Experiment.Alpha),
	}

	a, err := power.Assess(params, cfg.Config.Experiment.Power)
	if err != nil {
		return err
	}

	if !a.Sufficient {
		slog.Warn("test is underpowered", "power", a.Power, "target", a.Target)
	}
	return output(cmd, (*assessmentView)(a))
}
