package lead

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	columnID        = "lead_id"
	columnPlatform  = "platform"
	columnStatus    = "status"
	columnLoss      = "loss_reason"
	columnTreatment = "treatment_type"
)

var requiredColumns = []string{
	FeatureSpend,
	FeatureQuality,
	FeatureScroll,
	FeatureDuration,
	FeatureXRay,
	LabelChurn,
}

// ReadCSV decodes a master-table snapshot. Column names are matched
// case-insensitively; the model features and the churn label are required.
func ReadCSV(r io.Reader) ([]*Lead, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty csv: header row missing")
		}
		return nil, fmt.Errorf("error reading csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv missing required columns: %s", strings.Join(missing, ", "))
	}

	list := make([]*Lead, 0)
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading csv row %d: %w", row, err)
		}

		l, err := parseRecord(idx, rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		list = append(list, l)
	}

	return list, nil
}

func parseRecord(idx map[string]int, rec []string) (*Lead, error) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	l := &Lead{
		ID:            get(columnID),
		Platform:      get(columnPlatform),
		Status:        get(columnStatus),
		LossReason:    normalizeEmpty(get(columnLoss)),
		TreatmentType: get(columnTreatment),
	}

	var err error
	if l.SpendPerLead, err = parseNumber(FeatureSpend, get(FeatureSpend)); err != nil {
		return nil, err
	}

	q, err := parseNumber(FeatureQuality, get(FeatureQuality))
	if err != nil {
		return nil, err
	}
	if q != math.Trunc(q) {
		return nil, &InvalidFeatureError{Feature: FeatureQuality, Value: q, Reason: "must be a whole number"}
	}
	if q < QualityMin || q > QualityMax {
		return nil, &InvalidFeatureError{Feature: FeatureQuality, Value: q, Reason: "must be 1, 2 or 3"}
	}
	l.QualityScore = int(q)

	if l.ScrollDepthPct, err = parseNumber(FeatureScroll, get(FeatureScroll)); err != nil {
		return nil, err
	}
	if l.SessionDurationSec, err = parseNumber(FeatureDuration, get(FeatureDuration)); err != nil {
		return nil, err
	}

	if l.XRaySubmitted, err = ParseBool(get(FeatureXRay)); err != nil {
		return nil, fmt.Errorf("column %s: %w", FeatureXRay, err)
	}
	if l.Churn, err = ParseBool(get(LabelChurn)); err != nil {
		return nil, fmt.Errorf("column %s: %w", LabelChurn, err)
	}

	if err := l.Features().Validate(); err != nil {
		return nil, err
	}

	// loss reasons only describe leads that were not won
	if l.IsWon() {
		l.LossReason = ""
	}

	return l, nil
}

func parseNumber(col, v string) (float64, error) {
	if v == "" {
		return 0, &InvalidFeatureError{Feature: col, Missing: true}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: error parsing %q: %w", col, v, err)
	}
	return f, nil
}

func normalizeEmpty(v string) string {
	switch strings.ToLower(v) {
	case "nan", "none", "null", "n/a":
		return ""
	}
	return v
}

// ParseBool accepts the boolean spellings found in exported tables.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "t", "1", "1.0", "yes", "y":
		return true, nil
	case "false", "f", "0", "0.0", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %q", v)
}
