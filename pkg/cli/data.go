package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/mchmarny/leadpulse/pkg/lead"
	"github.com/mchmarny/leadpulse/pkg/power"
	"github.com/mchmarny/leadpulse/pkg/report"
	"github.com/mchmarny/leadpulse/pkg/risk"
)

const (
	maxRequestBodyBytes = 1 << 16

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errModelNotTrained = errors.New("model not trained, import a snapshot and retrain")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps caller errors to 4xx and everything else to 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, lead.ErrInvalidFeature), errors.Is(err, power.ErrInvalidParameter),
		errors.Is(err, data.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, risk.ErrInsufficientData), errors.Is(err, errModelNotTrained):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure logs server-side failures and hides their details from the caller.
func writeFailure(w http.ResponseWriter, err error, msg string) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error(msg, "error", err)
		writeError(w, status, msg)
		return
	}
	writeError(w, status, err.Error())
}

// queryParamFloat returns def when key is absent and an error when it does not parse.
func queryParamFloat(r *http.Request, key string, def float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a number: %q", power.ErrInvalidParameter, key, v)
	}
	return f, nil
}

func queryParamInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not an integer: %q", power.ErrInvalidParameter, key, v)
	}
	return i, nil
}

func (s *server) summaryAPIHandler(w http.ResponseWriter, _ *http.Request) {
	res, err := getSummary(s.db, s.conf)
	if err != nil {
		writeFailure(w, err, "error querying summary")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) leadsAPIHandler(w http.ResponseWriter, r *http.Request) {
	platforms := r.URL.Query()["p"]
	list, err := data.GetLeads(s.db, platforms...)
	if err != nil {
		writeFailure(w, err, "error querying leads")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) platformsAPIHandler(w http.ResponseWriter, _ *http.Request) {
	list, err := data.GetPlatforms(s.db)
	if err != nil {
		writeFailure(w, err, "error querying platforms")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) insightsAPIHandler(w http.ResponseWriter, r *http.Request) {
	var res any
	var err error

	switch kind := r.PathValue("kind"); kind {
	case insightPlatform:
		res, err = data.GetPlatformStatus(s.db)
	case insightTreatment:
		res, err = data.GetTreatmentStatus(s.db)
	case insightXRay:
		res, err = data.GetXRayOutcome(s.db)
	case insightLoss:
		res, err = data.GetLossReasons(s.db)
	case insightDuration:
		res, err = data.GetDurationByChurn(s.db)
	case insightFunnel:
		var engaged float64
		engaged, err = queryParamFloat(r, "engaged", s.conf.Funnel.EngagedSessionSec)
		if err == nil {
			res, err = data.GetFunnel(s.db, engaged)
		}
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown insight: %s", kind))
		return
	}

	if err != nil {
		writeFailure(w, err, "error querying insight")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) scoreAPIHandler(w http.ResponseWriter, r *http.Request) {
	var req lead.FeatureRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	f, err := req.Features()
	if err != nil {
		writeFailure(w, err, "invalid features")
		return
	}

	m := s.currentModel()
	if m == nil {
		writeFailure(w, errModelNotTrained, "model not trained")
		return
	}

	p, err := m.Score(f)
	if err != nil {
		writeFailure(w, err, "error scoring lead")
		return
	}

	writeJSON(w, http.StatusOK, &ScoreResult{
		Model:          m,
		Features:       f,
		Prediction:     p,
		Recommendation: risk.Recommend(f, p),
		Importance:     m.Explain(),
	})
}

func (s *server) importanceAPIHandler(w http.ResponseWriter, _ *http.Request) {
	m := s.currentModel()
	if m == nil {
		writeFailure(w, errModelNotTrained, "model not trained")
		return
	}
	writeJSON(w, http.StatusOK, &ExplainResult{Model: m, Importance: m.Explain()})
}

func (s *server) retrainAPIHandler(w http.ResponseWriter, _ *http.Request) {
	m, err := s.retrain()
	if err != nil {
		writeFailure(w, err, "error training model")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *server) sampleSizeParams(r *http.Request) (power.SampleSizeParams, error) {
	var p power.SampleSizeParams
	var err error
	exp := s.conf.Experiment

	if p.Baseline, err = queryParamFloat(r, baselineFlagName, baselineDefault); err != nil {
		return p, err
	}
	if p.Uplift, err = queryParamFloat(r, upliftFlagName, upliftDefault); err != nil {
		return p, err
	}
	if p.Alpha, err = queryParamFloat(r, alphaFlagName, exp.Alpha); err != nil {
		return p, err
	}
	if p.Power, err = queryParamFloat(r, powerFlagName, exp.Power); err != nil {
		return p, err
	}
	if p.Ratio, err = queryParamFloat(r, ratioFlagName, exp.Ratio); err != nil {
		return p, err
	}
	return p, nil
}

func (s *server) sampleSizeAPIHandler(w http.ResponseWriter, r *http.Request) {
	params, err := s.sampleSizeParams(r)
	if err != nil {
		writeFailure(w, err, "invalid parameters")
		return
	}

	p, err := power.NewPlan(params)
	if err != nil {
		writeFailure(w, err, "error solving sample size")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) observedPowerAPIHandler(w http.ResponseWriter, r *http.Request) {
	var params power.ObservedParams
	var err error

	if params.N, err = queryParamInt(r, nFlagName, 0); err != nil {
		writeFailure(w, err, "invalid parameters")
		return
	}
	for _, q := range []struct {
		key  string
		dest *float64
		def  float64
	}{
		{rateAFlagName, &params.RateA, 0},
		{rateBFlagName, &params.RateB, 0},
		{alphaFlagName, &params.Alpha, s.conf.Experiment.Alpha},
	} {
		if *q.dest, err = queryParamFloat(r, q.key, q.def); err != nil {
			writeFailure(w, err, "invalid parameters")
			return
		}
	}

	a, err := power.Assess(params, s.conf.Experiment.Power)
	if err != nil {
		writeFailure(w, err, "error computing observed power")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *server) reportAPIHandler(w http.ResponseWriter, r *http.Request) {
	params, err := s.sampleSizeParams(r)
	if err != nil {
		writeFailure(w, err, "invalid parameters")
		return
	}

	in, err := buildReport(s.db, s.conf, params)
	if err != nil {
		writeFailure(w, err, "error building report")
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, in); err != nil {
		writeFailure(w, err, "error writing report")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="leadpulse.xlsx"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("failed to write report", "error", err)
	}
}
