package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"loan-predictor/internal/ml"
	"loan-predictor/internal/pipeline"
	"loan-predictor/internal/scaler"
	"loan-predictor/internal/schema"

	"github.com/rs/zerolog/log"
)

// FieldError is one rejected field as reported to clients.
type FieldError struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// PredictionResponse represents the prediction result
type PredictionResponse struct {
	Label        ml.Label  `json:"label"`
	Approved     bool      `json:"approved"`
	Row          []float64 `json:"row"`
	ModelVersion string    `json:"model_version"`
	Latency      float64   `json:"latency_ms"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// ColumnInfo describes one input field for form builders.
type ColumnInfo struct {
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Values      []string  `json:"values,omitempty"`
	Allowed     []float64 `json:"allowed,omitempty"`
	NonNegative bool      `json:"non_negative,omitempty"`
	Integer     bool      `json:"integer,omitempty"`
}

// SchemaResponse lists the input fields in model order.
type SchemaResponse struct {
	Fingerprint string       `json:"fingerprint"`
	Columns     []ColumnInfo `json:"columns"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.ReadLimit)
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	form, err := formValues(body)
	if err != nil {
		s.writePredictError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.PredictTimeout)
	defer cancel()

	res, err := s.svc.PredictForm(ctx, form)
	if err != nil {
		s.writePredictError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PredictionResponse{
		Label:        res.Label,
		Approved:     res.Approved,
		Row:          res.Row,
		ModelVersion: s.modelVersion(),
		Latency:      float64(time.Since(start).Microseconds()) / 1000,
	})
}

func (s *Server) writePredictError(w http.ResponseWriter, err error) {
	var fe schema.FieldErrors
	if errors.As(err, &fe) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "invalid applicant fields",
			Fields: schemaFields(fe),
		})
		return
	}

	var de *schema.DomainError
	if errors.As(err, &de) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "invalid applicant fields",
			Fields: schemaFields(schema.FieldErrors{de}),
		})
		return
	}

	status := http.StatusInternalServerError
	var ue *scaler.UninitializedScalerError
	if errors.As(err, &ue) {
		status = http.StatusServiceUnavailable
	}

	log.Error().Err(err).Msg("prediction failed")
	writeJSON(w, status, ErrorResponse{Error: errorMessage(err)})
}

// errorMessage hides wrapped causes from clients behind the typed message.
func errorMessage(err error) string {
	var pe *ml.PredictionError
	if errors.As(err, &pe) {
		return "prediction failed"
	}
	var ue *scaler.UninitializedScalerError
	if errors.As(err, &ue) {
		return "scaler not initialized"
	}
	return "internal error"
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	cols := schema.Columns()
	resp := SchemaResponse{Fingerprint: schema.Fingerprint(), Columns: make([]ColumnInfo, len(cols))}
	for i, c := range cols {
		resp.Columns[i] = ColumnInfo{
			Name:        c.Name,
			Kind:        c.Kind.String(),
			Values:      c.Values(),
			Allowed:     c.Domain.Allowed,
			NonNegative: c.Domain.NonNegative,
			Integer:     c.Domain.Integer,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	health := map[string]any{
		"status":         "ok",
		"uptime_seconds": time.Since(s.started).Seconds(),
	}
	if s.svc == nil {
		status = http.StatusServiceUnavailable
		health["status"] = "unavailable"
	}
	if s.model != nil {
		health["model_kind"] = s.model.Kind
	}
	writeJSON(w, status, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no model loaded"})
		return
	}

	info := map[string]any{
		"kind":        s.model.Kind,
		"fingerprint": schema.Fingerprint(),
		"width":       schema.Width,
	}
	if md := s.model.Metadata; md != nil {
		info["version"] = md.Version
		info["trained_at"] = md.TrainedAt
		info["features"] = md.Features
		info["accuracy"] = md.Accuracy
		info["validation_acc"] = md.ValidationAcc
		info["training_rows"] = md.TrainingRows
	}
	if !s.model.ModTime.IsZero() {
		info["artifact_modified"] = s.model.ModTime
	}
	writeJSON(w, http.StatusOK, info)
}

// formValues flattens a JSON object into form strings. Strings and numbers
// pass through; anything else is a field error.
func formValues(body map[string]any) (map[string]string, error) {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	form := make(map[string]string, len(body))
	var errs schema.FieldErrors
	for _, k := range keys {
		switch val := body[k].(type) {
		case nil:
			form[k] = ""
		case string:
			form[k] = val
		case json.Number:
			form[k] = val.String()
		case float64:
			form[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			errs.Add(&schema.DomainError{Field: k, Value: fmt.Sprint(body[k]), Reason: "must be a string or number"})
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return form, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

var _ Predictor = (*pipeline.Service)(nil)
