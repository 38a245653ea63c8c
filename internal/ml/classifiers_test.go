package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"loan-predictor/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// creditOnly puts all weight on Credit_History.
func creditOnly() LinearArtifact {
	coef := make([]float64, schema.Width)
	coef[schema.Index(schema.CreditHistory)] = 4
	return LinearArtifact{
		Columns:   schema.Names(),
		Coef:      coef,
		Intercept: -2,
		Threshold: 0.5,
	}
}

func TestLinearClassifier(t *testing.T) {
	c, err := NewLinearClassifier(creditOnly())
	require.NoError(t, err)

	tok, err := c.Classify(context.Background(), row(1))
	require.NoError(t, err)
	assert.Equal(t, "Y", tok)
	assert.InDelta(t, 0.8808, c.Probability(row(1)), 1e-4)

	tok, err = c.Classify(context.Background(), row(0))
	require.NoError(t, err)
	assert.Equal(t, "N", tok)

	_, err = c.Classify(context.Background(), []float64{1})
	assert.Error(t, err)
}

func TestNewLinearClassifier_RejectsLayout(t *testing.T) {
	swapped := creditOnly()
	swapped.Columns = schema.Names()
	swapped.Columns[5], swapped.Columns[6] = swapped.Columns[6], swapped.Columns[5]
	_, err := NewLinearClassifier(swapped)
	var le *ModelLoadError
	assert.ErrorAs(t, err, &le)

	short := creditOnly()
	short.Coef = short.Coef[:10]
	_, err = NewLinearClassifier(short)
	assert.ErrorAs(t, err, &le)
}

func TestNewLinearClassifier_SchemaFingerprint(t *testing.T) {
	a := creditOnly()
	a.Schema = schema.Fingerprint()
	_, err := NewLinearClassifier(a)
	require.NoError(t, err)

	a.Schema = "0000000000000000"
	_, err = NewLinearClassifier(a)
	var le *ModelLoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Error(), "model schema")
}

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadClassifier_Linear(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "model.json", creditOnly())
	writeJSON(t, dir, "model_metadata.json", ModelMetadata{
		Version:  "2024-05-01",
		Features: schema.Names(),
		Accuracy: 0.81,
	})

	metrics := &MockMetrics{}
	m, err := LoadClassifier(context.Background(), LoaderConfig{Kind: KindAuto, Path: path}, metrics)
	require.NoError(t, err)
	assert.Equal(t, KindLinear, m.Kind)
	assert.Equal(t, "2024-05-01", m.Metadata.Version)
	assert.IsType(t, &LinearClassifier{}, m.Classifier)
	assert.GreaterOrEqual(t, metrics.modelAge, 0.0)
}

func TestLoadClassifier_MetadataLayoutMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "model.json", creditOnly())
	writeJSON(t, dir, "model_metadata.json", ModelMetadata{
		Version:  "bad",
		Features: []string{"Gender", "Married", "Dependents", "Education", "Self_Employed", "credit_History"},
	})

	_, err := LoadClassifier(context.Background(), LoaderConfig{Path: path}, nil)
	var le *ModelLoadError
	assert.ErrorAs(t, err, &le)
}

func TestLoadClassifier_Errors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{"), 0o600))

	testCases := []struct {
		name string
		cfg  LoaderConfig
	}{
		{"missing artifact", LoaderConfig{Path: filepath.Join(dir, "missing.pkl")}},
		{"corrupt artifact", LoaderConfig{Path: corrupt}},
		{"unknown kind", LoaderConfig{Kind: "xgboost", Path: corrupt}},
		{"remote without url", LoaderConfig{Kind: KindRemote}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadClassifier(context.Background(), tc.cfg, nil)
			var le *ModelLoadError
			assert.ErrorAs(t, err, &le)
		})
	}
}

func TestLoadClassifier_Rule(t *testing.T) {
	m, err := LoadClassifier(context.Background(), LoaderConfig{Kind: KindRule}, nil)
	require.NoError(t, err)
	assert.Equal(t, CreditRuleClassifier{}, m.Classifier)
	assert.Equal(t, "unknown", m.Metadata.Version)
}

func TestResolveKind(t *testing.T) {
	assert.Equal(t, KindPython, ResolveKind(LoaderConfig{Path: "models/model.pkl"}))
	assert.Equal(t, KindPython, ResolveKind(LoaderConfig{Path: "models/model.joblib"}))
	assert.Equal(t, KindLinear, ResolveKind(LoaderConfig{Kind: "auto", Path: "models/model.json"}))
	assert.Equal(t, KindRemote, ResolveKind(LoaderConfig{URL: "http://models:9000"}))
	assert.Equal(t, KindRemote, ResolveKind(LoaderConfig{Path: "https://models"}))
	assert.Equal(t, KindRule, ResolveKind(LoaderConfig{Kind: "RULE", Path: "x.json"}))
}

func TestRemoteClassifier(t *testing.T) {
	var got classifyReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(classifyResp{Label: "Y"})
	}))
	defer srv.Close()

	c := NewRemoteClassifier(srv.URL+"/", time.Second)
	tok, err := c.Classify(context.Background(), row(1))
	require.NoError(t, err)
	assert.Equal(t, "Y", tok)
	assert.Equal(t, schema.Names(), got.Columns)
	assert.Equal(t, row(1), got.Row)
}

func TestRemoteClassifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(classifyResp{Error: "expected 11 features"})
	}))
	defer srv.Close()

	c := NewRemoteClassifier(srv.URL, time.Second)
	_, err := c.Classify(context.Background(), row(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "expected 11 features")
}
