package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"loan-predictor/internal/pyrun"
	"loan-predictor/internal/schema"

	"github.com/rs/zerolog/log"
)

// Model kinds accepted by LoadClassifier.
const (
	KindAuto   = "auto"
	KindPython = "python"
	KindLinear = "linear"
	KindRemote = "remote"
	KindRule   = "rule"
)

// ModelLoadError is a missing or corrupt model artifact. It is fatal at
// start-up.
type ModelLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ModelLoadError) Error() string {
	msg := "model load failed"
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// ModelMetadata contains information about the loaded model
type ModelMetadata struct {
	Version       string    `json:"version"`
	TrainedAt     time.Time `json:"trained_at"`
	Features      []string  `json:"features"`
	Accuracy      float64   `json:"accuracy"`
	ValidationAcc float64   `json:"validation_accuracy"`
	TrainingRows  int       `json:"training_rows"`
}

// LoaderConfig selects and configures the classifier implementation.
type LoaderConfig struct {
	Kind      string
	Path      string
	URL       string
	Python    string
	ScriptDir string
	Timeout   time.Duration
}

// Model is a loaded classifier together with what is known about it.
type Model struct {
	Classifier Classifier
	Kind       string
	Metadata   *ModelMetadata
	ModTime    time.Time
}

// ResolveKind infers the classifier kind from the artifact location when the
// configured kind is auto.
func ResolveKind(c LoaderConfig) string {
	kind := strings.ToLower(c.Kind)
	if kind != "" && kind != KindAuto {
		return kind
	}
	switch {
	case c.URL != "" || strings.HasPrefix(c.Path, "http://") || strings.HasPrefix(c.Path, "https://"):
		return KindRemote
	case strings.HasSuffix(c.Path, ".json"):
		return KindLinear
	case strings.HasSuffix(c.Path, ".pkl"), strings.HasSuffix(c.Path, ".joblib"):
		return KindPython
	}
	return KindPython
}

// LoadClassifier loads the configured model once. Every failure is a
// ModelLoadError.
func LoadClassifier(ctx context.Context, c LoaderConfig, metrics MetricsInterface) (*Model, error) {
	kind := ResolveKind(c)
	m := &Model{Kind: kind}

	if kind != KindRemote && kind != KindRule {
		info, err := os.Stat(c.Path)
		if err != nil {
			return nil, &ModelLoadError{Path: c.Path, Reason: "model artifact not found", Err: err}
		}
		m.ModTime = info.ModTime()
	}

	switch kind {
	case KindPython:
		scriptDir := c.ScriptDir
		if scriptDir == "" {
			scriptDir = filepath.Dir(c.Path)
		}
		runner, err := pyrun.New(c.Python, scriptDir, c.Timeout)
		if err != nil {
			return nil, &ModelLoadError{Path: c.Path, Reason: "python runtime unavailable", Err: err}
		}
		pc, err := NewPythonClassifier(ctx, runner, c.Path)
		if err != nil {
			return nil, err
		}
		m.Classifier = pc
	case KindLinear:
		lc, err := LoadLinearClassifier(c.Path)
		if err != nil {
			return nil, err
		}
		m.Classifier = lc
	case KindRemote:
		url := c.URL
		if url == "" {
			url = c.Path
		}
		if url == "" {
			return nil, &ModelLoadError{Reason: "remote model needs a URL"}
		}
		m.Classifier = NewRemoteClassifier(url, c.Timeout)
	case KindRule:
		m.Classifier = CreditRuleClassifier{}
	default:
		return nil, &ModelLoadError{Path: c.Path, Reason: fmt.Sprintf("unknown model kind %q", kind)}
	}

	if c.Path != "" && kind != KindRemote {
		md, err := loadModelMetadata(c.Path)
		switch {
		case err == nil:
			if len(md.Features) > 0 && !sameColumns(md.Features) {
				return nil, &ModelLoadError{
					Path:   c.Path,
					Reason: fmt.Sprintf("metadata column order %v differs from %v", md.Features, schema.Names()),
				}
			}
			m.Metadata = md
		case os.IsNotExist(err):
		default:
			log.Warn().Err(err).Str("model_path", c.Path).Msg("failed to load model metadata, using defaults")
		}
	}
	if m.Metadata == nil {
		m.Metadata = &ModelMetadata{Version: "unknown", Features: schema.Names()}
	}

	if metrics != nil && !m.ModTime.IsZero() {
		metrics.MLModelAgeSet(time.Since(m.ModTime).Seconds())
	}

	log.Info().
		Str("kind", kind).
		Str("model_path", c.Path).
		Str("version", m.Metadata.Version).
		Msg("model loaded")
	return m, nil
}

func loadModelMetadata(modelPath string) (*ModelMetadata, error) {
	dir := filepath.Dir(modelPath)
	primary := filepath.Join(dir, "model_metadata.json")

	md, err := decodeMetadata(primary)
	if err == nil || !os.IsNotExist(err) {
		return md, err
	}

	// Fallback: pick the newest metadata file by timestamp suffix
	matches, _ := filepath.Glob(filepath.Join(dir, "model_metadata_*.json"))
	if len(matches) == 0 {
		return nil, err
	}
	sort.Strings(matches)
	return decodeMetadata(matches[len(matches)-1])
}

func decodeMetadata(path string) (*ModelMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var md ModelMetadata
	if err := json.NewDecoder(file).Decode(&md); err != nil {
		return nil, err
	}
	return &md, nil
}
