// Package storage keeps the registry of trained artifact versions in BoltDB.
// A version pairs a model artifact with the scaler fitted alongside it; the
// active version decides what the service loads at start-up.
//
// Applicant records are never stored here.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"loan-predictor/internal/schema"

	"go.etcd.io/bbolt"
)

const (
	versionsBucket = "versions" // Bucket name for artifact version records
	metaBucket     = "meta"     // Bucket name for registry pointers
	activeKey      = "active"
	dbFile         = "loan-artifacts.db"
)

var (
	ErrNotFound = errors.New("artifact version not found")
	ErrNoActive = errors.New("no active artifact version")
)

// ModelMetrics contains offline evaluation results for a model
type ModelMetrics struct {
	Accuracy        float64 `json:"accuracy"`
	F1Score         float64 `json:"f1_score"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	ApprovalRate    float64 `json:"approval_rate"`
	TrainingSamples int     `json:"training_samples"`
}

// ArtifactVersion is one registered model/scaler pair.
type ArtifactVersion struct {
	Version     string       `json:"version"`
	ModelKind   string       `json:"model_kind"`
	ModelPath   string       `json:"model_path"`
	ScalerPath  string       `json:"scaler_path"`
	Fingerprint string       `json:"fingerprint"`
	CreatedAt   time.Time    `json:"created_at"`
	Metrics     ModelMetrics `json:"metrics"`
	IsActive    bool         `json:"is_active"`
}

// Store provides the artifact registry on top of BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the registry under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(versionsBucket)); err != nil {
			return fmt.Errorf("create versions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metaBucket)); err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add registers a version. An empty Version gets a timestamp; an empty
// Fingerprint gets the current schema's.
func (s *Store) Add(v ArtifactVersion) (ArtifactVersion, error) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	if v.Version == "" {
		v.Version = v.CreatedAt.Format("20060102-150405")
	}
	if v.Fingerprint == "" {
		v.Fingerprint = schema.Fingerprint()
	}
	if v.ModelPath == "" && v.ModelKind != "rule" {
		return ArtifactVersion{}, fmt.Errorf("version %s: model path is required", v.Version)
	}
	v.IsActive = false

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(versionsBucket))
		if b.Get([]byte(v.Version)) != nil {
			return fmt.Errorf("version %s already registered", v.Version)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal version: %w", err)
		}
		return b.Put([]byte(v.Version), data)
	})
	if err != nil {
		return ArtifactVersion{}, err
	}
	return v, nil
}

// Get returns one version.
func (s *Store) Get(version string) (ArtifactVersion, error) {
	var out ArtifactVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		v, err := getVersion(tx, version)
		if err != nil {
			return err
		}
		out = v
		out.IsActive = activeVersion(tx) == version
		return nil
	})
	return out, err
}

// Activate makes version the one loaded at start-up. Versions trained
// against another column layout are refused.
func (s *Store) Activate(version string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		v, err := getVersion(tx, version)
		if err != nil {
			return err
		}
		if v.Fingerprint != schema.Fingerprint() {
			return fmt.Errorf("version %s was trained on layout %s, service expects %s",
				version, v.Fingerprint, schema.Fingerprint())
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(activeKey), []byte(version))
	})
}

// Active returns the active version or ErrNoActive.
func (s *Store) Active() (ArtifactVersion, error) {
	var out ArtifactVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		active := activeVersion(tx)
		if active == "" {
			return ErrNoActive
		}
		v, err := getVersion(tx, active)
		if err != nil {
			return err
		}
		out = v
		out.IsActive = true
		return nil
	})
	return out, err
}

// List returns all versions, newest first.
func (s *Store) List() ([]ArtifactVersion, error) {
	var out []ArtifactVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		active := activeVersion(tx)
		return tx.Bucket([]byte(versionsBucket)).ForEach(func(k, data []byte) error {
			var v ArtifactVersion
			if err := json.Unmarshal(data, &v); err != nil {
				return nil // Skip malformed records
			}
			v.IsActive = v.Version == active
			out = append(out, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Rollback activates the version registered just before the active one.
func (s *Store) Rollback() (ArtifactVersion, error) {
	versions, err := s.List()
	if err != nil {
		return ArtifactVersion{}, err
	}

	current := -1
	for i, v := range versions {
		if v.IsActive {
			current = i
			break
		}
	}
	if current == -1 {
		return ArtifactVersion{}, ErrNoActive
	}
	if current+1 >= len(versions) {
		return ArtifactVersion{}, fmt.Errorf("no previous version available for rollback")
	}

	prev := versions[current+1]
	if err := s.Activate(prev.Version); err != nil {
		return ArtifactVersion{}, err
	}
	prev.IsActive = true
	return prev, nil
}

func getVersion(tx *bbolt.Tx, version string) (ArtifactVersion, error) {
	data := tx.Bucket([]byte(versionsBucket)).Get([]byte(version))
	if data == nil {
		return ArtifactVersion{}, fmt.Errorf("%w: %s", ErrNotFound, version)
	}
	var v ArtifactVersion
	if err := json.Unmarshal(data, &v); err != nil {
		return ArtifactVersion{}, fmt.Errorf("unmarshal version %s: %w", version, err)
	}
	return v, nil
}

func activeVersion(tx *bbolt.Tx) string {
	return string(tx.Bucket([]byte(metaBucket)).Get([]byte(activeKey)))
}
