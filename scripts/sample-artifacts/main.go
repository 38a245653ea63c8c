package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"loan-predictor/internal/ml"
	"loan-predictor/internal/scaler"
	"loan-predictor/internal/schema"
	"loan-predictor/internal/storage"
)

// Sample coefficients in schema order. Credit history dominates, as it does
// in models fitted on the public loan data set.
var sampleCoef = map[string]float64{
	schema.Gender:            0.05,
	schema.Married:           0.45,
	schema.Dependents:        0.02,
	schema.Education:         0.35,
	schema.SelfEmployed:      -0.05,
	schema.CreditHistory:     3.2,
	schema.PropertyArea:      0.15,
	schema.ApplicantIncome:   0.04,
	schema.CoapplicantIncome: -0.12,
	schema.LoanAmount:        -0.18,
	schema.LoanAmountTerm:    -0.08,
}

func main() {
	var (
		outDir   = flag.String("out", "models", "Output directory for artifacts")
		dataPath = flag.String("data", "", "Registry data directory; empty skips registration")
		version  = flag.String("version", "sample-"+time.Now().Format("20060102"), "Artifact version")
		activate = flag.Bool("activate", true, "Activate the registered version")
	)
	flag.Parse()

	fmt.Printf("Writing sample artifacts...\n")
	fmt.Printf("  Output: %s\n", *outDir)
	fmt.Printf("  Version: %s\n", *version)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	coef := make([]float64, schema.Width)
	for i, name := range schema.Names() {
		coef[i] = sampleCoef[name]
	}

	modelPath := filepath.Join(*outDir, "model.json")
	scalerPath := filepath.Join(*outDir, "scaler.json")

	must(writeJSON(modelPath, ml.LinearArtifact{
		Columns:   schema.Names(),
		Coef:      coef,
		Intercept: -2.1,
		Threshold: 0.5,
		Positive:  "Y",
		Negative:  "N",
		Schema:    schema.Fingerprint(),
	}))
	must(writeJSON(scalerPath, scaler.Artifact{
		Kind:    scaler.KindStandard,
		Columns: schema.ContinuousNames(),
		Mean:    []float64{5403.46, 1621.25, 146.41, 342.0},
		Scale:   []float64{6109.04, 2926.25, 85.59, 65.12},
	}))
	must(writeJSON(filepath.Join(*outDir, "model_metadata.json"), ml.ModelMetadata{
		Version:      *version,
		TrainedAt:    time.Now().UTC(),
		Features:     schema.Names(),
		Accuracy:     0.81,
		TrainingRows: 614,
	}))

	fmt.Printf("  Model: %s\n", modelPath)
	fmt.Printf("  Scaler: %s\n", scalerPath)

	if *dataPath == "" {
		return
	}

	if err := os.MkdirAll(*dataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open registry: %v", err)
	}
	defer store.Close()

	v, err := store.Add(storage.ArtifactVersion{
		Version:    *version,
		ModelKind:  ml.KindLinear,
		ModelPath:  modelPath,
		ScalerPath: scalerPath,
		Metrics:    storage.ModelMetrics{Accuracy: 0.81, TrainingSamples: 614},
	})
	if err != nil {
		log.Fatalf("Failed to register version: %v", err)
	}
	fmt.Printf("  Registered: %s\n", v.Version)

	if *activate {
		if err := store.Activate(v.Version); err != nil {
			log.Fatalf("Failed to activate version: %v", err)
		}
		fmt.Printf("  Activated: %s\n", v.Version)
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
