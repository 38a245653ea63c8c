package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"loan-predictor/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: registry [-data DIR] <command> [flags]

commands:
  list                              list registered versions, newest first
  add -model PATH -scaler PATH ...  register a model/scaler pair
  activate VERSION                  load VERSION on next start-up
  rollback                          activate the version before the active one
`

func main() {
	dataPath := flag.String("data", envOr("DATA_PATH", "data"), "Registry data directory")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := os.MkdirAll(*dataPath, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", *dataPath).Msg("Failed to create data directory")
	}

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dataPath).Msg("Failed to open registry")
	}
	defer store.Close()

	args := flag.Args()
	switch args[0] {
	case "list":
		err = list(store)
	case "add":
		err = add(store, args[1:])
	case "activate":
		if len(args) != 2 {
			flag.Usage()
			os.Exit(2)
		}
		err = store.Activate(args[1])
		if err == nil {
			fmt.Printf("activated %s\n", args[1])
		}
	case "rollback":
		var v storage.ArtifactVersion
		v, err = store.Rollback()
		if err == nil {
			fmt.Printf("rolled back to %s\n", v.Version)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		store.Close()
		log.Fatal().Err(err).Msg(args[0] + " failed")
	}
}

func list(store *storage.Store) error {
	versions, err := store.List()
	if err != nil {
		return err
	}
	for _, v := range versions {
		marker := " "
		if v.IsActive {
			marker = "*"
		}
		fmt.Printf("%s %-18s %-7s acc=%.3f %s %s %s\n",
			marker, v.Version, v.ModelKind, v.Metrics.Accuracy,
			v.CreatedAt.Format(time.RFC3339), v.ModelPath, v.ScalerPath)
	}
	return nil
}

func add(store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	var (
		version  = fs.String("version", "", "Version name (default: timestamp)")
		kind     = fs.String("kind", "", "Model kind, empty to infer from the path")
		model    = fs.String("model", "", "Model artifact path")
		scaler   = fs.String("scaler", "", "Scaler artifact path")
		accuracy = fs.Float64("accuracy", 0, "Validation accuracy")
		samples  = fs.Int("samples", 0, "Training sample count")
		activate = fs.Bool("activate", false, "Activate the version after adding it")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	v, err := store.Add(storage.ArtifactVersion{
		Version:    *version,
		ModelKind:  *kind,
		ModelPath:  *model,
		ScalerPath: *scaler,
		Metrics:    storage.ModelMetrics{Accuracy: *accuracy, TrainingSamples: *samples},
	})
	if err != nil {
		return err
	}
	fmt.Printf("added %s\n", v.Version)

	if *activate {
		if err := store.Activate(v.Version); err != nil {
			return err
		}
		fmt.Printf("activated %s\n", v.Version)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
