package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"loan-predictor/internal/cfg"
	"loan-predictor/internal/pipeline"
	"loan-predictor/internal/schema"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		modelPath  = flag.String("model", "", "Path to model artifact (overrides config)")
		modelKind  = flag.String("kind", "", "Model kind: auto, python, linear, remote, rule")
		scalerPath = flag.String("scaler", "", "Path to scaler artifact (overrides config)")
		logLevel   = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
		asJSON     = flag.Bool("json", false, "Print the full result as JSON")
	)

	// One flag per input column, named as in the training data
	fields := make(map[string]*string, schema.Width)
	for _, col := range schema.Columns() {
		usage := col.Kind.String() + " column"
		if vals := col.Values(); len(vals) > 0 {
			usage = fmt.Sprintf("one of %v", vals)
		}
		fields[col.Name] = flag.String(col.Name, "", usage)
	}
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Override config with command line arguments
	loader := config.Loader()
	if *modelPath != "" {
		loader.Path = *modelPath
	}
	if *modelKind != "" {
		loader.Kind = *modelKind
	}
	scaler := config.ScalerPath
	if *scalerPath != "" {
		scaler = *scalerPath
	}

	ctx := context.Background()
	svc, _, err := pipeline.Load(ctx, pipeline.Artifacts{Model: loader, ScalerPath: scaler}, nil, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load model artifacts")
	}

	form := make(map[string]string, len(fields))
	for name, v := range fields {
		form[name] = *v
	}

	res, err := svc.PredictForm(ctx, form)
	if err != nil {
		var fe schema.FieldErrors
		if errors.As(err, &fe) {
			for _, e := range fe {
				fmt.Fprintf(os.Stderr, "-%s: %s (got %q)\n", e.Field, e.Reason, e.Value)
			}
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("Prediction failed")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode result")
		}
		return
	}
	fmt.Println(res.Label)
}
