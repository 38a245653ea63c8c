package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"loan-predictor/internal/common"
	"loan-predictor/internal/ml"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Port         int
	ModelKind    string
	ModelPath    string
	ModelURL     string
	ModelTimeout time.Duration
	PythonPath   string
	ScriptDir    string
	ScalerPath   string
	DataPath     string
	LogLevel     string
	LogPretty    bool
	WSReadLimit  int64
}

type ConfigFile struct {
	Server struct {
		Port        int   `yaml:"port"`
		WSReadLimit int64 `yaml:"wsReadLimit"`
	} `yaml:"server"`

	Model struct {
		Kind       string `yaml:"kind"`
		Path       string `yaml:"path"`
		URL        string `yaml:"url"`
		Timeout    string `yaml:"timeout"`
		PythonPath string `yaml:"pythonPath"`
		ScriptDir  string `yaml:"scriptDir"`
	} `yaml:"model"`

	Scaler struct {
		Path string `yaml:"path"`
	} `yaml:"scaler"`

	Registry struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"registry"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

func Load() (Settings, error) {
	loadEnvFile()

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

// loadEnvFile reads a .env file into the process environment. Variables
// already set win over the file.
func loadEnvFile() {
	path := getEnvOrDefault(common.EnvEnvFile, common.DefaultEnvFile)
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to read env file")
	}
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout, err := time.ParseDuration(config.Model.Timeout)
	if err != nil {
		timeout = 5 * time.Second
	}

	// Override with environment variables if they exist
	settings := Settings{
		Port:         getIntFromEnvOrConfig(common.EnvPort, config.Server.Port, common.DefaultPort),
		ModelKind:    getEnvOrDefault(common.EnvModelKind, orDefault(config.Model.Kind, common.DefaultModelKind)),
		ModelPath:    getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.Path, common.DefaultModelPath)),
		ModelURL:     getEnvOrDefault(common.EnvModelURL, config.Model.URL),
		ModelTimeout: getDurationOrDefault(common.EnvModelTimeout, timeout),
		PythonPath:   getEnvOrDefault(common.EnvPythonPath, config.Model.PythonPath),
		ScriptDir:    getEnvOrDefault(common.EnvScriptDir, orDefault(config.Model.ScriptDir, common.DefaultScriptDir)),
		ScalerPath:   getEnvOrDefault(common.EnvScalerPath, orDefault(config.Scaler.Path, common.DefaultScalerPath)),
		DataPath:     getEnvOrDefault(common.EnvDataPath, config.Registry.DataPath),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, orDefault(config.Log.Level, common.DefaultLogLevel)),
		LogPretty:    getBoolFromEnvOrConfig(common.EnvLogPretty, config.Log.Pretty),
		WSReadLimit:  int64(getIntFromEnvOrConfig(common.EnvWSReadLimit, int(config.Server.WSReadLimit), common.DefaultWSReadLimit)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Port:         getIntOrDefault(common.EnvPort, common.DefaultPort),
		ModelKind:    getEnvOrDefault(common.EnvModelKind, common.DefaultModelKind),
		ModelPath:    getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		ModelURL:     os.Getenv(common.EnvModelURL),
		ModelTimeout: getDurationOrDefault(common.EnvModelTimeout, 5*time.Second),
		PythonPath:   os.Getenv(common.EnvPythonPath), // optional, discovered when empty
		ScriptDir:    getEnvOrDefault(common.EnvScriptDir, common.DefaultScriptDir),
		ScalerPath:   getEnvOrDefault(common.EnvScalerPath, common.DefaultScalerPath),
		DataPath:     os.Getenv(common.EnvDataPath), // optional
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogPretty:    getBoolOrDefault(common.EnvLogPretty, false),
		WSReadLimit:  int64(getIntOrDefault(common.EnvWSReadLimit, common.DefaultWSReadLimit)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Loader returns the classifier loader configuration.
func (s *Settings) Loader() ml.LoaderConfig {
	return ml.LoaderConfig{
		Kind:      s.ModelKind,
		Path:      s.ModelPath,
		URL:       s.ModelURL,
		Python:    s.PythonPath,
		ScriptDir: s.ScriptDir,
		Timeout:   s.ModelTimeout,
	}
}

// Level returns the parsed log level. Settings are validated on load, so
// an unparsable level only occurs for hand-built values.
func (s *Settings) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.Port < 1024 || settings.Port > 65535 {
		return fmt.Errorf("port must be between 1024 and 65535, got %d", settings.Port)
	}

	switch settings.ModelKind {
	case ml.KindAuto, ml.KindPython, ml.KindLinear, ml.KindRule:
	case ml.KindRemote:
		if settings.ModelURL == "" {
			return fmt.Errorf("model URL is required for the remote model kind")
		}
	default:
		return fmt.Errorf("unknown model kind %q", settings.ModelKind)
	}

	// The registry supplies artifact paths when configured
	if settings.DataPath == "" {
		if settings.ModelPath == "" && settings.ModelKind != ml.KindRule && settings.ModelKind != ml.KindRemote {
			return fmt.Errorf("model path cannot be empty")
		}
		if settings.ScalerPath == "" {
			return fmt.Errorf("scaler path cannot be empty")
		}
	}

	if settings.ModelTimeout < 100*time.Millisecond || settings.ModelTimeout > time.Minute {
		return fmt.Errorf("model timeout must be between 100ms and 1m, got %v", settings.ModelTimeout)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	if settings.WSReadLimit < 512 || settings.WSReadLimit > 1<<20 {
		return fmt.Errorf("websocket read limit must be between 512 and 1048576 bytes, got %d", settings.WSReadLimit)
	}

	return nil
}
