package cfg

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8080 {
					t.Errorf("expected default Port 8080, got %d", settings.Port)
				}
				if settings.ModelKind != "auto" {
					t.Errorf("expected default ModelKind auto, got %s", settings.ModelKind)
				}
				if settings.ModelPath != "models/model.pkl" {
					t.Errorf("expected default ModelPath, got %s", settings.ModelPath)
				}
				if settings.ScalerPath != "models/scaler.pkl" {
					t.Errorf("expected default ScalerPath, got %s", settings.ScalerPath)
				}
				if settings.ModelTimeout != 5*time.Second {
					t.Errorf("expected default ModelTimeout 5s, got %v", settings.ModelTimeout)
				}
				if settings.DataPath != "" {
					t.Errorf("expected registry to be disabled, got %s", settings.DataPath)
				}
				if settings.WSReadLimit != 64<<10 {
					t.Errorf("expected default WSReadLimit, got %d", settings.WSReadLimit)
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"PORT":          "9090",
				"MODEL_KIND":    "linear",
				"MODEL_PATH":    "artifacts/linear.json",
				"SCALER_PATH":   "artifacts/scaler.json",
				"MODEL_TIMEOUT": "2s",
				"LOG_LEVEL":     "debug",
				"LOG_PRETTY":    "true",
				"WS_READ_LIMIT": "4096",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 9090 {
					t.Errorf("expected Port 9090, got %d", settings.Port)
				}
				if settings.ModelKind != "linear" {
					t.Errorf("expected ModelKind linear, got %s", settings.ModelKind)
				}
				if settings.ScalerPath != "artifacts/scaler.json" {
					t.Errorf("expected ScalerPath override, got %s", settings.ScalerPath)
				}
				if settings.ModelTimeout != 2*time.Second {
					t.Errorf("expected ModelTimeout 2s, got %v", settings.ModelTimeout)
				}
				if !settings.LogPretty {
					t.Error("expected LogPretty to be true")
				}
				if settings.Level() != zerolog.DebugLevel {
					t.Errorf("expected debug level, got %v", settings.Level())
				}
				if settings.WSReadLimit != 4096 {
					t.Errorf("expected WSReadLimit 4096, got %d", settings.WSReadLimit)
				}
			},
		},
		{
			name: "remote without URL",
			envVars: map[string]string{
				"MODEL_KIND": "remote",
			},
			wantErr: true,
		},
		{
			name: "remote with URL",
			envVars: map[string]string{
				"MODEL_KIND": "remote",
				"MODEL_URL":  "http://models:9000",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				loader := settings.Loader()
				if loader.Kind != "remote" || loader.URL != "http://models:9000" {
					t.Errorf("unexpected loader config %+v", loader)
				}
			},
		},
		{
			name: "unknown model kind",
			envVars: map[string]string{
				"MODEL_KIND": "onnx",
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			envVars: map[string]string{
				"LOG_LEVEL": "loud",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
server:
  port: 9000
  wsReadLimit: 8192

model:
  kind: python
  path: "/srv/models/model.pkl"
  timeout: "3s"
  pythonPath: "/usr/bin/python3"
  scriptDir: "/srv/scripts"

scaler:
  path: "/srv/models/scaler.pkl"

registry:
  dataPath: "/srv/data"

log:
  level: warn
  pretty: true
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 9000 {
					t.Errorf("expected Port 9000, got %d", settings.Port)
				}
				if settings.ModelKind != "python" {
					t.Errorf("expected ModelKind python, got %s", settings.ModelKind)
				}
				if settings.ModelTimeout != 3*time.Second {
					t.Errorf("expected ModelTimeout 3s, got %v", settings.ModelTimeout)
				}
				if settings.PythonPath != "/usr/bin/python3" {
					t.Errorf("expected PythonPath, got %s", settings.PythonPath)
				}
				if settings.DataPath != "/srv/data" {
					t.Errorf("expected DataPath /srv/data, got %s", settings.DataPath)
				}
				if settings.Level() != zerolog.WarnLevel {
					t.Errorf("expected warn level, got %v", settings.Level())
				}
				if settings.WSReadLimit != 8192 {
					t.Errorf("expected WSReadLimit 8192, got %d", settings.WSReadLimit)
				}
			},
		},
		{
			name: "environment overrides",
			yamlContent: `
model:
  path: "yaml.pkl"
scaler:
  path: "yaml_scaler.pkl"
`,
			envOverrides: map[string]string{
				"MODEL_PATH": "env.pkl",
				"PORT":       "9100",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelPath != "env.pkl" {
					t.Errorf("expected env ModelPath, got %s", settings.ModelPath)
				}
				if settings.ScalerPath != "yaml_scaler.pkl" {
					t.Errorf("expected YAML ScalerPath, got %s", settings.ScalerPath)
				}
				if settings.Port != 9100 {
					t.Errorf("expected env Port 9100, got %d", settings.Port)
				}
				if settings.ModelTimeout != 5*time.Second {
					t.Errorf("expected default timeout, got %v", settings.ModelTimeout)
				}
			},
		},
		{
			name:        "invalid YAML",
			yamlContent: "model: [unterminated",
			wantErr:     true,
		},
		{
			name: "invalid port",
			yamlContent: `
server:
  port: 80
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			settings, err := loadFromYAML(configPath)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	clearTestEnv(t)
	if _, err := loadFromYAML(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad(t *testing.T) {
	t.Run("uses CONFIG_FILE when set", func(t *testing.T) {
		clearTestEnv(t)
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := "server:\n  port: 9200\n"
		if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		t.Setenv("CONFIG_FILE", configPath)

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.Port != 9200 {
			t.Errorf("expected Port 9200, got %d", settings.Port)
		}
	})

	t.Run("reads .env file", func(t *testing.T) {
		clearTestEnv(t)
		envPath := filepath.Join(t.TempDir(), "test.env")
		content := "MODEL_KIND=rule\nLOG_LEVEL=error\n"
		if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("ENV_FILE", envPath)
		// godotenv sets variables directly; register them so they are restored
		t.Setenv("MODEL_KIND", "")
		t.Setenv("LOG_LEVEL", "")
		os.Unsetenv("MODEL_KIND")
		os.Unsetenv("LOG_LEVEL")

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.ModelKind != "rule" {
			t.Errorf("expected ModelKind from .env, got %s", settings.ModelKind)
		}
		if settings.LogLevel != "error" {
			t.Errorf("expected LogLevel from .env, got %s", settings.LogLevel)
		}
	})

	t.Run("malformed .env file is logged", func(t *testing.T) {
		clearTestEnv(t)
		envPath := filepath.Join(t.TempDir(), "test.env")
		if err := os.WriteFile(envPath, []byte("BAD-KEY=1\n"), 0o644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("ENV_FILE", envPath)

		var buf bytes.Buffer
		prev := log.Logger
		log.Logger = zerolog.New(&buf)
		defer func() { log.Logger = prev }()

		if _, err := Load(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "failed to read env file") || !strings.Contains(out, envPath) {
			t.Errorf("expected a warning naming %s, got %q", envPath, out)
		}
	})

	t.Run("process environment wins over .env", func(t *testing.T) {
		clearTestEnv(t)
		envPath := filepath.Join(t.TempDir(), "test.env")
		if err := os.WriteFile(envPath, []byte("PORT=9300\n"), 0o644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("ENV_FILE", envPath)
		t.Setenv("PORT", "9400")

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.Port != 9400 {
			t.Errorf("expected Port 9400, got %d", settings.Port)
		}
	})
}

func TestSettingsLevelFallback(t *testing.T) {
	s := Settings{LogLevel: "nonsense"}
	if s.Level() != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %v", s.Level())
	}
}

// clearTestEnv clears potentially conflicting environment variables
func clearTestEnv(t *testing.T) {
	envVars := []string{
		"CONFIG_FILE", "PORT", "MODEL_KIND", "MODEL_PATH", "MODEL_URL",
		"MODEL_TIMEOUT", "PYTHON_PATH", "SCRIPT_DIR", "SCALER_PATH", "DATA_PATH",
		"LOG_LEVEL", "LOG_PRETTY", "WS_READ_LIMIT",
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}

	// Point at a file that does not exist so a stray .env cannot leak in
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
}
