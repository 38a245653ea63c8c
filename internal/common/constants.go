package common

// Environment variable keys
const (
	EnvConfigFile   = "CONFIG_FILE"
	EnvEnvFile      = "ENV_FILE"
	EnvPort         = "PORT"
	EnvModelKind    = "MODEL_KIND"
	EnvModelPath    = "MODEL_PATH"
	EnvModelURL     = "MODEL_URL"
	EnvModelTimeout = "MODEL_TIMEOUT"
	EnvPythonPath   = "PYTHON_PATH"
	EnvScriptDir    = "SCRIPT_DIR"
	EnvScalerPath   = "SCALER_PATH"
	EnvDataPath     = "DATA_PATH"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogPretty    = "LOG_PRETTY"
	EnvWSReadLimit  = "WS_READ_LIMIT"
)

// Configuration defaults
const (
	DefaultEnvFile     = ".env"
	DefaultPort        = 8080
	DefaultModelKind   = "auto"
	DefaultModelPath   = "models/model.pkl"
	DefaultScalerPath  = "models/scaler.pkl"
	DefaultScriptDir   = "scripts"
	DefaultLogLevel    = "info"
	DefaultWSReadLimit = 64 << 10
)

// HTTP routes
const (
	RoutePredict   = "/predict"
	RouteSchema    = "/schema"
	RouteHealth    = "/health"
	RouteModelInfo = "/model/info"
	RouteMetrics   = "/metrics"
	RouteWS        = "/ws"
)
