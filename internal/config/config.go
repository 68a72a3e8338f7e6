package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Every external credential
// is optional: absence degrades the corresponding adapter to mock mode.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	AI     AIConfig     `yaml:"ai" mapstructure:"ai"`
	Pinata PinataConfig `yaml:"pinata" mapstructure:"pinata"`
	Ledger LedgerConfig `yaml:"ledger" mapstructure:"ledger"`
	Upload UploadConfig `yaml:"upload" mapstructure:"upload"`
	Temp   TempConfig   `yaml:"temp" mapstructure:"temp"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RatePerSecond  float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AIConfig holds the inference API credential and model selection.
type AIConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	PrimaryModel  string `yaml:"primary_model" mapstructure:"primary_model"`
	FallbackModel string `yaml:"fallback_model" mapstructure:"fallback_model"`
}

// PinataConfig holds the pinning service credential.
type PinataConfig struct {
	JWT        string `yaml:"jwt" mapstructure:"jwt"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	GatewayURL string `yaml:"gateway_url" mapstructure:"gateway_url"`
}

// LedgerConfig selects the anchoring backend. Mode "auto" picks rpc when an
// endpoint and contract address are configured, otherwise embedded.
type LedgerConfig struct {
	Mode            string `yaml:"mode" mapstructure:"mode"`
	RPCURL          string `yaml:"rpc_url" mapstructure:"rpc_url"`
	ContractAddress string `yaml:"contract_address" mapstructure:"contract_address"`
	FromAddress     string `yaml:"from_address" mapstructure:"from_address"`
	OwnerAddress    string `yaml:"owner_address" mapstructure:"owner_address"`
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// TempConfig configures the temporary upload spool and its sweeper.
type TempConfig struct {
	Dir               string `yaml:"dir" mapstructure:"dir"`
	SweepIntervalMins int    `yaml:"sweep_interval_mins" mapstructure:"sweep_interval_mins"`
	TTLMins           int    `yaml:"ttl_mins" mapstructure:"ttl_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VERICHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "memory")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("ai.base_url", "https://api-inference.huggingface.co")
	v.SetDefault("ai.primary_model", "umm-maybe/AI-image-detector")
	v.SetDefault("ai.fallback_model", "Organika/sdxl-detector")
	v.SetDefault("pinata.base_url", "https://api.pinata.cloud")
	v.SetDefault("pinata.gateway_url", "https://gateway.pinata.cloud/ipfs/")
	v.SetDefault("ledger.mode", "auto")
	v.SetDefault("ledger.owner_address", "0x0000000000000000000000000000000000000001")
	v.SetDefault("upload.max_bytes", int64(50<<20))
	v.SetDefault("temp.dir", "/tmp/verichain")
	v.SetDefault("temp.sweep_interval_mins", 10)
	v.SetDefault("temp.ttl_mins", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
