package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration for the given run mode ("serve" or
// "verify"). Missing external credentials are never validation errors; the
// adapters degrade to mock mode instead.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RatePerSecond <= 0 {
			problems = append(problems, "server.rate_per_second must be > 0")
		}
		if c.Server.RateBurst <= 0 {
			problems = append(problems, "server.rate_burst must be > 0")
		}
	case "verify":
		// One-shot verification has no server surface to validate.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for driver "+c.Store.Driver)
		}
	default:
		problems = append(problems, "store.driver must be one of memory, sqlite, postgres")
	}

	switch c.Ledger.Mode {
	case "auto", "embedded", "mock":
	case "rpc":
		if c.Ledger.RPCURL == "" || c.Ledger.ContractAddress == "" || c.Ledger.FromAddress == "" {
			problems = append(problems, "ledger mode rpc requires rpc_url, contract_address and from_address")
		}
	default:
		problems = append(problems, "ledger.mode must be one of auto, rpc, embedded, mock")
	}

	if c.Upload.MaxBytes <= 0 {
		problems = append(problems, "upload.max_bytes must be > 0")
	}
	if c.Temp.SweepIntervalMins <= 0 || c.Temp.TTLMins <= 0 {
		problems = append(problems, "temp.sweep_interval_mins and temp.ttl_mins must be > 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}
