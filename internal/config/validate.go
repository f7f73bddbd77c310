package config

import (
	"fmt"
	"strings"

	"github.com/pbaille/crowd/internal/domain"
)

const (
	BackendLocal = "local"
	BackendRPC   = "rpc"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if _, err := c.Ledger.Program(); err != nil {
		return fmt.Errorf("ledger.program_id: %w", err)
	}

	switch strings.ToLower(c.Ledger.Backend) {
	case BackendLocal:
		if c.Ledger.DBPath == "" {
			return fmt.Errorf("ledger.db_path is required for the local backend")
		}
	case BackendRPC:
		if c.Ledger.RPCURL == "" {
			return fmt.Errorf("ledger.rpc_url is required for the rpc backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be %q or %q (got %q)", BackendLocal, BackendRPC, c.Ledger.Backend)
	}

	if c.Ledger.RateLimit < 0 {
		return fmt.Errorf("ledger.rate_limit must be >= 0 (got %v)", c.Ledger.RateLimit)
	}
	if c.Ledger.Timeout <= 0 {
		return fmt.Errorf("ledger.timeout must be > 0 (got %s)", c.Ledger.Timeout)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}

	return nil
}

// Program parses the configured program id.
func (l LedgerConfig) Program() (domain.Address, error) {
	addr, err := domain.ParseAddress(l.ProgramID)
	if err != nil {
		return domain.Address{}, err
	}
	if addr.IsZero() {
		return domain.Address{}, fmt.Errorf("%w: zero program id", domain.ErrInvalidSeed)
	}
	return addr, nil
}
