package config

import "time"

// Config is the root application configuration.
type Config struct {
	Ledger LedgerConfig `yaml:"ledger"`
	Wallet WalletConfig `yaml:"wallet"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// LedgerConfig selects and configures the ledger backend.
// Backend "local" uses the SQLite store; "rpc" talks to a node.
type LedgerConfig struct {
	Backend    string        `yaml:"backend"    env:"LEDGER_BACKEND"    env-default:"local"`
	ProgramID  string        `yaml:"program_id" env:"LEDGER_PROGRAM_ID" env-default:"CrwdQ7x4Yq3kCk8V8fGz3c1mWbTq4jK2pX9sLhN5uRe"`
	DBPath     string        `yaml:"db_path"    env:"LEDGER_DB_PATH"    env-default:"./crowd.db"`
	RPCURL     string        `yaml:"rpc_url"    env:"LEDGER_RPC_URL"    env-default:"http://127.0.0.1:8899"`
	Commitment string        `yaml:"commitment" env:"LEDGER_COMMITMENT" env-default:"confirmed"`
	Timeout    time.Duration `yaml:"timeout"    env:"LEDGER_TIMEOUT"    env-default:"30s"`
	RateLimit  float64       `yaml:"rate_limit" env:"LEDGER_RATE_LIMIT" env-default:"10"`
	Burst      int           `yaml:"burst"      env:"LEDGER_BURST"      env-default:"5"`
}

// WalletConfig locates the owner identity. A keypair file wins over a
// mnemonic; with neither the session is read-only.
type WalletConfig struct {
	KeypairPath    string `yaml:"keypair_path"    env:"WALLET_KEYPAIR_PATH"`
	Mnemonic       string `yaml:"mnemonic"        env:"WALLET_MNEMONIC"`
	Passphrase     string `yaml:"passphrase"      env:"WALLET_PASSPHRASE"`
	DerivationPath string `yaml:"derivation_path" env:"WALLET_DERIVATION_PATH" env-default:"m/44'/501'/0'/0'"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"SERVER_ADDR"             env-default:"127.0.0.1:8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}
