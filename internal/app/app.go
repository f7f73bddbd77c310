// Package app assembles a session from configuration: logger, metrics,
// wallet, ledger backend and controller.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pbaille/crowd/internal/config"
	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/fetcher"
	"github.com/pbaille/crowd/internal/metrics"
	"github.com/pbaille/crowd/internal/session"
	"github.com/pbaille/crowd/internal/store"
	"github.com/pbaille/crowd/internal/wallet"
)

// App owns everything a command needs. Close releases the ledger backend.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Wallet   *wallet.Wallet // nil for a read-only session
	Session  *session.Controller

	closers []func() error
}

// New builds the App described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	program, err := cfg.Ledger.Program()
	if err != nil {
		return nil, fmt.Errorf("app: program id: %w", err)
	}

	w, err := LoadWallet(cfg.Wallet)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{Config: cfg, Logger: logger, Registry: reg, Wallet: w}

	ledger, err := a.openLedger(ctx, program)
	if err != nil {
		return nil, err
	}

	var owner domain.Address
	if w != nil {
		owner = w.Address()
	}
	a.Session, err = session.New(ledger, program, owner,
		session.WithLogger(logger),
		session.WithMetrics(metrics.New(reg)))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	logger.DebugContext(ctx, "session ready",
		slog.String("backend", cfg.Ledger.Backend),
		slog.String("program", program.String()),
		slog.Bool("read_only", owner.IsZero()))
	return a, nil
}

func (a *App) openLedger(ctx context.Context, program domain.Address) (session.Ledger, error) {
	lc := a.Config.Ledger
	switch strings.ToLower(lc.Backend) {
	case config.BackendRPC:
		opts := fetcher.Options{
			ProgramID:  program,
			Timeout:    lc.Timeout,
			RateLimit:  lc.RateLimit,
			Burst:      lc.Burst,
			Commitment: lc.Commitment,
			Logger:     a.Logger,
		}
		if a.Wallet != nil {
			opts.Signer = a.Wallet
		}
		c, err := fetcher.New(lc.RPCURL, opts)
		if err != nil {
			return nil, fmt.Errorf("app: rpc ledger: %w", err)
		}
		return c, nil
	default:
		if dir := filepath.Dir(lc.DBPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("app: create db dir: %w", err)
			}
		}
		s, err := store.New(ctx, lc.DBPath, program)
		if err != nil {
			return nil, fmt.Errorf("app: local ledger: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	}
}

// LoadWallet resolves the owner keypair: a keypair file first, then a
// mnemonic. It returns nil without error when neither is configured.
func LoadWallet(cfg config.WalletConfig) (*wallet.Wallet, error) {
	switch {
	case cfg.KeypairPath != "":
		return wallet.LoadKeypair(cfg.KeypairPath)
	case cfg.Mnemonic != "":
		return wallet.FromMnemonic(cfg.Mnemonic, cfg.Passphrase, cfg.DerivationPath)
	default:
		return nil, nil
	}
}

// Close ends the session and releases the ledger backend.
func (a *App) Close() error {
	if a.Session != nil {
		a.Session.Close()
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
