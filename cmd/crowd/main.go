package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pbaille/crowd/internal/api"
	"github.com/pbaille/crowd/internal/app"
	"github.com/pbaille/crowd/internal/classifier"
	"github.com/pbaille/crowd/internal/config"
	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/pda"
	"github.com/pbaille/crowd/internal/wallet"
)

var configPath string

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "crowd",
		Short:         "Ask questions and average the crowd's numeric answers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or ./crowd.yaml)")

	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(answerCmd())
	rootCmd.AddCommand(deriveCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(walletCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.NewLogger(cfg.Log), nil
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func createCmd() *cobra.Command {
	var threshold uint32

	cmd := &cobra.Command{
		Use:   "create [question]",
		Short: "Post a new question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.Session.CreateQuestion(cmd.Context(), content, threshold)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created question: %s\n", created.Question)
			fmt.Fprintf(out, "Stats account:    %s\n", created.Stats)
			fmt.Fprintf(out, "Signature:        %s\n", created.Receipt.Signature)
			return nil
		},
	}

	cmd.Flags().Uint32VarP(&threshold, "threshold", "t", 10, "number of answers the question accepts")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		format string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List questions with their statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if all {
				accounts, err := a.Session.ListAccounts(cmd.Context())
				if err != nil {
					return err
				}
				return renderAccounts(cmd.OutOrStdout(), format, accounts, classifier.Summarize(accounts))
			}

			views, err := a.Session.ListQuestions(cmd.Context())
			if err != nil {
				return err
			}
			return renderQuestions(cmd.OutOrStdout(), format, views)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVar(&all, "all", false, "show every program account, unknown ones included")
	return cmd
}

func answerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer [question-address] [value]",
		Short: "Submit a numeric answer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidAnswer, args[1])
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			receipt, err := a.Session.SubmitAnswer(cmd.Context(), question, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Answer submitted: %s\n", receipt.Signature)
			return nil
		},
	}
}

func deriveCmd() *cobra.Command {
	var (
		owner  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "derive [question]",
		Short: "Print the question and stats addresses without touching the ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			program, err := cfg.Ledger.Program()
			if err != nil {
				return err
			}

			var ownerAddr domain.Address
			if owner != "" {
				if ownerAddr, err = domain.ParseAddress(owner); err != nil {
					return err
				}
			} else {
				w, err := app.LoadWallet(cfg.Wallet)
				if err != nil {
					return err
				}
				if w == nil {
					return fmt.Errorf("%w: pass --owner or configure a wallet", domain.ErrUnauthenticated)
				}
				ownerAddr = w.Address()
			}

			pair, err := pda.DerivePair(strings.Join(args, " "), ownerAddr, program)
			if err != nil {
				return err
			}
			return renderPair(cmd.OutOrStdout(), format, pair)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner address (default: configured wallet)")
	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sc := a.Config.Server
			if addr != "" {
				sc.Addr = addr
			}
			server := api.New(a.Session, a.Registry, a.Logger)
			return server.Run(ctx, api.ServerOptions{
				Addr:            sc.Addr,
				ReadTimeout:     sc.ReadTimeout,
				WriteTimeout:    sc.WriteTimeout,
				ShutdownTimeout: sc.ShutdownTimeout,
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (default from config)")
	return cmd
}

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the owner keypair",
	}

	var (
		out        string
		passphrase string
		path       string
	)
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a mnemonic and write its keypair file",
		RunE: func(cmd *cobra.Command, args []string) error {
			mnemonic, w, err := wallet.Generate(passphrase, path)
			if err != nil {
				return err
			}
			if err := w.SaveKeypair(out); err != nil {
				return err
			}

			o := cmd.OutOrStdout()
			fmt.Fprintf(o, "Address:  %s\n", w.Address())
			fmt.Fprintf(o, "Keypair:  %s\n", out)
			fmt.Fprintf(o, "Mnemonic: %s\n", mnemonic)
			fmt.Fprintln(o, "Write the mnemonic down; it is the only way to recover this keypair.")
			return nil
		},
	}
	newCmd.Flags().StringVar(&out, "out", "crowd-keypair.json", "keypair file to write")
	newCmd.Flags().StringVar(&passphrase, "passphrase", "", "optional BIP-39 passphrase")
	newCmd.Flags().StringVar(&path, "path", "m/44'/501'/0'/0'", "derivation path")

	cmd.AddCommand(newCmd)
	return cmd
}
