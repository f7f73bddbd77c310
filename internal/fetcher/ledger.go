package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/layout"
	"github.com/pbaille/crowd/internal/txn"
)

type programAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Data  []string `json:"data"`
		Owner string   `json:"owner"`
	} `json:"account"`
}

type blockhashResult struct {
	Value struct {
		Blockhash string `json:"blockhash"`
	} `json:"value"`
}

// FetchAllAccounts lists the program's accounts. The node is asked once per
// known account size, concurrently; questions come first, then stats.
func (c *Client) FetchAllAccounts(ctx context.Context, programID domain.Address) ([]domain.RawAccount, error) {
	sizes := []int{layout.QuestionSize, layout.StatsSize}
	batches := make([][]domain.RawAccount, len(sizes))

	g, gctx := errgroup.WithContext(ctx)
	for i, size := range sizes {
		g.Go(func() error {
			accounts, err := c.programAccounts(gctx, programID, size)
			if err != nil {
				return err
			}
			batches[i] = accounts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.RawAccount
	for _, b := range batches {
		all = append(all, b...)
	}
	c.log.DebugContext(ctx, "fetched program accounts",
		slog.String("program", programID.String()),
		slog.Int("count", len(all)))
	return all, nil
}

func (c *Client) programAccounts(ctx context.Context, programID domain.Address, size int) ([]domain.RawAccount, error) {
	params := []any{
		programID.String(),
		map[string]any{
			"encoding":   "base64",
			"commitment": c.commitment,
			"filters":    []any{map[string]any{"dataSize": size}},
		},
	}

	var result []programAccount
	if err := c.call(ctx, "getProgramAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]domain.RawAccount, 0, len(result))
	for _, pa := range result {
		addr, err := domain.ParseAddress(pa.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("getProgramAccounts: pubkey %q: %w", pa.Pubkey, err)
		}
		if len(pa.Account.Data) == 0 {
			return nil, fmt.Errorf("getProgramAccounts: %s: missing data", addr)
		}
		if len(pa.Account.Data) > 1 && pa.Account.Data[1] != "base64" {
			return nil, fmt.Errorf("getProgramAccounts: %s: unexpected encoding %q", addr, pa.Account.Data[1])
		}
		data, err := base64.StdEncoding.DecodeString(pa.Account.Data[0])
		if err != nil {
			return nil, fmt.Errorf("getProgramAccounts: %s: %w", addr, err)
		}
		accounts = append(accounts, domain.RawAccount{Address: addr, Data: data})
	}
	return accounts, nil
}

// InitializeQuestion sends the program's initialize instruction signed by the owner.
func (c *Client) InitializeQuestion(ctx context.Context, p domain.InitializeParams) (domain.Receipt, error) {
	return c.send(ctx, p.Owner, txn.InitializeInstruction(c.programID, p))
}

// SubmitAnswer sends the program's submit_answer instruction signed by the answerer.
func (c *Client) SubmitAnswer(ctx context.Context, p domain.AnswerParams) (domain.Receipt, error) {
	return c.send(ctx, p.Answerer, txn.SubmitAnswerInstruction(c.programID, p))
}

func (c *Client) send(ctx context.Context, payer domain.Address, ix txn.Instruction) (domain.Receipt, error) {
	if c.signer == nil {
		return domain.Receipt{}, ErrNoSigner
	}
	if c.signer.Address() != payer {
		return domain.Receipt{}, fmt.Errorf("%w: signer %s cannot sign for %s", domain.ErrUnauthenticated, c.signer.Address(), payer)
	}

	blockhash, err := c.latestBlockhash(ctx)
	if err != nil {
		return domain.Receipt{}, err
	}
	msg, err := txn.Compile(payer, blockhash, ix)
	if err != nil {
		return domain.Receipt{}, err
	}
	wire, err := txn.Sign(msg, c.signer)
	if err != nil {
		return domain.Receipt{}, err
	}

	params := []any{
		base64.StdEncoding.EncodeToString(wire),
		map[string]any{"encoding": "base64", "preflightCommitment": c.commitment},
	}
	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return domain.Receipt{}, err
	}
	return domain.Receipt{Signature: signature}, nil
}

func (c *Client) latestBlockhash(ctx context.Context) (domain.Address, error) {
	var result blockhashResult
	params := []any{map[string]any{"commitment": c.commitment}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return domain.Address{}, err
	}
	hash, err := domain.ParseAddress(result.Value.Blockhash)
	if err != nil {
		return domain.Address{}, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	return hash, nil
}
