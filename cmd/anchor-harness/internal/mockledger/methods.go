package mockledger

import (
	"context"
	"encoding/json"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/ledger"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/txn"
)

// The node RPC uses positional params: an array whose tail is an optional
// options object. These types unmarshal that shape. Their fields stay
// unexported so the handler passes the raw array straight to UnmarshalJSON
// instead of attempting its own field mapping.

type sendTransactionParams struct {
	transaction string
	config      struct {
		Encoding            string            `json:"encoding"`
		SkipPreflight       bool              `json:"skipPreflight"`
		PreflightCommitment ledger.Commitment `json:"preflightCommitment"`
	}
}

func (p *sendTransactionParams) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) == 0 {
		return jrpc2.Errorf(jrpc2.InvalidParams, "missing transaction")
	}
	if err := json.Unmarshal(arr[0], &p.transaction); err != nil {
		return err
	}
	if len(arr) > 1 {
		return json.Unmarshal(arr[1], &p.config)
	}
	return nil
}

type signatureStatusesParams struct {
	signatures []string
}

func (p *signatureStatusesParams) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) == 0 {
		return jrpc2.Errorf(jrpc2.InvalidParams, "missing signatures")
	}
	return json.Unmarshal(arr[0], &p.signatures)
}

type airdropParams struct {
	account  string
	lamports uint64
}

func (p *airdropParams) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) < 2 {
		return jrpc2.Errorf(jrpc2.InvalidParams, "want [account, lamports]")
	}
	if err := json.Unmarshal(arr[0], &p.account); err != nil {
		return err
	}
	return json.Unmarshal(arr[1], &p.lamports)
}

type accountParams struct {
	account string
}

func (p *accountParams) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) == 0 {
		return jrpc2.Errorf(jrpc2.InvalidParams, "missing account")
	}
	return json.Unmarshal(arr[0], &p.account)
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type blockhashValue struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type blockhashResult struct {
	Context rpcContext     `json:"context"`
	Value   blockhashValue `json:"value"`
}

type statusValue struct {
	Slot               uint64            `json:"slot"`
	Confirmations      *uint64           `json:"confirmations"`
	Err                interface{}       `json:"err"`
	ConfirmationStatus ledger.Commitment `json:"confirmationStatus"`
}

type statusesResult struct {
	Context rpcContext     `json:"context"`
	Value   []*statusValue `json:"value"`
}

type balanceResult struct {
	Context rpcContext `json:"context"`
	Value   uint64     `json:"value"`
}

// methods builds the RPC handler map for this ledger instance.
func (l *Ledger) methods() handler.Map {
	return handler.Map{
		"getHealth":            handler.New(l.getHealth),
		"getVersion":           handler.New(l.getVersion),
		"getLatestBlockhash":   handler.New(l.getLatestBlockhash),
		"sendTransaction":      handler.New(l.sendTransaction),
		"getSignatureStatuses": handler.New(l.getSignatureStatuses),
		"requestAirdrop":       handler.New(l.requestAirdrop),
		"getBalance":           handler.New(l.getBalance),
	}
}

func (l *Ledger) getHealth(ctx context.Context) (string, error) {
	if l.opts.Unhealthy {
		return "", jrpc2.Errorf(jrpc2.InternalError, "node is behind")
	}
	return "ok", nil
}

func (l *Ledger) getVersion(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"solana-core": l.opts.NodeVersion,
		"feature-set": uint32(1),
	}, nil
}

// getLatestBlockhash takes an optional commitment config it does not need:
// the mock has a single fork, so every commitment sees the same hash.
func (l *Ledger) getLatestBlockhash(ctx context.Context, params json.RawMessage) (blockhashResult, error) {
	hash, slot := l.currentBlockhash()
	return blockhashResult{
		Context: rpcContext{Slot: slot},
		Value: blockhashValue{
			Blockhash:            hash.String(),
			LastValidBlockHeight: slot + 150,
		},
	}, nil
}

func (l *Ledger) sendTransaction(ctx context.Context, params sendTransactionParams) (string, error) {
	if l.opts.RejectSubmissions {
		return "", jrpc2.Errorf(jrpc2.InternalError, "transaction submissions are disabled")
	}
	if params.config.Encoding != "" && params.config.Encoding != "base64" {
		return "", jrpc2.Errorf(jrpc2.InvalidParams, "unsupported encoding %q", params.config.Encoding)
	}
	tx, err := txn.DecodeBase64(params.transaction)
	if err != nil {
		return "", jrpc2.Errorf(jrpc2.InvalidParams, "could not decode transaction: %v", err)
	}
	if err := l.acceptTransaction(tx); err != nil {
		l.logger.WithError(err).Info("rejected transaction")
		return "", jrpc2.Errorf(jrpc2.InvalidRequest, "transaction rejected: %v", err)
	}
	sig := tx.ID()
	l.logger.WithField("signature", sig).Debug("accepted transaction")
	return sig.String(), nil
}

func (l *Ledger) getSignatureStatuses(ctx context.Context, params signatureStatusesParams) (statusesResult, error) {
	result := statusesResult{Context: rpcContext{Slot: l.Slot()}}
	for _, encoded := range params.signatures {
		sig, err := keypair.ParseSignature(encoded)
		if err != nil {
			return statusesResult{}, jrpc2.Errorf(jrpc2.InvalidParams, "%v", err)
		}
		status := l.statusOf(sig)
		if status == nil {
			result.Value = append(result.Value, nil)
			continue
		}
		value := &statusValue{
			Slot:               status.slot,
			ConfirmationStatus: status.level,
		}
		if status.errText != "" {
			value.Err = map[string]interface{}{"InstructionError": status.errText}
		}
		if status.level != ledger.CommitmentFinalized {
			confirmations := uint64(1)
			value.Confirmations = &confirmations
		}
		result.Value = append(result.Value, value)
	}
	return result, nil
}

func (l *Ledger) requestAirdrop(ctx context.Context, params airdropParams) (string, error) {
	account, err := keypair.ParsePublicKey(params.account)
	if err != nil {
		return "", jrpc2.Errorf(jrpc2.InvalidParams, "%v", err)
	}
	return l.credit(account, params.lamports).String(), nil
}

func (l *Ledger) getBalance(ctx context.Context, params accountParams) (balanceResult, error) {
	account, err := keypair.ParsePublicKey(params.account)
	if err != nil {
		return balanceResult{}, jrpc2.Errorf(jrpc2.InvalidParams, "%v", err)
	}
	balance, slot := l.balanceOf(account)
	return balanceResult{Context: rpcContext{Slot: slot}, Value: balance}, nil
}
