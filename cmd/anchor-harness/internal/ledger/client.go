package ledger

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/mod/semver"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/txn"
)

// Client is a JSON RPC client for a ledger node. All methods issue a
// single request; nothing here retries a submission.
type Client struct {
	url    string
	rpc    *jrpc2.Client
	logger *logrus.Entry
}

type ClientOptions struct {
	// HTTP timeout for individual RPC requests. Zero means no timeout.
	RequestTimeout time.Duration
	Logger         *logrus.Entry
}

// Dial creates a client for the node at url. The connection is lazy; the
// first RPC surfaces unreachable endpoints.
func Dial(url string, opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	ch := jhttp.NewChannel(url, &jhttp.ChannelOptions{
		Client: &http.Client{Timeout: opts.RequestTimeout},
	})
	return &Client{
		url:    url,
		rpc:    jrpc2.NewClient(ch, nil),
		logger: logger.WithField("subservice", "ledger"),
	}
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	if err := c.rpc.CallResult(ctx, method, params, result); err != nil {
		return errors.Wrapf(err, "%s failed", method)
	}
	return nil
}

// GetHealth reports an error unless the node considers itself healthy.
func (c *Client) GetHealth(ctx context.Context) error {
	var status string
	if err := c.call(ctx, "getHealth", nil, &status); err != nil {
		return err
	}
	if status != "ok" {
		return errors.Errorf("node reported health %q", status)
	}
	return nil
}

// NodeVersion is the getVersion response.
type NodeVersion struct {
	SolanaCore string `json:"solana-core"`
	FeatureSet uint32 `json:"feature-set"`
}

func (c *Client) GetVersion(ctx context.Context) (NodeVersion, error) {
	var version NodeVersion
	err := c.call(ctx, "getVersion", nil, &version)
	return version, err
}

// CheckNodeVersion fails when the node runs software older than min
// (a semver string like "1.14.0").
func (c *Client) CheckNodeVersion(ctx context.Context, min string) error {
	version, err := c.GetVersion(ctx)
	if err != nil {
		return err
	}
	have := "v" + strings.TrimPrefix(version.SolanaCore, "v")
	want := "v" + strings.TrimPrefix(min, "v")
	if !semver.IsValid(have) {
		return errors.Errorf("node reported unparseable version %q", version.SolanaCore)
	}
	if semver.Compare(have, want) < 0 {
		return errors.Errorf("node version %s is older than the minimum supported %s", version.SolanaCore, min)
	}
	return nil
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type latestBlockhashResult struct {
	Context rpcContext `json:"context"`
	Value   struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// LatestBlockhash returns a recent blockhash and the last block height at
// which a transaction carrying it is still valid.
func (c *Client) LatestBlockhash(ctx context.Context) (txn.Hash, uint64, error) {
	var result latestBlockhashResult
	params := []interface{}{map[string]interface{}{"commitment": CommitmentFinalized}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return txn.Hash{}, 0, err
	}
	hash, err := txn.ParseHash(result.Value.Blockhash)
	if err != nil {
		return txn.Hash{}, 0, err
	}
	return hash, result.Value.LastValidBlockHeight, nil
}

// SendOptions control a single submission.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment Commitment
}

// SendTransaction submits a signed transaction and returns the signature
// the node acknowledged it under. It does not wait for confirmation.
func (c *Client) SendTransaction(ctx context.Context, tx txn.Transaction, opts SendOptions) (keypair.Signature, error) {
	cfg := map[string]interface{}{
		"encoding":      "base64",
		"skipPreflight": opts.SkipPreflight,
	}
	if opts.PreflightCommitment != "" {
		cfg["preflightCommitment"] = opts.PreflightCommitment
	}
	var acknowledged string
	if err := c.call(ctx, "sendTransaction", []interface{}{tx.MarshalBase64(), cfg}, &acknowledged); err != nil {
		return keypair.Signature{}, err
	}
	sig, err := keypair.ParseSignature(acknowledged)
	if err != nil {
		return keypair.Signature{}, errors.Wrap(err, "node returned a malformed signature")
	}
	if expected := tx.ID(); sig != expected {
		c.logger.WithField("expected", expected).WithField("got", sig).
			Warn("node acknowledged a different signature than submitted")
	}
	return sig, nil
}

// SignatureStatus is one entry of the getSignatureStatuses response value.
// A nil entry means the node does not know the signature.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus Commitment  `json:"confirmationStatus"`
}

type signatureStatusesResult struct {
	Context rpcContext         `json:"context"`
	Value   []*SignatureStatus `json:"value"`
}

func (c *Client) SignatureStatuses(ctx context.Context, sigs ...keypair.Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i, sig := range sigs {
		encoded[i] = sig.String()
	}
	params := []interface{}{encoded, map[string]interface{}{"searchTransactionHistory": true}}
	var result signatureStatusesResult
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) != len(sigs) {
		return nil, errors.Errorf("asked for %d signature statuses, got %d", len(sigs), len(result.Value))
	}
	return result.Value, nil
}

// RequestAirdrop asks the node to fund an account. Only test validators
// honor this.
func (c *Client) RequestAirdrop(ctx context.Context, account keypair.PublicKey, lamports uint64) (keypair.Signature, error) {
	var acknowledged string
	if err := c.call(ctx, "requestAirdrop", []interface{}{account.String(), lamports}, &acknowledged); err != nil {
		return keypair.Signature{}, err
	}
	return keypair.ParseSignature(acknowledged)
}

type balanceResult struct {
	Context rpcContext `json:"context"`
	Value   uint64     `json:"value"`
}

func (c *Client) GetBalance(ctx context.Context, account keypair.PublicKey) (uint64, error) {
	var result balanceResult
	err := c.call(ctx, "getBalance", []interface{}{account.String()}, &result)
	return result.Value, err
}
