// Package harness drives one initialization call against a deployed
// program and reports the resulting transaction signature. The flow is a
// single linear sequence: Setup establishes the execution context,
// ResolveProgram looks up the deployed program's callable interface, and
// InvokeDefault submits the designated initialization entry point and
// waits for the ledger to confirm it.
package harness

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/journal"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/ledger"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/txn"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/workspace"
)

// DefaultInstruction is the entry point InvokeDefault submits.
const DefaultInstruction = "initialize"

// Options configure a harness run. RPCURL and WalletPath come from the
// environment (ANCHOR_PROVIDER_URL, ANCHOR_WALLET) when driven by the
// CLI; tests set them directly.
type Options struct {
	RPCURL     string
	WalletPath string

	// WorkspacePath is the workspace root; empty means detect from the
	// enclosing repository.
	WorkspacePath string
	// ProgramName names the program to resolve. Empty is allowed only
	// when the workspace declares exactly one program.
	ProgramName string

	Commitment      ledger.Commitment
	RequestTimeout  time.Duration
	ConfirmTimeout  time.Duration
	ConfirmInterval time.Duration
	// MinNodeVersion gates Setup on the node's reported software version.
	// Empty skips the check.
	MinNodeVersion string

	Logger *logrus.Entry
	// Registry receives the harness invocation metrics when non nil.
	Registry *prometheus.Registry
	// Journal records invocation outcomes when non nil.
	Journal *journal.Journal
}

// Harness owns the execution context for one run and is discarded
// afterwards. Not safe for concurrent use.
type Harness struct {
	opts    Options
	logger  *logrus.Entry
	metrics *metrics

	wallet  *keypair.Keypair
	client  *ledger.Client
	program *workspace.Program
}

func New(opts Options) *Harness {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Harness{
		opts:    opts,
		logger:  logger.WithField("subservice", "harness"),
		metrics: newMetrics(opts.Registry),
	}
}

// Client exposes the ledger client after Setup, for callers that want to
// follow up with their own queries.
func (h *Harness) Client() *ledger.Client {
	return h.client
}

// Program exposes the resolved program handle after ResolveProgram.
func (h *Harness) Program() *workspace.Program {
	return h.program
}

func (h *Harness) Close() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

// Setup establishes the execution context: wallet, RPC connection, and
// the node health and version gate. It fails with *ConfigurationError
// and performs no ledger call beyond the gate itself.
func (h *Harness) Setup(ctx context.Context) error {
	if h.opts.RPCURL == "" {
		return &ConfigurationError{Err: errors.New("no RPC endpoint configured (set ANCHOR_PROVIDER_URL)")}
	}
	if h.opts.WalletPath == "" {
		return &ConfigurationError{Err: errors.New("no wallet configured (set ANCHOR_WALLET)")}
	}
	wallet, err := keypair.Load(h.opts.WalletPath)
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	h.wallet = wallet

	client := ledger.Dial(h.opts.RPCURL, ledger.ClientOptions{
		RequestTimeout: h.opts.RequestTimeout,
		Logger:         h.logger,
	})
	if err := client.GetHealth(ctx); err != nil {
		_ = client.Close()
		return &ConfigurationError{Err: err}
	}
	if h.opts.MinNodeVersion != "" {
		if err := client.CheckNodeVersion(ctx, h.opts.MinNodeVersion); err != nil {
			_ = client.Close()
			return &ConfigurationError{Err: err}
		}
	}
	h.client = client
	h.logger.WithFields(logrus.Fields{
		"endpoint": h.opts.RPCURL,
		"wallet":   wallet.Public(),
	}).Info("execution context established")
	return nil
}

// ResolveProgram looks the configured program up in the workspace
// registry. It fails with *ResolutionError and attempts no ledger call.
func (h *Harness) ResolveProgram() error {
	registry, err := workspace.Open(h.opts.WorkspacePath)
	if err != nil {
		return &ResolutionError{Program: h.opts.ProgramName, Err: err}
	}
	name := h.opts.ProgramName
	if name == "" {
		programs := registry.Programs()
		if len(programs) != 1 {
			return &ResolutionError{Err: errors.Errorf(
				"workspace declares %d programs, specify one by name", len(programs))}
		}
		name = programs[0]
	}
	program, err := registry.Resolve(name)
	if err != nil {
		return &ResolutionError{Program: name, Err: err}
	}
	if _, ok := program.IDL.Instruction(DefaultInstruction); !ok {
		return &ResolutionError{Program: name, Err: errors.Errorf(
			"program declares no %q instruction", DefaultInstruction)}
	}
	h.program = program
	h.logger.WithFields(logrus.Fields{
		"program": program.Name,
		"id":      program.ID,
	}).Info("program resolved")
	return nil
}

// InvokeDefault submits the initialization entry point with no arguments,
// waits for ledger confirmation at the configured commitment, and returns
// the transaction signature. It fails with *RemoteExecutionError; the
// submission happens exactly once.
func (h *Harness) InvokeDefault(ctx context.Context) (keypair.Signature, error) {
	if h.client == nil || h.wallet == nil {
		return keypair.Signature{}, &ConfigurationError{Err: errors.New("setup has not run")}
	}
	if h.program == nil {
		return keypair.Signature{}, &ResolutionError{Err: errors.New("no program resolved")}
	}

	instruction, err := h.program.Instruction(DefaultInstruction, nil, nil)
	if err != nil {
		return keypair.Signature{}, &ResolutionError{Program: h.program.Name, Err: err}
	}
	blockhash, _, err := h.client.LatestBlockhash(ctx)
	if err != nil {
		return keypair.Signature{}, h.failed(ctx, keypair.Signature{}, err)
	}
	message, err := txn.NewMessage(h.wallet.Public(), blockhash, instruction)
	if err != nil {
		return keypair.Signature{}, h.failed(ctx, keypair.Signature{}, err)
	}
	tx, err := txn.NewTransaction(message, h.wallet)
	if err != nil {
		return keypair.Signature{}, h.failed(ctx, keypair.Signature{}, err)
	}

	submittedAt := time.Now()
	h.metrics.submitted.Inc()
	sig, err := h.client.SendTransaction(ctx, tx, ledger.SendOptions{
		PreflightCommitment: h.opts.Commitment,
	})
	if err != nil {
		return keypair.Signature{}, h.failed(ctx, tx.ID(), err)
	}

	slot, err := h.client.AwaitConfirmation(ctx, sig, ledger.ConfirmOptions{
		Commitment:   h.opts.Commitment,
		Timeout:      h.opts.ConfirmTimeout,
		PollInterval: h.opts.ConfirmInterval,
	})
	if err != nil {
		return keypair.Signature{}, h.failed(ctx, sig, err)
	}

	h.metrics.confirmed.Inc()
	h.metrics.confirmation.Observe(time.Since(submittedAt).Seconds())
	h.record(ctx, journal.Record{
		Program:     h.program.Name,
		ProgramID:   h.program.ID.String(),
		Instruction: DefaultInstruction,
		Signature:   sig.String(),
		Slot:        slot,
		Status:      journal.StatusConfirmed,
	})
	h.logger.WithFields(logrus.Fields{
		"signature": sig,
		"slot":      slot,
	}).Info("invocation confirmed")
	return sig, nil
}

// Run drives the full sequence. Each stage either succeeds and hands its
// output to the next, or aborts the run.
func (h *Harness) Run(ctx context.Context) (keypair.Signature, error) {
	if err := h.Setup(ctx); err != nil {
		return keypair.Signature{}, err
	}
	if err := h.ResolveProgram(); err != nil {
		return keypair.Signature{}, err
	}
	return h.InvokeDefault(ctx)
}

func (h *Harness) failed(ctx context.Context, sig keypair.Signature, err error) error {
	h.metrics.failed.Inc()
	rec := journal.Record{
		Instruction: DefaultInstruction,
		Signature:   sig.String(),
		Status:      journal.StatusFailed,
		ErrorText:   err.Error(),
	}
	if h.program != nil {
		rec.Program = h.program.Name
		rec.ProgramID = h.program.ID.String()
	}
	if sig.IsZero() {
		rec.Signature = ""
	}
	h.record(ctx, rec)
	return &RemoteExecutionError{Err: err}
}

func (h *Harness) record(ctx context.Context, rec journal.Record) {
	if err := h.opts.Journal.Append(ctx, rec); err != nil {
		h.logger.WithError(err).Warn("could not journal invocation")
	}
}
