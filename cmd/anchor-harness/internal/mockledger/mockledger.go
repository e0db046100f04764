// Package mockledger is an in-process stand-in for a local test
// validator. It speaks just enough of the node RPC surface for the
// invocation harness: health, version, blockhashes, transaction
// submission with real signature verification, and signature status
// polling with commitment progression.
package mockledger

import (
	"crypto/rand"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/ledger"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/txn"
)

// Options configure the mock ledger's behavior, including the failure
// modes tests inject.
type Options struct {
	// ProgramIDs the ledger treats as deployed. Submissions that invoke
	// anything else are rejected.
	ProgramIDs []keypair.PublicKey
	// NodeVersion reported by getVersion.
	NodeVersion string
	// StartSlot is the slot the ledger starts at.
	StartSlot uint64

	// Unhealthy makes getHealth report a node behind.
	Unhealthy bool
	// RejectSubmissions makes sendTransaction fail every call.
	RejectSubmissions bool
	// NeverConfirm accepts submissions but freezes their status at
	// processed, so confirmation waits time out.
	NeverConfirm bool
	// ExecutionError, when non empty, reports every submitted
	// transaction as executed with this error.
	ExecutionError string

	Logger *logrus.Entry
}

type sigStatus struct {
	slot    uint64
	level   ledger.Commitment
	errText string
}

// Ledger holds the mock chain state. Safe for concurrent use.
type Ledger struct {
	opts   Options
	logger *logrus.Entry

	mu        sync.Mutex
	slot      uint64
	blockhash txn.Hash
	recent    map[txn.Hash]struct{}
	programs  map[keypair.PublicKey]struct{}
	statuses  map[keypair.Signature]*sigStatus
	balances  map[keypair.PublicKey]uint64
}

func New(opts Options) *Ledger {
	if opts.NodeVersion == "" {
		opts.NodeVersion = "1.18.26"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	l := &Ledger{
		opts:     opts,
		logger:   logger.WithField("subservice", "mockledger"),
		slot:     opts.StartSlot,
		recent:   map[txn.Hash]struct{}{},
		programs: map[keypair.PublicKey]struct{}{},
		statuses: map[keypair.Signature]*sigStatus{},
		balances: map[keypair.PublicKey]uint64{},
	}
	for _, id := range opts.ProgramIDs {
		l.programs[id] = struct{}{}
	}
	l.rotateBlockhash()
	return l
}

// RegisterProgram marks a program id as deployed.
func (l *Ledger) RegisterProgram(id keypair.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[id] = struct{}{}
}

// Slot returns the current slot.
func (l *Ledger) Slot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

// AdvanceSlot moves the chain forward and rotates the current blockhash.
// Previously issued blockhashes stay valid.
func (l *Ledger) AdvanceSlot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot++
	l.rotateBlockhash()
	return l.slot
}

// rotateBlockhash must be called with the lock held (except from New).
func (l *Ledger) rotateBlockhash() {
	var h txn.Hash
	if _, err := rand.Read(h[:]); err != nil {
		panic(err)
	}
	l.blockhash = h
	l.recent[h] = struct{}{}
}

func (l *Ledger) currentBlockhash() (txn.Hash, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockhash, l.slot
}

// acceptTransaction validates a submission the way a validator would
// before queueing it: signature count and validity, recent blockhash,
// and a deployed target program.
func (l *Ledger) acceptTransaction(tx txn.Transaction) error {
	if err := tx.VerifySignatures(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.recent[tx.Message.RecentBlockhash]; !ok {
		return errors.New("blockhash not found")
	}
	for _, ix := range tx.Message.Instructions {
		programID := tx.Message.AccountKeys[ix.ProgramIDIndex]
		if _, ok := l.programs[programID]; !ok {
			return errors.Errorf("attempt to invoke unknown program %s", programID)
		}
	}

	l.slot++
	status := &sigStatus{slot: l.slot, level: ledger.CommitmentProcessed, errText: l.opts.ExecutionError}
	l.statuses[tx.ID()] = status
	return nil
}

// statusOf returns the recorded status and advances its commitment one
// level per poll, mimicking a chain that keeps finalizing behind the
// harness's back.
func (l *Ledger) statusOf(sig keypair.Signature) *sigStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	status, ok := l.statuses[sig]
	if !ok {
		return nil
	}
	snapshot := *status
	if !l.opts.NeverConfirm {
		switch status.level {
		case ledger.CommitmentProcessed:
			status.level = ledger.CommitmentConfirmed
		case ledger.CommitmentConfirmed:
			status.level = ledger.CommitmentFinalized
		}
	}
	return &snapshot
}

func (l *Ledger) credit(account keypair.PublicKey, lamports uint64) keypair.Signature {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += lamports
	l.slot++
	var sig keypair.Signature
	if _, err := rand.Read(sig[:]); err != nil {
		panic(err)
	}
	l.statuses[sig] = &sigStatus{slot: l.slot, level: ledger.CommitmentFinalized}
	return sig
}

func (l *Ledger) balanceOf(account keypair.PublicKey) (uint64, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], l.slot
}
