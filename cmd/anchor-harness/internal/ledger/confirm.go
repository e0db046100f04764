package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
)

// ErrTransactionFailed marks a signature the ledger executed with an error.
// Polling stops as soon as this is observed.
var ErrTransactionFailed = errors.New("transaction failed on the ledger")

var errNotYetConfirmed = errors.New("not yet confirmed")

// ConfirmOptions control the post-submission confirmation wait.
type ConfirmOptions struct {
	// Commitment the signature must reach.
	Commitment Commitment
	// Timeout for the whole wait.
	Timeout time.Duration
	// PollInterval between status polls.
	PollInterval time.Duration
}

// AwaitConfirmation polls the signature status until it reaches the wanted
// commitment, the ledger reports an execution error, or the timeout
// elapses. The submission itself is never repeated; only the status poll
// runs in a loop.
func (c *Client) AwaitConfirmation(ctx context.Context, sig keypair.Signature, opts ConfirmOptions) (uint64, error) {
	if opts.Commitment == "" {
		opts.Commitment = CommitmentConfirmed
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var confirmedSlot uint64
	poll := func() error {
		statuses, err := c.SignatureStatuses(waitCtx, sig)
		if err != nil {
			// transport hiccups are retried until the deadline
			return err
		}
		status := statuses[0]
		if status == nil {
			return errNotYetConfirmed
		}
		if status.Err != nil {
			return backoff.Permanent(errors.Wrapf(ErrTransactionFailed, "%v", status.Err))
		}
		if !status.ConfirmationStatus.Satisfies(opts.Commitment) {
			return errNotYetConfirmed
		}
		confirmedSlot = status.Slot
		return nil
	}

	constantBackoff := backoff.WithContext(backoff.NewConstantBackOff(opts.PollInterval), waitCtx)
	notify := func(err error, _ time.Duration) {
		if !errors.Is(err, errNotYetConfirmed) {
			c.logger.WithError(err).Debug("confirmation poll failed, will poll again")
		}
	}
	if err := backoff.RetryNotify(poll, constantBackoff, notify); err != nil {
		if errors.Is(err, errNotYetConfirmed) || errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("transaction %s was not confirmed at %s within %s", sig, opts.Commitment, opts.Timeout)
		}
		return 0, err
	}
	return confirmedSlot, nil
}
