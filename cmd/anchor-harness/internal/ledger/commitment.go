package ledger

import "fmt"

// Commitment is the confirmation depth a caller waits for.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 0
	case CommitmentConfirmed:
		return 1
	case CommitmentFinalized:
		return 2
	default:
		return -1
	}
}

// Satisfies reports whether a status at commitment c is at least as deep
// as want.
func (c Commitment) Satisfies(want Commitment) bool {
	return c.rank() >= 0 && c.rank() >= want.rank()
}

func (c Commitment) String() string {
	return string(c)
}

func (c Commitment) MarshalText() ([]byte, error) {
	return []byte(c), nil
}

func (c *Commitment) UnmarshalText(text []byte) error {
	switch Commitment(text) {
	case CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized:
		*c = Commitment(text)
		return nil
	default:
		return fmt.Errorf("unknown commitment level: %s", text)
	}
}
