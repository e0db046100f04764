package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitmentSatisfies(t *testing.T) {
	assert.True(t, CommitmentFinalized.Satisfies(CommitmentProcessed))
	assert.True(t, CommitmentFinalized.Satisfies(CommitmentConfirmed))
	assert.True(t, CommitmentConfirmed.Satisfies(CommitmentConfirmed))
	assert.False(t, CommitmentProcessed.Satisfies(CommitmentConfirmed))
	assert.False(t, CommitmentConfirmed.Satisfies(CommitmentFinalized))
}

func TestCommitmentText(t *testing.T) {
	for _, c := range []Commitment{CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized} {
		text, err := c.MarshalText()
		require.NoError(t, err)
		var parsed Commitment
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, c, parsed)
	}

	var c Commitment
	assert.Error(t, c.UnmarshalText([]byte("tentative")))
}
