package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
)

func mustKeypair(t *testing.T) *keypair.Keypair {
	t.Helper()
	kp, err := keypair.New()
	require.NoError(t, err)
	return kp
}

func testHash() Hash {
	var h Hash
	for i := range h {
		h[i] = byte(i + 1)
	}
	return h
}

func TestNewMessageOrdersAccountTable(t *testing.T) {
	payer := mustKeypair(t)
	signer := mustKeypair(t)
	writable := mustKeypair(t)
	readonly := mustKeypair(t)
	program := mustKeypair(t)

	msg, err := NewMessage(payer.Public(), testHash(), Instruction{
		ProgramID: program.Public(),
		Accounts: []AccountMeta{
			{Key: readonly.Public()},
			{Key: writable.Public(), IsWritable: true},
			{Key: signer.Public(), IsSigner: true},
		},
		Data: []byte{1, 2, 3},
	})
	require.NoError(t, err)

	// writable signers, readonly signers, writable non-signers, readonly
	// non-signers
	require.Equal(t, []keypair.PublicKey{
		payer.Public(),
		signer.Public(),
		writable.Public(),
		readonly.Public(),
		program.Public(),
	}, msg.AccountKeys)

	assert.Equal(t, uint8(2), msg.Header.NumRequiredSignatures)
	assert.Equal(t, uint8(1), msg.Header.NumReadonlySignedAccounts)
	assert.Equal(t, uint8(2), msg.Header.NumReadonlyUnsignedAccounts)

	require.Len(t, msg.Instructions, 1)
	ix := msg.Instructions[0]
	assert.Equal(t, uint8(4), ix.ProgramIDIndex)
	assert.Equal(t, []uint8{3, 2, 1}, ix.AccountIndexes)
	assert.Equal(t, []byte{1, 2, 3}, ix.Data)
}

func TestNewMessageMergesDuplicateReferences(t *testing.T) {
	payer := mustKeypair(t)
	shared := mustKeypair(t)
	program := mustKeypair(t)

	// one readonly reference and one writable reference to the same account
	// must merge into a single writable entry
	msg, err := NewMessage(payer.Public(), testHash(), Instruction{
		ProgramID: program.Public(),
		Accounts: []AccountMeta{
			{Key: shared.Public()},
			{Key: shared.Public(), IsWritable: true},
		},
	})
	require.NoError(t, err)

	require.Equal(t, []keypair.PublicKey{payer.Public(), shared.Public(), program.Public()}, msg.AccountKeys)
	assert.Equal(t, uint8(1), msg.Header.NumRequiredSignatures)
	assert.Equal(t, uint8(1), msg.Header.NumReadonlyUnsignedAccounts)
	assert.Equal(t, []uint8{1, 1}, msg.Instructions[0].AccountIndexes)
}

func TestNewMessageFeePayerStaysFirst(t *testing.T) {
	payer := mustKeypair(t)
	program := mustKeypair(t)

	// the instruction references the fee payer readonly; the merged entry
	// must stay a writable signer at index zero
	msg, err := NewMessage(payer.Public(), testHash(), Instruction{
		ProgramID: program.Public(),
		Accounts:  []AccountMeta{{Key: payer.Public()}},
	})
	require.NoError(t, err)
	assert.Equal(t, payer.Public(), msg.AccountKeys[0])
	assert.Equal(t, uint8(1), msg.Header.NumRequiredSignatures)
	assert.Equal(t, []uint8{0}, msg.Instructions[0].AccountIndexes)
}

func TestNewMessageValidation(t *testing.T) {
	payer := mustKeypair(t)

	_, err := NewMessage(keypair.PublicKey{}, testHash(), Instruction{ProgramID: payer.Public()})
	assert.ErrorContains(t, err, "fee payer")

	_, err = NewMessage(payer.Public(), testHash())
	assert.ErrorContains(t, err, "at least one instruction")
}

func TestMessageWireRoundTrip(t *testing.T) {
	payer := mustKeypair(t)
	account := mustKeypair(t)
	program := mustKeypair(t)

	msg, err := NewMessage(payer.Public(), testHash(), Instruction{
		ProgramID: program.Public(),
		Accounts:  []AccountMeta{{Key: account.Public(), IsWritable: true}},
		Data:      []byte{0xde, 0xad, 0xbe, 0xef},
	})
	require.NoError(t, err)

	tx, err := NewTransaction(msg, payer)
	require.NoError(t, err)

	decoded, err := Deserialize(tx.Serialize())
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures, decoded.Signatures)
	assert.Equal(t, msg, decoded.Message)
}
