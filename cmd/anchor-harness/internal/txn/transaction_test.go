package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
)

func testTransaction(t *testing.T, payer *keypair.Keypair) Transaction {
	t.Helper()
	program := mustKeypair(t)
	msg, err := NewMessage(payer.Public(), testHash(), Instruction{
		ProgramID: program.Public(),
		Data:      []byte{175, 175, 109, 31, 13, 152, 155, 237},
	})
	require.NoError(t, err)
	tx, err := NewTransaction(msg, payer)
	require.NoError(t, err)
	return tx
}

func TestTransactionIDIsFeePayerSignature(t *testing.T) {
	payer := mustKeypair(t)
	tx := testTransaction(t, payer)

	require.Len(t, tx.Signatures, 1)
	assert.Equal(t, tx.Signatures[0], tx.ID())
	assert.False(t, tx.ID().IsZero())
	assert.NoError(t, tx.VerifySignatures())
}

func TestNewTransactionRequiresEverySigner(t *testing.T) {
	payer := mustKeypair(t)
	cosigner := mustKeypair(t)
	program := mustKeypair(t)

	msg, err := NewMessage(payer.Public(), testHash(), Instruction{
		ProgramID: program.Public(),
		Accounts:  []AccountMeta{{Key: cosigner.Public(), IsSigner: true}},
	})
	require.NoError(t, err)

	_, err = NewTransaction(msg, payer)
	assert.ErrorContains(t, err, "no keypair for required signer")

	tx, err := NewTransaction(msg, payer, cosigner)
	require.NoError(t, err)
	assert.Len(t, tx.Signatures, 2)
	assert.NoError(t, tx.VerifySignatures())
}

func TestVerifySignaturesDetectsTampering(t *testing.T) {
	payer := mustKeypair(t)
	tx := testTransaction(t, payer)

	tx.Message.RecentBlockhash[0] ^= 0xff
	assert.ErrorContains(t, tx.VerifySignatures(), "does not verify")

	tx = testTransaction(t, payer)
	tx.Signatures = nil
	assert.ErrorContains(t, tx.VerifySignatures(), "requires")
}

func TestBase64RoundTrip(t *testing.T) {
	payer := mustKeypair(t)
	tx := testTransaction(t, payer)

	decoded, err := DecodeBase64(tx.MarshalBase64())
	require.NoError(t, err)
	assert.Equal(t, tx, decoded)

	_, err = DecodeBase64("%%%")
	assert.ErrorContains(t, err, "base64")
}

func TestDeserializeRejectsTrailingBytes(t *testing.T) {
	payer := mustKeypair(t)
	tx := testTransaction(t, payer)

	raw := append(tx.Serialize(), 0x00)
	_, err := Deserialize(raw)
	assert.ErrorContains(t, err, "trailing bytes")
}

func TestDeserializeRejectsOutOfRangeIndexes(t *testing.T) {
	payer := mustKeypair(t)
	tx := testTransaction(t, payer)

	tx.Message.Instructions[0].ProgramIDIndex = 200
	_, err := Deserialize(tx.Serialize())
	assert.ErrorContains(t, err, "out of range")
}
