package txn

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
)

// Transaction is a signed message. Signatures line up with the first
// Header.NumRequiredSignatures entries of the account table; the first
// signature is the transaction identifier reported by the ledger.
type Transaction struct {
	Signatures []keypair.Signature
	Message    Message
}

// NewTransaction signs msg with the given keypairs. Every account the
// message marks as a signer must have a matching keypair.
func NewTransaction(msg Message, signers ...*keypair.Keypair) (Transaction, error) {
	required := int(msg.Header.NumRequiredSignatures)
	if required == 0 || required > len(msg.AccountKeys) {
		return Transaction{}, errors.Errorf("message requires %d signatures over %d accounts", required, len(msg.AccountKeys))
	}
	byKey := map[keypair.PublicKey]*keypair.Keypair{}
	for _, kp := range signers {
		byKey[kp.Public()] = kp
	}
	serialized := msg.Serialize()
	tx := Transaction{Message: msg}
	for _, key := range msg.AccountKeys[:required] {
		kp, ok := byKey[key]
		if !ok {
			return Transaction{}, errors.Errorf("no keypair for required signer %s", key)
		}
		tx.Signatures = append(tx.Signatures, kp.Sign(serialized))
	}
	return tx, nil
}

// ID returns the transaction identifier, the fee payer's signature.
func (tx Transaction) ID() keypair.Signature {
	if len(tx.Signatures) == 0 {
		return keypair.Signature{}
	}
	return tx.Signatures[0]
}

func (tx Transaction) Serialize() []byte {
	var buf bytes.Buffer
	encodeLength(&buf, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		buf.Write(sig[:])
	}
	buf.Write(tx.Message.Serialize())
	return buf.Bytes()
}

// MarshalBase64 renders the transaction the way sendTransaction expects it.
func (tx Transaction) MarshalBase64() string {
	return base64.StdEncoding.EncodeToString(tx.Serialize())
}

// DecodeBase64 parses a base64 wire transaction.
func DecodeBase64(s string) (Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Transaction{}, errors.Wrap(err, "transaction is not valid base64")
	}
	return Deserialize(raw)
}

// Deserialize parses a wire transaction.
func Deserialize(raw []byte) (Transaction, error) {
	r := bytes.NewReader(raw)
	numSigs, err := decodeLength(r)
	if err != nil {
		return Transaction{}, err
	}
	var tx Transaction
	for i := 0; i < numSigs; i++ {
		var sig keypair.Signature
		if _, err := io.ReadFull(r, sig[:]); err != nil {
			return Transaction{}, errors.Wrap(err, "truncated signatures")
		}
		tx.Signatures = append(tx.Signatures, sig)
	}
	tx.Message, err = deserializeMessage(r)
	if err != nil {
		return Transaction{}, err
	}
	if r.Len() != 0 {
		return Transaction{}, errors.Errorf("%d trailing bytes after message", r.Len())
	}
	return tx, nil
}

// VerifySignatures checks every signature against its account and the
// serialized message.
func (tx Transaction) VerifySignatures() error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != required {
		return errors.Errorf("transaction has %d signatures, message requires %d", len(tx.Signatures), required)
	}
	if required > len(tx.Message.AccountKeys) {
		return errors.Errorf("message requires %d signatures over %d accounts", required, len(tx.Message.AccountKeys))
	}
	serialized := tx.Message.Serialize()
	for i, sig := range tx.Signatures {
		key := tx.Message.AccountKeys[i]
		if !key.Verify(serialized, sig) {
			return errors.Errorf("signature %d does not verify for account %s", i, key)
		}
	}
	return nil
}
