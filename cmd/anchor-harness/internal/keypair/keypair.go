package keypair

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Keypair is an ed25519 signing identity in the format produced by
// `solana-keygen new`: a 64 byte secret key whose second half is the
// public key.
type Keypair struct {
	priv ed25519.PrivateKey
}

// New generates a random keypair. Used by the mock ledger and tests;
// real runs load a funded wallet from disk instead.
func New() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Keypair{priv: priv}, nil
}

// Load reads a wallet file containing a JSON array of 64 bytes.
func Load(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read wallet file")
	}
	var bytes []byte
	if err := json.Unmarshal(raw, &bytes); err != nil {
		return nil, errors.Wrapf(err, "could not parse wallet file %s", path)
	}
	return FromBytes(bytes)
}

// FromBytes builds a keypair from a 64 byte secret key.
func FromBytes(secret []byte) (*Keypair, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("wallet key must be %d bytes, got %d", ed25519.PrivateKeySize, len(secret))
	}
	kp := &Keypair{priv: ed25519.PrivateKey(append([]byte(nil), secret...))}
	// the embedded public key must match the seed, otherwise signatures
	// produced with this key will never verify
	derived := ed25519.NewKeyFromSeed(kp.priv.Seed())
	if !kp.Public().Equals(publicKeyOf(derived)) {
		return nil, errors.New("wallet secret key is inconsistent with its public key")
	}
	return kp, nil
}

func publicKeyOf(priv ed25519.PrivateKey) PublicKey {
	var pk PublicKey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return pk
}

func (kp *Keypair) Public() PublicKey {
	return publicKeyOf(kp.priv)
}

func (kp *Keypair) Sign(message []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(kp.priv, message))
	return sig
}

// Bytes returns the 64 byte secret key, seed followed by public key.
func (kp *Keypair) Bytes() []byte {
	return append([]byte(nil), kp.priv...)
}

// WriteFile writes the keypair in wallet file format: a JSON array of the
// 64 secret key bytes as numbers. json.Marshal on a []byte would emit a
// base64 string the chain tooling cannot read.
func (kp *Keypair) WriteFile(path string) error {
	secret := kp.Bytes()
	nums := make([]int, len(secret))
	for i, b := range secret {
		nums[i] = int(b)
	}
	raw, err := json.Marshal(nums)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// PublicKey is a 32 byte ed25519 public key, rendered as base58. Program
// ids and wallet addresses are both public keys.
type PublicKey [32]byte

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, errors.Wrapf(err, "invalid public key %q", s)
	}
	if len(raw) != len(pk) {
		return pk, errors.Errorf("invalid public key %q: got %d bytes", s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

func (pk PublicKey) Equals(other PublicKey) bool {
	return pk == other
}

// Verify reports whether sig is a valid signature of message by this key.
func (pk PublicKey) Verify(message []byte, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), message, sig[:])
}

func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// Signature is a 64 byte ed25519 signature. The base58 rendering doubles
// as the transaction identifier on the ledger.
type Signature [64]byte

// ParseSignature decodes a base58 transaction signature.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	raw, err := base58.Decode(s)
	if err != nil {
		return sig, errors.Wrapf(err, "invalid signature %q", s)
	}
	if len(raw) != len(sig) {
		return sig, errors.Errorf("invalid signature %q: got %d bytes", s, len(raw))
	}
	copy(sig[:], raw)
	return sig, nil
}

func (sig Signature) String() string {
	return base58.Encode(sig[:])
}

func (sig Signature) IsZero() bool {
	return sig == Signature{}
}

func (sig Signature) MarshalText() ([]byte, error) {
	return []byte(sig.String()), nil
}

func (sig *Signature) UnmarshalText(text []byte) error {
	parsed, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*sig = parsed
	return nil
}
