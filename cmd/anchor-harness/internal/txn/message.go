package txn

import (
	"bytes"
	"io"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
)

// Hash is a 32 byte ledger blockhash, rendered as base58.
type Hash [32]byte

func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := base58.Decode(s)
	if err != nil {
		return h, errors.Wrapf(err, "invalid blockhash %q", s)
	}
	if len(raw) != len(h) {
		return h, errors.Errorf("invalid blockhash %q: got %d bytes", s, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string {
	return base58.Encode(h[:])
}

// AccountMeta describes how an instruction touches one account.
type AccountMeta struct {
	Key        keypair.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation before account compilation.
type Instruction struct {
	ProgramID keypair.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction references accounts by their index in the message
// account table.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// Message is a legacy-format transaction message.
type Message struct {
	Header          MessageHeader
	AccountKeys     []keypair.PublicKey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

type accountEntry struct {
	meta AccountMeta
}

// NewMessage compiles instructions into a message. The fee payer is always
// the first account and always a writable signer. Duplicate references to
// one account merge their signer/writable bits, and the account table is
// ordered writable signers, readonly signers, writable non-signers,
// readonly non-signers, as the ledger runtime requires.
func NewMessage(feePayer keypair.PublicKey, recentBlockhash Hash, instructions ...Instruction) (Message, error) {
	if feePayer.IsZero() {
		return Message{}, errors.New("fee payer is required")
	}
	if len(instructions) == 0 {
		return Message{}, errors.New("a message needs at least one instruction")
	}

	entries := map[keypair.PublicKey]*accountEntry{}
	ordered := []*accountEntry{}
	upsert := func(meta AccountMeta) {
		if e, ok := entries[meta.Key]; ok {
			e.meta.IsSigner = e.meta.IsSigner || meta.IsSigner
			e.meta.IsWritable = e.meta.IsWritable || meta.IsWritable
			return
		}
		e := &accountEntry{meta: meta}
		entries[meta.Key] = e
		ordered = append(ordered, e)
	}

	upsert(AccountMeta{Key: feePayer, IsSigner: true, IsWritable: true})
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			upsert(meta)
		}
		upsert(AccountMeta{Key: ix.ProgramID})
	}

	classOf := func(m AccountMeta) int {
		switch {
		case m.IsSigner && m.IsWritable:
			return 0
		case m.IsSigner:
			return 1
		case m.IsWritable:
			return 2
		default:
			return 3
		}
	}
	// stable sort by class, preserving first-reference order within a class
	var keys []keypair.PublicKey
	for class := 0; class <= 3; class++ {
		for _, e := range ordered {
			if classOf(e.meta) == class {
				keys = append(keys, e.meta.Key)
			}
		}
	}
	if len(keys) > 256 {
		return Message{}, errors.Errorf("too many accounts (%d)", len(keys))
	}

	index := map[keypair.PublicKey]uint8{}
	var header MessageHeader
	for i, key := range keys {
		index[key] = uint8(i)
		meta := entries[key].meta
		if meta.IsSigner {
			header.NumRequiredSignatures++
			if !meta.IsWritable {
				header.NumReadonlySignedAccounts++
			}
		} else if !meta.IsWritable {
			header.NumReadonlyUnsignedAccounts++
		}
	}

	msg := Message{
		Header:          header,
		AccountKeys:     keys,
		RecentBlockhash: recentBlockhash,
	}
	for _, ix := range instructions {
		compiled := CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			Data:           ix.Data,
		}
		for _, meta := range ix.Accounts {
			compiled.AccountIndexes = append(compiled.AccountIndexes, index[meta.Key])
		}
		msg.Instructions = append(msg.Instructions, compiled)
	}
	return msg, nil
}

// Serialize renders the message in ledger wire format. This is the byte
// string that gets signed.
func (m Message) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(m.Header.NumRequiredSignatures)
	buf.WriteByte(m.Header.NumReadonlySignedAccounts)
	buf.WriteByte(m.Header.NumReadonlyUnsignedAccounts)
	encodeLength(&buf, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		buf.Write(key[:])
	}
	buf.Write(m.RecentBlockhash[:])
	encodeLength(&buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)
		encodeLength(&buf, len(ix.AccountIndexes))
		buf.Write(ix.AccountIndexes)
		encodeLength(&buf, len(ix.Data))
		buf.Write(ix.Data)
	}
	return buf.Bytes()
}

func deserializeMessage(r *bytes.Reader) (Message, error) {
	var msg Message
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return msg, errors.Wrap(err, "truncated message header")
	}
	msg.Header = MessageHeader{header[0], header[1], header[2]}

	numKeys, err := decodeLength(r)
	if err != nil {
		return msg, err
	}
	for i := 0; i < numKeys; i++ {
		var key keypair.PublicKey
		if _, err := io.ReadFull(r, key[:]); err != nil {
			return msg, errors.Wrap(err, "truncated account table")
		}
		msg.AccountKeys = append(msg.AccountKeys, key)
	}
	if _, err := io.ReadFull(r, msg.RecentBlockhash[:]); err != nil {
		return msg, errors.Wrap(err, "truncated blockhash")
	}

	numInstructions, err := decodeLength(r)
	if err != nil {
		return msg, err
	}
	for i := 0; i < numInstructions; i++ {
		var ix CompiledInstruction
		programIDIndex, err := r.ReadByte()
		if err != nil {
			return msg, errors.Wrap(err, "truncated instruction")
		}
		ix.ProgramIDIndex = programIDIndex
		numAccounts, err := decodeLength(r)
		if err != nil {
			return msg, err
		}
		if numAccounts > 0 {
			ix.AccountIndexes = make([]uint8, numAccounts)
			if _, err := io.ReadFull(r, ix.AccountIndexes); err != nil {
				return msg, errors.Wrap(err, "truncated instruction accounts")
			}
		}
		dataLen, err := decodeLength(r)
		if err != nil {
			return msg, err
		}
		if dataLen > 0 {
			ix.Data = make([]byte, dataLen)
			if _, err := io.ReadFull(r, ix.Data); err != nil {
				return msg, errors.Wrap(err, "truncated instruction data")
			}
		}
		for _, idx := range ix.AccountIndexes {
			if int(idx) >= numKeys {
				return msg, errors.Errorf("instruction account index %d out of range", idx)
			}
		}
		if int(ix.ProgramIDIndex) >= numKeys {
			return msg, errors.Errorf("program id index %d out of range", ix.ProgramIDIndex)
		}
		msg.Instructions = append(msg.Instructions, ix)
	}
	return msg, nil
}
