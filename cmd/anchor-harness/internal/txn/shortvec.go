package txn

import (
	"bytes"

	"github.com/pkg/errors"
)

// Compact-u16 length prefix used by the ledger wire format: little-endian
// base-128 varint capped at three bytes (max value 0xffff).

func encodeLength(buf *bytes.Buffer, n int) {
	rem := n
	for {
		b := byte(rem & 0x7f)
		rem >>= 7
		if rem == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

func decodeLength(r *bytes.Reader) (int, error) {
	n := 0
	for shift := 0; ; shift += 7 {
		if shift > 14 {
			return 0, errors.New("length prefix is longer than 3 bytes")
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, errors.Wrap(err, "truncated length prefix")
		}
		n |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
	}
	if n > 0xffff {
		return 0, errors.Errorf("length prefix %d overflows u16", n)
	}
	return n, nil
}
