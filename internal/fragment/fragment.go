// Package fragment implements the TLS ClientHello fragmenter: it rewrites a
// raw byte buffer as a sequence of short TLS handshake-record envelopes so
// that DPI middleboxes matching SNI over a bounded byte window miss the
// signature, while the handshake stays semantically intact for the origin.
//
// Grounded byte-for-byte on the original Python implementation's
// fragment_data: split at the first NUL byte (the SNI host-name
// terminator), then emit the remainder as records of uniformly random
// length until exhausted.
package fragment

import "encoding/binary"

// recordType and recordVersion are the fixed TLS 1.3-legacy handshake
// envelope bytes every synthesized record carries, regardless of what the
// original record's type/version actually were.
const (
	recordType    = 0x16
	recordVersion = 0x0304
)

// Record is one synthesized TLS record: a literal slice of the input, framed
// with the fixed handshake/TLS-1.3 header and its own length.
type Record struct {
	Payload []byte
}

// Bytes renders the record's wire form: 0x16 0x03 0x04, a 2-byte big-endian
// length, then the payload.
func (r Record) Bytes() []byte {
	out := make([]byte, 5+len(r.Payload))
	out[0] = recordType
	out[1] = byte(recordVersion >> 8)
	out[2] = byte(recordVersion & 0xff)
	binary.BigEndian.PutUint16(out[3:5], uint16(len(r.Payload)))
	copy(out[5:], r.Payload)
	return out
}

// Rand is the minimal PRNG surface the fragmenter needs, satisfied by
// *math/rand.Rand. Production code constructs one per connection; tests
// inject a fixed-sequence fake for deterministic split points.
type Rand interface {
	Intn(n int) int
}

// Split fragments buf into one or more records per the policy:
//
//  1. If buf contains a 0x00 byte, the first record's payload is
//     buf[:i+1] where i is the offset of that byte (this straddles the
//     SNI extension's host-name terminator across a record boundary).
//  2. The remaining bytes are emitted as records of length chosen
//     uniformly in [1, remaining] at each step until none remain.
//
// An empty buf yields no records.
func Split(buf []byte, rng Rand) []Record {
	if len(buf) == 0 {
		return nil
	}

	var records []Record
	data := buf

	if i := indexZero(data); i != -1 {
		records = append(records, Record{Payload: clone(data[:i+1])})
		data = data[i+1:]
	}

	for len(data) > 0 {
		n := len(data)
		if n > 1 {
			n = rng.Intn(len(data)) + 1
		}
		records = append(records, Record{Payload: clone(data[:n])})
		data = data[n:]
	}

	return records
}

// Wire concatenates the wire form of each record, in order.
func Wire(records []Record) []byte {
	var out []byte
	for _, r := range records {
		out = append(out, r.Bytes()...)
	}
	return out
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0x00 {
			return i
		}
	}
	return -1
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
