package hash

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/zeebo/blake3"
)

// DigestLengthBytes is the size of Sum.
const DigestLengthBytes = 32

// Hash is the hash function we use for fingerprinting records and transcripts.
//
// Internally, this is a wrapper around blake3, but any hash function with
// an easily extendable output would work as well.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash struct, initialized with the given domain separation labels.
func New(domain ...string) *Hash {
	hash := &Hash{h: blake3.New()}
	for _, d := range domain {
		if err := writeWithDomain(hash.h, BytesWithDomain{TheDomain: "label", Bytes: []byte(d)}); err != nil {
			panic(fmt.Sprintf("hash.New: internal hash failure: %v", err))
		}
	}
	return hash
}

// Digest returns a reader for the current output of the function.
//
// This finalizes the current state of the hash, and returns what's
// essentially a stream of random bytes.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns a slice of length DigestLengthBytes resulting from the current hash state.
// If a different length is required, use io.ReadFull(hash.Digest(), out) instead.
func (hash *Hash) Sum() []byte {
	out := make([]byte, DigestLengthBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash.ReadBytes: internal hash failure: %v", err))
	}
	return out
}

// WriteAny takes many different data types and writes them to the hash state.
//
// Currently supported types:
//
//   - []byte
//   - string
//   - int, uint64
//   - *big.Int
//   - hash.WriterToWithDomain
//
// This function will apply its own domain separation for the first types.
// The last type already suggests which domain to use, and this function respects it.
func (hash *Hash) WriteAny(data ...interface{}) error {
	var err error
	for _, d := range data {
		switch t := d.(type) {
		case []byte:
			err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "[]byte", Bytes: t})
		case string:
			err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "string", Bytes: []byte(t)})
		case int:
			err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "int", Bytes: uint64Bytes(uint64(t))})
		case uint64:
			err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "uint64", Bytes: uint64Bytes(t)})
		case *big.Int:
			if t == nil {
				return fmt.Errorf("hash.Hash: write *big.Int: nil")
			}
			// the sign is part of the encoding, so that x and -x differ
			bytes := append([]byte{byte(t.Sign() + 1)}, t.Bytes()...)
			err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "big.Int", Bytes: bytes})
		case WriterToWithDomain:
			err = writeWithDomain(hash.h, t)
		default:
			panic(fmt.Sprintf("hash.Hash: unsupported type %T", d))
		}
		if err != nil {
			return fmt.Errorf("hash.Hash: write %T: %w", d, err)
		}
	}
	return nil
}

// Clone returns a copy of the Hash in its current state.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}

// Fingerprint is a short printable digest of some data.
type Fingerprint [16]byte

// FingerprintOf hashes data under domain, and returns the first bytes of the digest.
func FingerprintOf(domain string, data ...interface{}) (Fingerprint, error) {
	var fp Fingerprint
	h := New(domain)
	if err := h.WriteAny(data...); err != nil {
		return fp, err
	}
	copy(fp[:], h.Sum())
	return fp, nil
}

func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

func uint64Bytes(x uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, x)
	return out
}

// WriterToWithDomain represents a type writing itself, and knowing its domain.
//
// Providing a domain string lets us distinguish the output of different types
// implementing this same interface.
type WriterToWithDomain interface {
	io.WriterTo

	// Domain returns a context string, which should be unique for each implementor
	Domain() string
}

// writeWithDomain writes out `(<domain><length><data>)`.
func writeWithDomain(w io.Writer, object WriterToWithDomain) error {
	// the length prefix on the domain keeps "ab"+"c" and "a"+"bc" apart
	domain := []byte(object.Domain())
	if _, err := w.Write([]byte("(")); err != nil {
		return err
	}
	if _, err := w.Write(uint64Bytes(uint64(len(domain)))); err != nil {
		return err
	}
	if _, err := w.Write(domain); err != nil {
		return err
	}
	if _, err := object.WriteTo(w); err != nil {
		return err
	}
	if _, err := w.Write([]byte(")")); err != nil {
		return err
	}
	return nil
}

// BytesWithDomain is a useful wrapper to annotate some chunk of data with a domain.
type BytesWithDomain struct {
	TheDomain string
	Bytes     []byte
}

// WriteTo implements io.WriterTo, prefixing the data with its length.
func (b BytesWithDomain) WriteTo(w io.Writer) (int64, error) {
	n1, err := w.Write(uint64Bytes(uint64(len(b.Bytes))))
	if err != nil {
		return int64(n1), err
	}
	n2, err := w.Write(b.Bytes)
	return int64(n1 + n2), err
}

// Domain implements WriterToWithDomain.
func (b BytesWithDomain) Domain() string {
	return b.TheDomain
}
