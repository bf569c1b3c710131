package share

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/taurusgroup/vhss/pkg/party"
)

// Kind identifies the record carried by an Envelope.
type Kind uint8

const (
	KindShare Kind = iota + 1
	KindNonce
	KindVerifier
	KindPartial
	KindOutcome
)

func (k Kind) String() string {
	switch k {
	case KindShare:
		return "share"
	case KindNonce:
		return "nonce"
	case KindVerifier:
		return "verifier"
	case KindPartial:
		return "partial"
	case KindOutcome:
		return "outcome"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var ErrUnknownKind = errors.New("share: unknown record kind")

// Envelope is the wire form of a record, addressed from one party to another.
type Envelope struct {
	Kind    Kind
	From    party.ID
	To      party.ID
	Payload cbor.RawMessage
}

// encMode sorts map keys so that equal records always encode to equal bytes.
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("share: cbor encoding mode: %v", err))
	}
	return em
}()

// Marshal encodes v with a deterministic encoding.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

func kindOf(record interface{}) (Kind, error) {
	switch record.(type) {
	case *ServerShare:
		return KindShare, nil
	case *NonceRecord:
		return KindNonce, nil
	case *VerifierRecord:
		return KindVerifier, nil
	case *Partial:
		return KindPartial, nil
	case *Outcome:
		return KindOutcome, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnknownKind, record)
	}
}

// Seal wraps a record into an encoded Envelope.
func Seal(from, to party.ID, record interface{}) ([]byte, error) {
	kind, err := kindOf(record)
	if err != nil {
		return nil, err
	}
	payload, err := Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("share.Seal: %s: %w", kind, err)
	}
	return Marshal(&Envelope{Kind: kind, From: from, To: to, Payload: payload})
}

// Open decodes an Envelope and its record. The record is one of *ServerShare,
// *NonceRecord, *VerifierRecord, *Partial or *Outcome.
func Open(data []byte) (*Envelope, interface{}, error) {
	var env Envelope
	if err := Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("share.Open: envelope: %w", err)
	}
	var record interface{}
	switch env.Kind {
	case KindShare:
		record = new(ServerShare)
	case KindNonce:
		record = new(NonceRecord)
	case KindVerifier:
		record = new(VerifierRecord)
	case KindPartial:
		record = new(Partial)
	case KindOutcome:
		record = new(Outcome)
	default:
		return nil, nil, fmt.Errorf("share.Open: %w: %d", ErrUnknownKind, env.Kind)
	}
	if err := Unmarshal(env.Payload, record); err != nil {
		return nil, nil, fmt.Errorf("share.Open: %s: %w", env.Kind, err)
	}
	return &env, record, nil
}
