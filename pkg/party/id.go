package party

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ID represents the identifier of a server or a client.
// It is stable across rounds.
type ID string

var ErrEmptyID = errors.New("party: empty ID")

// Validate returns an error if the ID is empty or contains surrounding whitespace.
func (id ID) Validate() error {
	if id == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(string(id)) != string(id) {
		return fmt.Errorf("party: ID %q has surrounding whitespace", string(id))
	}
	return nil
}

// Domain implements hash.WriterToWithDomain.
func (ID) Domain() string {
	return "ID"
}

// WriteTo implements io.WriterTo.
func (id ID) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write([]byte(id))
	return int64(n), err
}
