// Package protocol defines the relay envelope and its newline-delimited
// JSON framing. One line of UTF-8 text is one envelope.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope kinds. Receivers drop envelopes with any other Type value.
const (
	KindJoin       = "join"
	KindLeave      = "leave"
	KindMsg        = "msg"
	KindPM         = "pm"
	KindTyping     = "typing"
	KindStopTyping = "stop_typing"
	KindSys        = "sys"
)

// MaxLineBytes is the default upper bound for one encoded envelope line.
const MaxLineBytes = 65536

// ErrEmptyLine is returned when Decode is given a blank line.
var ErrEmptyLine = errors.New("protocol: empty line")

// Envelope is one routed protocol message. The JSON field names are the
// wire contract; Ts is unix seconds, stamped by the server on
// everything but the initial join.
type Envelope struct {
	Type string `json:"Type"`
	From string `json:"From"`
	To   string `json:"To,omitempty"`
	Text string `json:"Text,omitempty"`
	Ts   int64  `json:"Ts"`
}

// KnownKind reports whether the envelope's Type is one of the
// enumerated kinds.
func (e *Envelope) KnownKind() bool {
	switch e.Type {
	case KindJoin, KindLeave, KindMsg, KindPM, KindTyping, KindStopTyping, KindSys:
		return true
	}
	return false
}

// Encode serializes an envelope to one wire line, trailing newline
// included. encoding/json escapes interior newlines, so the result is
// always exactly one line.
func Encode(e *Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses one wire line into an envelope. Unknown JSON fields are
// ignored so an older server tolerates a newer client. A decode failure
// is recoverable for every caller except the join handshake.
func Decode(line []byte) (*Envelope, error) {
	if len(line) == 0 {
		return nil, ErrEmptyLine
	}
	e := &Envelope{}
	if err := json.Unmarshal(line, e); err != nil {
		return nil, fmt.Errorf("protocol: unmarshal: %w", err)
	}
	return e, nil
}
