// Package errs is the typed error taxonomy shared by every layer of the
// game pipeline. Low-level transport errors are wrapped with the operation
// name and a Kind; the original cause stays reachable through errors.Unwrap.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for propagation and user-facing messaging.
type Kind int

const (
	KindGame    Kind = iota // generic game failure
	KindVRF                 // commit / reveal / query failure or timeout
	KindChain               // transaction-layer failure
	KindAuth                // missing or invalid identity
	KindSession             // no active session, double start
)

func (k Kind) String() string {
	switch k {
	case KindVRF:
		return "VRFError"
	case KindChain:
		return "ChainError"
	case KindAuth:
		return "AuthError"
	case KindSession:
		return "GameSessionError"
	default:
		return "GameError"
	}
}

// Error is the single concrete error type of the taxonomy.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "vrf.commit"
	Msg  string
	Err  error
	At   time.Time
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: KindVRF}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// New creates an error with no underlying cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, At: time.Now()}
}

// Wrap attaches kind and operation context to err. Wrapping nil returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err, At: time.Now()}
}

// Wrapf is Wrap with an extra message.
func Wrapf(kind Kind, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err, At: time.Now()}
}

// KindOf reports the Kind of the outermost *Error in err's chain, or KindGame.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGame
}

// IsKind reports whether any error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

func IsVRF(err error) bool     { return IsKind(err, KindVRF) }
func IsChain(err error) bool   { return IsKind(err, KindChain) }
func IsAuth(err error) bool    { return IsKind(err, KindAuth) }
func IsSession(err error) bool { return IsKind(err, KindSession) }

// UserMessage maps err to a short, non-technical message for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindVRF:
		return "We couldn't get verified randomness for this round. Please try again."
	case KindChain:
		return "The blockchain transaction didn't go through. Please try again."
	case KindAuth:
		return "Please connect your wallet or sign in to continue."
	case KindSession:
		return "This game session isn't available. Start a new round."
	default:
		return "Something went wrong. Please try again."
	}
}
