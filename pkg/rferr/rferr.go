// Package rferr implements RayforceDB's error model (spec §7): errors are
// ERR-tagged sentinel values whose real context lives in a per-thread
// record rather than inline in the value. The struct shape and the
// metrics helper are grounded on the teacher's
// pkg/storage/errors.go StorageError/ErrorClassifier/ErrorMetrics pattern.
package rferr

import "fmt"

// Kind enumerates the error categories from spec §7.
type Kind int

const (
	KindNone Kind = iota
	KindType
	KindArity
	KindLength
	KindIndex
	KindDomain
	KindValue
	KindLimit
	KindOS
	KindParse
	KindNYI
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "TYPE"
	case KindArity:
		return "ARITY"
	case KindLength:
		return "LENGTH"
	case KindIndex:
		return "INDEX"
	case KindDomain:
		return "DOMAIN"
	case KindValue:
		return "VALUE"
	case KindLimit:
		return "LIMIT"
	case KindOS:
		return "OS"
	case KindParse:
		return "PARSE"
	case KindNYI:
		return "NYI"
	case KindUser:
		return "USER"
	default:
		return "NONE"
	}
}

// Error is the per-kind union payload from spec §7. Only the fields
// relevant to Kind are meaningful; the rest are zero.
type Error struct {
	Kind Kind

	// TYPE
	Expected, Actual string
	Arg, Field       string

	// ARITY
	Need, Have int

	// LENGTH
	NeedLen, HaveLen int
	Positions        []int

	// INDEX
	Idx, Size int

	// DOMAIN — reuses Arg/Field above

	// VALUE
	Symbol string

	// LIMIT
	Limit string

	// OS
	Errno int
	OSMsg string

	// USER
	Message string

	Context string // file:line style context, set at the raising site
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil error>"
	}
	switch e.Kind {
	case KindType:
		return fmt.Sprintf("type: expected %s, got %s (arg %s, field %s)", e.Expected, e.Actual, e.Arg, e.Field)
	case KindArity:
		return fmt.Sprintf("arity: need %d, have %d", e.Need, e.Have)
	case KindLength:
		return fmt.Sprintf("length: need %d, have %d at %v", e.NeedLen, e.HaveLen, e.Positions)
	case KindIndex:
		return fmt.Sprintf("index: %d out of range for length %d", e.Idx, e.Size)
	case KindDomain:
		return fmt.Sprintf("domain: arg %s field %s out of domain", e.Arg, e.Field)
	case KindValue:
		return fmt.Sprintf("value: %s", e.Symbol)
	case KindLimit:
		return fmt.Sprintf("limit: %s exceeded", e.Limit)
	case KindOS:
		return fmt.Sprintf("os: errno %d: %s", e.Errno, e.OSMsg)
	case KindParse:
		return "parse error"
	case KindNYI:
		return fmt.Sprintf("not yet implemented: %s", e.Symbol)
	case KindUser:
		return e.Message
	default:
		return "no error"
	}
}

// Format renders the REPL-visible "** [Ekind] <context>" form from §7.
func (e *Error) Format() string {
	return fmt.Sprintf("** [E%s] %s", e.Kind, e.Error())
}

// Retryable reports whether the error is a transient OS condition that the
// reactor should retry at the IO boundary (spec §7: "transient OS send/
// recv signals (EINTR)").
func (e *Error) Retryable() bool {
	return e.Kind == KindOS && e.Errno == EINTR
}

// EINTR mirrors syscall.EINTR's numeric value without importing syscall
// into this otherwise-portable package; pkg/reactor sets Errno from the
// real syscall.Errno at the raising site.
const EINTR = 4
