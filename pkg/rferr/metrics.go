package rferr

import "sync"

// Metrics tracks error counts by kind, grounded on the teacher's
// pkg/storage/errors.go ErrorMetrics (errors-by-code counters plus a
// bounded recent-errors ring).
type Metrics struct {
	mu          sync.Mutex
	totalErrors int64
	byKind      map[Kind]int64
	recent      []*Error
}

const recentLimit = 100

// NewMetrics returns an empty error-metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{byKind: make(map[Kind]int64)}
}

// Record tallies an error occurrence.
func (m *Metrics) Record(e *Error) {
	if e == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalErrors++
	m.byKind[e.Kind]++
	m.recent = append(m.recent, e)
	if len(m.recent) > recentLimit {
		m.recent = m.recent[1:]
	}
}

// Total returns the total number of recorded errors.
func (m *Metrics) Total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalErrors
}

// CountByKind returns how many errors of kind k were recorded.
func (m *Metrics) CountByKind(k Kind) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byKind[k]
}

// New* constructors build an *Error of the given kind with its fields set,
// mirroring the teacher's per-error-code construction in ClassifyError.

func NewType(expected, actual, arg, field string) *Error {
	return &Error{Kind: KindType, Expected: expected, Actual: actual, Arg: arg, Field: field}
}

func NewArity(need, have int) *Error {
	return &Error{Kind: KindArity, Need: need, Have: have}
}

func NewLength(need, have int, positions []int) *Error {
	return &Error{Kind: KindLength, NeedLen: need, HaveLen: have, Positions: positions}
}

func NewIndex(idx, size int) *Error {
	return &Error{Kind: KindIndex, Idx: idx, Size: size}
}

func NewDomain(arg, field string) *Error {
	return &Error{Kind: KindDomain, Arg: arg, Field: field}
}

func NewValue(symbol string) *Error {
	return &Error{Kind: KindValue, Symbol: symbol}
}

func NewLimit(limit string) *Error {
	return &Error{Kind: KindLimit, Limit: limit}
}

func NewOS(errno int, msg string) *Error {
	return &Error{Kind: KindOS, Errno: errno, OSMsg: msg}
}

func NewParse(context string) *Error {
	return &Error{Kind: KindParse, Context: context}
}

func NewNYI(symbol string) *Error {
	return &Error{Kind: KindNYI, Symbol: symbol}
}

func NewUser(message string) *Error {
	return &Error{Kind: KindUser, Message: message}
}
