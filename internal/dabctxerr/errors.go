// Package dabctxerr classifies the error kinds spec.md §7 distinguishes:
// configuration errors are fatal at startup, everything else is logged and
// swallowed by the driver/worker tick loops.
package dabctxerr

import (
	"fmt"
)

// Kind is one of the error categories spec.md §7 names.
type Kind string

const (
	KindConfiguration    Kind = "configuration"
	KindEvaluatorInvalid Kind = "evaluator_invalid"
	KindTransport        Kind = "transport_transient"
	KindQueueCorruption  Kind = "queue_corruption"
	KindPromotionIO      Kind = "promotion_io"
)

// Fatal reports whether errors of this kind must terminate the process.
// Only configuration errors are fatal; every other kind is recoverable
// within a single driver or worker tick.
func (k Kind) Fatal() bool {
	return k == KindConfiguration
}

// Error wraps an underlying cause with a kind, a component tag and an
// operation name, mirroring the teacher's DistributedError without its
// HTTP-facing fields (service/user/request id), which have no analog here.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Cause     error
}

func New(kind Kind, component, operation string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s.%s", e.Kind, e.Component, e.Operation)
	}
	return fmt.Sprintf("%s: %s.%s: %v", e.Kind, e.Component, e.Operation, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Fatal reports whether this error must terminate the process.
func (e *Error) Fatal() bool { return e.Kind.Fatal() }
