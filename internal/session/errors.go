// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "errors"

// Kind classifies errors surfaced by the controller.
type Kind int

const (
	// KindTransport covers connection failures, unreadable bodies, non-2xx
	// responses and stalled or aborted streams.
	KindTransport Kind = iota + 1
	// KindProtocol is a payload that failed structural parsing.
	KindProtocol
	// KindServer is an error the service reported inside the stream.
	KindServer
	// KindReconciliation is a failed refetch after a stream ended.
	KindReconciliation
	// KindRequest is a failed conversation operation (load, create, rename, delete, refresh).
	KindRequest
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindServer:
		return "server"
	case KindReconciliation:
		return "reconciliation"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Error is an error surfaced to the user.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Clone returns a copy of e. A nil receiver yields nil.
func (e *Error) Clone() *Error {
	if e == nil {
		return nil
	}
	out := *e
	return &out
}

// Precondition errors returned by Submit.
var (
	ErrEmptyQuestion  = errors.New("question is empty")
	ErrNoConversation = errors.New("no conversation selected")
	ErrSessionBusy    = errors.New("previous answer has not finished")
)

// wrap builds an Error whose message is err's text.
func wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Cause: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
