package engine

import (
	"context"
	"errors"

	"toolgate/callbuf"
	"toolgate/llm"
)

// Kind is the closed failure taxonomy shared by both request paths, so the
// client-facing behavior is identical regardless of which path produced the
// error. Tool and argument failures are recovered inside the loop and never
// escape the engine; only provider-level failures and cancellations do.
type Kind string

const (
	KindNone            Kind = ""
	KindArgumentParse   Kind = "argument_parse_error"
	KindToolExecution   Kind = "tool_execution_error"
	KindToolTimeout     Kind = "tool_timeout"
	KindProviderError   Kind = "provider_error"
	KindProviderTimeout Kind = "provider_timeout"
	KindCanceled        Kind = "canceled"
)

// Classify maps an error escaping the engine to its taxonomy kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var parseErr *callbuf.ParseError
	if errors.As(err, &parseErr) {
		return KindArgumentParse
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindProviderTimeout
	}
	var providerErr *llm.ProviderError
	if errors.As(err, &providerErr) {
		return KindProviderError
	}
	// Anything else that escapes the loop is a provider-path failure by the
	// propagation policy.
	return KindProviderError
}
