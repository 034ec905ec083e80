// Package errs defines the error taxonomy every poolsync component classifies
// failures into: configuration errors surfaced from the builder, and the
// three RPC-origin kinds (Transient, BadRequest, Fatal) that drive the retry
// and failure-isolation policy described by the orchestrator.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel taxonomy members. Use errors.Is against these, or the Is*
// helpers below, rather than type-asserting a concrete error type.
var (
	ErrInvalidConfig    = errors.New("invalid config")
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrTransient        = errors.New("transient rpc error")
	ErrBadRequest       = errors.New("bad rpc request")
	ErrFatal            = errors.New("fatal rpc error")
)

// InvalidConfig returns an InvalidConfig failure described by msg.
func InvalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

// UnsupportedChain returns an UnsupportedChain failure described by msg.
func UnsupportedChain(msg string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedChain, msg)
}

// Transient wraps err, tagging op for the warn-level log line callers emit.
func Transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
}

// BadRequest wraps err as a non-retryable decoding/logic failure.
func BadRequest(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err)
}

// Fatal wraps err as a failure that should abort the current protocol's run.
func Fatal(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrFatal, err)
}

func IsInvalidConfig(err error) bool    { return errors.Is(err, ErrInvalidConfig) }
func IsUnsupportedChain(err error) bool { return errors.Is(err, ErrUnsupportedChain) }
func IsTransient(err error) bool        { return errors.Is(err, ErrTransient) }
func IsBadRequest(err error) bool       { return errors.Is(err, ErrBadRequest) }
func IsFatal(err error) bool            { return errors.Is(err, ErrFatal) }

// Classify maps a raw transport or JSON-RPC error surfaced by the gateway's
// underlying client into the taxonomy. Timeouts, context deadlines and
// rate-limit/5xx style bodies are Transient; DNS, TLS and auth failures are
// Fatal; everything else (malformed responses, reverts, unknown methods) is
// BadRequest.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrBadRequest) || errors.Is(err, ErrFatal) {
		return err // already classified upstream
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient(op, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "rate limit", "too many requests", "429", "502", "503", "504", "connection reset", "broken pipe"):
		return Transient(op, err)
	case containsAny(msg, "no such host", "dns", "certificate", "unauthorized", "forbidden", "401", "403", "x509"):
		return Fatal(op, err)
	default:
		return BadRequest(op, err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
