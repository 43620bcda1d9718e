// Package rpc wraps chain calls in a bounded retry policy.
//
// Every attempt runs under its own timeout. Failures are classified as
// transient (retried after a fixed delay) or fatal (returned immediately).
package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/sweep/metrics"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	// MaxAttempts bounds the total number of attempts, first one included.
	MaxAttempts int
	Delay       time.Duration
	// CallTimeout bounds a single attempt. Zero disables the per-attempt timeout.
	CallTimeout time.Duration
}

// DefaultRetryConfig mirrors the sweeper defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	Delay:       2 * time.Second,
	CallTimeout: 15 * time.Second,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFatal
)

func (a ErrorAction) String() string {
	if a == ActionFatal {
		return "fatal"
	}
	return "transient"
}

// Do runs fn until it succeeds, fails fatally, or MaxAttempts is reached.
func Do[T any](
	ctx context.Context,
	cfg RetryConfig,
	op string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := call(ctx, cfg.CallTimeout, op, fn)
		if err == nil {
			return result, nil
		}
		// The caller gave up; the attempt's own deadline is a different story.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		lastErr = err
		action := ClassifyError(err)
		metrics.RPCErrorsTotal.WithLabelValues(op, action.String()).Inc()

		if action == ActionFatal {
			return zero, fmt.Errorf("%s: %w: %w", op, domain.ErrRPCFatal, err)
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}

	return zero, fmt.Errorf(
		"%s: %w after %d attempts: %w",
		op, domain.ErrRPCExhausted, attempts, lastErr,
	)
}

func call[T any](
	ctx context.Context,
	timeout time.Duration,
	op string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(op).Inc()
	result, err := fn(ctx)
	metrics.RPCLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return result, err
}

// ClassifyError determines the action for a given error.
// Anything not recognised as fatal is treated as transient.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}

	switch {
	case errors.Is(err, domain.ErrRPCFatal):
		return ActionFatal
	case errors.Is(err, domain.ErrRPCTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED):
		return ActionRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ActionRetry
	}

	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case -32700, -32600, -32601, -32602:
			return ActionFatal
		}
	}

	var httpErr gethrpc.HTTPError
	if errors.As(err, &httpErr) {
		code := httpErr.StatusCode
		if code == 429 || code >= 500 {
			return ActionRetry
		}
		if code >= 400 {
			return ActionFatal
		}
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") ||
		strings.Contains(sLower, "execution reverted") ||
		strings.Contains(sLower, "invalid argument") ||
		strings.Contains(sLower, "method not found") ||
		strings.HasPrefix(sLower, "abi:") {
		return ActionFatal
	}

	// Network, 5xx, rate limits and everything else
	return ActionRetry
}
