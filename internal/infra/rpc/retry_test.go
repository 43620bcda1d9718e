package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sweeper/internal/core/domain"
)

type codeError struct {
	code int
	msg  string
}

func (e codeError) Error() string  { return e.msg }
func (e codeError) ErrorCode() int { return e.code }

var _ gethrpc.Error = codeError{}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, Delay: time.Millisecond, CallTimeout: time.Second}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{errors.New("429 Too Many Requests"), ActionRetry},
		{errors.New("project rate limit exceeded"), ActionRetry},
		{errors.New("connection reset by peer"), ActionRetry},
		{errors.New("timeout"), ActionRetry},
		{errors.New("500 Internal Server Error"), ActionRetry},
		{context.DeadlineExceeded, ActionRetry},
		{fmt.Errorf("read: %w", io.EOF), ActionRetry},
		{fmt.Errorf("dial: %w", syscall.ECONNREFUSED), ActionRetry},
		{timeoutError{}, ActionRetry},
		{fmt.Errorf("wrapped: %w", domain.ErrRPCTransient), ActionRetry},
		{gethrpc.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}, ActionRetry},
		{gethrpc.HTTPError{StatusCode: 503, Status: "503 Service Unavailable"}, ActionRetry},
		{gethrpc.HTTPError{StatusCode: 401, Status: "401 Unauthorized"}, ActionFatal},
		{codeError{code: -32602, msg: "invalid params"}, ActionFatal},
		{codeError{code: -32601, msg: "the method does not exist"}, ActionFatal},
		{codeError{code: -32000, msg: "header not found"}, ActionRetry},
		{errors.New("Invalid JSON-RPC request -32600"), ActionFatal},
		{errors.New("Parse error -32700"), ActionFatal},
		{errors.New("execution reverted: ERC20: transfer amount exceeds balance"), ActionFatal},
		{errors.New("invalid argument 0: hex string without 0x prefix"), ActionFatal},
		{fmt.Errorf("op: %w", domain.ErrRPCFatal), ActionFatal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, ClassifyError(tt.err), "ClassifyError(%q)", tt.err)
	}
}

func TestDo_TwoTimeoutsThenSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), "balance", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, context.DeadlineExceeded
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestDo_AlwaysTransientStopsAtMaxAttempts(t *testing.T) {
	for _, maxAttempts := range []int{1, 2, 3, 5} {
		calls := 0
		_, err := Do(context.Background(), fastConfig(maxAttempts), "balance", func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("connection reset by peer")
		})

		require.ErrorIs(t, err, domain.ErrRPCExhausted)
		assert.Contains(t, err.Error(), "connection reset by peer")
		assert.Equal(t, maxAttempts, calls)
	}
}

func TestDo_FatalSingleAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(5), "balance", func(ctx context.Context) (int, error) {
		calls++
		return 0, codeError{code: -32602, msg: "invalid params"}
	})

	require.ErrorIs(t, err, domain.ErrRPCFatal)
	assert.NotErrorIs(t, err, domain.ErrRPCExhausted)
	assert.Equal(t, 1, calls)
}

func TestDo_PerAttemptTimeout(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, Delay: time.Millisecond, CallTimeout: 10 * time.Millisecond}
	calls := 0
	_, err := Do(context.Background(), cfg, "slow", func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.ErrorIs(t, err, domain.ErrRPCExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestDo_ParentCancelAbortsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 10, Delay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, cfg, "balance", func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("timeout")
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDo_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastConfig(3), "balance", func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
