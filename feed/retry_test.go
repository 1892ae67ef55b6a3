package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fatalErr struct{}

func (fatalErr) Error() string { return "fatal" }
func (fatalErr) Fatal() bool   { return true }

func TestLinearRetryPolicyGivesUpAfterMaxAttempts(t *testing.T) {
	p := &LinearRetryPolicy{MaxAttempts: 3, BackoffUnit: time.Millisecond}

	decision, _ := p.Consult(errors.New("boom"), 1)
	assert.Equal(t, Retry, decision)
	decision, _ = p.Consult(errors.New("boom"), 2)
	assert.Equal(t, Retry, decision)
	decision, _ = p.Consult(errors.New("boom"), 3)
	assert.Equal(t, GiveUp, decision)
}

func TestLinearRetryPolicyBackoffIsLinear(t *testing.T) {
	p := &LinearRetryPolicy{MaxAttempts: 12, BackoffUnit: 5 * time.Second}
	_, sleep := p.Consult(errors.New("boom"), 3)
	assert.Equal(t, 15*time.Second, sleep)
}

func TestLinearRetryPolicyBypassesOnFatal(t *testing.T) {
	p := DefaultRetryPolicy()
	decision, _ := p.Consult(fatalErr{}, 1)
	assert.Equal(t, GiveUp, decision)
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	p := &LinearRetryPolicy{MaxAttempts: 5, BackoffUnit: time.Millisecond}
	attempts := 0
	err := Run(context.Background(), p, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	p := &LinearRetryPolicy{MaxAttempts: 100, BackoffUnit: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Run(ctx, p, func() error {
		attempts++
		return errors.New("always fails")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
