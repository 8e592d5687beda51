package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestWaitForShutdownOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := WaitForShutdown(ctx, zaptest.NewLogger(t), func() error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestWaitForShutdownReturnsShutdownError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("close failed")
	err := WaitForShutdown(ctx, nil, func() error { return boom })
	assert.ErrorIs(t, err, boom)
}
