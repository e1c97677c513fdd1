package shell

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"testing"

	"github.com/rileyhilliard/bashkernel/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ignoreInterrupt ignores SIGINT for the rest of the test. signal.Reset
// cannot clear an ignore, so cleanup catches and releases the signal, which
// leaves signal.Ignored false for later tests.
func ignoreInterrupt(t *testing.T) {
	t.Helper()
	signal.Ignore(os.Interrupt)
	t.Cleanup(unignoreInterrupt)
}

func unignoreInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	signal.Stop(ch)
}

func TestSpawn_RestoresIgnoredDisposition(t *testing.T) {
	ignoreInterrupt(t)

	c := NewInterruptController(logger.NewBufferLogger())

	var ignoredDuringSpawn bool
	err := c.Spawn(func() error {
		ignoredDuringSpawn = signal.Ignored(os.Interrupt)
		return nil
	})

	assert.NoError(t, err)
	assert.False(t, ignoredDuringSpawn)
	assert.True(t, signal.Ignored(os.Interrupt))
}

func TestSpawn_RestoresOnFailure(t *testing.T) {
	ignoreInterrupt(t)

	c := NewInterruptController(nil)
	boom := errors.New("exec failed")

	err := c.Spawn(func() error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.True(t, signal.Ignored(os.Interrupt))
}

func TestSpawn_LeavesDefaultAlone(t *testing.T) {
	unignoreInterrupt()
	require.False(t, signal.Ignored(os.Interrupt))
	c := NewInterruptController(nil)

	called := false
	assert.NoError(t, c.Spawn(func() error {
		called = true
		return nil
	}))

	assert.True(t, called)
	assert.False(t, signal.Ignored(os.Interrupt))
}

func TestNotifyContext_StopReleases(t *testing.T) {
	c := NewInterruptController(nil)

	ctx, stop := c.NotifyContext(context.Background())
	assert.NoError(t, ctx.Err())

	stop()
	assert.Error(t, ctx.Err())
}
