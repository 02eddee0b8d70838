package exam

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

func TestExitGuardPassesThroughWhenDisarmed(t *testing.T) {
	g := NewExitGuard(newFakeClock(), logger.New("error"), nil)

	intent, blocked := g.Request("/dashboard")
	assert.False(t, blocked)
	assert.Nil(t, intent)
}

func TestExitGuardParksRequestWhileArmed(t *testing.T) {
	g := NewExitGuard(newFakeClock(), logger.New("error"), nil)
	g.Arm()

	intent, blocked := g.Request("/dashboard")
	require.True(t, blocked)
	require.NotNil(t, intent)
	assert.Equal(t, "/dashboard", intent.Target)
	assert.NotEqual(t, uuid.Nil, intent.ID)
}

func TestExitGuardConfirmRunsExitCallbackThenReleases(t *testing.T) {
	exited := 0
	g := NewExitGuard(newFakeClock(), logger.New("error"), func(_ context.Context) error {
		exited++

		return nil
	})
	g.Arm()

	intent, blocked := g.Request("/dashboard")
	require.True(t, blocked)

	target, err := g.Confirm(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", target)
	assert.Equal(t, 1, exited)

	// Exit was allowed; later requests pass through.
	_, blocked = g.Request("/elsewhere")
	assert.False(t, blocked)
}

func TestExitGuardConfirmSurvivesCallbackFailure(t *testing.T) {
	g := NewExitGuard(newFakeClock(), logger.New("error"), func(_ context.Context) error {
		return errors.New("abandon failed")
	})
	g.Arm()

	intent, _ := g.Request("/dashboard")

	// The user already decided to leave; the navigation resolves anyway.
	target, err := g.Confirm(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", target)
}

func TestExitGuardCancelKeepsGuardArmed(t *testing.T) {
	g := NewExitGuard(newFakeClock(), logger.New("error"), nil)
	g.Arm()

	intent, _ := g.Request("/dashboard")
	require.NoError(t, g.Cancel(intent.ID))

	// Still armed: the next request parks again.
	_, blocked := g.Request("/dashboard")
	assert.True(t, blocked)
}

func TestExitGuardRejectsUnknownIntent(t *testing.T) {
	g := NewExitGuard(newFakeClock(), logger.New("error"), nil)
	g.Arm()

	_, _ = g.Request("/dashboard")

	_, err := g.Confirm(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)

	assert.ErrorIs(t, g.Cancel(uuid.New()), errs.ErrRecordNotFound)
}

func TestExitGuardNewerRequestReplacesOlder(t *testing.T) {
	g := NewExitGuard(newFakeClock(), logger.New("error"), nil)
	g.Arm()

	first, _ := g.Request("/dashboard")
	second, _ := g.Request("/settings")

	_, err := g.Confirm(context.Background(), first.ID)
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)

	target, err := g.Confirm(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "/settings", target)
}
