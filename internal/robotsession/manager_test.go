package robotsession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ActivateFromIdleSucceeds(t *testing.T) {
	var activated Info
	m := NewManager(nil, func(info Info) { activated = info })

	err := m.Activate(Info{SessionID: "s1", OperatorID: "op1"})
	require.NoError(t, err)
	assert.True(t, m.IsActive())
	assert.Equal(t, "s1", activated.SessionID)
}

func TestManager_ActivateAfterTerminatedFailsClosed(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Activate(Info{SessionID: "s1"}))
	m.Terminate()

	err := m.Activate(Info{SessionID: "s2"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestManager_TerminateIsIdempotent(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Activate(Info{SessionID: "s1"}))

	m.Terminate()
	assert.Equal(t, StateTerminated, m.State())
	m.Terminate() // second call must not panic or change observable state
	assert.Equal(t, StateTerminated, m.State())
}

func TestManager_EnterSafeStopOnlyFromActive(t *testing.T) {
	m := NewManager(nil, nil)
	m.EnterSafeStop() // no-op from idle
	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.Activate(Info{SessionID: "s1"}))
	m.EnterSafeStop()
	assert.Equal(t, StateSafeStop, m.State())
}

func TestManager_InfoReturnsCopyNotPointer(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Activate(Info{SessionID: "s1"}))

	info1 := m.Info()
	info1.SessionID = "mutated"

	info2 := m.Info()
	assert.Equal(t, "s1", info2.SessionID, "mutating a returned Info must not affect internal state")
}

func TestManager_TouchControlMessageUpdatesInfo(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Activate(Info{SessionID: "s1"}))

	before := m.Info().LastControlMsgAt
	time.Sleep(time.Millisecond)
	m.TouchControlMessage()
	after := m.Info().LastControlMsgAt

	assert.True(t, after.After(before))
}

func TestHasScope(t *testing.T) {
	info := Info{Scope: []string{"teleop:view", "teleop:control"}}
	assert.True(t, HasScope(info, "teleop:control"))
	assert.False(t, HasScope(info, "teleop:estop"))
}
