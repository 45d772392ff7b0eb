package safety

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coriolis-robotics/teleop/internal/wire"
)

type fakeHardware struct {
	err   error
	calls int
}

func (f *fakeHardware) Stop() error {
	f.calls++
	return f.err
}

type fakeStateSender struct {
	last wire.StateMsg
}

func (f *fakeStateSender) SendState(msg wire.StateMsg) error {
	f.last = msg
	return nil
}

type fakeAuditor struct {
	events []wire.AuditEvent
}

func (f *fakeAuditor) Publish(event wire.AuditEvent) {
	f.events = append(f.events, event)
}

type fakeRevocationMeasurement struct {
	completed bool
}

func (f *fakeRevocationMeasurement) Complete(now time.Time) { f.completed = true }

type fakeSessionStopper struct {
	entered int
}

func (f *fakeSessionStopper) EnterSafeStop() { f.entered++ }

func TestOrchestrator_OnSafeStop_HappyPath(t *testing.T) {
	hw := &fakeHardware{}
	sender := &fakeStateSender{}
	rev := &fakeRevocationMeasurement{}
	o := &Orchestrator{
		RobotID:    "robot-1",
		SessionID:  func() string { return "sess-1" },
		Hardware:   hw,
		Sender:     sender,
		Revocation: rev,
	}

	result := o.OnSafeStop(TriggerEStop)

	assert.Equal(t, 1, hw.calls)
	assert.Equal(t, string(wire.RobotStateSafeStop), sender.last.RobotState)
	assert.True(t, rev.completed)
	assert.NoError(t, result.Error)
}

func TestOrchestrator_OnSafeStop_HardwareFailureReportsFailedState(t *testing.T) {
	hw := &fakeHardware{err: errors.New("actuator offline")}
	sender := &fakeStateSender{}
	o := &Orchestrator{Hardware: hw, Sender: sender, SessionID: func() string { return "s1" }}

	result := o.OnSafeStop(TriggerControlLoss)

	assert.Error(t, result.Error)
	assert.Equal(t, string(wire.RobotStateSafeStopFailed), sender.last.RobotState)
}

func TestOrchestrator_OnSafeStop_NoHardwareReturnsUnavailable(t *testing.T) {
	o := &Orchestrator{SessionID: func() string { return "s1" }}

	result := o.OnSafeStop(TriggerRevoked)
	assert.ErrorIs(t, result.Error, ErrHardwareUnavailable)
}

func TestOrchestrator_OnSafeStop_InvalidCmdsEmitsAuditEvent(t *testing.T) {
	hw := &fakeHardware{}
	auditor := &fakeAuditor{}
	o := &Orchestrator{Hardware: hw, Audit: auditor, SessionID: func() string { return "sess-9" }}

	o.OnSafeStop(TriggerInvalidCmds)

	require.Len(t, auditor.events, 1)
	assert.Equal(t, wire.EventInvalidCommandThresh, auditor.events[0].Type)
	assert.Equal(t, "sess-9", auditor.events[0].SessionID)
}

func TestOrchestrator_OnSafeStop_OtherTriggersDoNotEmitInvalidCmdAudit(t *testing.T) {
	hw := &fakeHardware{}
	auditor := &fakeAuditor{}
	o := &Orchestrator{Hardware: hw, Audit: auditor, SessionID: func() string { return "sess-9" }}

	o.OnSafeStop(TriggerEStop)
	assert.Empty(t, auditor.events)
}

func TestOrchestrator_OnSafeStop_NilSessionIDFuncIsSafe(t *testing.T) {
	hw := &fakeHardware{}
	auditor := &fakeAuditor{}
	o := &Orchestrator{Hardware: hw, Audit: auditor}

	assert.NotPanics(t, func() { o.OnSafeStop(TriggerInvalidCmds) })
}

func TestOrchestrator_OnSafeStop_EntersSessionSafeStop(t *testing.T) {
	hw := &fakeHardware{}
	sess := &fakeSessionStopper{}
	o := &Orchestrator{Hardware: hw, Session: sess, SessionID: func() string { return "s1" }}

	o.OnSafeStop(TriggerEStop)

	assert.Equal(t, 1, sess.entered)
}

func TestOrchestrator_OnSafeStop_NilSessionIsSafe(t *testing.T) {
	hw := &fakeHardware{}
	o := &Orchestrator{Hardware: hw, SessionID: func() string { return "s1" }}

	assert.NotPanics(t, func() { o.OnSafeStop(TriggerEStop) })
}

func TestOrchestrator_OnSafeStop_SurfacesHardwareStoppedTimestamp(t *testing.T) {
	hw := &fakeHardware{}
	o := &Orchestrator{Hardware: hw, SessionID: func() string { return "s1" }}

	before := time.Now()
	result := o.OnSafeStop(TriggerEStop)

	assert.False(t, result.HardwareStoppedAt.Before(before))
	assert.False(t, result.HardwareStoppedAt.After(time.Now()))
}
