package measurement

import "time"

// SessionSetupSample records the timestamp tuple through which a session
// moves from offer received to answer sent.
type SessionSetupSample struct {
	OfferReceived         time.Time
	TokenValidated        time.Time
	PeerConnectionCreated time.Time
	ConnectionEstablished time.Time
	SessionActivated      time.Time
	DataChannelReady      time.Time
	AnswerSent            time.Time
}

type SessionSetupCollector struct{ buf *RingBuffer }

func NewSessionSetupCollector(capacity int) *SessionSetupCollector {
	return &SessionSetupCollector{buf: NewRingBuffer(capacity)}
}

func (c *SessionSetupCollector) Record(s SessionSetupSample) {
	totalMs := float64(s.AnswerSent.Sub(s.OfferReceived).Microseconds()) / 1000.0
	c.buf.Add(totalMs)
}

func (c *SessionSetupCollector) Stats() Stats { return computeStats(c.buf.Snapshot()) }

// ControlRTTCollector records the monotonic-clock RTT of a ping/pong
// pair from the send and receive timestamps its caller supplies.
type ControlRTTCollector struct{ buf *RingBuffer }

func NewControlRTTCollector(capacity int) *ControlRTTCollector {
	return &ControlRTTCollector{buf: NewRingBuffer(capacity)}
}

// RecordRTT takes the monotonic send/receive nanosecond timestamps
// (t_mono on the ping, time of the matching pong).
func (c *ControlRTTCollector) RecordRTT(sentMonoNs, recvMonoNs int64) {
	rttMs := float64(recvMonoNs-sentMonoNs) / 1e6
	c.buf.Add(rttMs)
}

func (c *ControlRTTCollector) Stats() Stats { return computeStats(c.buf.Snapshot()) }

// VideoLatencyCollector correlates a robot-emitted frame timestamp with
// the operator's decoded-frame presentation time; clock offsets beyond
// 100ms are flagged, not corrected (§9).
type VideoLatencyCollector struct {
	buf              *RingBuffer
	clockOffsetFlags int
}

func NewVideoLatencyCollector(capacity int) *VideoLatencyCollector {
	return &VideoLatencyCollector{buf: NewRingBuffer(capacity)}
}

func (c *VideoLatencyCollector) Record(captureUnixMs, presentationUnixMs int64) {
	latencyMs := float64(presentationUnixMs - captureUnixMs)
	if latencyMs > 100 || latencyMs < -100 {
		c.clockOffsetFlags++
	}
	c.buf.Add(latencyMs)
}

func (c *VideoLatencyCollector) Stats() Stats { return computeStats(c.buf.Snapshot()) }
func (c *VideoLatencyCollector) ClockOffsetFlags() int { return c.clockOffsetFlags }

// RevocationCollector records the §4.13 timestamp tuple, exposing
// Complete for the safety orchestrator to close out an in-flight
// measurement.
type RevocationCollector struct {
	buf     *RingBuffer
	started time.Time
}

func NewRevocationCollector(capacity int) *RevocationCollector {
	return &RevocationCollector{buf: NewRingBuffer(capacity)}
}

func (c *RevocationCollector) Start(t time.Time) { c.started = t }

func (c *RevocationCollector) Complete(now time.Time) {
	if c.started.IsZero() {
		return
	}
	ms := float64(now.Sub(c.started).Microseconds()) / 1000.0
	c.buf.Add(ms)
	c.started = time.Time{}
}

func (c *RevocationCollector) Stats() Stats { return computeStats(c.buf.Snapshot()) }
