package measurement

// Targets are the NFR-P1..NFR-P4 performance budgets from §9.
type Targets struct {
	SessionSetupP95Ms  float64
	ControlRTTP95Ms    float64
	VideoLatencyP95Ms  float64
	RevocationP95Ms    float64
}

// DefaultTargets mirrors the NFR-P1..NFR-P4 budgets named in §9.
var DefaultTargets = Targets{
	SessionSetupP95Ms: 2000,
	ControlRTTP95Ms:   150,
	VideoLatencyP95Ms: 400,
	RevocationP95Ms:   250,
}

// Report is a point-in-time snapshot across all four collectors, scored
// against a Targets budget.
type Report struct {
	SessionSetup   Stats `json:"session_setup"`
	ControlRTT     Stats `json:"control_rtt"`
	VideoLatency   Stats `json:"video_latency"`
	Revocation     Stats `json:"revocation"`
	Targets        Targets `json:"targets"`
	MeetsTarget    bool    `json:"meets_target"`
	Failures       []string `json:"failures,omitempty"`
}

// Collectors groups the four typed collectors so callers can produce a
// Report without threading each one through individually.
type Collectors struct {
	SessionSetup *SessionSetupCollector
	ControlRTT   *ControlRTTCollector
	VideoLatency *VideoLatencyCollector
	Revocation   *RevocationCollector
}

func NewCollectors(capacity int) *Collectors {
	return &Collectors{
		SessionSetup: NewSessionSetupCollector(capacity),
		ControlRTT:   NewControlRTTCollector(capacity),
		VideoLatency: NewVideoLatencyCollector(capacity),
		Revocation:   NewRevocationCollector(capacity),
	}
}

func (c *Collectors) Report(targets Targets) Report {
	r := Report{
		SessionSetup: c.SessionSetup.Stats(),
		ControlRTT:   c.ControlRTT.Stats(),
		VideoLatency: c.VideoLatency.Stats(),
		Revocation:   c.Revocation.Stats(),
		Targets:      targets,
		MeetsTarget:  true,
	}

	check := func(name string, p95, budget float64, count int) {
		if count == 0 {
			return
		}
		if p95 > budget {
			r.MeetsTarget = false
			r.Failures = append(r.Failures, name)
		}
	}
	check("session_setup", r.SessionSetup.P95, targets.SessionSetupP95Ms, r.SessionSetup.Count)
	check("control_rtt", r.ControlRTT.P95, targets.ControlRTTP95Ms, r.ControlRTT.Count)
	check("video_latency", r.VideoLatency.P95, targets.VideoLatencyP95Ms, r.VideoLatency.Count)
	check("revocation", r.Revocation.P95, targets.RevocationP95Ms, r.Revocation.Count)

	return r
}
