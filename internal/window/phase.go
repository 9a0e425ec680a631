package window

// Phase is the two-state lifecycle of the buffer for one open document:
// centering on the reader's starting position, then continuous sliding.
// The transition is one-way; only opening a new document resets it.
type Phase int

const (
	// PhaseStartup holds until the reader's active chapter reaches the
	// designated center of the initial window. Incremental shifts are
	// disabled; window changes happen only via full recomputation.
	PhaseStartup Phase = iota

	// PhaseSteady holds thereafter for the life of the document.
	PhaseSteady
)

func (p Phase) String() string {
	switch p {
	case PhaseStartup:
		return "startup"
	case PhaseSteady:
		return "steady"
	default:
		return "unknown"
	}
}

// phaseMachine guards the STARTUP -> STEADY transition.
type phaseMachine struct {
	phase  Phase
	center int // designated center chapter of the initial window
}

func newPhaseMachine(center int) *phaseMachine {
	return &phaseMachine{phase: PhaseStartup, center: center}
}

// observe evaluates the transition for a newly active chapter and reports
// whether the phase changed. Landing at or beyond the center counts the same
// as reaching it by forward paging.
func (m *phaseMachine) observe(active int) bool {
	if m.phase == PhaseStartup && active >= m.center {
		m.phase = PhaseSteady
		return true
	}
	return false
}

func (m *phaseMachine) current() Phase { return m.phase }
