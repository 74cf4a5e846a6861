package archiver

// Phase is the position of an archive in its finalize life cycle.
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseFinalizeRequested
	PhaseFinalized
	PhaseOutputClosed
	// PhaseEnded means the consumer read the output up to its end.
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseFinalizeRequested:
		return "finalize_requested"
	case PhaseFinalized:
		return "finalized"
	case PhaseOutputClosed:
		return "output_closed"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

type state struct {
	processing        bool
	finalizeRequested bool
	finalized         bool
	outputClosed      bool
	ended             bool
}

func (s state) phase() Phase {
	switch {
	case s.ended:
		return PhaseEnded
	case s.outputClosed:
		return PhaseOutputClosed
	case s.finalized:
		return PhaseFinalized
	case s.finalizeRequested:
		return PhaseFinalizeRequested
	default:
		return PhaseOpen
	}
}
