package lifecycle

// Phase is a request's position in the lifecycle state machine.
//
//	Idle ─► Started ─► RouteKnown ─► Completing ─► Finalized
//	  │        │            └──────► Erroring ───┘
//	  │        └─────────────────────► (either)
//	  └─► Skipped
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseStarted
	PhaseRouteKnown
	PhaseCompleting
	PhaseErroring
	PhaseFinalized
	PhaseSkipped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarted:
		return "started"
	case PhaseRouteKnown:
		return "route_known"
	case PhaseCompleting:
		return "completing"
	case PhaseErroring:
		return "erroring"
	case PhaseFinalized:
		return "finalized"
	case PhaseSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (p Phase) Terminal() bool {
	return p == PhaseFinalized || p == PhaseSkipped
}

// active reports whether the request can still complete or fail.
func (p Phase) active() bool {
	return p == PhaseStarted || p == PhaseRouteKnown
}
