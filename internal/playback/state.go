package playback

import "fmt"

// State is the lifecycle of one item's occupancy of its media surface.
//
//	Idle ──play──▶ SourceSwapping ──surface+source ready──▶ Loading ──canplay──▶ Playing
//	                                                                    Playing ⇄ Waiting
//	any ──stop──▶ Stopped ──▶ Idle
//	any ──error──▶ Errored ──▶ Idle
//
// At most one item is in an active state (SourceSwapping, Loading, Waiting,
// Playing) at any instant. Stopped and Errored are reported to subscribers
// and immediately followed by Idle.
type State int

const (
	StateIdle State = iota
	StateSourceSwapping
	StateLoading
	StateWaiting
	StatePlaying
	StateStopped
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSourceSwapping:
		return "source_swapping"
	case StateLoading:
		return "loading"
	case StateWaiting:
		return "waiting"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateErrored; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown playback state %q", b)
}

// IsActive reports whether the state occupies the exclusive session slot.
func (s State) IsActive() bool {
	switch s {
	case StateSourceSwapping, StateLoading, StateWaiting, StatePlaying:
		return true
	}
	return false
}
