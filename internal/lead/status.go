package lead

import "time"

// ApplyTransition applies the status change implied by logging an interaction
// with the given direction at the given time. Transitions are a strict
// allow-list: NOVO + outbound moves to CONTATADO, CONTATADO + inbound moves
// to RESPONDEU. Every other (status, direction) pair leaves the status
// unchanged and returns false; it is never an error.
//
// First-contact and first-response timestamps are set once and never
// overwritten, so re-triggering a transition is idempotent with respect to
// the timestamp fields.
func ApplyTransition(l *Lead, dir Direction, at time.Time) bool {
	switch {
	case l.Status == StatusNew && dir == DirectionOutbound:
		l.Status = StatusContacted
		if l.FirstContactAt == nil {
			t := at
			l.FirstContactAt = &t
		}
		return true
	case l.Status == StatusContacted && dir == DirectionInbound:
		l.Status = StatusReplied
		if l.FirstResponseAt == nil {
			t := at
			l.FirstResponseAt = &t
		}
		return true
	default:
		return false
	}
}
