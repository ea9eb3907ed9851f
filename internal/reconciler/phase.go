package reconciler

import "github.com/liftme/liftme-go/internal/entities"

// Phase is the client-side UI phase. It is deliberately a separate vocabulary
// from the server status: the client needs phases the server never reports
// (searching with a countdown, arrived before work starts, offline).
type Phase string

const (
	PhaseOffline    Phase = "OFFLINE"
	PhaseIdle       Phase = "IDLE"
	PhaseSearching  Phase = "SEARCHING"
	PhaseAssigned   Phase = "ASSIGNED"
	PhaseAccepted   Phase = "ACCEPTED"
	PhaseArrived    Phase = "ARRIVED"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseCompleted  Phase = "COMPLETED"
)

// MapStatusToPhase derives the UI phase from a server status. It is total:
// unknown or empty statuses map to the role's resting phase and never panic.
// The mapping is one-directional, phases never write back to the server.
//
// ARRIVED does not appear here: the driver advances to it locally and the
// reconciler keeps it sticky while the server still reports ACCEPTED.
func MapStatusToPhase(status entities.Status, role entities.Role) Phase {
	if role == entities.RoleDriver {
		switch status {
		case entities.StatusAccepted:
			return PhaseAccepted
		case entities.StatusInProgress:
			return PhaseInProgress
		case entities.StatusCompleted:
			return PhaseCompleted
		default:
			// NEW means the order is not theirs yet.
			return PhaseIdle
		}
	}

	switch status {
	case entities.StatusNew:
		return PhaseSearching
	case entities.StatusAccepted:
		return PhaseAssigned
	case entities.StatusInProgress:
		return PhaseInProgress
	case entities.StatusCompleted:
		return PhaseCompleted
	default:
		return PhaseIdle
	}
}
