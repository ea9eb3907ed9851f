package reconciler

import (
	"testing"

	"github.com/liftme/liftme-go/internal/entities"
	"github.com/stretchr/testify/assert"
)

func TestMapStatusToPhase(t *testing.T) {
	testCases := []struct {
		name   string
		status entities.Status
		role   entities.Role
		want   Phase
	}{
		{"customer new", entities.StatusNew, entities.RoleCustomer, PhaseSearching},
		{"customer accepted", entities.StatusAccepted, entities.RoleCustomer, PhaseAssigned},
		{"customer in progress", entities.StatusInProgress, entities.RoleCustomer, PhaseInProgress},
		{"customer completed", entities.StatusCompleted, entities.RoleCustomer, PhaseCompleted},
		{"customer unknown", entities.Status("PAUSED"), entities.RoleCustomer, PhaseIdle},
		{"customer empty", entities.Status(""), entities.RoleCustomer, PhaseIdle},
		{"driver new", entities.StatusNew, entities.RoleDriver, PhaseIdle},
		{"driver accepted", entities.StatusAccepted, entities.RoleDriver, PhaseAccepted},
		{"driver in progress", entities.StatusInProgress, entities.RoleDriver, PhaseInProgress},
		{"driver completed", entities.StatusCompleted, entities.RoleDriver, PhaseCompleted},
		{"driver unknown", entities.Status("CANCELLED"), entities.RoleDriver, PhaseIdle},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapStatusToPhase(tc.status, tc.role))
		})
	}
}
