package workflow

import (
	"errors"
	"fmt"

	"ikk-backend/internal/models"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in current status")
	ErrRoleNotAllowed    = errors.New("permission denied for this action")
)

// Action is a workflow action a user can perform on a policy
type Action string

const (
	ActionSendToCenter     Action = "send-to-center"
	ActionApprove          Action = "approve"
	ActionAssignAnalyst    Action = "assign-analyst"
	ActionSubmitAssessment Action = "submit-assessment"
	ActionFinalize         Action = "finalize"
)

// Transition describes one edge of the policy lifecycle: who may take it
// and which status the policy ends up in
type Transition struct {
	Roles []string
	Next  models.PolicyStatus
}

type transitionKey struct {
	status models.PolicyStatus
	action Action
}

// transitions is the complete policy lifecycle. Every status change in the
// system goes through this table; there is no other write path for status.
var transitions = map[transitionKey]Transition{
	// Agency coordinator forwards the submission to the national coordinator.
	// The status does not change; the send is recorded on the policy itself.
	{models.StatusDiajukan, ActionSendToCenter}: {
		Roles: []string{models.RoleKoordinatorInstansi},
		Next:  models.StatusDiajukan,
	},
	{models.StatusDiajukan, ActionApprove}: {
		Roles: []string{models.RoleKoordinatorNasional},
		Next:  models.StatusDisetujui,
	},
	{models.StatusDisetujui, ActionAssignAnalyst}: {
		Roles: []string{models.RoleKoordinatorInstansi},
		Next:  models.StatusProses,
	},
	// Re-assignment while the self-assessment is running keeps the status.
	// The new analyst inherits all answers recorded so far.
	{models.StatusProses, ActionAssignAnalyst}: {
		Roles: []string{models.RoleKoordinatorInstansi},
		Next:  models.StatusProses,
	},
	{models.StatusProses, ActionSubmitAssessment}: {
		Roles: []string{models.RoleAnalisInstansi},
		Next:  models.StatusMenungguValidasi,
	},
	{models.StatusMenungguValidasi, ActionFinalize}: {
		Roles: []string{models.RoleVerifikator},
		Next:  models.StatusSelesai,
	},
}

// Resolve looks up the transition for an action in the given status and
// checks that one of the caller's roles may take it
func Resolve(status models.PolicyStatus, action Action, roles []string) (Transition, error) {
	transition, ok := transitions[transitionKey{status, action}]
	if !ok {
		return Transition{}, fmt.Errorf("%w: cannot %s a policy in status %s", ErrInvalidTransition, action, status)
	}

	for _, role := range roles {
		for _, allowed := range transition.Roles {
			if role == allowed {
				return transition, nil
			}
		}
	}

	return Transition{}, fmt.Errorf("%w: %s requires one of %v", ErrRoleNotAllowed, action, transition.Roles)
}

// Actions returns the workflow actions available to the given roles for a
// policy in the given status. Used to drive action buttons in the UI.
func Actions(status models.PolicyStatus, roles []string) []Action {
	var available []Action
	for key, transition := range transitions {
		if key.status != status {
			continue
		}
		for _, role := range roles {
			for _, allowed := range transition.Roles {
				if role == allowed {
					available = append(available, key.action)
				}
			}
		}
	}
	return available
}
