package workflow

import (
	"errors"
	"testing"

	"ikk-backend/internal/models"
)

func TestResolveFullLifecycle(t *testing.T) {
	steps := []struct {
		status models.PolicyStatus
		action Action
		role   string
		next   models.PolicyStatus
	}{
		{models.StatusDiajukan, ActionSendToCenter, models.RoleKoordinatorInstansi, models.StatusDiajukan},
		{models.StatusDiajukan, ActionApprove, models.RoleKoordinatorNasional, models.StatusDisetujui},
		{models.StatusDisetujui, ActionAssignAnalyst, models.RoleKoordinatorInstansi, models.StatusProses},
		{models.StatusProses, ActionSubmitAssessment, models.RoleAnalisInstansi, models.StatusMenungguValidasi},
		{models.StatusMenungguValidasi, ActionFinalize, models.RoleVerifikator, models.StatusSelesai},
	}

	for _, step := range steps {
		transition, err := Resolve(step.status, step.action, []string{step.role})
		if err != nil {
			t.Fatalf("Resolve(%s, %s, %s) failed: %v", step.status, step.action, step.role, err)
		}
		if transition.Next != step.next {
			t.Errorf("Resolve(%s, %s) next = %s, want %s", step.status, step.action, transition.Next, step.next)
		}
	}
}

func TestResolveInvalidTransition(t *testing.T) {
	// Finalize is only valid while awaiting validation
	_, err := Resolve(models.StatusDiajukan, ActionFinalize, []string{models.RoleVerifikator})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	// A finished policy has no outgoing transitions
	for _, action := range []Action{ActionSendToCenter, ActionApprove, ActionAssignAnalyst, ActionSubmitAssessment, ActionFinalize} {
		if _, err := Resolve(models.StatusSelesai, action, []string{models.RoleAdmin}); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Resolve(SELESAI, %s) expected ErrInvalidTransition, got %v", action, err)
		}
	}
}

func TestResolveWrongRole(t *testing.T) {
	cases := []struct {
		status models.PolicyStatus
		action Action
		role   string
	}{
		{models.StatusDiajukan, ActionApprove, models.RoleKoordinatorInstansi},
		{models.StatusDiajukan, ActionSendToCenter, models.RoleAnalisInstansi},
		{models.StatusProses, ActionSubmitAssessment, models.RoleVerifikator},
		{models.StatusMenungguValidasi, ActionFinalize, models.RoleKoordinatorNasional},
	}

	for _, tc := range cases {
		if _, err := Resolve(tc.status, tc.action, []string{tc.role}); !errors.Is(err, ErrRoleNotAllowed) {
			t.Errorf("Resolve(%s, %s, %s) expected ErrRoleNotAllowed, got %v", tc.status, tc.action, tc.role, err)
		}
	}
}

func TestResolveReassignmentKeepsStatus(t *testing.T) {
	transition, err := Resolve(models.StatusProses, ActionAssignAnalyst, []string{models.RoleKoordinatorInstansi})
	if err != nil {
		t.Fatalf("re-assignment should be allowed during PROSES: %v", err)
	}
	if transition.Next != models.StatusProses {
		t.Errorf("re-assignment next = %s, want PROSES", transition.Next)
	}
}

func TestActions(t *testing.T) {
	actions := Actions(models.StatusDiajukan, []string{models.RoleKoordinatorInstansi})
	if len(actions) != 1 || actions[0] != ActionSendToCenter {
		t.Errorf("koordinator-instansi actions on DIAJUKAN = %v, want [send-to-center]", actions)
	}

	actions = Actions(models.StatusSelesai, []string{models.RoleAdmin, models.RoleVerifikator})
	if len(actions) != 0 {
		t.Errorf("SELESAI should offer no actions, got %v", actions)
	}
}
