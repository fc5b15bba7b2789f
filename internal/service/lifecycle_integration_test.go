package service_test

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"ikk-backend/internal/autosave"
	"ikk-backend/internal/config"
	"ikk-backend/internal/email"
	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
	"ikk-backend/internal/service"
	"ikk-backend/internal/testutil"
)

type services struct {
	policy     *service.PolicyService
	assessment *service.AssessmentService
	workflow   *service.WorkflowService
}

func newServices(db *sql.DB) *services {
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	emailSvc := email.NewService(&config.EmailConfig{Enabled: false})
	assessmentSvc := service.NewAssessmentService(assessmentRepo, policyRepo, questionRepo)

	return &services{
		policy:     service.NewPolicyService(policyRepo, userRepo),
		assessment: assessmentSvc,
		workflow:   service.NewWorkflowService(policyRepo, userRepo, roleRepo, auditRepo, assessmentSvc, emailSvc, nil),
	}
}

// fillSelfAssessment answers every question with the given score and the
// functional position question
func fillSelfAssessment(t *testing.T, svc *services, f *testutil.Fixtures, policyID, analystID uint, score int64) {
	t.Helper()

	scores := make(map[string]int64)
	for _, code := range f.QuestionColumnCodes(t) {
		scores[code] = score
	}
	jf := true

	if err := svc.assessment.ApplySelfPatch(policyID, analystID, autosave.Patch{Scores: scores, JF: &jf}); err != nil {
		t.Fatalf("Failed to fill self-assessment: %v", err)
	}
}

func TestScoreCoexistence(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	svc := newServices(containers.DB)

	analystID := fixtures.Analyst.ID
	policy := fixtures.CreatePolicy(t, "Kebijakan Fiskal 2024", models.StatusProses, true, &analystID)

	// Analyst records a self score
	err := svc.assessment.ApplySelfPatch(policy.ID, analystID, autosave.Patch{
		Scores: map[string]int64{"a1": 20},
	})
	if err != nil {
		t.Fatalf("Failed to apply self patch: %v", err)
	}

	// Policy moves to verification; verifier scores the same question lower
	testutil.MustExec(t, containers.DB, `UPDATE policies SET status = $1 WHERE id = $2`, models.StatusMenungguValidasi, policy.ID)

	verifierRoles := fixtures.RoleNames(t, fixtures.Verifier.ID)
	if err := svc.assessment.SaveVerifierScore(policy.ID, "a1", 10, fixtures.Verifier.ID, verifierRoles); err != nil {
		t.Fatalf("Failed to save verifier score: %v", err)
	}

	// Both scores must coexist in the same row
	var selfScore, verifierScore sql.NullInt64
	err = containers.DB.QueryRow(`
		SELECT self_score, verifier_score FROM assessment_scores
		WHERE policy_id = $1 AND column_code = 'a1'
	`, policy.ID).Scan(&selfScore, &verifierScore)
	if err != nil {
		t.Fatalf("Failed to read score row: %v", err)
	}

	if !selfScore.Valid || selfScore.Int64 != 20 {
		t.Errorf("self score = %v, want 20; the verifier write must not touch it", selfScore)
	}
	if !verifierScore.Valid || verifierScore.Int64 != 10 {
		t.Errorf("verifier score = %v, want 10", verifierScore)
	}

	// And the other way around: a later self write must not touch the verifier score
	testutil.MustExec(t, containers.DB, `UPDATE policies SET status = $1 WHERE id = $2`, models.StatusProses, policy.ID)
	err = svc.assessment.ApplySelfPatch(policy.ID, analystID, autosave.Patch{
		Scores: map[string]int64{"a1": 30},
	})
	if err != nil {
		t.Fatalf("Failed to apply second self patch: %v", err)
	}

	err = containers.DB.QueryRow(`
		SELECT self_score, verifier_score FROM assessment_scores
		WHERE policy_id = $1 AND column_code = 'a1'
	`, policy.ID).Scan(&selfScore, &verifierScore)
	if err != nil {
		t.Fatalf("Failed to re-read score row: %v", err)
	}

	if selfScore.Int64 != 30 {
		t.Errorf("self score = %d, want 30 after update", selfScore.Int64)
	}
	if verifierScore.Int64 != 10 {
		t.Errorf("verifier score = %d, want 10; the self write must not touch it", verifierScore.Int64)
	}
}

func TestReassignmentKeepsRecordedAnswers(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	svc := newServices(containers.DB)

	analystID := fixtures.Analyst.ID
	policy := fixtures.CreatePolicy(t, "Kebijakan Pajak Karbon", models.StatusProses, true, &analystID)

	// First analyst records answers and a note
	err := svc.assessment.ApplySelfPatch(policy.ID, analystID, autosave.Patch{
		Scores: map[string]int64{"a1": 20, "b1": 30},
		Notes:  map[string]string{"a": "catatan perencanaan"},
	})
	if err != nil {
		t.Fatalf("Failed to apply self patch: %v", err)
	}

	// Coordinator hands the policy to a second analyst mid-assessment
	coordRoles := fixtures.RoleNames(t, fixtures.AgencyCoordinator.ID)
	updated, err := svc.workflow.AssignAnalyst(policy.ID, fixtures.SecondAnalyst.ID, fixtures.AgencyCoordinator, coordRoles)
	if err != nil {
		t.Fatalf("Failed to re-assign analyst: %v", err)
	}

	if updated.Status != models.StatusProses {
		t.Errorf("status = %s, want %s; re-assignment must not change the stage", updated.Status, models.StatusProses)
	}
	if updated.AnalystID == nil || *updated.AnalystID != fixtures.SecondAnalyst.ID {
		t.Errorf("analyst_id = %v, want %d", updated.AnalystID, fixtures.SecondAnalyst.ID)
	}

	// The recorded answers survive the hand-over
	var count int
	err = containers.DB.QueryRow(`
		SELECT COUNT(*) FROM assessment_scores WHERE policy_id = $1 AND self_score IS NOT NULL
	`, policy.ID).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count scores: %v", err)
	}
	if count != 2 {
		t.Errorf("recorded answers = %d, want 2 after re-assignment", count)
	}

	// The new analyst may continue editing; the old one may not
	analystRoles := fixtures.RoleNames(t, fixtures.SecondAnalyst.ID)
	if _, err := svc.assessment.AuthorizeSelfAssessment(policy.ID, fixtures.SecondAnalyst, analystRoles); err != nil {
		t.Errorf("new analyst should be authorized: %v", err)
	}

	oldRoles := fixtures.RoleNames(t, fixtures.Analyst.ID)
	if _, err := svc.assessment.AuthorizeSelfAssessment(policy.ID, fixtures.Analyst, oldRoles); err == nil {
		t.Error("old analyst should no longer be authorized")
	}
}

func TestSubmitBlockedUntilComplete(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	svc := newServices(containers.DB)

	analystID := fixtures.Analyst.ID
	policy := fixtures.CreatePolicy(t, "Kebijakan Subsidi Energi", models.StatusProses, true, &analystID)
	analystRoles := fixtures.RoleNames(t, analystID)

	// Partial answers only
	err := svc.assessment.ApplySelfPatch(policy.ID, analystID, autosave.Patch{
		Scores: map[string]int64{"a1": 20, "a2": 10},
	})
	if err != nil {
		t.Fatalf("Failed to apply partial patch: %v", err)
	}

	_, submitErr := svc.workflow.SubmitAssessment(policy.ID, fixtures.Analyst, analystRoles)
	if submitErr == nil {
		t.Fatal("submit should fail while the questionnaire is incomplete")
	}

	completeness, err := svc.assessment.SelfCompleteness(policy.ID)
	if err != nil {
		t.Fatalf("Failed to compute completeness: %v", err)
	}
	if completeness.IsComplete {
		t.Error("completeness should report incomplete")
	}

	// The rejection names how many questions are answered and which are missing
	counts := fmt.Sprintf("%d of %d", completeness.AnsweredQuestions, completeness.TotalQuestions)
	if !strings.Contains(submitErr.Error(), counts) {
		t.Errorf("submit error %q should report %q", submitErr, counts)
	}
	if !strings.Contains(submitErr.Error(), completeness.MissingColumnCodes[0]) {
		t.Errorf("submit error %q should name the missing question %s", submitErr, completeness.MissingColumnCodes[0])
	}
	if completeness.AnsweredQuestions != 2 {
		t.Errorf("answered = %d, want 2", completeness.AnsweredQuestions)
	}
	if len(completeness.MissingColumnCodes) != completeness.TotalQuestions-2 {
		t.Errorf("missing = %d, want %d", len(completeness.MissingColumnCodes), completeness.TotalQuestions-2)
	}

	// All scores but the functional position question still blocks
	scores := make(map[string]int64)
	for _, code := range fixtures.QuestionColumnCodes(t) {
		scores[code] = 20
	}
	if err := svc.assessment.ApplySelfPatch(policy.ID, analystID, autosave.Patch{Scores: scores}); err != nil {
		t.Fatalf("Failed to complete scores: %v", err)
	}

	if _, err := svc.workflow.SubmitAssessment(policy.ID, fixtures.Analyst, analystRoles); err == nil {
		t.Fatal("submit should fail while the functional position question is unanswered")
	}

	jf := false
	if err := svc.assessment.ApplySelfPatch(policy.ID, analystID, autosave.Patch{JF: &jf}); err != nil {
		t.Fatalf("Failed to answer functional position question: %v", err)
	}

	submitted, err := svc.workflow.SubmitAssessment(policy.ID, fixtures.Analyst, analystRoles)
	if err != nil {
		t.Fatalf("submit should succeed on a complete questionnaire: %v", err)
	}
	if submitted.Status != models.StatusMenungguValidasi {
		t.Errorf("status = %s, want %s", submitted.Status, models.StatusMenungguValidasi)
	}
}

func TestFullLifecycle(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	svc := newServices(containers.DB)

	coordRoles := fixtures.RoleNames(t, fixtures.AgencyCoordinator.ID)
	nationalRoles := fixtures.RoleNames(t, fixtures.NationalCoordinator.ID)
	analystRoles := fixtures.RoleNames(t, fixtures.Analyst.ID)
	verifierRoles := fixtures.RoleNames(t, fixtures.Verifier.ID)

	policy := fixtures.CreatePolicy(t, "Kebijakan Digitalisasi Layanan", models.StatusDiajukan, false, nil)

	// Agency coordinator forwards to the center; status stays DIAJUKAN
	forwarded, err := svc.workflow.SendToCenter(policy.ID, fixtures.AgencyCoordinator, coordRoles)
	if err != nil {
		t.Fatalf("send-to-center failed: %v", err)
	}
	if forwarded.Status != models.StatusDiajukan || !forwarded.SentToCenter {
		t.Fatalf("after send: status=%s sent=%t, want DIAJUKAN/true", forwarded.Status, forwarded.SentToCenter)
	}

	// Forwarding twice is rejected
	if _, err := svc.workflow.SendToCenter(policy.ID, fixtures.AgencyCoordinator, coordRoles); err == nil {
		t.Error("second send-to-center should fail")
	}

	// National coordinator approves
	approved, err := svc.workflow.Approve(policy.ID, fixtures.NationalCoordinator, nationalRoles)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != models.StatusDisetujui {
		t.Fatalf("status = %s, want %s", approved.Status, models.StatusDisetujui)
	}

	// Agency coordinator assigns an analyst
	assigned, err := svc.workflow.AssignAnalyst(policy.ID, fixtures.Analyst.ID, fixtures.AgencyCoordinator, coordRoles)
	if err != nil {
		t.Fatalf("assign-analyst failed: %v", err)
	}
	if assigned.Status != models.StatusProses {
		t.Fatalf("status = %s, want %s", assigned.Status, models.StatusProses)
	}

	// Analyst completes and submits the self-assessment
	fillSelfAssessment(t, svc, fixtures, policy.ID, fixtures.Analyst.ID, 20)
	submitted, err := svc.workflow.SubmitAssessment(policy.ID, fixtures.Analyst, analystRoles)
	if err != nil {
		t.Fatalf("submit-assessment failed: %v", err)
	}
	if submitted.Status != models.StatusMenungguValidasi {
		t.Fatalf("status = %s, want %s", submitted.Status, models.StatusMenungguValidasi)
	}

	// Finalizing before the verifier has scored everything is rejected
	if _, err := svc.workflow.Finalize(policy.ID, fixtures.Verifier, verifierRoles); err == nil {
		t.Fatal("finalize should fail before the verification round is complete")
	}

	// Verifier scores every question 30
	for _, code := range fixtures.QuestionColumnCodes(t) {
		if err := svc.assessment.SaveVerifierScore(policy.ID, code, 30, fixtures.Verifier.ID, verifierRoles); err != nil {
			t.Fatalf("verifier score %s failed: %v", code, err)
		}
	}

	finalized, err := svc.workflow.Finalize(policy.ID, fixtures.Verifier, verifierRoles)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if finalized.Status != models.StatusSelesai {
		t.Errorf("status = %s, want %s", finalized.Status, models.StatusSelesai)
	}
	if finalized.FinalScore == nil || *finalized.FinalScore != 30 {
		t.Errorf("final score = %v, want 30 (mean of identical verifier scores)", finalized.FinalScore)
	}

	// The final score comes from the verifier round, not the self scores
	var selfCount int
	err = containers.DB.QueryRow(`
		SELECT COUNT(*) FROM assessment_scores
		WHERE policy_id = $1 AND self_score = 20 AND verifier_score = 30
	`, policy.ID).Scan(&selfCount)
	if err != nil {
		t.Fatalf("Failed to count score rows: %v", err)
	}
	if selfCount == 0 {
		t.Error("score rows should carry both the self and the verifier score")
	}

	// A finished policy accepts no further workflow actions
	if _, err := svc.workflow.Finalize(policy.ID, fixtures.Verifier, verifierRoles); err == nil {
		t.Error("finalize on a SELESAI policy should fail")
	}
}

func TestPolicyDeleteRules(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	svc := newServices(containers.DB)

	adminRoles := fixtures.RoleNames(t, fixtures.Admin.ID)
	creatorRoles := fixtures.RoleNames(t, fixtures.AgencyCoordinator.ID)

	// A finished policy is never hard-deleted, not even by an admin
	analystID := fixtures.Analyst.ID
	finished := fixtures.CreatePolicy(t, "Kebijakan Selesai", models.StatusProses, true, &analystID)
	err := svc.assessment.ApplySelfPatch(finished.ID, analystID, autosave.Patch{
		Scores: map[string]int64{"a1": 20},
	})
	if err != nil {
		t.Fatalf("Failed to record a score: %v", err)
	}
	testutil.MustExec(t, containers.DB, `UPDATE policies SET status = $1 WHERE id = $2`, models.StatusSelesai, finished.ID)

	if err := svc.policy.Delete(finished.ID, fixtures.Admin, adminRoles); err == nil {
		t.Fatal("admin delete of a finished policy should fail")
	}

	var scoreCount int
	err = containers.DB.QueryRow(`SELECT COUNT(*) FROM assessment_scores WHERE policy_id = $1`, finished.ID).Scan(&scoreCount)
	if err != nil {
		t.Fatalf("Failed to count score rows: %v", err)
	}
	if scoreCount != 1 {
		t.Errorf("score rows = %d, want 1; a denied delete must not cascade", scoreCount)
	}

	// Once forwarded, even the creator can no longer delete
	forwarded := fixtures.CreatePolicy(t, "Kebijakan Terkirim", models.StatusDiajukan, true, nil)
	if err := svc.policy.Delete(forwarded.ID, fixtures.AgencyCoordinator, creatorRoles); err == nil {
		t.Error("delete of a forwarded policy should fail")
	}

	// A fellow coordinator of the same agency is not the creator
	draft := fixtures.CreatePolicy(t, "Kebijakan Konsep", models.StatusDiajukan, false, nil)
	otherRoles := fixtures.RoleNames(t, fixtures.SecondCoordinator.ID)
	if err := svc.policy.Delete(draft.ID, fixtures.SecondCoordinator, otherRoles); err == nil {
		t.Error("delete by a coordinator who did not create the policy should fail")
	}

	// The creator deletes their own unforwarded submission
	if err := svc.policy.Delete(draft.ID, fixtures.AgencyCoordinator, creatorRoles); err != nil {
		t.Fatalf("creator delete of an unforwarded policy failed: %v", err)
	}
	var remaining int
	if err := containers.DB.QueryRow(`SELECT COUNT(*) FROM policies WHERE id = $1`, draft.ID).Scan(&remaining); err != nil {
		t.Fatalf("Failed to count policies: %v", err)
	}
	if remaining != 0 {
		t.Error("deleted policy still present")
	}

	// Admins may clean up unforwarded submissions
	stale := fixtures.CreatePolicy(t, "Kebijakan Terbengkalai", models.StatusDiajukan, false, nil)
	if err := svc.policy.Delete(stale.ID, fixtures.Admin, adminRoles); err != nil {
		t.Errorf("admin delete of an unforwarded policy failed: %v", err)
	}
}

func TestFinalScoreRequiresCatalog(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	svc := newServices(containers.DB)

	analystID := fixtures.Analyst.ID
	policy := fixtures.CreatePolicy(t, "Kebijakan Tanpa Kuesioner", models.StatusMenungguValidasi, true, &analystID)

	// An emptied catalog must fail loudly instead of producing a score
	testutil.MustExec(t, containers.DB, `DELETE FROM questions`)

	if _, err := svc.assessment.ComputeFinalScore(policy.ID); err == nil {
		t.Fatal("final score over an empty catalog should fail")
	}
}

func TestPolicyVisibilityByRole(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	svc := newServices(containers.DB)

	// One policy not yet forwarded, one awaiting validation
	local := fixtures.CreatePolicy(t, "Kebijakan Internal", models.StatusDiajukan, false, nil)
	analystID := fixtures.Analyst.ID
	awaiting := fixtures.CreatePolicy(t, "Kebijakan Menunggu", models.StatusMenungguValidasi, true, &analystID)

	// The national coordinator only sees forwarded policies
	nationalRoles := fixtures.RoleNames(t, fixtures.NationalCoordinator.ID)
	if _, err := svc.policy.GetByID(local.ID, fixtures.NationalCoordinator, nationalRoles); err == nil {
		t.Error("national coordinator should not see a policy kept inside the agency")
	}
	if _, err := svc.policy.GetByID(awaiting.ID, fixtures.NationalCoordinator, nationalRoles); err != nil {
		t.Errorf("national coordinator should see a forwarded policy: %v", err)
	}

	// A coordinator of another agency sees neither
	otherRoles := fixtures.RoleNames(t, fixtures.OtherCoordinator.ID)
	if _, err := svc.policy.GetByID(local.ID, fixtures.OtherCoordinator, otherRoles); err == nil {
		t.Error("coordinator of another agency should not see the policy")
	}

	// The verifier only sees policies in or past validation
	verifierRoles := fixtures.RoleNames(t, fixtures.Verifier.ID)
	if _, err := svc.policy.GetByID(local.ID, fixtures.Verifier, verifierRoles); err == nil {
		t.Error("verifier should not see a policy before validation")
	}
	if _, err := svc.policy.GetByID(awaiting.ID, fixtures.Verifier, verifierRoles); err != nil {
		t.Errorf("verifier should see a policy awaiting validation: %v", err)
	}

	// The analyst only sees their own assignments
	analystRoles := fixtures.RoleNames(t, analystID)
	if _, err := svc.policy.GetByID(awaiting.ID, fixtures.Analyst, analystRoles); err != nil {
		t.Errorf("analyst should see their assigned policy: %v", err)
	}
	if _, err := svc.policy.GetByID(local.ID, fixtures.Analyst, analystRoles); err == nil {
		t.Error("analyst should not see an unassigned policy")
	}
}
