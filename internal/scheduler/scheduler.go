package scheduler

import (
	"log/slog"
	"time"

	"ikk-backend/internal/config"
	"ikk-backend/internal/email"
	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
	"ikk-backend/internal/service"
)

// Scheduler runs periodic background jobs: currently the stage reminder scan
// that nudges the responsible user when a policy sits too long in one stage.
type Scheduler struct {
	config          *config.SchedulerConfig
	workflowService *service.WorkflowService
	userRepo        *repository.UserRepository
	emailSvc        *email.Service
	stop            chan struct{}
	done            chan struct{}
}

// New creates a new scheduler
func New(cfg *config.SchedulerConfig, workflowService *service.WorkflowService, userRepo *repository.UserRepository, emailSvc *email.Service) *Scheduler {
	return &Scheduler{
		config:          cfg,
		workflowService: workflowService,
		userRepo:        userRepo,
		emailSvc:        emailSvc,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start launches the reminder loop. Returns immediately; call Stop to halt.
func (s *Scheduler) Start() {
	if !s.config.EnableStageReminders {
		slog.Info("Stage reminders disabled, scheduler idle")
		close(s.done)
		return
	}

	go s.run()
	slog.Info("Scheduler started",
		"interval", s.config.StageReminderInterval,
		"stale_after", s.config.StaleAfter,
	)
}

// Stop halts the reminder loop and waits for it to finish
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.StageReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sendStageReminders()
		case <-s.stop:
			return
		}
	}
}

// sendStageReminders scans for policies that sat untouched in a stage for
// longer than StaleAfter and emails the user responsible for the next step
func (s *Scheduler) sendStageReminders() {
	stalled, err := s.workflowService.StalledPolicies(s.config.StaleAfter)
	if err != nil {
		slog.Error("Stage reminder scan failed", "error", err)
		return
	}

	if len(stalled) == 0 {
		return
	}

	slog.Info("Sending stage reminders", "stalled_policies", len(stalled))

	for _, policy := range stalled {
		recipient, err := s.responsibleUser(&policy)
		if err != nil {
			slog.Warn("No responsible user for stalled policy", "policy_id", policy.ID, "status", policy.Status, "error", err)
			continue
		}

		daysStalled := int(time.Since(policy.UpdatedAt).Hours() / 24)
		if err := s.emailSvc.SendStageReminderEmail(recipient.Email, recipient.Name, policy.Name, string(policy.Status), daysStalled); err != nil {
			slog.Warn("Failed to send stage reminder", "policy_id", policy.ID, "to", recipient.Email, "error", err)
		}
	}
}

// responsibleUser resolves who should act on a policy in its current stage
func (s *Scheduler) responsibleUser(policy *models.PolicyWithDetails) (*models.User, error) {
	switch policy.Status {
	case models.StatusProses:
		// The analyst owes the self-assessment
		if policy.AnalystID != nil {
			return s.userRepo.GetByID(*policy.AnalystID)
		}
		return s.userRepo.GetByID(policy.CreatedBy)
	default:
		// DIAJUKAN, DISETUJUI and MENUNGGU_VALIDASI all wait on a coordinator
		// or verifier pool; remind the submitting coordinator so they can chase
		return s.userRepo.GetByID(policy.CreatedBy)
	}
}
