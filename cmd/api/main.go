package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "ikk-backend/docs" // Swagger docs
	"ikk-backend/internal/auth"
	"ikk-backend/internal/autosave"
	"ikk-backend/internal/config"
	"ikk-backend/internal/database"
	"ikk-backend/internal/email"
	"ikk-backend/internal/handlers"
	"ikk-backend/internal/logger"
	"ikk-backend/internal/middleware"
	"ikk-backend/internal/repository"
	"ikk-backend/internal/scheduler"
	"ikk-backend/internal/service"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title IKK API
// @version 1.0
// @description Backend API for the policy quality index assessment platform

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations("./migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	roleRepo := repository.NewRoleRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	auditRepo := repository.NewAuditRepository(db.DB)
	agencyRepo := repository.NewAgencyRepository(db.DB)
	policyRepo := repository.NewPolicyRepository(db.DB)
	questionRepo := repository.NewQuestionRepository(db.DB)
	assessmentRepo := repository.NewAssessmentRepository(db.DB)

	// Initialize services
	authService := auth.NewService(&cfg.JWT)
	emailService := email.NewService(&cfg.Email)
	authSvc := service.NewAuthService(userRepo, roleRepo, sessionRepo, authService, cfg.JWT.Expiration, cfg.JWT.RefreshExpiration)
	policyService := service.NewPolicyService(policyRepo, userRepo)
	catalogService := service.NewCatalogService(questionRepo)
	assessmentService := service.NewAssessmentService(assessmentRepo, policyRepo, questionRepo)

	// Autosave: questionnaire edits are debounced per policy and persisted
	// once the quiet period passes
	debouncer := autosave.NewDebouncer(&cfg.Autosave, assessmentService.ApplySelfPatch)

	// The workflow flushes pending autosaved edits before a submission is
	// evaluated for completeness
	workflowService := service.NewWorkflowService(policyRepo, userRepo, roleRepo, auditRepo, assessmentService, emailService, debouncer)

	// Initialize scheduler
	schedulerService := scheduler.New(&cfg.Scheduler, workflowService, userRepo, emailService)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authService, sessionRepo, userRepo)
	rbacMw := middleware.NewRBACMiddleware(db.DB)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	auditMw := middleware.NewAuditMiddleware(db.DB)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authSvc, auditMw, cfg)
	userHandler := handlers.NewUserHandler(userRepo, roleRepo, authSvc, auditMw)
	agencyHandler := handlers.NewAgencyHandler(agencyRepo, auditMw)
	policyHandler := handlers.NewPolicyHandler(policyService, userRepo, auditMw)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	assessmentHandler := handlers.NewAssessmentHandler(assessmentService, policyService, userRepo, debouncer, auditMw)
	workflowHandler := handlers.NewWorkflowHandler(workflowService, userRepo)
	auditHandler := handlers.NewAuditHandler(auditRepo)

	// Setup router
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)

	// Authenticated auth routes
	mux.Handle("POST /api/v1/auth/logout", authMw.Authenticate(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/v1/auth/me", authMw.Authenticate(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/v1/auth/password", authMw.Authenticate(http.HandlerFunc(authHandler.ChangePassword)))

	// User administration (admin only)
	mux.Handle("GET /api/v1/users",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(userHandler.List),
			),
		),
	)
	mux.Handle("POST /api/v1/users",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(userHandler.Create),
			),
		),
	)
	mux.Handle("GET /api/v1/users/{id}",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(userHandler.Get),
			),
		),
	)
	mux.Handle("PUT /api/v1/users/{id}",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(userHandler.Update),
			),
		),
	)
	mux.Handle("DELETE /api/v1/users/{id}",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(userHandler.Delete),
			),
		),
	)
	mux.Handle("PUT /api/v1/users/{id}/active",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(userHandler.SetActive),
			),
		),
	)
	mux.Handle("POST /api/v1/users/{id}/roles",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(userHandler.AssignRole),
			),
		),
	)
	mux.Handle("DELETE /api/v1/users/{id}/roles/{roleId}",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(userHandler.RemoveRole),
			),
		),
	)
	mux.Handle("GET /api/v1/roles",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(userHandler.ListRoles),
			),
		),
	)

	// Agencies: readable by everyone authenticated, managed by admin
	mux.Handle("GET /api/v1/agencies", authMw.Authenticate(http.HandlerFunc(agencyHandler.List)))
	mux.Handle("GET /api/v1/agencies/{id}", authMw.Authenticate(http.HandlerFunc(agencyHandler.Get)))
	mux.Handle("POST /api/v1/agencies",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(agencyHandler.Create),
			),
		),
	)
	mux.Handle("PUT /api/v1/agencies/{id}",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(agencyHandler.Update),
			),
		),
	)
	mux.Handle("DELETE /api/v1/agencies/{id}",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(agencyHandler.Delete),
			),
		),
	)

	// Questionnaire catalog
	mux.Handle("GET /api/v1/questionnaire", authMw.Authenticate(http.HandlerFunc(catalogHandler.GetQuestionnaire)))
	mux.Handle("GET /api/v1/questionnaire/dimensions", authMw.Authenticate(http.HandlerFunc(catalogHandler.GetByDimension)))

	// Policies: visibility is scoped per role inside the service
	mux.Handle("GET /api/v1/policies", authMw.Authenticate(http.HandlerFunc(policyHandler.List)))
	mux.Handle("GET /api/v1/policies/{id}", authMw.Authenticate(http.HandlerFunc(policyHandler.Get)))
	mux.Handle("POST /api/v1/policies",
		authMw.Authenticate(
			rbacMw.RequireRole("koordinator-instansi")(
				http.HandlerFunc(policyHandler.Create),
			),
		),
	)
	mux.Handle("PUT /api/v1/policies/{id}",
		authMw.Authenticate(
			rbacMw.RequireRole("koordinator-instansi")(
				http.HandlerFunc(policyHandler.Update),
			),
		),
	)
	mux.Handle("DELETE /api/v1/policies/{id}",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("admin", "koordinator-instansi")(
				http.HandlerFunc(policyHandler.Delete),
			),
		),
	)
	mux.Handle("GET /api/v1/policies/analysts",
		authMw.Authenticate(
			rbacMw.RequireRole("koordinator-instansi")(
				http.HandlerFunc(policyHandler.ListAnalysts),
			),
		),
	)

	// Workflow actions
	mux.Handle("POST /api/v1/policies/{id}/send-to-center",
		authMw.Authenticate(
			rbacMw.RequireRole("koordinator-instansi")(
				http.HandlerFunc(workflowHandler.SendToCenter),
			),
		),
	)
	mux.Handle("POST /api/v1/policies/{id}/approve",
		authMw.Authenticate(
			rbacMw.RequireRole("koordinator-nasional")(
				http.HandlerFunc(workflowHandler.Approve),
			),
		),
	)
	mux.Handle("POST /api/v1/policies/{id}/assign-analyst",
		authMw.Authenticate(
			rbacMw.RequireRole("koordinator-instansi")(
				http.HandlerFunc(workflowHandler.AssignAnalyst),
			),
		),
	)
	mux.Handle("POST /api/v1/policies/{id}/submit-assessment",
		authMw.Authenticate(
			rbacMw.RequireRole("analis-instansi")(
				http.HandlerFunc(workflowHandler.SubmitAssessment),
			),
		),
	)
	mux.Handle("POST /api/v1/policies/{id}/finalize",
		authMw.Authenticate(
			rbacMw.RequireRole("verifikator")(
				http.HandlerFunc(workflowHandler.Finalize),
			),
		),
	)
	mux.Handle("GET /api/v1/policies/{id}/actions", authMw.Authenticate(http.HandlerFunc(workflowHandler.AvailableActions)))

	// Assessments: autosaved self-assessment edits and verifier writes
	mux.Handle("GET /api/v1/policies/{id}/assessment", authMw.Authenticate(http.HandlerFunc(assessmentHandler.GetDetail)))
	mux.Handle("GET /api/v1/policies/{id}/assessment/completeness", authMw.Authenticate(http.HandlerFunc(assessmentHandler.Completeness)))
	mux.Handle("PATCH /api/v1/policies/{id}/assessment",
		authMw.Authenticate(
			rbacMw.RequireRole("analis-instansi")(
				http.HandlerFunc(assessmentHandler.Patch),
			),
		),
	)
	mux.Handle("GET /api/v1/policies/{id}/assessment/save-state",
		authMw.Authenticate(
			rbacMw.RequireRole("analis-instansi")(
				http.HandlerFunc(assessmentHandler.SaveState),
			),
		),
	)
	mux.Handle("DELETE /api/v1/policies/{id}/assessment/files/{columnCode}",
		authMw.Authenticate(
			rbacMw.RequireRole("analis-instansi")(
				http.HandlerFunc(assessmentHandler.DeleteSupportingFile),
			),
		),
	)
	mux.Handle("PUT /api/v1/policies/{id}/assessment/verifier/scores",
		authMw.Authenticate(
			rbacMw.RequireRole("verifikator")(
				http.HandlerFunc(assessmentHandler.SaveVerifierScore),
			),
		),
	)
	mux.Handle("PUT /api/v1/policies/{id}/assessment/verifier/notes",
		authMw.Authenticate(
			rbacMw.RequireRole("verifikator")(
				http.HandlerFunc(assessmentHandler.SaveVerifierNote),
			),
		),
	)

	// Audit trail (admin only)
	mux.Handle("GET /api/v1/audit-logs",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(auditHandler.List),
			),
		),
	)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte(`{"status":"unhealthy","database":"error"}`)); err != nil {
				slog.Error("Failed to write health check response", "error", err)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`)); err != nil {
			slog.Error("Failed to write health check response", "error", err)
		}
	})

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Persist questionnaire edits still sitting in the autosave debouncer
	debouncer.Flush()

	slog.Info("Server stopped")
}
