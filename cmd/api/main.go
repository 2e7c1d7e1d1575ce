package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fingrow/fingrow/internal/alerts"
	"github.com/fingrow/fingrow/internal/api/handlers"
	"github.com/fingrow/fingrow/internal/api/middleware"
	"github.com/fingrow/fingrow/internal/auth"
	"github.com/fingrow/fingrow/internal/config"
	"github.com/fingrow/fingrow/internal/finance"
	"github.com/fingrow/fingrow/internal/jobs"
	"github.com/fingrow/fingrow/internal/jobs/inmemory"
	"github.com/fingrow/fingrow/internal/logger"
	"github.com/fingrow/fingrow/internal/recurring"
	mongostore "github.com/fingrow/fingrow/internal/store/mongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	ctx := context.Background()

	db, closeDB, err := mongostore.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer closeDB()

	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure indexes")
	}

	// Repositories
	txRepo := mongostore.NewTransactionRepository(db)
	baselineRepo := mongostore.NewBaselineRepository(db)
	settingsRepo := mongostore.NewSettingsRepository(db)
	userRepo := mongostore.NewUserRepository(db)
	lessonRepo := mongostore.NewLessonRepository(db)
	challengeRepo := mongostore.NewChallengeRepository(db)

	// Alert hub and the ledger that feeds it
	hub := alerts.NewHub(log)
	ledger := finance.NewLedger(txRepo, baselineRepo, hub, log)

	// Token verification
	var verifier auth.Verifier
	if cfg.IsDevelopment() {
		verifier, err = auth.NewDevDecoder(cfg.Environment)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create token decoder")
		}
		log.Warn().Msg("Development token decoding enabled - signatures are NOT verified")
	} else {
		verifier = auth.NewIssuerVerifier(cfg.AuthIssuerURL)
	}

	// Recurring sweep infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, jobStore)
	sweeper := recurring.NewSweeper(txRepo, ledger, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		sweepJob, ok := job.(*jobs.SweepRecurringJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		n, err := sweeper.Sweep(ctx, sweepJob.UserID, time.Now().UTC())
		sweepJob.Materialized = n
		if err != nil {
			log.Error().Err(err).Str("job_id", sweepJob.JobID).Msg("Recurring sweep failed")
			return err
		}

		log.Info().
			Str("job_id", sweepJob.JobID).
			Int("materialized", n).
			Msg("Recurring sweep completed")
		return nil
	}

	go func() {
		log.Info().Msg("Starting sweep worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Sweep worker stopped with error")
		}
	}()

	// Periodic sweep trigger
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if err := jobQueue.PublishSweep(workerCtx, &jobs.SweepRecurringJob{}); err != nil {
					log.Error().Err(err).Msg("Failed to enqueue sweep")
				}
			}
		}
	}()

	// Handlers
	transactionsHandler := handlers.NewTransactionsHandler(txRepo, ledger, log)
	budgetHandler := handlers.NewBudgetHandler(ledger, log)
	settingsHandler := handlers.NewSettingsHandler(settingsRepo, log)
	lessonsHandler := handlers.NewLessonsHandler(lessonRepo, userRepo, log)
	challengesHandler := handlers.NewChallengesHandler(challengeRepo, userRepo, log)
	usersHandler := handlers.NewUsersHandler(userRepo, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)
	alertsHandler := handlers.NewAlertsHandler(hub, log)

	router := chi.NewRouter()

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", transactionsHandler.List)
			r.Post("/", transactionsHandler.Create)
			r.Get("/{id}", transactionsHandler.Get)
			r.Put("/{id}", transactionsHandler.Update)
			r.Delete("/{id}", transactionsHandler.Delete)
			r.Get("/user/{userId}", transactionsHandler.ListByUser)
			r.Get("/user/{userId}/summary", transactionsHandler.Summary)
			r.Get("/user/{userId}/breakdown", transactionsHandler.Breakdown)
		})

		r.Route("/budget", func(r chi.Router) {
			r.Get("/{userId}", budgetHandler.Get)
			r.Post("/{userId}", budgetHandler.Create)
			r.Put("/{userId}", budgetHandler.Update)
			r.Delete("/{userId}", budgetHandler.Delete)
			r.Get("/{userId}/stats", budgetHandler.Stats)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/{userId}", settingsHandler.Get)
			r.Put("/{userId}", settingsHandler.Put)
			r.Patch("/{userId}/{section}", settingsHandler.PatchSection)
		})

		r.Route("/lessons", func(r chi.Router) {
			r.Get("/", lessonsHandler.List)
			r.Post("/", lessonsHandler.Create)
			r.Get("/{id}", lessonsHandler.Get)
			r.Post("/{id}/quiz-submit", lessonsHandler.SubmitQuiz)
		})

		r.Route("/challenges", func(r chi.Router) {
			r.Get("/", challengesHandler.List)
			r.Post("/", challengesHandler.Create)
			r.Post("/{id}/join", challengesHandler.Join)
			r.Post("/{id}/complete", challengesHandler.Complete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", usersHandler.List)
			r.Post("/", usersHandler.Create)
			r.Get("/{id}", usersHandler.Get)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobsHandler.List)
			r.Get("/{id}", jobsHandler.Get)
		})

		r.Get("/alerts/stream", alertsHandler.Stream)
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(cfg.AllowedOrigins)(
					middleware.Auth(verifier, log)(router),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight sweeps
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
