package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/classlab/quizboard/internal/api/http"
	"github.com/classlab/quizboard/internal/audit"
	auth "github.com/classlab/quizboard/internal/auth/middleware"
	"github.com/classlab/quizboard/internal/config"
	"github.com/classlab/quizboard/internal/db"
	"github.com/classlab/quizboard/internal/quiz"
	"github.com/classlab/quizboard/internal/rbac"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := quiz.NewSQLStore(dbh, cfg.DBDriver)

	if cfg.AdminPassHash != "" {
		if err := seedAdmin(ctx, dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
			log.Fatalf("seed admin: %v", err)
		}
	}

	guard := quiz.NewGuard(store)
	recorder := quiz.NewRecorder(store)
	ranker := quiz.NewRanker(store)
	workflow := quiz.NewWorkflow(store)

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT -> subject+role in context -> DB role -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		// Teacher: author and browse
		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", api.CreateQuizHandler(store))
		pr.With(rbac.Require("quiz:list")).
			Get("/quizzes", api.ListQuizzesHandler(store))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{code}", api.GetQuizHandler(store))

		// Student flow
		pr.With(rbac.Require("attempt:submit")).
			Post("/quizzes/{code}/attempts", api.SubmitAttemptHandler(recorder))
		pr.With(rbac.Require("eligibility:check")).
			Get("/quizzes/{code}/eligibility", api.EligibilityHandler(store, guard))
		pr.With(rbac.Require("leaderboard:view")).
			Get("/quizzes/{code}/leaderboard", api.LeaderboardHandler(store, ranker))

		// Retest lifecycle
		pr.With(rbac.Require("retest:create")).
			Post("/retest-requests", api.CreateRetestHandler(workflow))
		pr.With(rbac.Require("retest:resolve")).
			Put("/retest-requests/{requestID}", api.ResolveRetestHandler(workflow))
		pr.With(rbac.Require("retest:list")).
			Get("/retest-requests", api.ListRetestsHandler(workflow))

		// Roster (teacher/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.Post("/users/change-password", api.ChangePasswordHandler(dbh))

		// Admin: audit trail of retest resolutions
		pr.With(rbac.Require("audit:view")).
			Get("/audit", api.AuditLogHandler(audit.NewLog(dbh)))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
