package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"streakTracker/internal/config"
	"streakTracker/internal/handlers"
	"streakTracker/internal/logger"
	"streakTracker/internal/middleware"
	"streakTracker/internal/service"
	"streakTracker/internal/streak"
	"streakTracker/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	service   *service.TaskService
	sweep     *worker.MidnightSweep
	shutdowns []func() // run in reverse order on shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init opens the store and wires the service, the sweep and the router. It
// does not start listening.
func (a *App) Init(ctx context.Context) (*App, error) {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: flushing logs")
		logger.Sync()
	})

	store, err := openBackend(ctx, a.config)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: closing repository")
		store.close()
	})

	zones := streak.NewZones(a.config.Streak.DefaultTimezone)
	svc := service.NewTaskService(store.tasks, store.users, store.kind, service.WithZones(zones))
	a.service = &svc

	reconciler := streak.NewReconciler(store.tasks, store.users, zones)
	parallelism := a.config.Sweep.Parallelism
	a.sweep = worker.NewMidnightSweep(store.users, reconciler, zones, a.config.Window(), &parallelism)

	a.router = a.routes()
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("App: initialized",
		zap.String("repository", string(store.kind)),
		zap.String("addr", a.server.Addr))
	return a, nil
}

func (a *App) routes() *chi.Mux {
	taskHandler := handlers.NewTaskHandler(a.service)
	cronHandler := handlers.NewCronHandler(a.sweep)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Timeout(a.config.Server.RequestTimeout))
	r.Use(middleware.RateLimit(a.config.Server.RateLimit))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.UserIDHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", taskHandler.HealthCheck) // GET /health
	r.Post("/users", taskHandler.PostUser)    // POST /users

	r.Group(func(r chi.Router) {
		r.Use(middleware.UserID)

		r.Get("/me/streak", taskHandler.GetStreak)        // GET /me/streak
		r.Put("/me/timezone", taskHandler.UpdateTimezone) // PUT /me/timezone

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", taskHandler.PostTask) // POST /tasks

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTaskByID)               // GET /tasks/{id}
				r.Post("/complete", taskHandler.CompleteTask)     // POST /tasks/{id}/complete
				r.Post("/uncomplete", taskHandler.UncompleteTask) // POST /tasks/{id}/uncomplete
			})
		})

		r.Get("/schedule", taskHandler.GetSchedule) // GET /schedule?from=&to=
	})

	r.Route("/cron", func(r chi.Router) {
		r.Use(middleware.CronAuth(a.config.Sweep.CronSecret))

		r.Get("/check-streaks", cronHandler.CheckStreaks)  // GET /cron/check-streaks
		r.Post("/check-streaks", cronHandler.CheckStreaks) // POST /cron/check-streaks
	})

	return r
}

func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) Sweep() *worker.MidnightSweep {
	return a.sweep
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.Shutdown()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("App: server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("App: shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Shutdown releases everything Init acquired. It is safe to call twice.
func (a *App) Shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
