package serverapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"galway/internal/auth"
	"galway/internal/config"
	"galway/internal/directory"
	"galway/internal/forum"
	"galway/internal/guide"
	"galway/internal/httpmw"
	"galway/internal/inventory"
	"galway/internal/olive"
	"galway/internal/profile"
	"galway/internal/registration"
	"galway/internal/telemetry"
	staticfiles "galway/static"
)

type Options struct {
	Config *config.Config
	// DataDir overrides Config.Storage.DataDir when set.
	DataDir       string
	StaticDir     string
	UseDiskStatic bool
	Logger        *log.Logger
	// Mailer defaults to auth.LogMailer.
	Mailer auth.Mailer
	// Generator defaults to one built from Config.Generator.
	Generator *olive.Generator
}

// App is the assembled HTTP surface plus the resources it owns.
type App struct {
	Handler http.Handler
	Forum   forum.Repository

	closers []func() error
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewGenerator builds the branch generator described by cfg.
func NewGenerator(cfg config.GeneratorConfig) (*olive.Generator, error) {
	mode, ok := olive.ParseShuffleMode(cfg.Shuffle)
	if !ok {
		return nil, fmt.Errorf("unknown shuffle mode %q", cfg.Shuffle)
	}
	if cfg.Seed != 0 {
		return olive.NewSeeded(cfg.Seed, olive.WithShuffle(mode)), nil
	}
	return olive.Default(olive.WithShuffle(mode)), nil
}

func openForum(ctx context.Context, cfg config.StorageConfig, dataDir string) (forum.Repository, func() error, error) {
	switch cfg.Forum.Driver {
	case "", "file":
		repo, err := forum.NewFileRepo(dataDir)
		return repo, nil, err
	case "postgres":
		if strings.TrimSpace(cfg.Forum.PostgresDSN) == "" {
			return nil, nil, errors.New("storage.forum.postgres_dsn is required for the postgres driver")
		}
		repo, err := forum.OpenPostgres(ctx, cfg.Forum.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown forum driver %q", cfg.Forum.Driver)
	}
}

func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := opts.Config
	if strings.TrimSpace(opts.DataDir) == "" {
		opts.DataDir = cfg.Storage.DataDir
	}
	if strings.TrimSpace(opts.DataDir) == "" {
		opts.DataDir = "data"
	}
	if strings.TrimSpace(opts.StaticDir) == "" {
		opts.StaticDir = "static"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Mailer == nil {
		opts.Mailer = auth.LogMailer{Logger: opts.Logger}
	}
	gen := opts.Generator
	if gen == nil {
		var err error
		if gen, err = NewGenerator(cfg.Generator); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	app := &App{}

	events := telemetry.NewMemoryRepository()

	authRepo, err := auth.NewFileRepo(opts.DataDir)
	if err != nil {
		return nil, err
	}
	profileRepo, err := profile.NewFileRepo(opts.DataDir)
	if err != nil {
		return nil, err
	}
	inventoryRepo, err := inventory.NewFileRepo(opts.DataDir)
	if err != nil {
		return nil, err
	}
	registrationRepo, err := registration.NewFileRepo(opts.DataDir)
	if err != nil {
		return nil, err
	}
	forumRepo, closeForum, err := openForum(ctx, cfg.Storage, opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open forum storage: %w", err)
	}
	if closeForum != nil {
		app.closers = append(app.closers, closeForum)
	}
	app.Forum = forumRepo

	authService := auth.NewService(authRepo, cfg.Auth, opts.Mailer, logger)
	authService.SetHooks(auth.Hooks{
		OnRegistered: func(u auth.User, in auth.RegisterInput) {
			_, err := profileRepo.ForUser(u.ID).Init(profile.Details{
				Bio:      in.Bio,
				Phone:    in.Phone,
				Birthday: in.Birthday,
				Country:  in.Country,
				City:     in.City,
			}, u.CreatedAt)
			if err != nil {
				logger.Printf("[profile] init %s: %v", u.ID, err)
			}
			telemetry.Record(events, logger, telemetry.EventUserRegistered, telemetry.EventMetadata{
				"user_id": u.ID,
			})
		},
		OnDeleted: func(userID string) {
			if err := profileRepo.ForUser(userID).Delete(); err != nil {
				logger.Printf("[profile] delete %s: %v", userID, err)
			}
			if err := inventoryRepo.ForUser(userID).DeleteAll(); err != nil {
				logger.Printf("[inventory] delete %s: %v", userID, err)
			}
			if err := registrationRepo.ForUser(userID).Delete(); err != nil {
				logger.Printf("[registration] delete %s: %v", userID, err)
			}
		},
	})
	logSecurityHints(logger)

	forumService := forum.NewService(forumRepo, cfg.Forum, events, logger)
	if err := forumService.Seed(ctx); err != nil {
		app.Close()
		return nil, err
	}

	profileFor := func(r *http.Request) *profile.FileRepo {
		u, ok := auth.UserFromContext(r.Context())
		if !ok {
			return nil
		}
		return profileRepo.ForUser(u.ID)
	}
	inventoryFor := func(r *http.Request) *inventory.FileRepo {
		u, ok := auth.UserFromContext(r.Context())
		if !ok {
			return nil
		}
		return inventoryRepo.ForUser(u.ID)
	}
	registrationFor := func(r *http.Request) *registration.FileRepo {
		u, ok := auth.UserFromContext(r.Context())
		if !ok {
			return nil
		}
		return registrationRepo.ForUser(u.ID)
	}

	authHandler := auth.NewHandler(authService)
	profileHandler := profile.NewHandler()
	profileHandler.SetRepoResolver(profileFor)

	inventoryHandler := inventory.NewHandler(gen, cfg.Inventory, events, logger)
	inventoryHandler.SetRepoResolver(inventoryFor)
	inventoryHandler.SetProfileResolver(profileFor)

	registrationHandler := registration.NewHandler(gen, cfg, events, logger)
	registrationHandler.SetRepoResolver(registrationFor)
	registrationHandler.SetProfileResolver(profileFor)
	registrationHandler.SetInventoryResolver(inventoryFor)

	forumHandler := forum.NewHandler(forumService)
	forumHandler.SetProfileResolver(profileFor)

	directoryHandler := directory.NewHandler(directory.New(authRepo, profileRepo, inventoryRepo))
	guideHandler := guide.NewHandler(gen, events, logger)
	statsHandler := telemetry.NewHandler(events)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httpmw.WithRequestID)
	r.Use(httpmw.WithAccessLog(logger))
	r.Use(httpmw.WithRecover(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", httpmw.RequestIDHeader},
		ExposedHeaders:   []string{httpmw.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	staticHandler := http.FileServer(http.FS(staticfiles.EmbeddedFS()))
	if opts.UseDiskStatic {
		staticHandler = http.FileServer(http.Dir(opts.StaticDir))
	}
	r.Handle("/static/*", http.StripPrefix("/static/", staticHandler))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "galway",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := forumReady(r.Context(), forumRepo); err != nil {
			logger.Printf("[ready] forum storage: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": "forum storage unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "galway",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Get("/rarity", guideHandler.Page().ServeHTTP)
	r.Get("/_/routes.json", routesHandler(r))

	r.Route("/api", func(r chi.Router) {
		r.Get("/olive/rarity", guideHandler.Rarity)
		r.Get("/olive/sample", guideHandler.Sample)
		r.Get("/stats", statsHandler.Stats)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/check-username", authHandler.CheckUsername)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Get("/session", authHandler.Session)
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(authService.RequireAPI)
				r.Post("/verify-email", authHandler.VerifyEmail)
				r.Post("/resend-verification", authHandler.ResendVerification)
				r.Post("/skip-verification", authHandler.SkipVerification)
			})
		})

		r.Get("/users", directoryHandler.List)
		r.Get("/users/{username}", directoryHandler.Get)

		r.Get("/forum/{category}", forumHandler.ListThreads)
		r.Get("/forum/threads/{id}", forumHandler.GetThread)

		r.Group(func(r chi.Router) {
			r.Use(authService.RequireAPI)

			r.Post("/olive-branches/generate", registrationHandler.Generate)
			r.Get("/olive-branches/candidates", registrationHandler.Candidates)
			r.Post("/olive-branches/confirm", registrationHandler.Confirm)

			r.Get("/inventory", inventoryHandler.List)
			r.Post("/inventory/seeds", inventoryHandler.AddSeeds)
			r.Post("/inventory/plant", inventoryHandler.Plant)
			r.Delete("/inventory/items/{id}", inventoryHandler.Remove)
			r.Post("/inventory/items/{id}/activate", inventoryHandler.Activate)

			r.Post("/forum/{category}/threads", forumHandler.CreateThread)
			r.Post("/forum/threads/{id}/replies", forumHandler.CreateReply)
			r.Post("/forum/threads/{id}/like", forumHandler.LikeThread)
			r.Post("/forum/replies/{id}/like", forumHandler.LikeReply)
			r.Post("/forum/report", forumHandler.Report)

			r.Get("/settings", profileHandler.Settings)
			r.Patch("/settings", profileHandler.UpdateSettings)
			r.Post("/settings/username", authHandler.ChangeUsername)
			r.Post("/settings/email", authHandler.ChangeEmail)
			r.Post("/settings/password", authHandler.ChangePassword)
			r.Delete("/settings/account", authHandler.DeleteAccount)

			r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(cfg); err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
				}
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	})

	app.Handler = r
	return app, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func forumReady(ctx context.Context, repo forum.Repository) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if p, ok := repo.(pinger); ok {
		return p.Ping(ctx)
	}
	_, err := repo.ListThreads(ctx, "")
	return err
}

func UseDiskStaticByEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("GALWAY_DEV_STATIC"))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func logSecurityHints(logger *log.Logger) {
	if logger == nil {
		return
	}
	env := strings.ToLower(strings.TrimSpace(os.Getenv("GALWAY_ENV")))
	cookieSecure := strings.ToLower(strings.TrimSpace(os.Getenv("GALWAY_COOKIE_SECURE")))
	sameSite := strings.ToLower(strings.TrimSpace(os.Getenv("GALWAY_COOKIE_SAMESITE")))

	if env == "production" || env == "prod" {
		if cookieSecure != "1" && cookieSecure != "true" && cookieSecure != "yes" {
			logger.Printf("[security] GALWAY_ENV=%s but GALWAY_COOKIE_SECURE is not explicitly true", env)
		}
		if sameSite == "" {
			logger.Printf("[security] GALWAY_ENV=%s and GALWAY_COOKIE_SAMESITE unset (default lax)", env)
		}
	}
}
