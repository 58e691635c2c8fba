package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/gamebank/internal/api/apierr"
	"github.com/mcoot/gamebank/internal/api/handler"
	"github.com/mcoot/gamebank/internal/api/middleware"
	"github.com/mcoot/gamebank/internal/api/response"
	"github.com/mcoot/gamebank/internal/events"
	"github.com/mcoot/gamebank/internal/services/ledger"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger *slog.Logger
	Ledger *ledger.Service

	// Events serves the change stream at /events when set
	Events *events.Hub

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// Empty allows all origins.
	CORSAllowedOrigins []string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError())
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewMethodNotAllowedError())
	})

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.Ledger)
	syncHandler := handler.NewSyncHandler(cfg.Ledger)

	// Common middleware: the request id wraps logging, which wraps recovery
	// so that recovered panics are logged as 500s
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))

	// Health check endpoint
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	if cfg.Events != nil {
		r.HandleFunc("/events", cfg.Events.Handler()).Methods(http.MethodGet)
	}

	// Sync routes
	r.HandleFunc("/sync", syncHandler.Sync).Methods(http.MethodPost)
	r.HandleFunc("/players/changes", syncHandler.Changes).Methods(http.MethodGet)

	// Player routes live on the root router so a method mismatch reaches
	// MethodNotAllowedHandler
	r.HandleFunc("/players", playerHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/players", playerHandler.Create).Methods(http.MethodPost)
	r.HandleFunc("/players/{id:[0-9]+}", playerHandler.Get).Methods(http.MethodGet)
	r.HandleFunc("/players/{id:[0-9]+}", playerHandler.Update).Methods(http.MethodPut)
	r.HandleFunc("/players/{id:[0-9]+}", playerHandler.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/players/{id:[0-9]+}/add", playerHandler.AddMoney).Methods(http.MethodPost)
	r.HandleFunc("/players/{id:[0-9]+}/subtract", playerHandler.SubtractMoney).Methods(http.MethodPost)
	r.HandleFunc("/players/{id:[0-9]+}/balance", playerHandler.SetBalance).Methods(http.MethodPut)
	r.HandleFunc("/players/{id:[0-9]+}/history", playerHandler.History).Methods(http.MethodGet)

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}).Handler(r)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.HealthResponse{Status: "OK"})
}
