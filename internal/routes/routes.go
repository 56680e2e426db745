package routes

import (
	"net/http"

	"plantdoctor/internal/config"
	"plantdoctor/internal/handlers"
	"plantdoctor/internal/logger"
	"plantdoctor/internal/middleware"
	"plantdoctor/internal/repository"
	ws "plantdoctor/internal/services/websocket"
)

// SetupRoutes registers the preview, history and log endpoints and wraps the
// mux with the authentication middleware. predictions may be nil when the
// history database is disabled; its endpoints are then not registered.
func SetupRoutes(hub *ws.HubService, predictions repository.PredictionRepository, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.NewAuth(cfg.PreviewPassword)

	// Live preview
	mux.HandleFunc("/", handlers.PreviewPageHandler)
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(hub, logger))

	// History
	if predictions != nil {
		mux.HandleFunc("/api/predictions", handlers.GetPredictionsHandler(predictions, logger))
		mux.HandleFunc("/api/predictions/stats", handlers.GetStatsHandler(predictions, logger))
		mux.HandleFunc("/api/predictions/labels", handlers.GetLabelsHandler(predictions, logger))
		mux.HandleFunc("/api/predictions/clear", handlers.ClearPredictionsHandler(predictions, logger))
		mux.HandleFunc("/api/snapshots/view", handlers.ViewSnapshotHandler(cfg))
	}

	// Log endpoints
	mux.HandleFunc("/logs/info", handlers.ShowInfoLogsHandler(logger))
	mux.HandleFunc("/logs/warning", handlers.ShowWarningLogsHandler(logger))
	mux.HandleFunc("/logs/error", handlers.ShowErrorLogsHandler(logger))

	mux.HandleFunc("/logs/info/clear", handlers.ClearInfoLogsHandler(logger))
	mux.HandleFunc("/logs/warning/clear", handlers.ClearWarningLogsHandler(logger))
	mux.HandleFunc("/logs/error/clear", handlers.ClearErrorLogsHandler(logger))

	// Auth endpoints
	if auth.Enabled() {
		mux.HandleFunc("/auth/login", handlers.LoginHandler(auth, logger))
		mux.HandleFunc("/auth/logout", handlers.LogoutHandler)
	}

	return auth.Middleware(mux)
}
