package handlers

import (
	"encoding/json"
	"net/http"

	"gallery/internal/export"
	"gallery/internal/infra"
)

// App carries the dependencies shared by all HTTP handlers.
type App struct {
	Config  *infra.Config
	Logger  infra.Logger
	Exports *export.Service
}

func NewApp(cfg *infra.Config, logger infra.Logger, exports *export.Service) *App {
	return &App{Config: cfg, Logger: logger, Exports: exports}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
