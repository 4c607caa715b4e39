// Package api exposes the invoice workflow over HTTP: extraction,
// verification against Dolibarr, confirmed processing, manual record
// creation, entity listing and processing history.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/borjarodrigo23ia/ocr-ia/internal/ai"
	"github.com/borjarodrigo23ia/ocr-ia/internal/auth"
	"github.com/borjarodrigo23ia/ocr-ia/internal/dolibarr"
	"github.com/borjarodrigo23ia/ocr-ia/internal/history"
	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
	"github.com/borjarodrigo23ia/ocr-ia/internal/processor"
	"github.com/borjarodrigo23ia/ocr-ia/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"
)

// Handler wires the workflow pieces behind the HTTP routes. History and
// archive may be nil.
type Handler struct {
	config    *models.Config
	erp       *dolibarr.Client
	processor *processor.Processor
	history   *history.Store
	archive   *storage.Archive
	log       zerolog.Logger
}

func NewHandler(config *models.Config, erp *dolibarr.Client, proc *processor.Processor, hist *history.Store, archive *storage.Archive) *Handler {
	return &Handler{
		config:    config,
		erp:       erp,
		processor: proc,
		history:   hist,
		archive:   archive,
		log:       log.With().Str("component", "api").Logger(),
	}
}

// SetupRoutes configures the HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/login", auth.LoginHandler(h.config.Auth)).Methods("POST")

	// Invoice workflow
	router.HandleFunc("/api/extract", h.Extract).Methods("POST")
	router.HandleFunc("/api/verify", h.Verify).Methods("POST")
	router.HandleFunc("/api/process", h.Process).Methods("POST")

	// Manual record creation
	router.HandleFunc("/api/create-supplier", h.CreateSupplier).Methods("POST")
	router.HandleFunc("/api/create-product", h.CreateProduct).Methods("POST")

	// Multicompany entities
	router.HandleFunc("/api/entities", h.GetEntities).Methods("GET")
	router.HandleFunc("/api/entities", h.SelectEntity).Methods("POST")

	// Processing history
	router.HandleFunc("/api/history", h.GetHistory).Methods("GET")
	router.HandleFunc("/api/history/{id}", h.GetHistoryEntry).Methods("GET")
	router.HandleFunc("/api/history/{id}", h.DeleteHistoryEntry).Methods("DELETE")
	router.HandleFunc("/api/history/{id}/document", h.GetHistoryDocument).Methods("GET")

	router.HandleFunc("/health", h.Health).Methods("GET")

	router.Use(auth.Middleware(h.config.Auth.Secret))
	return router
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Memory    MemoryStats   `json:"memory"`
	Dolibarr  ServiceStatus `json:"dolibarr"`
	Database  ServiceStatus `json:"database"`
	Storage   ServiceStatus `json:"storage"`
	AI        ServiceStatus `json:"ai"`
}

type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus reports the availability of one dependency.
type ServiceStatus struct {
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	dolibarrStatus := ServiceStatus{Available: true}
	if err := h.erp.Ping(r.Context()); err != nil {
		dolibarrStatus = ServiceStatus{Available: false, Error: err.Error()}
	}

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Dolibarr: dolibarrStatus,
		Database: ServiceStatus{Available: h.history.Enabled()},
		Storage:  ServiceStatus{Available: h.archive.Enabled()},
		AI:       ServiceStatus{Available: true, Detail: h.config.AI.DefaultProvider},
	}
	if !dolibarrStatus.Available {
		response.Status = "degraded"
	}

	h.sendJSON(w, http.StatusOK, response)
}

// createProvider picks the extraction engine for a request.
func (h *Handler) createProvider(providerName string) (ai.Provider, error) {
	if providerName == "" {
		providerName = h.config.AI.DefaultProvider
	}
	switch providerName {
	case "", "gemini":
		return ai.NewGeminiProvider(h.config.AI.Gemini.Keys)
	case "openai":
		return ai.NewOpenAIProvider(h.config.AI.OpenAI)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", providerName)
	}
}

func (h *Handler) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) sendData(w http.ResponseWriter, status int, data any) {
	h.sendJSON(w, status, map[string]any{"success": true, "data": data})
}

// sendError maps workflow errors to status codes by type: extraction data
// problems are the client's to fix (422), ERP failures and model saturation
// are upstream conditions worth retrying (503).
func (h *Handler) sendError(w http.ResponseWriter, err error) {
	var verr *processor.ValidationError
	var apiErr *dolibarr.APIError

	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &apiErr):
		status = http.StatusServiceUnavailable
		message = fmt.Sprintf("error en Dolibarr: %s", apiErr.Body)
	case errors.Is(err, ai.ErrBusy):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ai.ErrUnreadable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, history.ErrNotFound):
		status = http.StatusNotFound
	}

	h.log.Error().Err(err).Int("status", status).Msg("request failed")
	h.sendJSON(w, status, map[string]any{"success": false, "error": message})
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	h.sendJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": message})
}
