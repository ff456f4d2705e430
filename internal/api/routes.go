package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"knowledge-sync-service/internal/store"
	"knowledge-sync-service/internal/sync"
)

type Handler struct {
	syncManager *sync.Manager
}

func NewHandler(manager *sync.Manager) *Handler {
	return &Handler{
		syncManager: manager,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(OwnerMiddleware)

		r.Post("/devices", h.RegisterDevice)
		r.Get("/devices", h.ListDevices)
		r.Delete("/devices/{id}", h.DeactivateDevice)

		r.Post("/sync/pull", h.Pull)
		r.Post("/sync/push", h.Push)
		r.Get("/sync/conflicts", h.ListConflicts)
		r.Post("/sync/conflicts/{id}/resolve", h.ResolveConflict)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type registerDeviceRequest struct {
	DeviceID   string           `json:"device_id"`
	DeviceName string           `json:"device_name"`
	DeviceType store.DeviceType `json:"device_type"`
}

func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &sync.ValidationError{Message: "invalid JSON body"})
		return
	}

	device, err := h.syncManager.Registry().Register(r.Context(), ownerID(r), req.DeviceName, req.DeviceType, req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.syncManager.Registry().List(r.Context(), ownerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if devices == nil {
		devices = []*store.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (h *Handler) DeactivateDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	if err := h.syncManager.Registry().Deactivate(r.Context(), deviceID, ownerID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

type pullRequest struct {
	DeviceID string `json:"device_id"`
	Since    *int64 `json:"since,omitempty"`
}

func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	var req pullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &sync.ValidationError{Message: "invalid JSON body"})
		return
	}

	result, err := h.syncManager.Pull(r.Context(), req.DeviceID, ownerID(r), req.Since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type pushRequest struct {
	DeviceID string                 `json:"device_id"`
	Changes  []*sync.IncomingChange `json:"changes"`
}

func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &sync.ValidationError{Message: "invalid JSON body"})
		return
	}

	result, err := h.syncManager.Push(r.Context(), req.DeviceID, ownerID(r), req.Changes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	status := store.ConflictStatus(r.URL.Query().Get("status"))

	conflicts, err := h.syncManager.Conflicts().List(r.Context(), ownerID(r), deviceID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	if conflicts == nil {
		conflicts = []*store.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

type resolveRequest struct {
	Resolution   store.Resolution `json:"resolution"`
	ResolvedData json.RawMessage  `json:"resolved_data,omitempty"`
}

func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	conflictID := chi.URLParam(r, "id")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &sync.ValidationError{Message: "invalid JSON body"})
		return
	}

	entry, err := h.syncManager.Conflicts().Resolve(r.Context(), conflictID, ownerID(r), req.Resolution, req.ResolvedData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ---- plumbing ----

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case sync.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation_error"})
	case sync.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	case sync.IsDeviceInactive(err):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Code: "device_inactive"})
	case sync.IsStorage(err):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable, retry the call", Code: "storage_error"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}

type ctxKey string

const ownerKey ctxKey = "owner_id"

// OwnerMiddleware extracts the caller identity established by the
// authentication layer in front of this service. Auth itself is out of
// scope; the X-Owner-ID header is trusted here.
func OwnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get("X-Owner-ID")
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing X-Owner-ID header", Code: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

func ownerID(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey).(string)
	return owner
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Owner-ID")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}
