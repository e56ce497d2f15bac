package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TableCoordinator defines the service methods needed by table handlers.
// Satisfied by *service.TableCoordinator.
type TableCoordinator interface {
	CanRelease(ctx context.Context, tableID uuid.UUID) (bool, error)
	Release(ctx context.Context, tableID uuid.UUID) (database.Table, error)
	SetMaintenance(ctx context.Context, tableID uuid.UUID, on bool) (database.Table, error)
}

// TableReadStore defines the database methods needed by table read handlers.
// Satisfied by *database.Queries.
type TableReadStore interface {
	ListTables(ctx context.Context) ([]database.Table, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
}

// TableHandler handles table endpoints.
type TableHandler struct {
	coord TableCoordinator
	store TableReadStore
	hub   *ws.Hub
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(coord TableCoordinator, store TableReadStore, hub *ws.Hub) *TableHandler {
	return &TableHandler{coord: coord, store: store, hub: hub}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted at /tables
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}/can-release", h.CanRelease)
	r.Post("/{id}/release", h.Release)
	r.Post("/{id}/maintenance", h.SetMaintenance)
}

// --- Request / Response types ---

type createTableRequest struct {
	Number   int32 `json:"number"`
	Capacity int32 `json:"capacity"`
}

type setMaintenanceRequest struct {
	On bool `json:"on"`
}

type tableResponse struct {
	ID         uuid.UUID `json:"id"`
	Number     int32     `json:"number"`
	Capacity   int32     `json:"capacity"`
	Status     string    `json:"status"`
	AssignedTo *string   `json:"assigned_to"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type canReleaseResponse struct {
	CanRelease bool `json:"can_release"`
}

// --- Handlers ---

// List handles GET /tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list tables")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = dbTableToResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Number <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "number must be > 0"})
		return
	}
	if req.Capacity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "capacity must be > 0"})
		return
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		Number:   req.Number,
		Capacity: req.Capacity,
	})
	if err != nil {
		log.Error().Err(err).Msg("create table")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, dbTableToResponse(table))
}

// CanRelease handles GET /tables/{id}/can-release. Pure query; frontends
// use it to decide whether to offer the release action.
func (h *TableHandler) CanRelease(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	ok, err := h.coord.CanRelease(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, canReleaseResponse{CanRelease: ok})
}

// Release handles POST /tables/{id}/release.
func (h *TableHandler) Release(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	table, err := h.coord.Release(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := dbTableToResponse(table)
	h.notify("table.released", resp)
	writeJSON(w, http.StatusOK, resp)
}

// SetMaintenance handles POST /tables/{id}/maintenance.
func (h *TableHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req setMaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := h.coord.SetMaintenance(r.Context(), tableID, req.On)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := dbTableToResponse(table)
	h.notify("table.maintenance", resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *TableHandler) notify(eventType string, payload interface{}) {
	if h.hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("marshal ws payload")
		return
	}
	h.hub.Broadcast(ws.TopicTables, ws.Event{Type: eventType, Payload: data})
}

func dbTableToResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:         t.ID,
		Number:     t.Number,
		Capacity:   t.Capacity,
		Status:     string(t.Status),
		AssignedTo: uuidPtr(t.AssignedTo),
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}
