package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SettlementServicer defines the service methods needed by settlement
// handlers. Satisfied by *service.Settlement.
type SettlementServicer interface {
	OpenSettlement(ctx context.Context, req service.OpenSettlementRequest) (*service.PaymentSession, error)
	RecordPayment(ctx context.Context, sessionID uuid.UUID, method enum.PaymentMethod, amount decimal.Decimal) (*service.PaymentSession, decimal.Decimal, error)
	GetSettlement(sessionID uuid.UUID) (*service.PaymentSession, error)
	AbandonSettlement(sessionID uuid.UUID) error
	CommitSettlement(ctx context.Context, sessionID uuid.UUID, processedBy uuid.UUID) ([]database.Order, error)
}

// SettlementHandler handles payment-session endpoints.
type SettlementHandler struct {
	svc SettlementServicer
	hub *ws.Hub
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(svc SettlementServicer, hub *ws.Hub) *SettlementHandler {
	return &SettlementHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers settlement endpoints on the given Chi router.
// Expected to be mounted at /settlements
func (h *SettlementHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/{sid}", h.Get)
	r.Post("/{sid}/payments", h.RecordPayment)
	r.Post("/{sid}/commit", h.Commit)
	r.Delete("/{sid}", h.Abandon)
}

// --- Request / Response types ---

type openSettlementRequest struct {
	OrderID string `json:"order_id"`
	TableID string `json:"table_id"`
}

type recordPaymentRequest struct {
	Method string `json:"method"`
	Amount string `json:"amount"`
}

type sessionPaymentResponse struct {
	Method string    `json:"method"`
	Amount string    `json:"amount"`
	At     time.Time `json:"at"`
}

type sessionResponse struct {
	ID            uuid.UUID                `json:"id"`
	OrderIDs      []uuid.UUID              `json:"order_ids"`
	TableID       *uuid.UUID               `json:"table_id"`
	OriginalTotal string                   `json:"original_total"`
	Balance       string                   `json:"balance"`
	Settled       bool                     `json:"settled"`
	Payments      []sessionPaymentResponse `json:"payments"`
	OpenedAt      time.Time                `json:"opened_at"`
}

type recordPaymentResponse struct {
	Session sessionResponse `json:"session"`
	Change  string          `json:"change"`
}

type commitResponse struct {
	Orders []orderResponse `json:"orders"`
}

// --- Handlers ---

// Open handles POST /settlements. Exactly one of order_id or table_id
// selects what the session settles.
func (h *SettlementHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if (req.OrderID == "") == (req.TableID == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exactly one of order_id or table_id is required"})
		return
	}

	session, err := h.svc.OpenSettlement(r.Context(), service.OpenSettlementRequest{
		OrderID: req.OrderID,
		TableID: req.TableID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionToResponse(session))
}

// Get handles GET /settlements/{sid}.
func (h *SettlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	session, err := h.svc.GetSettlement(sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(session))
}

// RecordPayment handles POST /settlements/{sid}/payments.
func (h *SettlementHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Method == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "method is required"})
		return
	}
	if req.Amount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	session, change, err := h.svc.RecordPayment(r.Context(), sessionID, enum.PaymentMethod(req.Method), amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recordPaymentResponse{
		Session: sessionToResponse(session),
		Change:  change.StringFixed(2),
	})
}

// Commit handles POST /settlements/{sid}/commit.
func (h *SettlementHandler) Commit(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orders, err := h.svc.CommitSettlement(r.Context(), sessionID, claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := commitResponse{Orders: make([]orderResponse, len(orders))}
	for i, o := range orders {
		resp.Orders[i] = dbOrderToResponse(o)
		h.notify(ws.TopicOrders, "order.paid", resp.Orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// Abandon handles DELETE /settlements/{sid}.
func (h *SettlementHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	if err := h.svc.AbandonSettlement(sessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *SettlementHandler) notify(topic, eventType string, payload interface{}) {
	if h.hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("marshal ws payload")
		return
	}
	h.hub.Broadcast(topic, ws.Event{Type: eventType, Payload: data})
}

func sessionToResponse(s *service.PaymentSession) sessionResponse {
	resp := sessionResponse{
		ID:            s.ID,
		OrderIDs:      s.OrderIDs,
		TableID:       s.TableID,
		OriginalTotal: s.OriginalTotal.StringFixed(2),
		Balance:       s.CurrentTotal.StringFixed(2),
		Settled:       s.Settled(),
		Payments:      make([]sessionPaymentResponse, len(s.Payments)),
		OpenedAt:      s.OpenedAt,
	}
	for i, p := range s.Payments {
		resp.Payments[i] = sessionPaymentResponse{
			Method: string(p.Method),
			Amount: p.Amount.StringFixed(2),
			At:     p.At,
		}
	}
	return resp
}
