package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	domainErrors "github.com/mercadoartesano/orders/internal/domain/errors"
	"github.com/mercadoartesano/orders/internal/domain/order"
	"github.com/mercadoartesano/orders/internal/saga"
)

// OrderController handles order intake and inspection.
type OrderController struct {
	orders       order.Repository
	orchestrator *saga.Orchestrator
}

// NewOrderController creates a new OrderController.
func NewOrderController(orders order.Repository, orchestrator *saga.Orchestrator) *OrderController {
	return &OrderController{
		orders:       orders,
		orchestrator: orchestrator,
	}
}

// Create handles POST /api/v1/orders: persists the order and starts its
// fulfillment saga. The saga runs asynchronously; the response is 202.
func (h *OrderController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ord, err := order.NewOrder(req.CustomerID, toDomainItems(req.Items), req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.orders.Create(r.Context(), ord); err != nil {
		writeError(w, err)
		return
	}

	orderID, err := h.orchestrator.Execute(r.Context(), ord.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, CreateOrderResponse{
		OrderID: orderID.String(),
		Status:  string(ord.Status),
	})
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid order id", Code: "invalid_id"})
		return
	}

	ord, err := h.orders.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if ord == nil {
		writeError(w, domainErrors.ErrOrderNotFound)
		return
	}

	writeJSON(w, http.StatusOK, FromOrder(ord))
}

// GetSaga handles GET /api/v1/sagas/{orderId}: returns the live saga
// context, or 404 once the saga has been retired.
func (h *OrderController) GetSaga(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid order id", Code: "invalid_id"})
		return
	}

	snap, ok := h.orchestrator.Store().Snapshot(id)
	if !ok {
		writeError(w, domainErrors.ErrSagaNotFound)
		return
	}

	writeJSON(w, http.StatusOK, FromSnapshot(snap))
}
