package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadoartesano/orders/internal/saga"
	"github.com/mercadoartesano/orders/internal/testutil"
)

func newTestRouter(t *testing.T) (chi.Router, *testutil.MockOrderRepository, *saga.Orchestrator) {
	t.Helper()
	repo := testutil.NewMockOrderRepository()
	bus := testutil.NewRecordingBus()
	orch := saga.NewOrchestrator(repo, bus, testutil.NewTestMetrics(), zerolog.Nop(), time.Minute)
	ctrl := NewOrderController(repo, orch)

	r := chi.NewRouter()
	r.Post("/orders", ctrl.Create)
	r.Get("/orders/{id}", ctrl.Get)
	r.Get("/sagas/{orderId}", ctrl.GetSaga)
	return r, repo, orch
}

func createOrderBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(CreateOrderRequest{
		CustomerID: "customer-1",
		Currency:   "EUR",
		Items: []OrderItemRequest{
			{ProductID: uuid.New().String(), Quantity: 2, UnitPrice: 15_00},
		},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestCreateOrder_Accepted(t *testing.T) {
	router, repo, orch := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", createOrderBody(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)

	orderID, err := uuid.Parse(resp.OrderID)
	require.NoError(t, err)
	assert.NotNil(t, repo.GetOrderByID(orderID))

	snap, ok := orch.Store().Snapshot(orderID)
	require.True(t, ok, "expected a live saga for the new order")
	assert.Equal(t, saga.StateStarted, snap.State)
}

func TestCreateOrder_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing customer", `{"currency":"EUR","items":[{"product_id":"` + uuid.New().String() + `","quantity":1,"unit_price":100}]}`},
		{"bad currency", `{"customer_id":"c1","currency":"EURO","items":[{"product_id":"` + uuid.New().String() + `","quantity":1,"unit_price":100}]}`},
		{"no items", `{"customer_id":"c1","currency":"EUR","items":[]}`},
		{"bad product id", `{"customer_id":"c1","currency":"EUR","items":[{"product_id":"nope","quantity":1,"unit_price":100}]}`},
		{"zero quantity", `{"customer_id":"c1","currency":"EUR","items":[{"product_id":"` + uuid.New().String() + `","quantity":0,"unit_price":100}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, orch := newTestRouter(t)

			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, orch.Store().Len(), "no saga may start for a rejected request")
		})
	}
}

func TestGetOrder(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	o := testutil.NewTestOrder("customer-1", 1, 10_00)
	repo.AddOrder(o)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+o.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, o.ID.String(), resp.ID)
	assert.Equal(t, "customer-1", resp.CustomerID)
	assert.Equal(t, int64(10_00), resp.TotalAmount)
	assert.Equal(t, "pending", resp.Status)
}

func TestGetOrder_NotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrder_InvalidID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSaga_Live(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	createReq := httptest.NewRequest(http.MethodPost, "/orders", createOrderBody(t))
	createRec := httptest.NewRecorder()
	router.ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusAccepted, createRec.Code)

	var created CreateOrderResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	require.NotNil(t, repo.GetOrderByID(uuid.MustParse(created.OrderID)))

	req := httptest.NewRequest(http.MethodGet, "/sagas/"+created.OrderID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SagaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.OrderID, resp.OrderID)
	assert.Equal(t, string(saga.StateStarted), resp.State)
}

func TestGetSaga_RetiredIsNotFound(t *testing.T) {
	router, _, orch := newTestRouter(t)

	createReq := httptest.NewRequest(http.MethodPost, "/orders", createOrderBody(t))
	createRec := httptest.NewRecorder()
	router.ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusAccepted, createRec.Code)

	var created CreateOrderResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	// Drive the saga to a terminal state; the context retires with it.
	orch.Compensate(createReq.Context(), uuid.MustParse(created.OrderID), "operator abort")

	req := httptest.NewRequest(http.MethodGet, "/sagas/"+created.OrderID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
