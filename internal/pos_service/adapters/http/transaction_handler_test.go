package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bintangnusa/pos-backend/internal/pos_service/app"
	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
	"github.com/bintangnusa/pos-backend/internal/pos_service/middleware"
	"github.com/bintangnusa/pos-backend/internal/pos_service/repository"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Submit(ctx context.Context, operatorID int64, req app.SubmitRequest) (*domain.Transaction, error) {
	args := m.Called(ctx, operatorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *mockProcessor) SyncStatus(ctx context.Context, id int64) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *mockProcessor) Get(ctx context.Context, id int64) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *mockProcessor) List(ctx context.Context, filter repository.ListFilter) ([]domain.Transaction, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Transaction), args.Int(1), args.Error(2)
}

func (m *mockProcessor) Report(ctx context.Context, from, to time.Time) (*app.ReportResult, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.ReportResult), args.Error(1)
}

func newTestRouter(service TransactionProcessor) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewTransactionHandler(service, logger)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func withOperator(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.AuthenticatedOperatorContextKey, middleware.AuthenticatedOperator{
		ID:   3,
		Name: "Siti",
		Role: "kasir",
	})
	return r.WithContext(ctx)
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	return env
}

func TestTransactionHandler_Submit_Created(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	created := &domain.Transaction{
		ID:            10,
		InvoiceNumber: "BN-20240601-0001",
		OperatorID:    3,
		PaymentMethod: domain.PaymentMethodCash,
		PaymentStatus: domain.PaymentStatusSuccess,
		Total:         222000,
	}
	service.On("Submit", mock.Anything, int64(3), mock.AnythingOfType("app.SubmitRequest")).
		Return(created, nil).Once()

	payload := `{"items":[{"product_id":1,"quantity":2}],"payment_method":"cash"}`
	req := withOperator(httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(payload)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	assert.True(t, env.Success)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BN-20240601-0001")
	service.AssertExpectations(t)
}

func TestTransactionHandler_Submit_InsufficientStock(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	service.On("Submit", mock.Anything, int64(3), mock.Anything).
		Return(nil, &domain.InsufficientStockError{ProductName: "Kopi Susu", Available: 1, Requested: 5}).Once()

	payload := `{"items":[{"product_id":1,"quantity":5}],"payment_method":"cash"}`
	req := withOperator(httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(payload)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "stok Kopi Susu tidak cukup")
}

func TestTransactionHandler_Submit_GatewayUnavailable(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	service.On("Submit", mock.Anything, int64(3), mock.Anything).
		Return(nil, domain.ErrGatewayUnavailable).Once()

	payload := `{"items":[{"product_id":1,"quantity":1}],"payment_method":"gateway"}`
	req := withOperator(httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(payload)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	assert.False(t, env.Success)
}

func TestTransactionHandler_Submit_InvalidJSON(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	req := withOperator(httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	service.AssertNotCalled(t, "Submit")
}

func TestTransactionHandler_Submit_MissingOperator(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	payload := `{"items":[{"product_id":1,"quantity":1}],"payment_method":"cash"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	service.AssertNotCalled(t, "Submit")
}

func TestTransactionHandler_Get_NotFound(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	service.On("Get", mock.Anything, int64(99)).Return(nil, domain.ErrNotFound).Once()

	req := withOperator(httptest.NewRequest(http.MethodGet, "/transactions/99", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionHandler_Get_InvalidID(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	req := withOperator(httptest.NewRequest(http.MethodGet, "/transactions/abc", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	service.AssertNotCalled(t, "Get")
}

func TestTransactionHandler_SyncStatus(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	synced := &domain.Transaction{
		ID:            7,
		InvoiceNumber: "BN-20240601-0002",
		PaymentMethod: domain.PaymentMethodGateway,
		PaymentStatus: domain.PaymentStatusSuccess,
	}
	service.On("SyncStatus", mock.Anything, int64(7)).Return(synced, nil).Once()

	req := withOperator(httptest.NewRequest(http.MethodGet, "/transactions/7/sync", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	assert.True(t, env.Success)
	service.AssertExpectations(t)
}

func TestTransactionHandler_List_Pagination(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	service.On("List", mock.Anything, mock.MatchedBy(func(f repository.ListFilter) bool {
		return f.Page == 2 && f.PerPage == 10 && f.Status == domain.PaymentStatusSuccess
	})).Return([]domain.Transaction{{ID: 11}, {ID: 12}}, 42, nil).Once()

	req := withOperator(httptest.NewRequest(http.MethodGet, "/transactions?page=2&per_page=10&status=success", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Success bool         `json:"success"`
		Data    listResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.Len(t, env.Data.Transactions, 2)
	assert.Equal(t, 42, env.Data.Pagination.Total)
	assert.Equal(t, 5, env.Data.Pagination.TotalPages)
	service.AssertExpectations(t)
}

func TestTransactionHandler_List_BadDate(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	req := withOperator(httptest.NewRequest(http.MethodGet, "/transactions?date_from=01-06-2024", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	service.AssertNotCalled(t, "List")
}

func TestTransactionHandler_Report(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	result := &app.ReportResult{
		Summary: &repository.ReportSummary{TotalRevenue: 500000, TotalTransactions: 3, AvgTransaction: 166666.67},
	}
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	service.On("Report", mock.Anything, from, to).Return(result, nil).Once()

	req := withOperator(httptest.NewRequest(http.MethodGet, "/transactions/report/summary?date_from=2024-06-01&date_to=2024-06-30", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	assert.True(t, env.Success)
	service.AssertExpectations(t)
}

func TestTransactionHandler_Report_InvertedRange(t *testing.T) {
	service := new(mockProcessor)
	router := newTestRouter(service)

	req := withOperator(httptest.NewRequest(http.MethodGet, "/transactions/report/summary?date_from=2024-06-30&date_to=2024-06-01", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	service.AssertNotCalled(t, "Report")
}
