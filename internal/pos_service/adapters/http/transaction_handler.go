package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bintangnusa/pos-backend/internal/pos_service/app"
	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
	"github.com/bintangnusa/pos-backend/internal/pos_service/middleware"
	"github.com/bintangnusa/pos-backend/internal/pos_service/repository"
)

const dateLayout = "2006-01-02"

// TransactionProcessor is what the handler needs from the application
// layer. Narrowed to an interface so tests can mock it.
type TransactionProcessor interface {
	Submit(ctx context.Context, operatorID int64, req app.SubmitRequest) (*domain.Transaction, error)
	SyncStatus(ctx context.Context, id int64) (*domain.Transaction, error)
	Get(ctx context.Context, id int64) (*domain.Transaction, error)
	List(ctx context.Context, filter repository.ListFilter) ([]domain.Transaction, int, error)
	Report(ctx context.Context, from, to time.Time) (*app.ReportResult, error)
}

type TransactionHandler struct {
	service TransactionProcessor
	logger  *slog.Logger
}

func NewTransactionHandler(service TransactionProcessor, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		logger:  logger.With("component", "transaction_handler"),
	}
}

// RegisterRoutes sets up the transaction routes. The router is expected to
// already carry the auth middleware.
func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/transactions", h.Submit)
	r.Get("/transactions", h.List)
	r.Get("/transactions/report/summary", h.Report)
	r.Get("/transactions/{transactionID}", h.Get)
	r.Get("/transactions/{transactionID}/sync", h.SyncStatus)
}

// paginationMeta mirrors the paginator shape frontends already consume.
type paginationMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type listResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
	Pagination   paginationMeta       `json:"pagination"`
}

func (h *TransactionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	operator, ok := middleware.OperatorFromContext(ctx)
	if !ok {
		logger.ErrorContext(ctx, "Operator missing from context; auth middleware must run first")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req app.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	txn, err := h.service.Submit(ctx, operator.ID, req)
	if err != nil {
		logger.WarnContext(ctx, "Transaction submit rejected", "kasir_id", operator.ID, "error", err)
		code, message := mapServiceError(err)
		respondWithError(w, code, message)
		return
	}

	respondWithData(w, http.StatusCreated, txn)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "transactionID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	txn, err := h.service.Get(ctx, id)
	if err != nil {
		code, message := mapServiceError(err)
		respondWithError(w, code, message)
		return
	}
	respondWithData(w, http.StatusOK, txn)
}

func (h *TransactionHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	id, err := strconv.ParseInt(chi.URLParam(r, "transactionID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	txn, err := h.service.SyncStatus(ctx, id)
	if err != nil {
		logger.WarnContext(ctx, "Status synchronization failed", "transaction_id", id, "error", err)
		code, message := mapServiceError(err)
		respondWithError(w, code, message)
		return
	}
	respondWithData(w, http.StatusOK, txn)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseListFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, total, err := h.service.List(ctx, filter)
	if err != nil {
		code, message := mapServiceError(err)
		respondWithError(w, code, message)
		return
	}

	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 15
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	totalPages := (total + perPage - 1) / perPage

	respondWithData(w, http.StatusOK, listResponse{
		Transactions: transactions,
		Pagination: paginationMeta{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

func (h *TransactionHandler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	now := time.Now()
	// Default window is the current month to date.
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now

	var err error
	if raw := r.URL.Query().Get("date_from"); raw != "" {
		from, err = time.Parse(dateLayout, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "date_from must be formatted as YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("date_to"); raw != "" {
		to, err = time.Parse(dateLayout, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "date_to must be formatted as YYYY-MM-DD")
			return
		}
	}
	if to.Before(from) {
		respondWithError(w, http.StatusBadRequest, "date_to must not be before date_from")
		return
	}

	report, err := h.service.Report(ctx, from, to)
	if err != nil {
		code, message := mapServiceError(err)
		respondWithError(w, code, message)
		return
	}
	respondWithData(w, http.StatusOK, report)
}

func parseListFilter(r *http.Request) (repository.ListFilter, error) {
	q := r.URL.Query()
	var filter repository.ListFilter

	if raw := q.Get("date_from"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return filter, errors.New("date_from must be formatted as YYYY-MM-DD")
		}
		filter.DateFrom = &t
	}
	if raw := q.Get("date_to"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return filter, errors.New("date_to must be formatted as YYYY-MM-DD")
		}
		filter.DateTo = &t
	}
	if raw := q.Get("status"); raw != "" {
		filter.Status = domain.PaymentStatus(raw)
	}
	if raw := q.Get("kasir_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, errors.New("kasir_id must be an integer")
		}
		filter.OperatorID = id
	}
	filter.Search = q.Get("search")
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, errors.New("page must be a positive integer")
		}
		filter.Page = page
	}
	if raw := q.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 {
			return filter, errors.New("per_page must be a positive integer")
		}
		filter.PerPage = perPage
	}
	return filter, nil
}

// mapServiceError converts domain errors to HTTP status codes. Validation
// and stock problems surface their message; everything else is generic.
func mapServiceError(err error) (int, string) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return http.StatusUnprocessableEntity, stockErr.Error()
	case errors.Is(err, domain.ErrInvalidCart), errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "transaction not found"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway, "payment gateway is unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
