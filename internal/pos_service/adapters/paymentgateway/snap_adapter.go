package paymentgateway

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
)

const (
	productionSnapBaseURL = "https://app.midtrans.com/snap/v1"
	sandboxSnapBaseURL    = "https://app.sandbox.midtrans.com/snap/v1"
	productionAPIBaseURL  = "https://api.midtrans.com/v2"
	sandboxAPIBaseURL     = "https://api.sandbox.midtrans.com/v2"

	sessionExpiryMinutes = 60
	maxItemNameLength    = 50
)

// SnapConfig configures the hosted-checkout gateway client. Empty base
// URLs are derived from IsProduction; tests point them at a local server.
type SnapConfig struct {
	ServerKey    string
	ClientKey    string
	IsProduction bool
	FrontendURL  string
	SnapBaseURL  string
	APIBaseURL   string
}

// SnapGatewayAdapter talks to a Midtrans-Snap-style payment gateway:
// hosted checkout sessions, status polling and webhook signatures.
type SnapGatewayAdapter struct {
	logger      *slog.Logger
	httpClient  *http.Client
	serverKey   string
	clientKey   string
	frontendURL string
	snapBaseURL string
	apiBaseURL  string
}

func NewSnapGatewayAdapter(logger *slog.Logger, cfg SnapConfig, httpClient *http.Client) *SnapGatewayAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	snapBase := cfg.SnapBaseURL
	apiBase := cfg.APIBaseURL
	if snapBase == "" {
		if cfg.IsProduction {
			snapBase = productionSnapBaseURL
		} else {
			snapBase = sandboxSnapBaseURL
		}
	}
	if apiBase == "" {
		if cfg.IsProduction {
			apiBase = productionAPIBaseURL
		} else {
			apiBase = sandboxAPIBaseURL
		}
	}
	return &SnapGatewayAdapter{
		logger:      logger.With("adapter", "snap_gateway"),
		httpClient:  httpClient,
		serverKey:   cfg.ServerKey,
		clientKey:   cfg.ClientKey,
		frontendURL: cfg.FrontendURL,
		snapBaseURL: snapBase,
		apiBaseURL:  apiBase,
	}
}

type snapItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type snapTransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type snapCustomerDetails struct {
	FirstName string `json:"first_name"`
	Phone     string `json:"phone"`
}

type snapCallbacks struct {
	Finish  string `json:"finish"`
	Error   string `json:"error"`
	Pending string `json:"pending"`
}

type snapExpiry struct {
	Unit     string `json:"unit"`
	Duration int    `json:"duration"`
}

type snapCreateRequest struct {
	TransactionDetails snapTransactionDetails `json:"transaction_details"`
	ItemDetails        []snapItemDetail       `json:"item_details"`
	CustomerDetails    snapCustomerDetails    `json:"customer_details"`
	Callbacks          snapCallbacks          `json:"callbacks"`
	Expiry             snapExpiry             `json:"expiry"`
	EnabledPayments    []string               `json:"enabled_payments"`
}

type snapCreateResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

type snapErrorResponse struct {
	ErrorMessages []string `json:"error_messages"`
	StatusMessage string   `json:"status_message"`
}

type snapStatusResponse struct {
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

var enabledPayments = []string{
	"credit_card", "bca_va", "bni_va", "bri_va",
	"mandiri_va", "permata_va", "gopay", "shopeepay",
	"dana", "ovo", "qris",
}

// CreateSession opens a hosted-checkout session for the transaction. Tax
// and discount ride along as synthetic line items so the item details add
// up to the gross amount.
func (a *SnapGatewayAdapter) CreateSession(ctx context.Context, txn *domain.Transaction) (*domain.CreateSessionResponse, error) {
	if a.serverKey == "" {
		a.logger.ErrorContext(ctx, "Gateway server key is missing")
		return nil, fmt.Errorf("%w: gateway server key is not configured", domain.ErrGatewayUnavailable)
	}
	if txn.GatewayOrderID == nil {
		return nil, fmt.Errorf("%w: transaction has no gateway order id", domain.ErrGatewayUnavailable)
	}

	items := make([]snapItemDetail, 0, len(txn.Items)+2)
	for _, item := range txn.Items {
		id := ""
		if item.ProductID != nil {
			id = strconv.FormatInt(*item.ProductID, 10)
		}
		name := item.ProductName
		if len(name) > maxItemNameLength {
			name = name[:maxItemNameLength]
		}
		items = append(items, snapItemDetail{
			ID:       id,
			Price:    item.Price,
			Quantity: item.Quantity,
			Name:     name,
		})
		if item.Discount > 0 {
			items = append(items, snapItemDetail{
				ID:       "DISCOUNT-" + id,
				Price:    -item.Discount,
				Quantity: 1,
				Name:     "Diskon " + name,
			})
		}
	}
	if txn.Tax > 0 {
		items = append(items, snapItemDetail{ID: "TAX", Price: txn.Tax, Quantity: 1, Name: "Pajak"})
	}
	if txn.Discount > 0 {
		items = append(items, snapItemDetail{ID: "DISCOUNT", Price: -txn.Discount, Quantity: 1, Name: "Diskon"})
	}

	phone := ""
	if txn.CustomerPhone != nil {
		phone = *txn.CustomerPhone
	}
	txnID := strconv.FormatInt(txn.ID, 10)
	reqBody := snapCreateRequest{
		TransactionDetails: snapTransactionDetails{OrderID: *txn.GatewayOrderID, GrossAmount: txn.Total},
		ItemDetails:        items,
		CustomerDetails:    snapCustomerDetails{FirstName: txn.CustomerName, Phone: phone},
		Callbacks: snapCallbacks{
			Finish:  a.frontendURL + "/pos/success/" + txnID,
			Error:   a.frontendURL + "/pos/failed/" + txnID,
			Pending: a.frontendURL + "/pos/pending/" + txnID,
		},
		Expiry:          snapExpiry{Unit: "minute", Duration: sessionExpiryMinutes},
		EnabledPayments: enabledPayments,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling gateway session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.snapBaseURL+"/transactions", bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("building gateway session request: %w", err)
	}
	httpReq.SetBasicAuth(a.serverKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		a.logger.ErrorContext(ctx, "Gateway session request failed", "order_id", *txn.GatewayOrderID, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading gateway response: %v", domain.ErrGatewayUnavailable, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp snapErrorResponse
		_ = json.Unmarshal(respBytes, &errResp)
		msg := "failed to create gateway session"
		if len(errResp.ErrorMessages) > 0 {
			msg = errResp.ErrorMessages[0]
		} else if httpResp.StatusCode == http.StatusUnauthorized {
			msg = "gateway rejected the server key (unauthorized)"
		}
		a.logger.ErrorContext(ctx, "Gateway session creation rejected",
			"order_id", *txn.GatewayOrderID, "status_code", httpResp.StatusCode, "message", msg)
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayUnavailable, msg)
	}

	var createResp snapCreateResponse
	if err := json.Unmarshal(respBytes, &createResp); err != nil {
		return nil, fmt.Errorf("%w: decoding gateway response: %v", domain.ErrGatewayUnavailable, err)
	}

	a.logger.InfoContext(ctx, "Gateway session created", "order_id", *txn.GatewayOrderID)
	return &domain.CreateSessionResponse{Token: createResp.Token, RedirectURL: createResp.RedirectURL}, nil
}

// FetchStatus polls the gateway for the payment attempt's current state.
func (a *SnapGatewayAdapter) FetchStatus(ctx context.Context, orderID string) (*domain.StatusResponse, error) {
	if a.serverKey == "" {
		return nil, fmt.Errorf("%w: gateway server key is not configured", domain.ErrGatewayUnavailable)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBaseURL+"/"+orderID+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("building gateway status request: %w", err)
	}
	httpReq.SetBasicAuth(a.serverKey, "")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		a.logger.ErrorContext(ctx, "Gateway status request failed", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading gateway response: %v", domain.ErrGatewayUnavailable, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp snapErrorResponse
		_ = json.Unmarshal(respBytes, &errResp)
		msg := errResp.StatusMessage
		if msg == "" {
			msg = "gateway status lookup failed"
		}
		a.logger.WarnContext(ctx, "Gateway status lookup rejected",
			"order_id", orderID, "status_code", httpResp.StatusCode, "message", msg)
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayUnavailable, msg)
	}

	var statusResp snapStatusResponse
	if err := json.Unmarshal(respBytes, &statusResp); err != nil {
		return nil, fmt.Errorf("%w: decoding gateway status: %v", domain.ErrGatewayUnavailable, err)
	}
	return &domain.StatusResponse{
		TransactionStatus: statusResp.TransactionStatus,
		FraudStatus:       statusResp.FraudStatus,
	}, nil
}

// VerifySignature recomputes the webhook digest,
// sha512(orderID‖statusCode‖grossAmount‖serverKey), and compares it to the
// received signature in constant time.
func (a *SnapGatewayAdapter) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + a.serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// ClientKey exposes the public key the frontend embeds in the checkout
// widget.
func (a *SnapGatewayAdapter) ClientKey() string { return a.clientKey }
