package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pulseiq/payments/internal/middleware"
	"github.com/pulseiq/payments/internal/payment"
	"github.com/pulseiq/payments/internal/validate"
)

const maxInitiateBodyBytes = 64 << 10

// PaymentService initiates payments and applies gateway callbacks.
type PaymentService interface {
	Initiate(ctx context.Context, in payment.InitiateInput) (*payment.InitiateResult, error)
	ValidateCallback(ctx context.Context, fields map[string]string) (*payment.Record, error)
}

// ConfirmationService issues and checks payment confirmation codes.
type ConfirmationService interface {
	Issue(ctx context.Context, transactionID, email, name string) error
	Verify(ctx context.Context, transactionID, code string) (bool, error)
}

// PaymentHandlers holds dependencies for customer-facing payment handlers.
type PaymentHandlers struct {
	payments      PaymentService
	repo          payment.Repository
	confirmations ConfirmationService
	notifyTimeout time.Duration

	// tracks confirmation mails still being sent
	notifications sync.WaitGroup
}

// NewPaymentHandlers creates a new PaymentHandlers instance.
// confirmations may be nil, in which case no confirmation code is sent and
// the confirm endpoint reports the feature as unavailable.
func NewPaymentHandlers(payments PaymentService, repo payment.Repository, confirmations ConfirmationService) *PaymentHandlers {
	return &PaymentHandlers{
		payments:      payments,
		repo:          repo,
		confirmations: confirmations,
		notifyTimeout: 30 * time.Second,
	}
}

// Wait blocks until confirmation mails started by Initiate have been handed
// to the sender.
func (h *PaymentHandlers) Wait() {
	h.notifications.Wait()
}

// InitiatePaymentRequest is the body of POST /payments/initiate.
type InitiatePaymentRequest struct {
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
}

// InitiatePaymentResponse is returned by POST /payments/initiate.
type InitiatePaymentResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	GatewayURL    string `json:"gateway_url,omitempty"`
	Message       string `json:"message,omitempty"`
	Code          string `json:"code,omitempty"`
}

// PaymentStatusResponse is the public view of a payment used by the
// frontend result page. Customer contact details are not included.
type PaymentStatusResponse struct {
	TransactionID string          `json:"transaction_id"`
	Status        payment.Status  `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ConfirmPaymentRequest is the body of POST /payments/{tran_id}/confirm.
type ConfirmPaymentRequest struct {
	Code string `json:"code"`
}

// ConfirmPaymentResponse reports whether a confirmation code matched.
type ConfirmPaymentResponse struct {
	Valid bool `json:"valid"`
}

// Initiate opens a gateway checkout session for a customer.
// POST /payments/initiate (also /payments/initiate-direct)
func (h *PaymentHandlers) Initiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req InitiatePaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInitiateBodyBytes)).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	input, field, err := req.toInput()
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, field+": "+err.Error())
		return
	}

	result, err := h.payments.Initiate(ctx, input)
	if err != nil {
		var perr *payment.Error
		if errors.As(err, &perr) && perr.Kind == payment.KindInvalidInput {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, perr.Message)
			return
		}
		slog.ErrorContext(ctx, "failed to initiate payment", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to create payment")
		return
	}

	if !result.Success {
		code := errorCodeForKind(result.Kind)
		middleware.UpdateResponseContext(w, middleware.SetErrorCode(ctx, code))
		writeJSON(w, ctx, StatusCodeMapping(code), InitiatePaymentResponse{
			TransactionID: result.TransactionID,
			Message:       result.Message,
			Code:          code,
		})
		return
	}

	h.sendConfirmation(ctx, result.TransactionID, input.CustomerEmail, input.CustomerName)

	writeJSON(w, ctx, http.StatusOK, InitiatePaymentResponse{
		Success:       true,
		TransactionID: result.TransactionID,
		GatewayURL:    result.GatewayURL,
	})
}

// sendConfirmation mails the confirmation code in the background. Failures
// are logged and never affect the initiation response.
func (h *PaymentHandlers) sendConfirmation(ctx context.Context, transactionID, email, name string) {
	if h.confirmations == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.notifyTimeout)
	h.notifications.Add(1)
	go func() {
		defer h.notifications.Done()
		defer cancel()
		if err := h.confirmations.Issue(ctx, transactionID, email, name); err != nil {
			slog.WarnContext(ctx, "failed to send payment confirmation",
				"transaction_id", transactionID,
				"error", err)
		}
	}()
}

// toInput validates and normalizes the request. On failure it also returns
// the name of the offending field.
func (req InitiatePaymentRequest) toInput() (payment.InitiateInput, string, error) {
	var (
		in  payment.InitiateInput
		err error
	)
	if in.CustomerName, err = validate.CustomerName(req.CustomerName); err != nil {
		return in, "customer_name", err
	}
	if in.CustomerEmail, err = validate.Email(req.CustomerEmail); err != nil {
		return in, "customer_email", err
	}
	if in.CustomerPhone, err = validate.Phone(req.CustomerPhone); err != nil {
		return in, "customer_phone", err
	}
	if in.CustomerAddress, err = validate.Address(req.CustomerAddress); err != nil {
		return in, "customer_address", err
	}
	if in.Description, err = validate.Description(req.Description); err != nil {
		return in, "description", err
	}
	if in.Currency, err = validate.Currency(req.Currency); err != nil {
		return in, "currency", err
	}
	if !req.Amount.IsPositive() {
		return in, "amount", errors.New("must be greater than zero")
	}
	in.Amount = req.Amount
	return in, "", nil
}

// GetPayment returns the public status of a payment.
// GET /payments/{tran_id}
func (h *PaymentHandlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	transactionID := strings.TrimSpace(r.PathValue("tran_id"))

	record, err := h.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, payment.ErrRecordNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "payment not found")
			return
		}
		slog.ErrorContext(ctx, "failed to load payment", "transaction_id", transactionID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load payment")
		return
	}

	writeJSON(w, ctx, http.StatusOK, PaymentStatusResponse{
		TransactionID: record.TransactionID,
		Status:        record.Status,
		Amount:        record.Amount,
		Currency:      record.Currency,
		PaymentMethod: record.PaymentMethod,
		Description:   record.Description,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	})
}

// ConfirmPayment checks a confirmation code. A code can be used once.
// POST /payments/{tran_id}/confirm
func (h *PaymentHandlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.confirmations == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeConfiguration)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeConfiguration, "payment confirmation is not enabled")
		return
	}

	var req ConfirmPaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "code is required")
		return
	}

	transactionID := strings.TrimSpace(r.PathValue("tran_id"))
	valid, err := h.confirmations.Verify(ctx, transactionID, code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to verify confirmation code", "transaction_id", transactionID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to verify code")
		return
	}

	writeJSON(w, ctx, http.StatusOK, ConfirmPaymentResponse{Valid: valid})
}
