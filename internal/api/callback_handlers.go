package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulseiq/payments/internal/gateway"
	"github.com/pulseiq/payments/internal/middleware"
	"github.com/pulseiq/payments/internal/payment"
)

const maxCallbackBodyBytes = 1 << 20

var errEmptyCallback = errors.New("callback carries no fields")

// Result page outcomes on the frontend.
const (
	resultSuccess = "success"
	resultFail    = "fail"
	resultCancel  = "cancel"
)

// CallbackHandlers receives the gateway's browser redirects and its
// server-to-server notifications.
type CallbackHandlers struct {
	payments       PaymentService
	deliveries     payment.DeliveryLog
	metrics        *payment.Metrics
	frontendOrigin string
	now            func() time.Time
}

// NewCallbackHandlers creates a new CallbackHandlers instance. deliveries
// and metrics may be nil.
func NewCallbackHandlers(payments PaymentService, deliveries payment.DeliveryLog, metrics *payment.Metrics, frontendOrigin string) *CallbackHandlers {
	return &CallbackHandlers{
		payments:       payments,
		deliveries:     deliveries,
		metrics:        metrics,
		frontendOrigin: strings.TrimRight(frontendOrigin, "/"),
		now:            time.Now,
	}
}

// IPNResponse acknowledges an instant payment notification.
type IPNResponse struct {
	Status        string         `json:"status"`
	TransactionID string         `json:"transaction_id"`
	PaymentStatus payment.Status `json:"payment_status"`
}

// Success handles the browser redirect after a completed checkout.
// POST /payments/success
func (h *CallbackHandlers) Success(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r)
}

// Fail handles the browser redirect after a failed checkout.
// POST /payments/fail
func (h *CallbackHandlers) Fail(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r)
}

// Cancel handles the browser redirect after the customer abandons checkout.
// POST /payments/cancel
func (h *CallbackHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r)
}

// redirect validates the callback and sends the browser to the result page
// matching the stored payment status. The endpoint the gateway chose is not
// trusted; only a validated record decides the outcome.
func (h *CallbackHandlers) redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fields, err := readCallbackFields(w, r)
	if err != nil {
		slog.WarnContext(ctx, "unreadable gateway redirect", "error", err)
		http.Redirect(w, r, h.resultURL(resultFail, r.URL.Query().Get("tran_id")), http.StatusFound)
		return
	}

	record, err := h.payments.ValidateCallback(ctx, fields)
	if err != nil {
		slog.WarnContext(ctx, "gateway redirect rejected",
			"transaction_id", fields["tran_id"],
			"kind", payment.KindOf(err).String(),
			"error", err)
		http.Redirect(w, r, h.resultURL(resultFail, fields["tran_id"]), http.StatusFound)
		return
	}
	h.recordDelivery(r, fields, record)

	http.Redirect(w, r, h.resultURL(resultFor(record.Status), record.TransactionID), http.StatusFound)
}

// IPN handles the gateway's server-to-server instant payment notification.
// POST /payments/ipn
func (h *CallbackHandlers) IPN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fields, err := readCallbackFields(w, r)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid notification body")
		return
	}

	record, err := h.payments.ValidateCallback(ctx, fields)
	if err != nil {
		switch kind := payment.KindOf(err); kind {
		case payment.KindNotFound:
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "payment not found")
		case payment.KindSignatureMismatch:
			ctx = middleware.SetErrorCode(ctx, ErrCodeSignatureMismatch)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeSignatureMismatch, "invalid signature")
		default:
			slog.ErrorContext(ctx, "failed to process payment notification",
				"transaction_id", fields["tran_id"],
				"error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process notification")
		}
		return
	}
	h.recordDelivery(r, fields, record)

	writeJSON(w, ctx, http.StatusOK, IPNResponse{
		Status:        "received",
		TransactionID: record.TransactionID,
		PaymentStatus: record.Status,
	})
}

// recordDelivery notes an accepted callback. Repeats are counted so gateway
// redelivery can be told apart from new notifications.
func (h *CallbackHandlers) recordDelivery(r *http.Request, fields map[string]string, record *payment.Record) {
	if h.deliveries == nil {
		return
	}
	ctx := r.Context()
	err := h.deliveries.RecordDelivery(ctx, payment.CallbackDelivery{
		TransactionID: record.TransactionID,
		ValidationID:  strings.TrimSpace(fields["val_id"]),
		Status:        strings.ToUpper(strings.TrimSpace(fields["status"])),
		ReceivedAt:    h.now(),
	})
	switch {
	case errors.Is(err, payment.ErrDuplicateDelivery):
		h.metrics.IncDuplicateCallback()
		slog.InfoContext(ctx, "repeated callback delivery",
			"transaction_id", record.TransactionID,
			"path", r.URL.Path)
	case err != nil:
		slog.WarnContext(ctx, "failed to record callback delivery",
			"transaction_id", record.TransactionID,
			"error", err)
	}
}

func (h *CallbackHandlers) resultURL(outcome, transactionID string) string {
	target := h.frontendOrigin + "/result/" + outcome
	if transactionID = strings.TrimSpace(transactionID); transactionID != "" {
		target += "?tran_id=" + url.QueryEscape(transactionID)
	}
	return target
}

func resultFor(status payment.Status) string {
	switch status {
	case payment.StatusCompleted:
		return resultSuccess
	case payment.StatusCancelled:
		return resultCancel
	default:
		return resultFail
	}
}

// readCallbackFields flattens a callback payload. The gateway posts
// urlencoded forms; JSON bodies are accepted for replays and tooling.
func readCallbackFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		fields := gateway.ParseResponse(string(body))
		if len(fields) == 0 {
			return nil, errEmptyCallback
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(r.Form))
	for key, values := range r.Form {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	if len(fields) == 0 {
		return nil, errEmptyCallback
	}
	return fields, nil
}
