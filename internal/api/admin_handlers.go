package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pulseiq/payments/internal/middleware"
	"github.com/pulseiq/payments/internal/payment"
	"github.com/pulseiq/payments/internal/validate"
)

// AdminHandlers exposes payment reporting to operators.
type AdminHandlers struct {
	repo payment.Repository
}

// NewAdminHandlers creates a new AdminHandlers instance.
func NewAdminHandlers(repo payment.Repository) *AdminHandlers {
	return &AdminHandlers{repo: repo}
}

// PaymentSummaryResponse aggregates payments per status.
type PaymentSummaryResponse struct {
	Summary []payment.StatusSummary `json:"summary"`
}

// PaymentListResponse is a filtered list of payments.
type PaymentListResponse struct {
	Payments []*payment.Record `json:"payments"`
	Count    int               `json:"count"`
}

// Summary returns the count and total amount of payments per status.
// GET /admin/payments/summary
func (h *AdminHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.repo.Summarize(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to summarize payments", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to summarize payments")
		return
	}
	if summary == nil {
		summary = []payment.StatusSummary{}
	}

	writeJSON(w, ctx, http.StatusOK, PaymentSummaryResponse{Summary: summary})
}

// List returns payments filtered by status, customer email, or both.
// GET /admin/payments?status=COMPLETED&email=user@example.com
func (h *AdminHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	rawStatus := strings.ToUpper(strings.TrimSpace(query.Get("status")))
	rawEmail := strings.TrimSpace(query.Get("email"))

	if rawStatus == "" && rawEmail == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "status or email query parameter is required")
		return
	}

	var (
		records []*payment.Record
		err     error
		email   string
	)
	if rawEmail != "" {
		if email, err = validate.Email(rawEmail); err != nil {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "email: "+err.Error())
			return
		}
	}

	if rawStatus != "" {
		status, ok := payment.ParseRecordStatus(rawStatus)
		if !ok {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "unknown status "+rawStatus)
			return
		}
		records, err = h.repo.ListByStatus(ctx, status)
		if err == nil && email != "" {
			records = filterByEmail(records, email)
		}
	} else {
		records, err = h.repo.ListByCustomerEmail(ctx, email)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to list payments", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list payments")
		return
	}
	if records == nil {
		records = []*payment.Record{}
	}

	writeJSON(w, ctx, http.StatusOK, PaymentListResponse{Payments: records, Count: len(records)})
}

func filterByEmail(records []*payment.Record, email string) []*payment.Record {
	filtered := records[:0]
	for _, rec := range records {
		if strings.EqualFold(rec.CustomerEmail, email) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}
