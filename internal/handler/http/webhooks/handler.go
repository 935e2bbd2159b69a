package webhooks_http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/app/reconcile"
	"storefront/internal/provider/daraja"
	"storefront/internal/provider/stripe"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	service       reconcile.ReconcileService
	callbackToken string
	logger        *zap.Logger
}

func NewWebhookHandler(s reconcile.ReconcileService, callbackToken string, l *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: s, callbackToken: callbackToken, logger: l}
}

// HandleCardWebhook consumes the signed provider webhook. Bad
// signatures are a 400 with no ledger change; ledger errors surface as
// 500 so the provider redelivers.
func (h *WebhookHandler) HandleCardWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("Failed to read card webhook body", zap.Error(err))
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	err = h.service.HandleCardEvent(r.Context(), rawBody, r.Header.Get(stripe.SignatureHeader))
	if err != nil {
		if errors.Is(err, reconcile.ErrBadSignature) {
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}
		h.logger.Error("Failed to process card webhook", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"received":true}`))
}

// HandleMpesaCallback consumes the unsigned provider callback. The
// provider requires its acknowledgment body on every delivery, so
// internal failures are logged and masked.
func (h *WebhookHandler) HandleMpesaCallback(w http.ResponseWriter, r *http.Request) {
	if h.callbackToken != "" {
		token := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.callbackToken)) != 1 {
			h.logger.Warn("Rejected mpesa callback with bad token", zap.String("remote_addr", r.RemoteAddr))
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
	}

	var envelope daraja.CallbackEnvelope
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&envelope); err != nil {
		h.logger.Warn("Failed to decode mpesa callback body", zap.Error(err))
		h.acknowledge(w)
		return
	}

	if err := h.service.HandleMpesaCallback(r.Context(), &envelope.Body.StkCallback); err != nil {
		// Masked so the provider does not retry an event the ledger may
		// already have applied.
		h.logger.Error("Failed to process mpesa callback",
			zap.String("checkout_request_id", envelope.Body.StkCallback.CheckoutRequestID),
			zap.Error(err))
	}

	h.acknowledge(w)
}

func (h *WebhookHandler) acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ResultCode":0,"ResultDesc":"Accepted"}`))
}
