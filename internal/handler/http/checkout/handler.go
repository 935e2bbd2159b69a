package checkout_http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/app/checkout"
)

type CheckoutHandler struct {
	service checkout.CheckoutService
	logger  *zap.Logger
}

func NewCheckoutHandler(s checkout.CheckoutService, l *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: s, logger: l}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req checkout.CardSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for CreateSession", zap.Error(err))
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateCardSession(r.Context(), &req)
	if err != nil {
		if errors.Is(err, checkout.ErrValidation) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Error creating checkout session", zap.String("order_id", req.OrderID), zap.Error(err))
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *CheckoutHandler) InitiateSTKPush(w http.ResponseWriter, r *http.Request) {
	var req checkout.PushPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for InitiateSTKPush", zap.Error(err))
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.InitiatePushPayment(r.Context(), &req)
	if err != nil {
		if errors.Is(err, checkout.ErrValidation) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Error initiating STK push", zap.String("order_id", req.OrderID), zap.Error(err))
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}
