package webhooks_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/app/reconcile"
)

func RegisterRoutes(r chi.Router, s reconcile.ReconcileService, callbackToken string, l *zap.Logger) {
	handler := NewWebhookHandler(s, callbackToken, l.With(zap.String("component", "WebhookHTTPHandler")))

	r.Post("/webhooks/card", handler.HandleCardWebhook)
	r.Post("/callbacks/mpesa", handler.HandleMpesaCallback)
}
