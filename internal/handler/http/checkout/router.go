package checkout_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/app/checkout"
)

func RegisterRoutes(r chi.Router, s checkout.CheckoutService, l *zap.Logger) {
	handler := NewCheckoutHandler(s, l.With(zap.String("component", "CheckoutHTTPHandler")))

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/session", handler.CreateSession)
		r.Post("/stkpush", handler.InitiateSTKPush)
	})
}
