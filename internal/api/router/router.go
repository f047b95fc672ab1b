package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/mediswift/intake-platform/internal/http/middleware"
	"github.com/mediswift/intake-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	// Channel webhooks. Nil handlers leave their routes unregistered.
	WhatsAppVerification http.HandlerFunc
	WhatsAppWebhook      http.HandlerFunc
	TelegramWebhook      http.HandlerFunc

	// Diarization provider callback.
	DiarizationCallback http.HandlerFunc

	MetricsHandler http.Handler

	// WebhookRateLimit is requests/sec per IP on webhook routes; zero
	// disables rate limiting.
	WebhookRateLimit float64
	WebhookBurst     int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/webhooks", func(hooks chi.Router) {
		if cfg.WebhookRateLimit > 0 {
			hooks.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookBurst))
		}
		if cfg.WhatsAppVerification != nil {
			hooks.Get("/whatsapp", cfg.WhatsAppVerification)
		}
		if cfg.WhatsAppWebhook != nil {
			hooks.Post("/whatsapp", cfg.WhatsAppWebhook)
		}
		if cfg.TelegramWebhook != nil {
			hooks.Post("/telegram", cfg.TelegramWebhook)
		}
		if cfg.DiarizationCallback != nil {
			hooks.Post("/diarization", cfg.DiarizationCallback)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
