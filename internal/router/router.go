package router

import (
	"net/http"

	"github.com/ak-softwares/wa-api-sub002/internal/account"
	"github.com/ak-softwares/wa-api-sub002/internal/billing"
	"github.com/ak-softwares/wa-api-sub002/internal/chat"
	"github.com/ak-softwares/wa-api-sub002/internal/dispatch"
	"github.com/ak-softwares/wa-api-sub002/internal/inbound"
	"github.com/ak-softwares/wa-api-sub002/internal/ledger"
	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/internal/report"
	"github.com/ak-softwares/wa-api-sub002/internal/server"
	"github.com/ak-softwares/wa-api-sub002/internal/usagelog"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	Account  *account.AccountHandler
	Dispatch *dispatch.DispatchHandler
	Chat     *chat.ChatHandler
	Ledger   *ledger.LedgerHandler
	Usage    *usagelog.UsageLogHandler
	Report   *report.ReportHandler
	Billing  *billing.BillingHandler
	Webhook  *inbound.WebhookHandler
}

func NewRouter(s *server.Server, h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	mw := middleware.NewMiddlewares(s)

	// Apply middleware in order
	r.Use(middleware.RequestID)
	r.Use(mw.Tracing.NewRelicMiddleware())
	r.Use(mw.Tracing.EnhanceTracing)
	r.Use(mw.ContextEnhancer.EnhanceContext)
	r.Use(mw.Global.RequestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/register", h.Account.Register)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Post("/send", h.Dispatch.SendMessage)
		})

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", h.Chat.ListChats)
			r.Post("/broadcast", h.Chat.CreateBroadcast)
			r.Post("/{chatID}/read", h.Chat.MarkRead)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/broadcasts/{chatID}/{masterID}", h.Report.GetBroadcastReport)
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/{ownerID}", h.Ledger.GetWallet)
		})

		r.Route("/usage", func(r chi.Router) {
			r.Get("/", h.Usage.ListUsage)
		})

		r.Route("/billing", func(r chi.Router) {
			r.Post("/topups", h.Billing.CreateTopup)
		})
	})

	// Provider-facing webhooks live outside the versioned API surface
	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/whatsapp", h.Webhook.Verify)
		r.Post("/whatsapp", h.Webhook.Receive)
		r.Post("/payments", h.Billing.HandlePaymentWebhook)
	})

	return r
}
