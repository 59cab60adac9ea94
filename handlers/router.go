package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers agrupa tudo o que o roteador monta.
type Handlers struct {
	Session *SessionHandler
	Sale    *SaleHandler
	Admin   *AdminHandler
	Stream  *SnapshotStream
}

// NewRouter monta a API do cliente.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.Session.GetSession)
		r.Post("/connect", h.Session.Connect)
		r.Post("/account", h.Session.SwitchAccount)
		r.Post("/resync", h.Session.Resync)
	})

	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.Sale.ListSales)
		r.Post("/refresh", h.Sale.RefreshSales)
		r.Get("/{id}", h.Sale.GetSale)
		r.Post("/{id}/buy", h.Sale.Buy)
		r.Post("/{id}/approve-buy", h.Sale.ApproveAndBuy)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/price", h.Admin.SetPrice)
		r.Post("/sell", h.Admin.Sell)
		r.Post("/withdraw", h.Admin.Withdraw)
	})

	r.Get("/transactions/pending", h.Sale.PendingTransactions)
	if h.Stream != nil {
		r.Handle("/ws", h.Stream)
	}

	return r
}
