package handlers

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/ferreirogomes/greenfund/models"
	"github.com/ferreirogomes/greenfund/services"
)

// Orchestrator é a parte de services.TransactionOrchestrator usada pelos handlers.
type Orchestrator interface {
	Purchase(ctx context.Context, saleID uint64, buyer common.Address) (models.Receipt, error)
	ApproveAndPurchase(ctx context.Context, saleID uint64, amount *big.Int, buyer common.Address) (models.Receipt, error)
	AdminSetPrice(ctx context.Context, price *big.Int) (models.Receipt, error)
	AdminSellToken(ctx context.Context, amount *big.Int) (models.Receipt, error)
	AdminWithdraw(ctx context.Context) (models.Receipt, error)
	Pending() []models.PendingTransaction
}

// SaleHandler lida com requisições HTTP do catálogo de vendas e das compras.
type SaleHandler struct {
	Session      Session
	Orchestrator Orchestrator
	Presenter    *Presenter
}

// NewSaleHandler cria uma nova instância do handler de vendas.
func NewSaleHandler(s Session, o Orchestrator, p *Presenter) *SaleHandler {
	return &SaleHandler{Session: s, Orchestrator: o, Presenter: p}
}

// ListSales retorna o catálogo do último snapshot.
// GET /sales
func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	snap := h.Session.Snapshot()
	if snap == nil {
		writeError(w, services.ErrNotConnected)
		return
	}
	writeJSON(w, http.StatusOK, h.Presenter.catalog(r.Context(), snap.Catalog))
}

// RefreshSales relê o catálogo.
// POST /sales/refresh
func (h *SaleHandler) RefreshSales(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.RefreshCatalog(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.ListSales(w, r)
}

// GetSale obtém uma venda do último snapshot.
// GET /sales/{id}
func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	snap := h.Session.Snapshot()
	if snap == nil {
		writeError(w, services.ErrNotConnected)
		return
	}
	listing, found := snap.Catalog.Listing(id)
	if !found {
		http.Error(w, "sale not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.Presenter.listing(r.Context(), listing))
}

// Buy compra uma venda com a conta conectada.
// POST /sales/{id}/buy
func (h *SaleHandler) Buy(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	buyer, connected := h.Session.Account()
	if !connected {
		writeError(w, services.ErrNotConnected)
		return
	}

	receipt, err := h.Orchestrator.Purchase(r.Context(), id, buyer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// ApproveAndBuy aprova a permissão do token de pagamento e então compra.
// POST /sales/{id}/approve-buy
func (h *SaleHandler) ApproveAndBuy(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	var requestBody struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	buyer, connected := h.Session.Account()
	if !connected {
		writeError(w, services.ErrNotConnected)
		return
	}

	meta, err := h.Presenter.Tokens.TokenMetadata(r.Context(), h.Presenter.PaymentToken)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := ParseUnits(requestBody.Amount, meta.Decimals)
	if err != nil {
		writeError(w, err)
		return
	}

	receipt, err := h.Orchestrator.ApproveAndPurchase(r.Context(), id, amount, buyer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// PendingTransactions lista as transações aguardando confirmação.
// GET /transactions/pending
func (h *SaleHandler) PendingTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Orchestrator.Pending())
}

func saleID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "sale id must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
