package handlers

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// AdminHandler lida com as operações do crowdsale exclusivas do dono.
type AdminHandler struct {
	Orchestrator Orchestrator
	Presenter    *Presenter
}

// NewAdminHandler cria uma nova instância do handler administrativo.
func NewAdminHandler(o Orchestrator, p *Presenter) *AdminHandler {
	return &AdminHandler{Orchestrator: o, Presenter: p}
}

type amountRequest struct {
	Amount string `json:"amount"`
	Price  string `json:"price"`
}

// SetPrice define o preço do token à venda, informado em unidades do token de pagamento.
// POST /admin/price
func (h *AdminHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	price, ok := h.parse(w, r, req.Price, h.Presenter.PaymentToken)
	if !ok {
		return
	}

	receipt, err := h.Orchestrator.AdminSetPrice(r.Context(), price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// Sell coloca uma quantidade do token à venda.
// POST /admin/sell
func (h *AdminHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, ok := h.parse(w, r, req.Amount, h.Presenter.SaleToken)
	if !ok {
		return
	}

	receipt, err := h.Orchestrator.AdminSellToken(r.Context(), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// Withdraw retira o token à venda mantido pelo crowdsale.
// POST /admin/withdraw
func (h *AdminHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.Orchestrator.AdminWithdraw(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *AdminHandler) parse(w http.ResponseWriter, r *http.Request, value string, token common.Address) (*big.Int, bool) {
	meta, err := h.Presenter.Tokens.TokenMetadata(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	v, err := ParseUnits(value, meta.Decimals)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return v, true
}
