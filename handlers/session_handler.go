package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ferreirogomes/greenfund/models"
)

// Session é a parte de services.SessionContext usada pelos handlers.
type Session interface {
	Connect(ctx context.Context) (common.Address, error)
	Account() (common.Address, bool)
	Snapshot() *models.SessionSnapshot
	Resync(ctx context.Context) (*models.SessionSnapshot, error)
	RefreshCatalog(ctx context.Context) error
}

// AccountSwitcher troca a conta ativa da carteira.
type AccountSwitcher interface {
	SwitchAccount(account common.Address) error
}

// SessionHandler lida com requisições HTTP sobre o estado da conta conectada.
type SessionHandler struct {
	Session   Session
	Wallet    AccountSwitcher
	Presenter *Presenter
}

// NewSessionHandler cria uma nova instância do handler de sessão.
func NewSessionHandler(s Session, w AccountSwitcher, p *Presenter) *SessionHandler {
	return &SessionHandler{Session: s, Wallet: w, Presenter: p}
}

// Connect conecta a carteira e retorna o primeiro snapshot.
// POST /session/connect
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Session.Connect(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.GetSession(w, r)
}

// GetSession obtém o último snapshot.
// GET /session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap := h.Session.Snapshot()
	if snap == nil {
		http.Error(w, "no synchronized session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.Presenter.session(r.Context(), snap))
}

// Resync relê tudo para a conta conectada.
// POST /session/resync
func (h *SessionHandler) Resync(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Session.Resync(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Presenter.session(r.Context(), snap))
}

// SwitchAccount troca a conta ativa da carteira. A sessão é ressincronizada antes do retorno.
// POST /session/account
func (h *SessionHandler) SwitchAccount(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !common.IsHexAddress(requestBody.Address) {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	if h.Wallet == nil {
		writeError(w, errors.New("wallet does not support switching accounts"))
		return
	}

	if err := h.Wallet.SwitchAccount(common.HexToAddress(requestBody.Address)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.GetSession(w, r)
}
