package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SaleListing é uma oferta no contrato de crowdsale para vender uma quantidade de token a preço fixo.
type SaleListing struct {
	ID              uint64         `json:"id"` // Atribuído pelo contrato, base 1
	Seller          common.Address `json:"seller"`
	TokenAddress    common.Address `json:"token_address"`
	AmountRemaining *big.Int       `json:"amount_remaining"`
	PricePerToken   *big.Int       `json:"price_per_token"`
	TotalCost       *big.Int       `json:"total_cost"` // Conforme getCost do contrato
}

// ListingFailure registra uma venda que não pôde ser resolvida ao atualizar o catálogo.
type ListingFailure struct {
	ID  uint64 `json:"id"`
	Err string `json:"error"`
}

// Catalog é uma visão sincronizada das vendas ativas.
type Catalog struct {
	Listings  []SaleListing    `json:"listings"`
	Failures  []ListingFailure `json:"failures,omitempty"`
	SaleCount uint64           `json:"sale_count"`
	SyncedAt  time.Time        `json:"synced_at"`
}

// Listing retorna a venda com o id informado, se existir.
func (c Catalog) Listing(id uint64) (SaleListing, bool) {
	for _, l := range c.Listings {
		if l.ID == id {
			return l, true
		}
	}
	return SaleListing{}, false
}

// PurchaseHistoryEntry é uma compra registrada pelo contrato para um comprador.
type PurchaseHistoryEntry struct {
	Amount    *big.Int `json:"amount"`
	Timestamp int64    `json:"timestamp"` // Segundos desde a época Unix
}

// Time converte o timestamp da entrada para time.Time.
func (e PurchaseHistoryEntry) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}
