package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Role da conta conectada em relação ao contrato de crowdsale.
type Role string

const (
	RoleOwner Role = "owner"
	RoleBuyer Role = "buyer"
)

// Nomes de entidades usados em SessionSnapshot.Unavailable.
const (
	EntityBalances = "balances"
	EntityCatalog  = "catalog"
	EntityHistory  = "history"
	EntityRole     = "role"
)

// SessionSnapshot é uma visão imutável de tudo o que o cliente sabe sobre a conta conectada.
// Cada atualização publica um novo snapshot; snapshots publicados nunca são modificados.
type SessionSnapshot struct {
	Version     uint64                 `json:"version"`
	Account     common.Address         `json:"account"`
	Role        Role                   `json:"role"`
	Balances    []TokenBalance         `json:"balances"`
	Catalog     Catalog                `json:"catalog"`
	History     []PurchaseHistoryEntry `json:"history"`
	Unavailable map[string]string      `json:"unavailable,omitempty"` // Nome da entidade -> último erro
	UpdatedAt   time.Time              `json:"updated_at"`
}

// IsOwner informa se a conta do snapshot era dona do contrato quando ele foi tirado.
func (s *SessionSnapshot) IsOwner() bool {
	return s != nil && s.Role == RoleOwner
}
