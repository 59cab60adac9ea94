package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenBalance é o saldo de um token acompanhado mantido pela conta conectada.
type TokenBalance struct {
	Symbol   string         `json:"symbol"`
	Token    common.Address `json:"token"`
	Raw      *big.Int       `json:"raw"`      // Menor unidade, nunca escalado
	Decimals uint8          `json:"decimals"` // Usado apenas na exibição
}

// TokenMetadata guarda os atributos ERC-20 imutáveis de um token.
type TokenMetadata struct {
	Symbol   string
	Decimals uint8
}

// TrackedToken é um token cujo saldo é exibido para a conta conectada.
type TrackedToken struct {
	Symbol  string         `json:"symbol"`
	Address common.Address `json:"address"`
}
