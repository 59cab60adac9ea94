package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxKind identifica a chamada de alteração de estado que uma transação carrega.
type TxKind string

const (
	TxApprove  TxKind = "approve"
	TxBuy      TxKind = "buy"
	TxSetPrice TxKind = "setPrice"
	TxSell     TxKind = "sell"
	TxWithdraw TxKind = "withdraw"
)

// TxStatus é o estado do ciclo de vida de uma transação pendente.
type TxStatus string

const (
	TxSubmitted TxStatus = "submitted"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// PendingTransaction acompanha uma escrita do envio até o resultado ser informado.
type PendingTransaction struct {
	ID          string      `json:"id"`
	Kind        TxKind      `json:"kind"`
	ListingID   *uint64     `json:"listing_id,omitempty"`
	TxHash      common.Hash `json:"tx_hash"`
	SubmittedAt time.Time   `json:"submitted_at"`
	Status      TxStatus    `json:"status"`
}

// Receipt descreve uma transação confirmada.
type Receipt struct {
	Kind        TxKind      `json:"kind"`
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
	ConfirmedAt time.Time   `json:"confirmed_at"`
}
