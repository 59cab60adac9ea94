package services

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ferreirogomes/greenfund/models"
)

var (
	ErrNotConnected  = errors.New("no wallet account connected")
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	ErrNoAccounts    = errors.New("wallet returned no accounts")

	// ErrWriteInProgress é retornado quando uma escrita tocaria uma venda ou saldo cuja escrita
	// anterior ainda não foi confirmada nem falhou.
	ErrWriteInProgress = errors.New("a conflicting transaction is still pending")
)

// ChainQueryError é retornado quando uma leitura de contrato falha, seja na chamada, por revert ou
// por uma resposta que não decodifica no formato esperado. Leituras podem ser repetidas.
type ChainQueryError struct {
	Op  string
	Err error
}

func (e *ChainQueryError) Error() string {
	return fmt.Sprintf("chain query %s: %v", e.Op, e.Err)
}

func (e *ChainQueryError) Unwrap() error { return e.Err }

// InsufficientFundsError é retornado antes de qualquer envio quando o comprador não cobre o custo.
type InsufficientFundsError struct {
	SaleID    uint64
	Required  *big.Int
	Available *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for sale %d: need %s, have %s", e.SaleID, e.Required, e.Available)
}

// UnauthorizedError é retornado quando outra conta pede uma operação exclusiva do dono.
type UnauthorizedError struct {
	Account common.Address
	Op      string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("account %s is not allowed to %s", e.Account.Hex(), e.Op)
}

// TransactionFailedError é retornado quando uma escrita não pôde ser enviada ou reverteu na chain.
// Nenhuma atualização o segue, pois o estado da chain não mudou.
type TransactionFailedError struct {
	Kind   models.TxKind
	TxHash common.Hash // Zero quando o próprio envio falhou
	Err    error
}

func (e *TransactionFailedError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("%s transaction not submitted: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s transaction %s failed: %v", e.Kind, e.TxHash.Hex(), e.Err)
}

func (e *TransactionFailedError) Unwrap() error { return e.Err }

// ConfirmationTimeoutError indica que o cliente parou de aguardar uma transação enviada. O
// resultado é desconhecido; o estado da chain deve ser relido antes de oferecer a ação de novo.
type ConfirmationTimeoutError struct {
	Kind   models.TxKind
	TxHash common.Hash
	Err    error
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("%s transaction %s not confirmed in time: %v", e.Kind, e.TxHash.Hex(), e.Err)
}

func (e *ConfirmationTimeoutError) Unwrap() error { return e.Err }

// ErrReverted é encapsulado por TransactionFailedError quando o recibo indica execução com falha.
var ErrReverted = errors.New("execution reverted")

func queryError(op string, err error) error {
	var qe *ChainQueryError
	if errors.As(err, &qe) {
		return err
	}
	return &ChainQueryError{Op: op, Err: err}
}
