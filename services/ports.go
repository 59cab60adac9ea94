package services

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ferreirogomes/greenfund/models"
)

// SaleRecord é a tupla bruta retornada pelo getter sales(id) do crowdsale.
type SaleRecord struct {
	Seller        common.Address
	TokenAddress  common.Address
	Amount        *big.Int
	PricePerToken *big.Int
}

// CrowdsaleContract é a superfície de leitura e escrita do contrato de crowdsale.
type CrowdsaleContract interface {
	Address() common.Address

	Owner(ctx context.Context) (common.Address, error)
	SaleCount(ctx context.Context) (*big.Int, error)
	Sale(ctx context.Context, id *big.Int) (SaleRecord, error)
	Cost(ctx context.Context, id *big.Int) (*big.Int, error)
	PurchaseHistory(ctx context.Context, buyer common.Address) ([]models.PurchaseHistoryEntry, error)

	BuyToken(ctx context.Context, from common.Address, id *big.Int) (common.Hash, error)
	SetPrice(ctx context.Context, from, token common.Address, price *big.Int) (common.Hash, error)
	SellToken(ctx context.Context, from, token common.Address, amount *big.Int) (common.Hash, error)
	WithdrawToken(ctx context.Context, from, token common.Address) (common.Hash, error)
}

// TokenContract é a superfície ERC-20 usada pelo cliente. O endereço do token é passado em cada
// chamada para que uma única ligação atenda todos os tokens acompanhados.
type TokenContract interface {
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
	Metadata(ctx context.Context, token common.Address) (models.TokenMetadata, error)
	Approve(ctx context.Context, from, token, spender common.Address, amount *big.Int) (common.Hash, error)
}

// TxListener aguarda a mineração de uma transação enviada.
type TxListener interface {
	WaitForTransaction(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WalletProvider dá acesso às contas do usuário e informa trocas de conta.
type WalletProvider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	OnAccountsChanged(fn func(common.Address))
}

// Signer produz opções de transação que assinam como a conta informada.
type Signer interface {
	Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}
