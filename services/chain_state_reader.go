package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ferreirogomes/greenfund/models"
)

var errNegative = errors.New("negative value in contract response")

// ChainStateReader responde consultas somente leitura sobre o crowdsale e seus tokens. Todo erro
// retornado é um *ChainQueryError.
type ChainStateReader struct {
	Crowdsale CrowdsaleContract
	Tokens    TokenContract

	metaMu sync.Mutex
	meta   map[common.Address]models.TokenMetadata
}

// NewChainStateReader cria um leitor sobre as ligações de contrato informadas.
func NewChainStateReader(crowdsale CrowdsaleContract, tokens TokenContract) *ChainStateReader {
	return &ChainStateReader{
		Crowdsale: crowdsale,
		Tokens:    tokens,
		meta:      make(map[common.Address]models.TokenMetadata),
	}
}

// GetTokenBalance retorna o saldo bruto de token mantido por account.
func (r *ChainStateReader) GetTokenBalance(ctx context.Context, account, token common.Address) (models.TokenBalance, error) {
	meta, err := r.tokenMetadata(ctx, token)
	if err != nil {
		return models.TokenBalance{}, err
	}

	raw, err := r.Tokens.BalanceOf(ctx, token, account)
	if err != nil {
		return models.TokenBalance{}, queryError("balanceOf", err)
	}
	if err := checkAmount(raw); err != nil {
		return models.TokenBalance{}, queryError("balanceOf", err)
	}

	return models.TokenBalance{
		Symbol:   meta.Symbol,
		Token:    token,
		Raw:      new(big.Int).Set(raw),
		Decimals: meta.Decimals,
	}, nil
}

// TokenMetadata retorna o símbolo e as casas decimais de token.
func (r *ChainStateReader) TokenMetadata(ctx context.Context, token common.Address) (models.TokenMetadata, error) {
	return r.tokenMetadata(ctx, token)
}

func (r *ChainStateReader) tokenMetadata(ctx context.Context, token common.Address) (models.TokenMetadata, error) {
	r.metaMu.Lock()
	meta, ok := r.meta[token]
	r.metaMu.Unlock()
	if ok {
		return meta, nil
	}

	meta, err := r.Tokens.Metadata(ctx, token)
	if err != nil {
		return models.TokenMetadata{}, queryError("token metadata", err)
	}

	r.metaMu.Lock()
	r.meta[token] = meta
	r.metaMu.Unlock()
	return meta, nil
}

// GetOwner retorna a conta registrada como dona do crowdsale.
func (r *ChainStateReader) GetOwner(ctx context.Context) (common.Address, error) {
	owner, err := r.Crowdsale.Owner(ctx)
	if err != nil {
		return common.Address{}, queryError("owner", err)
	}
	return owner, nil
}

// GetSaleCount retorna quantas vendas o contrato já criou.
func (r *ChainStateReader) GetSaleCount(ctx context.Context) (uint64, error) {
	count, err := r.Crowdsale.SaleCount(ctx)
	if err != nil {
		return 0, queryError("saleCount", err)
	}
	if err := checkAmount(count); err != nil {
		return 0, queryError("saleCount", err)
	}
	if !count.IsUint64() {
		return 0, queryError("saleCount", fmt.Errorf("sale count %s out of range", count))
	}
	return count.Uint64(), nil
}

// GetSaleListing retorna a venda com o id informado (base 1). found é false quando não resta nada
// a vender: uma venda esgotada e uma venda nunca criada são indistinguíveis.
// TotalCost fica nil; use GetCost.
func (r *ChainStateReader) GetSaleListing(ctx context.Context, id uint64) (models.SaleListing, bool, error) {
	rec, err := r.Crowdsale.Sale(ctx, new(big.Int).SetUint64(id))
	if err != nil {
		return models.SaleListing{}, false, queryError(fmt.Sprintf("sales(%d)", id), err)
	}
	if err := checkAmount(rec.Amount); err != nil {
		return models.SaleListing{}, false, queryError(fmt.Sprintf("sales(%d)", id), err)
	}
	if err := checkAmount(rec.PricePerToken); err != nil {
		return models.SaleListing{}, false, queryError(fmt.Sprintf("sales(%d)", id), err)
	}
	if rec.Amount.Sign() == 0 {
		return models.SaleListing{}, false, nil
	}

	return models.SaleListing{
		ID:              id,
		Seller:          rec.Seller,
		TokenAddress:    rec.TokenAddress,
		AmountRemaining: new(big.Int).Set(rec.Amount),
		PricePerToken:   new(big.Int).Set(rec.PricePerToken),
	}, true, nil
}

// GetCost retorna quanto o contrato cobra pelo restante de uma venda, na menor unidade do token de
// pagamento. O id é repassado sem alteração.
func (r *ChainStateReader) GetCost(ctx context.Context, saleID uint64) (*big.Int, error) {
	cost, err := r.Crowdsale.Cost(ctx, new(big.Int).SetUint64(saleID))
	if err != nil {
		return nil, queryError(fmt.Sprintf("getCost(%d)", saleID), err)
	}
	if err := checkAmount(cost); err != nil {
		return nil, queryError(fmt.Sprintf("getCost(%d)", saleID), err)
	}
	return new(big.Int).Set(cost), nil
}

// GetPurchaseHistory retorna as compras registradas para account na ordem do contrato.
func (r *ChainStateReader) GetPurchaseHistory(ctx context.Context, account common.Address) ([]models.PurchaseHistoryEntry, error) {
	entries, err := r.Crowdsale.PurchaseHistory(ctx, account)
	if err != nil {
		return nil, queryError("getPurchaseHistory", err)
	}

	out := make([]models.PurchaseHistoryEntry, 0, len(entries))
	for i, e := range entries {
		if err := checkAmount(e.Amount); err != nil {
			return nil, queryError("getPurchaseHistory", fmt.Errorf("entry %d: %w", i, err))
		}
		out = append(out, models.PurchaseHistoryEntry{
			Amount:    new(big.Int).Set(e.Amount),
			Timestamp: e.Timestamp,
		})
	}
	return out, nil
}

func checkAmount(v *big.Int) error {
	if v == nil {
		return errors.New("missing value in contract response")
	}
	if v.Sign() < 0 {
		return errNegative
	}
	return nil
}
