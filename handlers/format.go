package handlers

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ferreirogomes/greenfund/models"
	"github.com/ferreirogomes/greenfund/services"
)

// FormatUnits divide um valor inteiro bruto por 10^decimals.
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return ""
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// ParseUnits converte uma string decimal em unidades do token para a menor unidade do token. O
// resultado deve ser um inteiro positivo.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, services.ErrInvalidAmount)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals: %w", s, decimals, services.ErrInvalidAmount)
	}
	if shifted.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q: %w", s, services.ErrInvalidAmount)
	}
	return shifted.BigInt(), nil
}

type amountView struct {
	Raw       string `json:"raw"`
	Formatted string `json:"formatted,omitempty"`
}

type balanceView struct {
	Symbol  string         `json:"symbol"`
	Token   common.Address `json:"token"`
	Balance amountView     `json:"balance"`
}

type listingView struct {
	ID              uint64         `json:"id"`
	Seller          common.Address `json:"seller"`
	TokenAddress    common.Address `json:"token_address"`
	AmountRemaining amountView     `json:"amount_remaining"`
	PricePerToken   amountView     `json:"price_per_token"`
	TotalCost       amountView     `json:"total_cost"`
}

type catalogView struct {
	Listings  []listingView           `json:"listings"`
	Failures  []models.ListingFailure `json:"failures,omitempty"`
	SaleCount uint64                  `json:"sale_count"`
	SyncedAt  time.Time               `json:"synced_at"`
}

type historyView struct {
	Amount amountView `json:"amount"`
	Date   string     `json:"date"`
}

type sessionView struct {
	Version     uint64            `json:"version"`
	Account     common.Address    `json:"account"`
	Role        models.Role       `json:"role"`
	IsOwner     bool              `json:"is_owner"`
	Balances    []balanceView     `json:"balances"`
	Catalog     catalogView       `json:"catalog"`
	History     []historyView     `json:"history"`
	Unavailable map[string]string `json:"unavailable,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// TokenInfo resolve as casas decimais de um token para exibição.
type TokenInfo interface {
	TokenMetadata(ctx context.Context, token common.Address) (models.TokenMetadata, error)
}

// Presenter converte snapshots brutos em valores de exibição.
type Presenter struct {
	Tokens       TokenInfo
	PaymentToken common.Address
	SaleToken    common.Address
	Location     *time.Location
}

func (p *Presenter) amount(ctx context.Context, raw *big.Int, token common.Address) amountView {
	v := amountView{}
	if raw != nil {
		v.Raw = raw.String()
	}
	if meta, err := p.Tokens.TokenMetadata(ctx, token); err == nil {
		v.Formatted = FormatUnits(raw, meta.Decimals)
	}
	return v
}

func (p *Presenter) listing(ctx context.Context, l models.SaleListing) listingView {
	return listingView{
		ID:              l.ID,
		Seller:          l.Seller,
		TokenAddress:    l.TokenAddress,
		AmountRemaining: p.amount(ctx, l.AmountRemaining, l.TokenAddress),
		PricePerToken:   p.amount(ctx, l.PricePerToken, p.PaymentToken),
		TotalCost:       p.amount(ctx, l.TotalCost, p.PaymentToken),
	}
}

func (p *Presenter) catalog(ctx context.Context, c models.Catalog) catalogView {
	v := catalogView{
		Listings:  make([]listingView, 0, len(c.Listings)),
		Failures:  c.Failures,
		SaleCount: c.SaleCount,
		SyncedAt:  c.SyncedAt,
	}
	for _, l := range c.Listings {
		v.Listings = append(v.Listings, p.listing(ctx, l))
	}
	return v
}

func (p *Presenter) session(ctx context.Context, s *models.SessionSnapshot) sessionView {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}

	v := sessionView{
		Version:     s.Version,
		Account:     s.Account,
		Role:        s.Role,
		IsOwner:     s.IsOwner(),
		Balances:    make([]balanceView, 0, len(s.Balances)),
		Catalog:     p.catalog(ctx, s.Catalog),
		History:     make([]historyView, 0, len(s.History)),
		Unavailable: s.Unavailable,
		UpdatedAt:   s.UpdatedAt,
	}
	for _, b := range s.Balances {
		v.Balances = append(v.Balances, balanceView{
			Symbol:  b.Symbol,
			Token:   b.Token,
			Balance: amountView{Raw: b.Raw.String(), Formatted: FormatUnits(b.Raw, b.Decimals)},
		})
	}
	for _, h := range s.History {
		v.History = append(v.History, historyView{
			Amount: p.amount(ctx, h.Amount, p.SaleToken),
			Date:   h.Time().In(loc).Format(time.RFC3339),
		})
	}
	return v
}
