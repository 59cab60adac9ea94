package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ferreirogomes/greenfund/models"
)

// SaleCatalogSynchronizer monta a lista de vendas que ainda têm tokens disponíveis.
type SaleCatalogSynchronizer struct {
	Reader *ChainStateReader
	logger *zap.Logger
	now    func() time.Time
}

// NewSaleCatalogSynchronizer cria um sincronizador que lê através de reader.
func NewSaleCatalogSynchronizer(reader *ChainStateReader, logger *zap.Logger) *SaleCatalogSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaleCatalogSynchronizer{
		Reader: reader,
		logger: logger.Named("catalog"),
		now:    time.Now,
	}
}

// Refresh percorre os ids de venda 1..saleCount. Vendas vazias são descartadas. Uma venda cuja
// consulta de venda ou de custo falha vai para Catalog.Failures e é pulada; só a falha na contagem
// aborta a atualização.
func (s *SaleCatalogSynchronizer) Refresh(ctx context.Context) (models.Catalog, error) {
	count, err := s.Reader.GetSaleCount(ctx)
	if err != nil {
		return models.Catalog{}, fmt.Errorf("refresh catalog: %w", err)
	}

	catalog := models.Catalog{
		Listings:  make([]models.SaleListing, 0, count),
		SaleCount: count,
	}

	for id := uint64(1); id <= count; id++ {
		if err := ctx.Err(); err != nil {
			return models.Catalog{}, fmt.Errorf("refresh catalog: %w", err)
		}

		listing, found, err := s.Reader.GetSaleListing(ctx, id)
		if err != nil {
			catalog.Failures = append(catalog.Failures, s.failure(id, err))
			continue
		}
		if !found {
			continue
		}

		cost, err := s.Reader.GetCost(ctx, id)
		if err != nil {
			catalog.Failures = append(catalog.Failures, s.failure(id, err))
			continue
		}
		listing.TotalCost = cost
		catalog.Listings = append(catalog.Listings, listing)
	}

	catalog.SyncedAt = s.now()
	s.logger.Debug("Catálogo atualizado",
		zap.Uint64("sale_count", count),
		zap.Int("listings", len(catalog.Listings)),
		zap.Int("failures", len(catalog.Failures)))

	return catalog, nil
}

func (s *SaleCatalogSynchronizer) failure(id uint64, err error) models.ListingFailure {
	s.logger.Warn("Ignorando venda com falha", zap.Uint64("sale_id", id), zap.Error(err))
	return models.ListingFailure{ID: id, Err: err.Error()}
}
