package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/pricing"
	"rental-quote-backend/internal/service"
)

type staticCatalog struct {
	catalog *domain.PricingCatalog
	err     error
}

func (s staticCatalog) GetCatalog(context.Context) (*domain.PricingCatalog, error) {
	return s.catalog, s.err
}

func quoteCatalog() *domain.PricingCatalog {
	return &domain.PricingCatalog{
		Products: []domain.ProductEntry{{
			ID: "2-stall", Name: "2 Stall", Category: "restroom",
			Rates: domain.RateTable{
				Daily:    decimal.NewNullDecimal(decimal.NewFromInt(100)),
				SevenDay: decimal.NewNullDecimal(decimal.NewFromInt(500)),
			},
		}},
		States: []domain.StateEntry{{Name: "Colorado", Code: "CO"}},
		Delivery: domain.DeliveryConfig{
			BaseFee:            decimal.NewFromInt(50),
			PerMileRate:        decimal.NewFromInt(2),
			FreeMilesThreshold: decimal.NewFromInt(10),
		},
		Seasonal: domain.SeasonalConfig{StandardMultiplier: decimal.NewFromInt(1)},
	}
}

func quoteRequest() *domain.QuoteRequest {
	water, power := true, true
	return &domain.QuoteRequest{
		DeliveryAddress: "100 Main St, Denver, CO 80202",
		RentalStartDate: "2024-03-04",
		RentalDays:      9,
		ProductID:       "2-stall",
		UsageType:       domain.UsageTypeCommercial,
		SiteConditions:  domain.SiteConditions{SurfaceType: "gravel", HasWaterAccess: &water, HasPowerAccess: &power},
	}
}

func TestQuoteService_ComputeQuote(t *testing.T) {
	ctx := context.Background()
	engine := pricing.NewEngine(30*24*time.Hour, domain.EventTierStandard)

	t.Run("Success", func(t *testing.T) {
		dist := new(MockDistanceResolver)
		dist.On("ResolveDistance", mock.Anything, "100 Main St, Denver, CO 80202").Return(&domain.DistanceResult{
			BranchName: "Denver", DistanceMiles: 20, WithinServiceArea: true,
		}, nil).Once()
		svc := service.NewQuoteService(staticCatalog{catalog: quoteCatalog()}, dist, engine)

		quote, err := svc.ComputeQuote(ctx, quoteRequest())
		require.NoError(t, err)
		// 1 week + 2 days, then 50 + 20 mi * 2.
		assert.Equal(t, "700.00", quote.Quote.Breakdown.Trailer.StringFixed(2))
		assert.Equal(t, "90.00", quote.Quote.Breakdown.Delivery.StringFixed(2))
		assert.Equal(t, "790.00", quote.Quote.Subtotal.StringFixed(2))
		assert.Equal(t, domain.DeliveryStatusCalculated, quote.Quote.Delivery.Status)
		assert.Equal(t, "CO", quote.Location.StateCode)
		assert.False(t, quote.IsEstimate)
		assert.Empty(t, quote.MissingInfo)
		dist.AssertExpectations(t)
	})

	t.Run("DistanceFailureDegrades", func(t *testing.T) {
		dist := new(MockDistanceResolver)
		dist.On("ResolveDistance", mock.Anything, mock.Anything).Return(nil, errors.New("geocoder timeout")).Once()
		svc := service.NewQuoteService(staticCatalog{catalog: quoteCatalog()}, dist, engine)

		quote, err := svc.ComputeQuote(ctx, quoteRequest())
		require.NoError(t, err)
		assert.Equal(t, domain.DeliveryStatusUnknown, quote.Quote.Delivery.Status)
		assert.True(t, quote.IsEstimate)
		assert.True(t, quote.HasWarning(domain.WarningDistanceUnresolved))
		assert.Contains(t, quote.MissingInfo, domain.MissingDeliveryDistance)
	})

	t.Run("NoResolver", func(t *testing.T) {
		svc := service.NewQuoteService(staticCatalog{catalog: quoteCatalog()}, nil, engine)
		quote, err := svc.ComputeQuote(ctx, quoteRequest())
		require.NoError(t, err)
		assert.Equal(t, domain.DeliveryStatusUnknown, quote.Quote.Delivery.Status)
	})

	t.Run("CatalogUnavailable", func(t *testing.T) {
		dist := new(MockDistanceResolver)
		dist.On("ResolveDistance", mock.Anything, mock.Anything).Return(&domain.DistanceResult{}, nil).Maybe()
		svc := service.NewQuoteService(staticCatalog{err: &domain.CatalogUnavailableError{Err: errors.New("db down")}}, dist, engine)

		quote, err := svc.ComputeQuote(ctx, quoteRequest())
		assert.Nil(t, quote)
		assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	})

	t.Run("InvalidRequest", func(t *testing.T) {
		dist := new(MockDistanceResolver)
		svc := service.NewQuoteService(staticCatalog{catalog: quoteCatalog()}, dist, engine)

		req := quoteRequest()
		req.RentalDays = 0
		_, err := svc.ComputeQuote(ctx, req)
		assert.True(t, domain.IsValidationError(err))
		dist.AssertNotCalled(t, "ResolveDistance", mock.Anything, mock.Anything)
	})
}

func TestCachedDistanceResolver(t *testing.T) {
	ctx := context.Background()
	cc := newCatalogCache(t)
	next := new(MockDistanceResolver)
	resolver := service.NewCachedDistanceResolver(next, cc)

	result := &domain.DistanceResult{BranchName: "Denver", DistanceMiles: 14.5, WithinServiceArea: true}
	next.On("ResolveDistance", mock.Anything, "100 Main St, Denver").Return(result, nil).Once()

	first, err := resolver.ResolveDistance(ctx, "100 Main St, Denver")
	require.NoError(t, err)
	assert.Equal(t, result, first)

	// Same address modulo case and spacing is served from the cache.
	second, err := resolver.ResolveDistance(ctx, "100  main st,   DENVER")
	require.NoError(t, err)
	assert.Equal(t, 14.5, second.DistanceMiles)
	next.AssertNumberOfCalls(t, "ResolveDistance", 1)

	t.Run("ErrorsAreNotCached", func(t *testing.T) {
		next.On("ResolveDistance", mock.Anything, "nowhere").Return(nil, errors.New("not found")).Twice()
		_, err := resolver.ResolveDistance(ctx, "nowhere")
		assert.Error(t, err)
		_, err = resolver.ResolveDistance(ctx, "nowhere")
		assert.Error(t, err)
		next.AssertExpectations(t)
	})
}
