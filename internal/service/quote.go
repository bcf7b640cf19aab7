package service

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/pricing"
)

type quoteService struct {
	catalog  CatalogReader
	distance DistanceResolver
	engine   *pricing.Engine
}

// NewQuoteService wires the quote path. distance may be nil, in which case
// every quote carries an unknown delivery cost.
func NewQuoteService(catalog CatalogReader, distance DistanceResolver, engine *pricing.Engine) QuoteService {
	return &quoteService{
		catalog:  catalog,
		distance: distance,
		engine:   engine,
	}
}

// ComputeQuote loads the catalog and resolves the delivery distance in
// parallel, then prices the request. A distance failure degrades the quote;
// only an invalid request or an unavailable catalog is an error.
func (s *quoteService) ComputeQuote(ctx context.Context, req *domain.QuoteRequest) (*domain.QuoteResponse, error) {
	logger.EnterMethod("quoteService.ComputeQuote", "productID", req.ProductID, "days", req.RentalDays)

	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "Rejected quote request", "error", err)
		return nil, err
	}

	var (
		catalog *domain.PricingCatalog
		dist    *domain.DistanceResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.catalog.GetCatalog(gctx)
		if err != nil {
			return err
		}
		catalog = c
		return nil
	})
	address := strings.TrimSpace(req.DeliveryAddress)
	if s.distance != nil && address != "" {
		g.Go(func() error {
			d, err := s.distance.ResolveDistance(gctx, address)
			if err != nil {
				logger.WarnContext(gctx, "Distance lookup failed; quoting without delivery cost", "address", address, "error", err)
				return nil
			}
			dist = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.ExitMethodWithError("quoteService.ComputeQuote", err)
		return nil, err
	}

	quote, err := s.engine.Calculate(req, catalog, dist)
	if err != nil {
		logger.ExitMethodWithError("quoteService.ComputeQuote", err)
		return nil, err
	}

	logger.ExitMethod("quoteService.ComputeQuote", "quoteID", quote.QuoteID, "subtotal", quote.Quote.Subtotal.StringFixed(2), "estimate", quote.IsEstimate)
	return quote, nil
}
