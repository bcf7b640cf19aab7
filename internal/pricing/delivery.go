package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"rental-quote-backend/internal/domain"
)

// priceDelivery applies the seasonal multiplier for start to both the base fee
// and the per-mile rate, then charges by distance. A nil distance leaves the
// delivery cost unknown.
func priceDelivery(cfg domain.DeliveryConfig, seasonal domain.SeasonalConfig, start time.Time, dist *domain.DistanceResult, b *builder) (domain.DeliveryDetail, []domain.QuoteLineItem) {
	multiplier, tierName := seasonal.Multiplier(start)
	detail := domain.DeliveryDetail{
		FreeMilesThreshold: cfg.FreeMilesThreshold,
		OriginalBaseFee:    cfg.BaseFee,
		AppliedBaseFee:     cfg.BaseFee.Mul(multiplier),
		OriginalRate:       cfg.PerMileRate,
		AppliedRate:        cfg.PerMileRate.Mul(multiplier),
		Multiplier:         multiplier,
		SeasonalTier:       tierName,
		Cost:               zero,
	}

	if dist == nil {
		detail.Status = domain.DeliveryStatusUnknown
		b.warn(domain.WarningDistanceUnresolved, "delivery distance could not be resolved; delivery cost is not included")
		b.missing(domain.MissingDeliveryDistance)
		b.estimate()
		return detail, nil
	}

	detail.DistanceMiles = dist.DistanceMiles
	detail.DistanceEstimated = dist.DistanceEstimated
	if dist.DistanceEstimated {
		b.warn(domain.WarningDistanceEstimated, "delivery distance is estimated")
		b.missing(domain.MissingDeliveryDistance)
		b.estimate()
	}
	if !dist.WithinServiceArea {
		b.warn(domain.WarningOutsideServiceArea, fmt.Sprintf("address appears to be outside the %s service area", dist.BranchName))
		b.missing(domain.MissingServiceArea)
		b.estimate()
	}

	miles := decimal.NewFromFloat(dist.DistanceMiles)
	var description string
	switch {
	case miles.LessThanOrEqual(cfg.FreeMilesThreshold) && cfg.FreeWithinThreshold:
		detail.Status = domain.DeliveryStatusFree
		description = fmt.Sprintf("Delivery (%s mi, within free radius)", miles.StringFixed(1))
	case miles.LessThanOrEqual(cfg.FreeMilesThreshold):
		detail.Status = domain.DeliveryStatusWithinThreshold
		detail.Cost = detail.AppliedBaseFee.Round(2)
		description = fmt.Sprintf("Delivery (%s mi, base fee only)", miles.StringFixed(1))
	default:
		detail.Status = domain.DeliveryStatusCalculated
		detail.Cost = detail.AppliedBaseFee.Add(detail.AppliedRate.Mul(miles)).Round(2)
		description = fmt.Sprintf("Delivery (%s mi)", miles.StringFixed(1))
	}

	return detail, []domain.QuoteLineItem{
		domain.NewFlatLineItem(description, domain.LineCategoryDelivery, 1, detail.Cost),
	}
}
