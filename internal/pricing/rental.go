package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"rental-quote-backend/internal/domain"
)

const (
	daysPerWeek  = 7
	daysPerMonth = 30

	// Rentals this long or longer are priced on a monthly band.
	monthlyThresholdDays = 28
)

var (
	decDaysPerMonth = decimal.NewFromInt(daysPerMonth)
	zero            = decimal.Zero
)

// compatible reports whether p satisfies the request's hard requirements.
func compatible(p *domain.ProductEntry, req *domain.QuoteRequest) bool {
	if req.ADARequired && !p.ADACompliant {
		return false
	}
	if req.ShowerRequired && !p.HasShower {
		return false
	}
	return true
}

// selectProduct resolves the requested product and substitutes a compatible
// one when ADA or shower requirements rule it out. Same-category products are
// preferred, then catalog order.
func selectProduct(catalog *domain.PricingCatalog, req *domain.QuoteRequest, b *builder) (*domain.ProductEntry, domain.ProductDetail, error) {
	requested, ok := catalog.Product(req.ProductID)
	if !ok {
		return nil, domain.ProductDetail{}, &domain.ValidationError{
			Field:   "product_id",
			Message: fmt.Sprintf("unknown product %q", req.ProductID),
		}
	}

	chosen := requested
	if !compatible(requested, req) {
		substitute := findProduct(catalog, requested.Category, func(p *domain.ProductEntry) bool {
			return compatible(p, req)
		})
		if substitute != nil {
			chosen = substitute
			b.warn(domain.WarningProductSubstituted, fmt.Sprintf("%s does not meet the site requirements; quoted %s instead", requested.Name, substitute.Name))
		} else {
			b.warn(domain.WarningNoCompatibleProduct, fmt.Sprintf("no product meets the requirements for %s", requested.Name))
			b.estimate()
		}
	}

	detail := domain.ProductDetail{
		ProductID:    chosen.ID,
		Name:         chosen.Name,
		Category:     chosen.Category,
		RequestedID:  req.ProductID,
		Substituted:  chosen != requested,
		ADACompliant: chosen.ADACompliant,
		HasShower:    chosen.HasShower,
	}
	return chosen, detail, nil
}

// findProduct returns the first product matching pred, trying category first.
func findProduct(catalog *domain.PricingCatalog, category string, pred func(*domain.ProductEntry) bool) *domain.ProductEntry {
	for i := range catalog.Products {
		p := &catalog.Products[i]
		if strings.EqualFold(p.Category, category) && pred(p) {
			return p
		}
	}
	for i := range catalog.Products {
		p := &catalog.Products[i]
		if pred(p) {
			return p
		}
	}
	return nil
}

// periodFor picks the rate period for a rental length.
func periodFor(days int) domain.RatePeriod {
	switch {
	case days >= monthlyThresholdDays:
		months := days / daysPerMonth
		switch {
		case months >= 18:
			return domain.RatePeriodEighteenPlusMonth
		case months >= 6:
			return domain.RatePeriodSixPlusMonth
		case months >= 2:
			return domain.RatePeriodTwoToFiveMonth
		default:
			return domain.RatePeriodTwentyEightDay
		}
	case days >= daysPerWeek:
		return domain.RatePeriodWeekly
	default:
		return domain.RatePeriodDaily
	}
}

func periodRate(rates domain.RateTable, period domain.RatePeriod) decimal.NullDecimal {
	switch period {
	case domain.RatePeriodWeekly:
		return rates.SevenDay
	case domain.RatePeriodTwentyEightDay:
		return rates.TwentyEightDay
	case domain.RatePeriodTwoToFiveMonth:
		return rates.TwoToFiveMonth
	case domain.RatePeriodSixPlusMonth:
		return rates.SixPlusMonth
	case domain.RatePeriodEighteenPlusMonth:
		return rates.EighteenPlusMonth
	default:
		return rates.Daily
	}
}

// dailyRate is the per-day rate for p: the event tier rate for event usage
// when the product has one, otherwise the daily rate.
func dailyRate(p *domain.ProductEntry, usage domain.UsageType, tier domain.EventTier) decimal.NullDecimal {
	if usage == domain.UsageTypeEvent {
		if r, ok := p.Rates.Event[tier]; ok && r.Valid {
			return r
		}
	}
	return p.Rates.Daily
}

type dailySource struct {
	rate      decimal.Decimal
	productID string
	borrowed  bool
}

// resolveDaily finds a daily rate on p, or on the first same-category product
// that has one.
func resolveDaily(catalog *domain.PricingCatalog, p *domain.ProductEntry, usage domain.UsageType, tier domain.EventTier) (dailySource, bool) {
	if r := dailyRate(p, usage, tier); r.Valid {
		return dailySource{rate: r.Decimal, productID: p.ID}, true
	}
	for i := range catalog.Products {
		other := &catalog.Products[i]
		if other.ID == p.ID || !strings.EqualFold(other.Category, p.Category) {
			continue
		}
		if r := dailyRate(other, usage, tier); r.Valid {
			return dailySource{rate: r.Decimal, productID: other.ID, borrowed: true}, true
		}
	}
	return dailySource{}, false
}

// priceRental computes the trailer cost and its line items.
func priceRental(catalog *domain.PricingCatalog, p *domain.ProductEntry, req *domain.QuoteRequest, tier domain.EventTier, b *builder) (domain.RentalDetail, []domain.QuoteLineItem) {
	days := req.RentalDays
	detail := domain.RentalDetail{
		Days:       days,
		UsageType:  req.UsageType,
		RatePeriod: periodFor(days),
		Cost:       zero,
	}
	daily, hasDaily := resolveDaily(catalog, p, req.UsageType, tier)
	if hasDaily {
		d := daily.rate
		detail.DailyRate = &d
		if daily.borrowed {
			b.productRateSource = daily.productID
		}
	}

	unavailable := func() (domain.RentalDetail, []domain.QuoteLineItem) {
		b.warn(domain.WarningRateUnavailable, fmt.Sprintf("no rate available for %s", p.Name))
		b.missing(domain.MissingRentalRate)
		b.estimate()
		return detail, nil
	}

	fallbackToDaily := func(reason string) (domain.RentalDetail, []domain.QuoteLineItem) {
		if !hasDaily {
			return unavailable()
		}
		b.warn(domain.WarningTierFallback, reason)
		detail.TierFallback = true
		detail.RatePeriod = domain.RatePeriodDaily
		line := domain.NewUnitLineItem(fmt.Sprintf("%s rental (daily rate)", p.Name), domain.LineCategoryTrailer, days, daily.rate)
		detail.Cost = line.Total
		return detail, []domain.QuoteLineItem{line}
	}

	if daily.borrowed {
		b.warn(domain.WarningTierFallback, fmt.Sprintf("%s has no daily rate; using the daily rate of %s", p.Name, daily.productID))
	}

	switch detail.RatePeriod {
	case domain.RatePeriodDaily:
		if !hasDaily {
			return unavailable()
		}
		detail.TierFallback = daily.borrowed
		line := domain.NewUnitLineItem(fmt.Sprintf("%s rental (daily rate)", p.Name), domain.LineCategoryTrailer, days, daily.rate)
		detail.Cost = line.Total
		return detail, []domain.QuoteLineItem{line}

	case domain.RatePeriodWeekly:
		weekly := p.Rates.SevenDay
		if !weekly.Valid {
			return fallbackToDaily(fmt.Sprintf("%s has no weekly rate; priced at the daily rate for %d days", p.Name, days))
		}
		weeks, rem := days/daysPerWeek, days%daysPerWeek
		w := weekly.Decimal
		detail.Rate = &w
		detail.FullWeeks = weeks
		detail.RemainingDays = rem

		lines := []domain.QuoteLineItem{
			domain.NewUnitLineItem(fmt.Sprintf("%s rental (weekly rate)", p.Name), domain.LineCategoryTrailer, weeks, weekly.Decimal),
		}
		if rem > 0 {
			if !hasDaily {
				detail.Cost = lines[0].Total
				b.warn(domain.WarningRateUnavailable, fmt.Sprintf("no daily rate for the %d remaining days on %s", rem, p.Name))
				b.missing(domain.MissingRentalRate)
				b.estimate()
				return detail, lines
			}
			lines = append(lines, domain.NewUnitLineItem(fmt.Sprintf("%s rental (daily rate)", p.Name), domain.LineCategoryTrailer, rem, daily.rate))
		}
		detail.Cost = sumLines(lines)
		return detail, lines

	default:
		monthly := periodRate(p.Rates, detail.RatePeriod)
		if !monthly.Valid {
			return fallbackToDaily(fmt.Sprintf("%s has no %s rate; priced at the daily rate for %d days", p.Name, detail.RatePeriod, days))
		}
		m := monthly.Decimal
		detail.Rate = &m
		cost := m.Mul(decimal.NewFromInt(int64(days))).Div(decDaysPerMonth).Round(2)
		line := domain.NewFlatLineItem(fmt.Sprintf("%s rental (%s rate, %d days prorated)", p.Name, detail.RatePeriod, days), domain.LineCategoryTrailer, 1, cost)
		detail.Cost = line.Total
		return detail, []domain.QuoteLineItem{line}
	}
}

func sumLines(lines []domain.QuoteLineItem) decimal.Decimal {
	total := zero
	for _, l := range lines {
		total = total.Add(l.Total)
	}
	return total
}
