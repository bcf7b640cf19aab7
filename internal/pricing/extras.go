package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"rental-quote-backend/internal/domain"
)

// productExtra looks up an extra on the product, ignoring case.
func productExtra(p *domain.ProductEntry, id string) (decimal.Decimal, string, bool) {
	if price, ok := p.Extras[id]; ok {
		return price, id, true
	}
	for name, price := range p.Extras {
		if strings.EqualFold(name, id) {
			return price, name, true
		}
	}
	return zero, "", false
}

// generatorRate picks the generator rate for the rental: the event rate for
// events, the 28-day rate for monthly rentals, otherwise the 7-day rate. When
// that rate is unset the other rates are tried in the same order.
func generatorRate(g *domain.GeneratorEntry, usage domain.UsageType, days int) (decimal.Decimal, bool) {
	var order []decimal.NullDecimal
	switch {
	case usage == domain.UsageTypeEvent:
		order = []decimal.NullDecimal{g.EventRate, g.SevenDayRate, g.TwentyEightDayRate}
	case days >= monthlyThresholdDays:
		order = []decimal.NullDecimal{g.TwentyEightDayRate, g.SevenDayRate, g.EventRate}
	default:
		order = []decimal.NullDecimal{g.SevenDayRate, g.TwentyEightDayRate, g.EventRate}
	}
	for _, r := range order {
		if r.Valid {
			return r.Decimal, true
		}
	}
	return zero, false
}

// priceExtras resolves each requested extra against the product's extras,
// then the generator catalog. Unknown ids are dropped with a warning.
func priceExtras(catalog *domain.PricingCatalog, p *domain.ProductEntry, req *domain.QuoteRequest, b *builder) []domain.QuoteLineItem {
	var lines []domain.QuoteLineItem
	for _, extra := range req.Extras {
		if price, name, ok := productExtra(p, extra.ID); ok {
			lines = append(lines, domain.NewUnitLineItem(fmt.Sprintf("Extra: %s", name), domain.LineCategoryExtras, extra.Quantity, price))
			continue
		}

		if g, ok := catalog.Generator(extra.ID); ok {
			rate, ok := generatorRate(g, req.UsageType, req.RentalDays)
			if !ok {
				b.warn(domain.WarningRateUnavailable, fmt.Sprintf("generator %s has no rate; not included", g.Name))
				b.estimate()
				continue
			}
			lines = append(lines, domain.NewUnitLineItem(fmt.Sprintf("Generator: %s", g.Name), domain.LineCategoryExtras, extra.Quantity, rate))
			continue
		}

		b.warn(domain.WarningUnknownExtra, fmt.Sprintf("unknown extra %q was ignored", extra.ID))
	}
	return lines
}
