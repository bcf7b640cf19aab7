// Package pricing computes rental quotes from a catalog snapshot. It does no
// I/O: the caller supplies the catalog and the distance lookup.
package pricing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"rental-quote-backend/internal/domain"
)

// builder collects warnings and estimate flags while a quote is assembled.
type builder struct {
	warnings          []domain.QuoteWarning
	missingInfo       []string
	isEstimate        bool
	productRateSource string
}

func (b *builder) warn(code, message string) {
	b.warnings = append(b.warnings, domain.QuoteWarning{Code: code, Message: message})
}

func (b *builder) missing(entry string) {
	for _, m := range b.missingInfo {
		if m == entry {
			return
		}
	}
	b.missingInfo = append(b.missingInfo, entry)
}

func (b *builder) estimate() {
	b.isEstimate = true
}

type Engine struct {
	validity         time.Duration
	defaultEventTier domain.EventTier
	now              func() time.Time
}

func NewEngine(validity time.Duration, defaultEventTier domain.EventTier) *Engine {
	if defaultEventTier == "" {
		defaultEventTier = domain.EventTierStandard
	}
	return &Engine{
		validity:         validity,
		defaultEventTier: defaultEventTier,
		now:              time.Now,
	}
}

// Calculate prices req against catalog. dist may be nil when the distance
// resolver failed; the quote then carries an unknown delivery cost. Only an
// invalid request or a missing catalog is an error.
func (e *Engine) Calculate(req *domain.QuoteRequest, catalog *domain.PricingCatalog, dist *domain.DistanceResult) (*domain.QuoteResponse, error) {
	started := e.now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, &domain.CatalogUnavailableError{Err: errNoCatalog}
	}

	b := &builder{}
	req = e.normalize(req, b)

	product, productDetail, err := selectProduct(catalog, req, b)
	if err != nil {
		return nil, err
	}

	start := e.startDate(req, started, b)

	rental, rentalLines := priceRental(catalog, product, req, req.EventTier, b)
	rental.StartDate = start.Format(dateLayout)
	rental.EndDate = start.AddDate(0, 0, req.RentalDays-1).Format(dateLayout)
	productDetail.RateSourceID = b.productRateSource

	delivery, deliveryLines := priceDelivery(catalog.Delivery, catalog.Seasonal, start, dist, b)
	extraLines := priceExtras(catalog, product, req, b)

	lines := make([]domain.QuoteLineItem, 0, len(rentalLines)+len(deliveryLines)+len(extraLines))
	lines = append(lines, rentalLines...)
	lines = append(lines, deliveryLines...)
	lines = append(lines, extraLines...)

	breakdown := domain.CostBreakdown{
		Trailer:  sumLines(rentalLines),
		Delivery: sumLines(deliveryLines),
		Extras:   sumLines(extraLines),
	}
	subtotal := breakdown.Trailer.Add(breakdown.Delivery).Add(breakdown.Extras)

	location := e.location(req, catalog, dist, b)
	if req.SiteConditions.Unspecified() {
		b.missing(domain.MissingSiteConditions)
		b.estimate()
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	warnings := b.warnings
	if warnings == nil {
		warnings = []domain.QuoteWarning{}
	}
	missingInfo := b.missingInfo
	if missingInfo == nil {
		missingInfo = []string{}
	}

	generated := e.now()
	return &domain.QuoteResponse{
		RequestID: requestID,
		QuoteID:   uuid.NewString(),
		Quote: domain.QuoteBody{
			LineItems: lines,
			Subtotal:  subtotal,
			Breakdown: breakdown,
			Delivery:  delivery,
			Rental:    rental,
			Product:   productDetail,
			Budget:    budget(req, subtotal),
		},
		Location:    location,
		IsEstimate:  b.isEstimate,
		MissingInfo: missingInfo,
		Metadata: domain.QuoteMetadata{
			GeneratedAt:   generated.UTC(),
			ValidUntil:    generated.Add(e.validity).UTC(),
			CalculationMs: generated.Sub(started).Milliseconds(),
			Warnings:      warnings,
		},
	}, nil
}

const dateLayout = "2006-01-02"

var errNoCatalog = errors.New("no catalog supplied")

// normalize returns a copy of req with usage type and event tier defaulted.
// A missing or unknown usage type is priced as commercial and marks the quote
// an estimate; an unknown event tier falls back to the default tier.
func (e *Engine) normalize(req *domain.QuoteRequest, b *builder) *domain.QuoteRequest {
	r := *req
	if !domain.KnownUsageType(r.UsageType) {
		if r.UsageType == "" {
			b.warn(domain.WarningUsageTypeDefaulted, "no usage type given; priced as commercial")
		} else {
			b.warn(domain.WarningUsageTypeDefaulted, fmt.Sprintf("unknown usage type %q; priced as commercial", r.UsageType))
		}
		b.missing(domain.MissingUsageType)
		b.estimate()
		r.UsageType = domain.UsageTypeCommercial
	}
	switch {
	case r.EventTier == "":
		r.EventTier = e.defaultEventTier
	case !domain.KnownEventTier(r.EventTier):
		b.warn(domain.WarningEventTierDefaulted, fmt.Sprintf("unknown event tier %q; priced at %s", r.EventTier, e.defaultEventTier))
		r.EventTier = e.defaultEventTier
	}
	return &r
}

// startDate parses the requested start date. An absent or malformed one
// defaults to today and makes the quote an estimate, since the seasonal tier
// depends on it.
func (e *Engine) startDate(req *domain.QuoteRequest, now time.Time, b *builder) time.Time {
	switch {
	case req.RentalStartDate == "":
		b.warn(domain.WarningStartDateDefaulted, "no rental start date given; priced as starting today")
	default:
		t, err := time.Parse(dateLayout, req.RentalStartDate)
		if err == nil {
			return t
		}
		b.warn(domain.WarningStartDateDefaulted, fmt.Sprintf("rental start date %q is not yyyy-mm-dd; priced as starting today", req.RentalStartDate))
	}
	b.missing(domain.MissingRentalStartDate)
	b.estimate()
	n := now.UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// streetAddress matches an address that starts with a house number followed
// by a street name, e.g. "1200 Main St".
var streetAddress = regexp.MustCompile(`^\s*\d+[A-Za-z]?(-\d+)?\s+[A-Za-z0-9]`)

// IsFullAddress reports whether address looks like a street address rather
// than a city, region or zip code.
func IsFullAddress(address string) bool {
	return streetAddress.MatchString(address)
}

func (e *Engine) location(req *domain.QuoteRequest, catalog *domain.PricingCatalog, dist *domain.DistanceResult, b *builder) domain.LocationDetail {
	loc := domain.LocationDetail{
		Address:     strings.TrimSpace(req.DeliveryAddress),
		FullAddress: IsFullAddress(req.DeliveryAddress),
	}
	if !loc.FullAddress {
		b.missing(domain.MissingLocationSpecificity)
		b.estimate()
	}

	if state, ok := resolveState(catalog, req); ok {
		loc.StateCode = state.Code
		loc.StateName = state.Name
	} else if strings.TrimSpace(req.State) != "" {
		b.warn(domain.WarningUnrecognizedState, "state "+req.State+" is not in the service catalog")
	}

	if dist != nil {
		loc.BranchName = dist.BranchName
		loc.BranchAddress = dist.BranchAddress
		loc.DistanceMiles = dist.DistanceMiles
		loc.DistanceEstimated = dist.DistanceEstimated
		loc.WithinServiceArea = dist.WithinServiceArea
	}
	return loc
}

// resolveState uses the explicit state when given, otherwise scans the
// address's comma-separated parts from the end ("Denver, CO 80202").
func resolveState(catalog *domain.PricingCatalog, req *domain.QuoteRequest) (*domain.StateEntry, bool) {
	if strings.TrimSpace(req.State) != "" {
		return catalog.NormalizeState(req.State)
	}
	parts := strings.Split(req.DeliveryAddress, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		part := strings.TrimSpace(parts[i])
		if state, ok := catalog.NormalizeState(part); ok {
			return state, true
		}
		// Drop a trailing zip code: "CO 80202".
		fields := strings.Fields(part)
		if len(fields) > 1 {
			if state, ok := catalog.NormalizeState(strings.Join(fields[:len(fields)-1], " ")); ok {
				return state, true
			}
		}
	}
	return nil, false
}

func budget(req *domain.QuoteRequest, subtotal domain.Money) domain.BudgetDetail {
	if req.Budget == nil {
		return domain.BudgetDetail{}
	}
	limit := *req.Budget
	diff := limit.Sub(subtotal)
	return domain.BudgetDetail{
		Provided:     true,
		Budget:       &limit,
		WithinBudget: subtotal.LessThanOrEqual(limit),
		Difference:   &diff,
	}
}
