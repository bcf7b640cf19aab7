package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type UsageType string

const (
	UsageTypeCommercial UsageType = "commercial"
	UsageTypeEvent      UsageType = "event"
)

type ExtraRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// SiteConditions are optional facts about the drop-off site. A nil field
// means the caller did not say.
type SiteConditions struct {
	SurfaceType    string `json:"surface_type,omitempty"`
	HasWaterAccess *bool  `json:"has_water_access,omitempty"`
	HasPowerAccess *bool  `json:"has_power_access,omitempty"`
}

func (s SiteConditions) Unspecified() bool {
	return strings.TrimSpace(s.SurfaceType) == "" || s.HasWaterAccess == nil || s.HasPowerAccess == nil
}

type QuoteRequest struct {
	RequestID       string         `json:"request_id"`
	DeliveryAddress string         `json:"delivery_address"`
	State           string         `json:"state,omitempty"`
	RentalStartDate string         `json:"rental_start_date"`
	RentalDays      int            `json:"rental_days"`
	ProductID       string         `json:"product_id"`
	UsageType       UsageType      `json:"usage_type"`
	EventTier       EventTier      `json:"event_tier,omitempty"`
	ADARequired     bool           `json:"ada_required"`
	ShowerRequired  bool           `json:"shower_required"`
	Extras          []ExtraRequest `json:"extras,omitempty"`
	SiteConditions  SiteConditions `json:"site_conditions"`
	Budget          *Money         `json:"budget,omitempty"`
}

// Validate rejects requests no quote can be anchored on: no product, no
// duration, or an extra line with no quantity. Everything else is defaulted
// by the engine and flagged on the quote.
func (r *QuoteRequest) Validate() error {
	if strings.TrimSpace(r.ProductID) == "" {
		return &ValidationError{Field: "product_id", Message: "product selection is required"}
	}
	if r.RentalDays < 1 {
		return &ValidationError{Field: "rental_days", Message: "rental duration must be at least 1 day"}
	}
	for i, e := range r.Extras {
		if e.Quantity < 1 {
			return &ValidationError{Field: fmt.Sprintf("extras[%d].quantity", i), Message: "quantity must be at least 1"}
		}
	}
	return nil
}

// KnownUsageType reports whether u is a usage type the engine prices.
func KnownUsageType(u UsageType) bool {
	return u == UsageTypeCommercial || u == UsageTypeEvent
}

// KnownEventTier reports whether t is one of EventTiers.
func KnownEventTier(t EventTier) bool {
	for _, known := range EventTiers {
		if known == t {
			return true
		}
	}
	return false
}

type LineCategory string

const (
	LineCategoryTrailer  LineCategory = "trailer"
	LineCategoryDelivery LineCategory = "delivery"
	LineCategoryExtras   LineCategory = "extras"
)

type QuoteLineItem struct {
	Description string       `json:"description"`
	Category    LineCategory `json:"category"`
	Quantity    int          `json:"quantity"`
	UnitPrice   *Money       `json:"unit_price,omitempty"`
	Total       Money        `json:"total"`
}

// NewUnitLineItem builds a line whose total is quantity × unit price.
func NewUnitLineItem(description string, category LineCategory, quantity int, unitPrice Money) QuoteLineItem {
	up := unitPrice
	return QuoteLineItem{
		Description: description,
		Category:    category,
		Quantity:    quantity,
		UnitPrice:   &up,
		Total:       unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
	}
}

// NewFlatLineItem builds a line with an independently supplied total.
func NewFlatLineItem(description string, category LineCategory, quantity int, total Money) QuoteLineItem {
	return QuoteLineItem{
		Description: description,
		Category:    category,
		Quantity:    quantity,
		Total:       total.Round(2),
	}
}

type CostBreakdown struct {
	Trailer  Money `json:"trailer"`
	Delivery Money `json:"delivery"`
	Extras   Money `json:"extras"`
}

type DeliveryStatus string

const (
	DeliveryStatusCalculated      DeliveryStatus = "calculated"
	DeliveryStatusWithinThreshold DeliveryStatus = "within_threshold" // base fee only
	DeliveryStatusFree            DeliveryStatus = "free_within_threshold"
	DeliveryStatusUnknown         DeliveryStatus = "unknown"
)

type DeliveryDetail struct {
	Status             DeliveryStatus `json:"status"`
	DistanceMiles      float64        `json:"distance_miles"`
	DistanceEstimated  bool           `json:"distance_estimated"`
	FreeMilesThreshold Money          `json:"free_miles_threshold"`
	OriginalBaseFee    Money          `json:"original_base_fee"`
	AppliedBaseFee     Money          `json:"applied_base_fee"`
	OriginalRate       Money          `json:"original_per_mile_rate"`
	AppliedRate        Money          `json:"applied_per_mile_rate"`
	Multiplier         Money          `json:"seasonal_multiplier"`
	SeasonalTier       string         `json:"seasonal_tier"`
	Cost               Money          `json:"cost"`
}

type RatePeriod string

const (
	RatePeriodDaily             RatePeriod = "daily"
	RatePeriodWeekly            RatePeriod = "weekly"
	RatePeriodTwentyEightDay    RatePeriod = "28_day"
	RatePeriodTwoToFiveMonth    RatePeriod = "2_5_month"
	RatePeriodSixPlusMonth      RatePeriod = "6_plus_month"
	RatePeriodEighteenPlusMonth RatePeriod = "18_plus_month"
)

type RentalDetail struct {
	StartDate     string     `json:"start_date"`
	EndDate       string     `json:"end_date"`
	Days          int        `json:"days"`
	UsageType     UsageType  `json:"usage_type"`
	RatePeriod    RatePeriod `json:"rate_period"`
	FullWeeks     int        `json:"full_weeks,omitempty"`
	RemainingDays int        `json:"remaining_days,omitempty"`
	Rate          *Money     `json:"rate,omitempty"`
	DailyRate     *Money     `json:"daily_rate,omitempty"`
	TierFallback  bool       `json:"tier_fallback"`
	Cost          Money      `json:"cost"`
}

type ProductDetail struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	RequestedID  string `json:"requested_id"`
	Substituted  bool   `json:"substituted"`
	RateSourceID string `json:"rate_source_id,omitempty"`
	ADACompliant bool   `json:"ada_compliant"`
	HasShower    bool   `json:"has_shower"`
}

type BudgetDetail struct {
	Provided     bool   `json:"provided"`
	Budget       *Money `json:"budget,omitempty"`
	WithinBudget bool   `json:"within_budget"`
	Difference   *Money `json:"difference,omitempty"`
}

type QuoteBody struct {
	LineItems []QuoteLineItem `json:"line_items"`
	Subtotal  Money           `json:"subtotal"`
	Breakdown CostBreakdown   `json:"breakdown"`
	Delivery  DeliveryDetail  `json:"delivery"`
	Rental    RentalDetail    `json:"rental"`
	Product   ProductDetail   `json:"product"`
	Budget    BudgetDetail    `json:"budget"`
}

type LocationDetail struct {
	Address           string  `json:"address"`
	StateCode         string  `json:"state_code,omitempty"`
	StateName         string  `json:"state_name,omitempty"`
	BranchName        string  `json:"branch_name,omitempty"`
	BranchAddress     string  `json:"branch_address,omitempty"`
	DistanceMiles     float64 `json:"distance_miles"`
	DistanceEstimated bool    `json:"distance_estimated"`
	WithinServiceArea bool    `json:"within_service_area"`
	FullAddress       bool    `json:"full_address"`
}

type QuoteWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type QuoteMetadata struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	ValidUntil    time.Time      `json:"valid_until"`
	CalculationMs int64          `json:"calculation_ms"`
	Warnings      []QuoteWarning `json:"warnings"`
}

// QuoteResponse is immutable once returned; a re-quote is a new object.
type QuoteResponse struct {
	RequestID   string         `json:"request_id"`
	QuoteID     string         `json:"quote_id"`
	Quote       QuoteBody      `json:"quote"`
	Location    LocationDetail `json:"location"`
	IsEstimate  bool           `json:"is_estimate"`
	MissingInfo []string       `json:"missing_info"`
	Metadata    QuoteMetadata  `json:"metadata"`
}

// HasWarning reports whether a warning with the given code was recorded.
func (q *QuoteResponse) HasWarning(code string) bool {
	for _, w := range q.Metadata.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// DistanceResult is what the external distance resolver reports.
type DistanceResult struct {
	BranchName        string  `json:"branch_name"`
	BranchAddress     string  `json:"branch_address"`
	DistanceMiles     float64 `json:"distance_miles"`
	DistanceEstimated bool    `json:"distance_estimated"`
	WithinServiceArea bool    `json:"within_service_area"`
}
