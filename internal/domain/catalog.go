package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Money is a currency amount in dollars.
type Money = decimal.Decimal

// Collection names a catalog collection in the store
type Collection string

const (
	CollectionProducts   Collection = "products"
	CollectionGenerators Collection = "generators"
	CollectionBranches   Collection = "branches"
	CollectionStates     Collection = "states"
	CollectionConfig     Collection = "config"
)

// ReplaceableCollections are the collections mirrored record-by-record.
// Config is a singleton document and is merged instead.
var ReplaceableCollections = []Collection{
	CollectionProducts,
	CollectionGenerators,
	CollectionBranches,
	CollectionStates,
}

// AllCollections lists every collection in sync order.
var AllCollections = append(append([]Collection{}, ReplaceableCollections...), CollectionConfig)

// PricingConfigID is the fixed id of the singleton config document.
const PricingConfigID = "pricing_config"

// CatalogRecord is anything stored in a replaceable collection.
type CatalogRecord interface {
	RecordID() string
}

type EventTier string

const (
	EventTierStandard        EventTier = "standard"
	EventTierPremium         EventTier = "premium"
	EventTierPremiumPlus     EventTier = "premium_plus"
	EventTierPremiumPlatinum EventTier = "premium_platinum"
)

var EventTiers = []EventTier{EventTierStandard, EventTierPremium, EventTierPremiumPlus, EventTierPremiumPlatinum}

// RateTable holds a product's rates. Unset rates have Valid=false and are
// never treated as zero.
type RateTable struct {
	Daily             decimal.NullDecimal               `json:"daily"`
	SevenDay          decimal.NullDecimal               `json:"seven_day"`
	TwentyEightDay    decimal.NullDecimal               `json:"twenty_eight_day"`
	TwoToFiveMonth    decimal.NullDecimal               `json:"two_to_five_month"`
	SixPlusMonth      decimal.NullDecimal               `json:"six_plus_month"`
	EighteenPlusMonth decimal.NullDecimal               `json:"eighteen_plus_month"`
	Event             map[EventTier]decimal.NullDecimal `json:"event,omitempty"`
}

type ProductEntry struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Category     string           `json:"category"`
	ADACompliant bool             `json:"ada_compliant"`
	HasShower    bool             `json:"has_shower"`
	Rates        RateTable        `json:"rates"`
	Extras       map[string]Money `json:"extras,omitempty"`
}

func (p ProductEntry) RecordID() string { return p.ID }

type GeneratorEntry struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	EventRate          decimal.NullDecimal `json:"event_rate"`
	SevenDayRate       decimal.NullDecimal `json:"seven_day_rate"`
	TwentyEightDayRate decimal.NullDecimal `json:"twenty_eight_day_rate"`
}

func (g GeneratorEntry) RecordID() string { return g.ID }

// BranchEntry is business-defined outside the pricing core and kept raw.
type BranchEntry struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Address    string            `json:"address"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (b BranchEntry) RecordID() string { return b.ID }

type StateEntry struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (s StateEntry) RecordID() string { return s.Code }

type DeliveryConfig struct {
	BaseFee            Money `json:"base_fee"`
	PerMileRate        Money `json:"per_mile_rate"`
	FreeMilesThreshold Money `json:"free_miles_threshold"`
	// FreeWithinThreshold waives the base fee inside the free-miles radius.
	FreeWithinThreshold bool `json:"free_within_threshold"`
}

type SeasonalTier struct {
	Name       string `json:"name"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Multiplier Money  `json:"multiplier"`
}

type SeasonalConfig struct {
	StandardMultiplier Money          `json:"standard_multiplier"`
	Tiers              []SeasonalTier `json:"tiers"`
}

// ActiveTier returns the first tier in list order whose window contains day.
// Overlapping windows are resolved by list order only.
func (c SeasonalConfig) ActiveTier(day time.Time) (*SeasonalTier, bool) {
	for i := range c.Tiers {
		if c.Tiers[i].Contains(day) {
			return &c.Tiers[i], true
		}
	}
	return nil, false
}

// Multiplier returns the multiplier in effect on day and the tier name
// ("standard" when no tier matches).
func (c SeasonalConfig) Multiplier(day time.Time) (Money, string) {
	if tier, ok := c.ActiveTier(day); ok {
		return tier.Multiplier, tier.Name
	}
	if c.StandardMultiplier.IsZero() {
		return decimal.NewFromInt(1), "standard"
	}
	return c.StandardMultiplier, "standard"
}

// Contains reports whether day falls inside the tier window, inclusive.
// Dates are either YYYY-MM-DD or MM-DD; the latter recurs every year and may
// wrap the year end (e.g. 12-15 .. 01-05). A tier mixing the two forms
// matches nothing.
func (t SeasonalTier) Contains(day time.Time) bool {
	start, startRecurring, err := parseTierDate(t.StartDate)
	if err != nil {
		return false
	}
	end, endRecurring, err := parseTierDate(t.EndDate)
	if err != nil || startRecurring != endRecurring {
		return false
	}

	if !startRecurring && !endRecurring {
		d := truncateDay(day)
		return !d.Before(start) && !d.After(end)
	}

	md := int(day.Month())*100 + day.Day()
	s := int(start.Month())*100 + start.Day()
	e := int(end.Month())*100 + end.Day()
	if s <= e {
		return md >= s && md <= e
	}
	return md >= s || md <= e
}

func parseTierDate(value string) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("01-02", value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ConfigDocument is the singleton config document as stored.
type ConfigDocument struct {
	ID                  string         `json:"id"`
	Delivery            DeliveryConfig `json:"delivery"`
	SeasonalMultipliers SeasonalConfig `json:"seasonal_multipliers"`
	UpdatedOn           time.Time      `json:"updated_on"`
}

// PricingCatalog is the merged catalog; the single unit cached and invalidated.
type PricingCatalog struct {
	Products   []ProductEntry   `json:"products"`
	Generators []GeneratorEntry `json:"generators"`
	Branches   []BranchEntry    `json:"branches"`
	States     []StateEntry     `json:"states"`
	Delivery   DeliveryConfig   `json:"delivery"`
	Seasonal   SeasonalConfig   `json:"seasonal"`
	// LastSynced is the stored config document's write time. It is read
	// from the store on every build, never stamped by the caller.
	LastSynced time.Time        `json:"last_synced"`
}

func (c *PricingCatalog) Product(id string) (*ProductEntry, bool) {
	for i := range c.Products {
		if strings.EqualFold(c.Products[i].ID, id) {
			return &c.Products[i], true
		}
	}
	return nil, false
}

func (c *PricingCatalog) Generator(id string) (*GeneratorEntry, bool) {
	for i := range c.Generators {
		if strings.EqualFold(c.Generators[i].ID, id) {
			return &c.Generators[i], true
		}
	}
	return nil, false
}

// NormalizeState resolves a state name or two-letter code to its catalog entry.
func (c *PricingCatalog) NormalizeState(ref string) (*StateEntry, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}
	for i := range c.States {
		if strings.EqualFold(c.States[i].Code, ref) || strings.EqualFold(c.States[i].Name, ref) {
			return &c.States[i], true
		}
	}
	return nil, false
}
