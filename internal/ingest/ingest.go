// Package ingest turns raw spreadsheet rows into typed catalog entries.
// Malformed rows are quarantined and reported; they never reach the store.
package ingest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/source"
)

// RowIssue describes a quarantined row or setting.
type RowIssue struct {
	Collection domain.Collection `json:"collection"`
	Row        int               `json:"row"` // 1-based data row, 0 for config settings
	ID         string            `json:"id,omitempty"`
	Reason     string            `json:"reason"`
}

func (i RowIssue) String() string {
	if i.ID != "" {
		return fmt.Sprintf("%s row %d (%s): %s", i.Collection, i.Row, i.ID, i.Reason)
	}
	return fmt.Sprintf("%s row %d: %s", i.Collection, i.Row, i.Reason)
}

const extraPrefix = "extra_"

var productRateColumns = map[string]func(*domain.RateTable) *decimal.NullDecimal{
	"rate_daily":         func(t *domain.RateTable) *decimal.NullDecimal { return &t.Daily },
	"rate_7_day":         func(t *domain.RateTable) *decimal.NullDecimal { return &t.SevenDay },
	"rate_28_day":        func(t *domain.RateTable) *decimal.NullDecimal { return &t.TwentyEightDay },
	"rate_2_5_month":     func(t *domain.RateTable) *decimal.NullDecimal { return &t.TwoToFiveMonth },
	"rate_6_plus_month":  func(t *domain.RateTable) *decimal.NullDecimal { return &t.SixPlusMonth },
	"rate_18_plus_month": func(t *domain.RateTable) *decimal.NullDecimal { return &t.EighteenPlusMonth },
}

// ParseProducts parses product rows. Rate cells left empty stay unset.
func ParseProducts(rows []source.Row) ([]domain.ProductEntry, []RowIssue) {
	products := make([]domain.ProductEntry, 0, len(rows))
	var issues []RowIssue
	seen := map[string]bool{}

	for i, row := range rows {
		id := text(row["id"])
		issue := func(reason string) {
			issues = append(issues, RowIssue{Collection: domain.CollectionProducts, Row: i + 1, ID: id, Reason: reason})
		}
		if id == "" {
			issue("missing id")
			continue
		}
		if seen[strings.ToLower(id)] {
			issue("duplicate id")
			continue
		}

		p := domain.ProductEntry{
			ID:       id,
			Name:     text(row["name"]),
			Category: text(row["category"]),
			Rates:    domain.RateTable{Event: map[domain.EventTier]decimal.NullDecimal{}},
			Extras:   map[string]domain.Money{},
		}
		if p.Name == "" {
			p.Name = id
		}

		var err error
		if p.ADACompliant, err = flag(row["ada"]); err != nil {
			issue("ada: " + err.Error())
			continue
		}
		if p.HasShower, err = flag(row["shower"]); err != nil {
			issue("shower: " + err.Error())
			continue
		}

		bad := false
		for column, field := range productRateColumns {
			v, err := OptionalMoney(row[column])
			if err != nil {
				issue(column + ": " + err.Error())
				bad = true
				break
			}
			*field(&p.Rates) = v
		}
		if bad {
			continue
		}
		for _, tier := range domain.EventTiers {
			column := "event_" + string(tier)
			v, err := OptionalMoney(row[column])
			if err != nil {
				issue(column + ": " + err.Error())
				bad = true
				break
			}
			if v.Valid {
				p.Rates.Event[tier] = v
			}
		}
		if bad {
			continue
		}

		for _, column := range sortedKeys(row) {
			if !strings.HasPrefix(column, extraPrefix) {
				continue
			}
			v, err := OptionalMoney(row[column])
			if err != nil {
				issue(column + ": " + err.Error())
				bad = true
				break
			}
			if v.Valid {
				p.Extras[strings.TrimPrefix(column, extraPrefix)] = v.Decimal
			}
		}
		if bad {
			continue
		}

		seen[strings.ToLower(id)] = true
		products = append(products, p)
	}
	return products, issues
}

// ParseGenerators parses generator rows.
func ParseGenerators(rows []source.Row) ([]domain.GeneratorEntry, []RowIssue) {
	generators := make([]domain.GeneratorEntry, 0, len(rows))
	var issues []RowIssue
	seen := map[string]bool{}

	for i, row := range rows {
		id := text(row["id"])
		issue := func(reason string) {
			issues = append(issues, RowIssue{Collection: domain.CollectionGenerators, Row: i + 1, ID: id, Reason: reason})
		}
		if id == "" {
			issue("missing id")
			continue
		}
		if seen[strings.ToLower(id)] {
			issue("duplicate id")
			continue
		}

		g := domain.GeneratorEntry{ID: id, Name: text(row["name"])}
		if g.Name == "" {
			g.Name = id
		}
		var err error
		if g.EventRate, err = OptionalMoney(row["event_rate"]); err != nil {
			issue("event_rate: " + err.Error())
			continue
		}
		if g.SevenDayRate, err = OptionalMoney(row["rate_7_day"]); err != nil {
			issue("rate_7_day: " + err.Error())
			continue
		}
		if g.TwentyEightDayRate, err = OptionalMoney(row["rate_28_day"]); err != nil {
			issue("rate_28_day: " + err.Error())
			continue
		}

		seen[strings.ToLower(id)] = true
		generators = append(generators, g)
	}
	return generators, issues
}

// ParseBranches keeps branch rows raw apart from id, name and address.
func ParseBranches(rows []source.Row) ([]domain.BranchEntry, []RowIssue) {
	branches := make([]domain.BranchEntry, 0, len(rows))
	var issues []RowIssue
	seen := map[string]bool{}

	for i, row := range rows {
		id := text(row["id"])
		if id == "" {
			id = text(row["name"])
		}
		if id == "" {
			issues = append(issues, RowIssue{Collection: domain.CollectionBranches, Row: i + 1, Reason: "missing id"})
			continue
		}
		if seen[strings.ToLower(id)] {
			issues = append(issues, RowIssue{Collection: domain.CollectionBranches, Row: i + 1, ID: id, Reason: "duplicate id"})
			continue
		}

		b := domain.BranchEntry{
			ID:         id,
			Name:       text(row["name"]),
			Address:    text(row["address"]),
			Attributes: map[string]string{},
		}
		for k, v := range row {
			switch k {
			case "id", "name", "address":
			default:
				if s := text(v); s != "" {
					b.Attributes[k] = s
				}
			}
		}
		seen[strings.ToLower(id)] = true
		branches = append(branches, b)
	}
	return branches, issues
}

// ParseStates trims names and upper-cases two-letter codes.
func ParseStates(rows []source.Row) ([]domain.StateEntry, []RowIssue) {
	states := make([]domain.StateEntry, 0, len(rows))
	var issues []RowIssue
	seen := map[string]bool{}

	for i, row := range rows {
		name := text(row["name"])
		if name == "" {
			name = text(row["state"])
		}
		code := strings.ToUpper(text(row["code"]))
		if name == "" || len(code) != 2 {
			issues = append(issues, RowIssue{Collection: domain.CollectionStates, Row: i + 1, ID: code, Reason: "state needs a name and a two-letter code"})
			continue
		}
		if seen[code] {
			issues = append(issues, RowIssue{Collection: domain.CollectionStates, Row: i + 1, ID: code, Reason: "duplicate code"})
			continue
		}
		seen[code] = true
		states = append(states, domain.StateEntry{Name: name, Code: code})
	}
	return states, issues
}

// Config setting keys on the config tab.
const (
	SettingBaseFee             = "delivery_base_fee"
	SettingPerMileRate         = "delivery_per_mile_rate"
	SettingFreeMiles           = "delivery_free_miles"
	SettingFreeWithinThreshold = "delivery_free_within_threshold"
	SettingStandardMultiplier  = "seasonal_standard_multiplier"
)

// ParseConfig parses delivery settings and seasonal tiers. A missing or
// unparsable delivery setting fails the whole config block; malformed tiers
// are quarantined.
func ParseConfig(block *source.ConfigBlock) (domain.DeliveryConfig, domain.SeasonalConfig, []RowIssue, error) {
	var delivery domain.DeliveryConfig
	seasonal := domain.SeasonalConfig{StandardMultiplier: decimal.NewFromInt(1), Tiers: []domain.SeasonalTier{}}
	if block == nil {
		return delivery, seasonal, nil, fmt.Errorf("config block is empty")
	}

	required := func(key string) (decimal.Decimal, error) {
		v, err := OptionalMoney(block.Settings[key])
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", key, err)
		}
		if !v.Valid {
			return decimal.Zero, fmt.Errorf("%s: missing required setting", key)
		}
		return v.Decimal, nil
	}

	var err error
	if delivery.BaseFee, err = required(SettingBaseFee); err != nil {
		return delivery, seasonal, nil, err
	}
	if delivery.PerMileRate, err = required(SettingPerMileRate); err != nil {
		return delivery, seasonal, nil, err
	}
	if delivery.FreeMilesThreshold, err = required(SettingFreeMiles); err != nil {
		return delivery, seasonal, nil, err
	}
	if delivery.FreeWithinThreshold, err = flag(block.Settings[SettingFreeWithinThreshold]); err != nil {
		return delivery, seasonal, nil, fmt.Errorf("%s: %w", SettingFreeWithinThreshold, err)
	}

	std, err := OptionalMoney(block.Settings[SettingStandardMultiplier])
	if err != nil {
		return delivery, seasonal, nil, fmt.Errorf("%s: %w", SettingStandardMultiplier, err)
	}
	if std.Valid && std.Decimal.IsPositive() {
		seasonal.StandardMultiplier = std.Decimal
	}

	var issues []RowIssue
	for i, row := range block.SeasonalTiers {
		name := text(row["name"])
		issue := func(reason string) {
			issues = append(issues, RowIssue{Collection: domain.CollectionConfig, Row: i + 1, ID: name, Reason: "seasonal tier: " + reason})
		}
		start, err := TierDate(row["start_date"])
		if err != nil {
			issue("start_date: " + err.Error())
			continue
		}
		end, err := TierDate(row["end_date"])
		if err != nil {
			issue("end_date: " + err.Error())
			continue
		}
		if len(start) != len(end) {
			issue(fmt.Sprintf("start_date %s and end_date %s must both have a year or both omit it", start, end))
			continue
		}
		if len(start) == len("2006-01-02") && start > end {
			issue(fmt.Sprintf("start_date %s is after end_date %s", start, end))
			continue
		}
		mult, err := OptionalMoney(row["multiplier"])
		if err != nil || !mult.Valid || !mult.Decimal.IsPositive() {
			issue("multiplier must be a positive number")
			continue
		}
		if name == "" {
			name = fmt.Sprintf("tier-%d", i+1)
		}
		seasonal.Tiers = append(seasonal.Tiers, domain.SeasonalTier{
			Name:       name,
			StartDate:  start,
			EndDate:    end,
			Multiplier: mult.Decimal,
		})
	}

	return delivery, seasonal, issues, nil
}

// OptionalMoney parses a money cell. Nil and empty strings are unset, never
// zero. Accepts numbers and strings such as "$1,250.00".
func OptionalMoney(v any) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		s = strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")
		if s == "" || strings.EqualFold(s, "none") || strings.EqualFold(s, "n/a") {
			return decimal.NullDecimal{}, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("not a number: %q", val)
		}
		if d.IsNegative() {
			return decimal.NullDecimal{}, fmt.Errorf("negative amount: %q", val)
		}
		return decimal.NewNullDecimal(d), nil
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("not a number: %v", v)
		}
		if f < 0 {
			return decimal.NullDecimal{}, fmt.Errorf("negative amount: %v", v)
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat(f)), nil
	}
}

var tierDateLayouts = []struct {
	layout    string
	recurring bool
}{
	{"2006-01-02", false},
	{"1/2/2006", false},
	{"01-02", true},
	{"1/2", true},
}

// TierDate normalizes a seasonal tier date to YYYY-MM-DD, or MM-DD when the
// sheet gives no year.
func TierDate(v any) (string, error) {
	s := text(v)
	if s == "" {
		return "", fmt.Errorf("missing date")
	}
	for _, l := range tierDateLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if l.recurring {
			return t.Format("01-02"), nil
		}
		return t.Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

func text(v any) string {
	return strings.TrimSpace(cast.ToString(v))
}

func flag(v any) (bool, error) {
	s := strings.ToLower(text(v))
	switch s {
	case "", "no", "n", "false", "0", "-":
		return false, nil
	case "yes", "y", "x", "true", "1":
		return true, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, fmt.Errorf("not a yes/no value: %q", s)
	}
	return b, nil
}

func sortedKeys(row source.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
