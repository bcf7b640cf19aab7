// Package sheets reads the pricing spreadsheet through the Google Sheets API.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/source"
)

// Tabs names the sheet tab for each collection.
type Tabs struct {
	Products   string
	Generators string
	Branches   string
	States     string
	Config     string
	Seasonal   string
}

// ValueGetter fetches a range of cell values. The Sheets service satisfies
// it through valuesAPI; tests substitute a fake.
type ValueGetter interface {
	GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
}

type valuesAPI struct {
	svc *sheetsapi.Service
}

func (v *valuesAPI) GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

type Source struct {
	values        ValueGetter
	spreadsheetID string
	tabs          Tabs
}

// New creates a Sheets-backed source using a service account credentials file.
// An empty credentials file falls back to application default credentials.
func New(ctx context.Context, spreadsheetID, credentialsFile string, tabs Tabs) (*Source, error) {
	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return NewWithGetter(&valuesAPI{svc: svc}, spreadsheetID, tabs), nil
}

// NewWithGetter creates a source over any ValueGetter
func NewWithGetter(values ValueGetter, spreadsheetID string, tabs Tabs) *Source {
	return &Source{values: values, spreadsheetID: spreadsheetID, tabs: tabs}
}

var _ source.Source = (*Source)(nil)

func (s *Source) FetchProducts(ctx context.Context) ([]source.Row, error) {
	return s.readTab(ctx, s.tabs.Products)
}

func (s *Source) FetchGenerators(ctx context.Context) ([]source.Row, error) {
	return s.readTab(ctx, s.tabs.Generators)
}

func (s *Source) FetchBranches(ctx context.Context) ([]source.Row, error) {
	return s.readTab(ctx, s.tabs.Branches)
}

func (s *Source) FetchStates(ctx context.Context) ([]source.Row, error) {
	return s.readTab(ctx, s.tabs.States)
}

// FetchConfig reads the key/value config tab and the seasonal tiers tab.
func (s *Source) FetchConfig(ctx context.Context) (*source.ConfigBlock, error) {
	settingRows, err := s.readTab(ctx, s.tabs.Config)
	if err != nil {
		return nil, err
	}
	settings := make(map[string]any, len(settingRows))
	for _, row := range settingRows {
		key, _ := row["key"].(string)
		key = normalizeHeader(key)
		if key == "" {
			continue
		}
		settings[key] = row["value"]
	}

	tiers, err := s.readTab(ctx, s.tabs.Seasonal)
	if err != nil {
		return nil, err
	}
	return &source.ConfigBlock{Settings: settings, SeasonalTiers: tiers}, nil
}

func (s *Source) readTab(ctx context.Context, tab string) ([]source.Row, error) {
	readRange := tab + "!A1:ZZ"
	logger.ExternalServiceCall("sheets", "values.get", "range", readRange)
	values, err := s.values.GetValues(ctx, s.spreadsheetID, readRange)
	logger.ExternalServiceResult("sheets", "values.get", err, "range", readRange, "rows", len(values))
	if err != nil {
		return nil, fmt.Errorf("failed to read tab %s: %w", tab, err)
	}
	return rowsFromValues(values), nil
}

// rowsFromValues turns a header row plus data rows into keyed rows.
// Blank rows are skipped; short rows leave trailing columns unset.
func rowsFromValues(values [][]interface{}) []source.Row {
	if len(values) == 0 {
		return []source.Row{}
	}
	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		headers[i] = normalizeHeader(fmt.Sprint(h))
	}

	rows := make([]source.Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := source.Row{}
		blank := true
		for i, cell := range raw {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			if str, ok := cell.(string); ok && strings.TrimSpace(str) == "" {
				row[headers[i]] = ""
				continue
			}
			if cell != nil {
				blank = false
			}
			row[headers[i]] = cell
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}

// normalizeHeader lower-snake-cases a header: "Rate 7-Day" -> "rate_7_day".
func normalizeHeader(h string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.TrimSpace(h) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		case r == '+':
			b.WriteString("_plus")
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
