package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogUnavailable means neither the cache nor the store could
	// produce a catalog.
	ErrCatalogUnavailable = errors.New("pricing catalog unavailable")

	// ErrSyncAlreadyRunning is returned when a sync trigger arrives while a
	// run is in flight. The trigger is dropped, not queued.
	ErrSyncAlreadyRunning = errors.New("catalog sync already running")

	// ErrNotFound is returned by repositories for a missing record.
	ErrNotFound = errors.New("not found")
)

// SourceFetchError is a per-collection fetch failure from the spreadsheet.
type SourceFetchError struct {
	Collection Collection
	Err        error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s from source: %v", e.Collection, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// StoreWriteError is a failed replace or upsert of one collection.
type StoreWriteError struct {
	Collection Collection
	Err        error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("write %s to store: %v", e.Collection, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// CatalogUnavailableError carries the store failure behind ErrCatalogUnavailable.
type CatalogUnavailableError struct {
	Err error
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("%v: %v", ErrCatalogUnavailable, e.Err)
}

func (e *CatalogUnavailableError) Is(target error) bool { return target == ErrCatalogUnavailable }

func (e *CatalogUnavailableError) Unwrap() error { return e.Err }

// ValidationError is a malformed quote request or admin call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Quote warning codes. Warnings are recorded on the quote, never raised.
const (
	WarningUnknownExtra        = "unknown_extra"
	WarningDistanceUnresolved  = "distance_unresolved"
	WarningDistanceEstimated   = "distance_estimated"
	WarningOutsideServiceArea  = "outside_service_area"
	WarningTierFallback        = "tier_fallback"
	WarningProductSubstituted  = "product_substituted"
	WarningNoCompatibleProduct = "no_compatible_product"
	WarningRateUnavailable     = "rate_unavailable"
	WarningUnrecognizedState   = "unrecognized_state"
	WarningStartDateDefaulted  = "start_date_defaulted"
	WarningUsageTypeDefaulted  = "usage_type_defaulted"
	WarningEventTierDefaulted  = "event_tier_defaulted"
)

// Missing-info entries tell the caller what would sharpen an estimate.
const (
	MissingLocationSpecificity = "location_specificity"
	MissingSiteConditions      = "site_conditions"
	MissingDeliveryDistance    = "delivery_distance"
	MissingRentalStartDate     = "rental_start_date"
	MissingRentalRate          = "rental_rate"
	MissingServiceArea         = "service_area_confirmation"
	MissingUsageType           = "usage_type"
)
