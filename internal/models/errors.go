package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrURLRequired indicates a required URL field is empty.
	ErrURLRequired = errors.New("url is required")

	// ErrInvalidURL indicates a malformed URL.
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrChannelNumberInvalid indicates a non-positive channel number.
	ErrChannelNumberInvalid = errors.New("channel number must be positive")

	// ErrChannelIDRequired indicates a required channel ID field is zero.
	ErrChannelIDRequired = errors.New("channel_id is required")

	// ErrInvalidStreamKind indicates an unknown stream kind.
	ErrInvalidStreamKind = errors.New("invalid stream kind")

	// ErrSourceIDRequired indicates a required source ID field is zero.
	ErrSourceIDRequired = errors.New("source_id is required")

	// ErrEpgIDRequired indicates a required EPG channel identifier is empty.
	ErrEpgIDRequired = errors.New("epg_id is required")

	// ErrStartTimeRequired indicates a required start time field is empty.
	ErrStartTimeRequired = errors.New("start time is required")

	// ErrEndTimeRequired indicates a required end time field is empty.
	ErrEndTimeRequired = errors.New("end time is required")

	// ErrTitleRequired indicates a required title field is empty.
	ErrTitleRequired = errors.New("title is required")

	// ErrInvalidTimeRange indicates end time is before start time.
	ErrInvalidTimeRange = errors.New("end time must be after start time")

	// ErrRefreshIntervalInvalid indicates a non-positive refresh interval.
	ErrRefreshIntervalInvalid = errors.New("refresh interval must be positive")

	// ErrProfileNoClients indicates a profile with no client entries.
	ErrProfileNoClients = errors.New("profile must define at least one client entry")

	// ErrInvalidClientKind indicates an unknown client kind key.
	ErrInvalidClientKind = errors.New("invalid client kind")
)
