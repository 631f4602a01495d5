package domain

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a required setting that is missing.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is not configured", e.Setting)
}

// ProtocolError means the portal answered in a shape the handshake cannot use.
type ProtocolError struct {
	Step   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("portal protocol error during %s: %s", e.Step, e.Reason)
}

// AuthenticationError means the portal rejected the credentials.
type AuthenticationError struct {
	Status   int
	Location string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("portal authentication failed: status=%d location=%q", e.Status, e.Location)
}

// FetchError is a non-2xx answer to the listings page request.
type FetchError struct {
	Status     int
	StatusText string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch listings page: %d %s", e.Status, e.StatusText)
}

// ValidationError lists the fields of a scraped row that failed validation.
type ValidationError struct {
	TripID string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (trip %q): %s", InvalidListingReason, e.TripID, strings.Join(e.Fields, ", "))
}

// DuplicateKeyError is returned by Save when the trip id already exists.
type DuplicateKeyError struct {
	TripID string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key: load with trip id %q already exists", e.TripID)
}

// DeliveryError is a non-2xx answer from the messaging gateway.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("message delivery failed: status=%d body=%s", e.Status, e.Body)
}
