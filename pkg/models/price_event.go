package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceEvent is one observed flight price. It is the queue wire format.
type PriceEvent struct {
	FlightID      string          `json:"flightId"`
	Airline       string          `json:"airline"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureDate FlightDate      `json:"departureDate"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
}

// Validate reports the first missing required field.
func (e PriceEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.FlightID) == "":
		return fmt.Errorf("flightId is required")
	case strings.TrimSpace(e.Destination) == "":
		return fmt.Errorf("destination is required")
	case strings.TrimSpace(e.Currency) == "":
		return fmt.Errorf("currency is required")
	case e.Price.IsNegative():
		return fmt.Errorf("price must be non-negative, got %s", e.Price)
	}
	return nil
}

// MarshalJSON writes price as a JSON number; decimal.Decimal quotes it by default.
func (e PriceEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FlightID      string      `json:"flightId"`
		Airline       string      `json:"airline"`
		Origin        string      `json:"origin"`
		Destination   string      `json:"destination"`
		DepartureDate FlightDate  `json:"departureDate"`
		Price         json.Number `json:"price"`
		Currency      string      `json:"currency"`
	}{
		FlightID:      e.FlightID,
		Airline:       e.Airline,
		Origin:        e.Origin,
		Destination:   e.Destination,
		DepartureDate: e.DepartureDate,
		Price:         json.Number(e.Price.String()),
		Currency:      e.Currency,
	})
}

func (e PriceEvent) String() string {
	return fmt.Sprintf("%s %s %s->%s %s %s", e.FlightID, e.Airline, e.Origin, e.Destination, e.Price.String(), e.Currency)
}

// EncodePriceEvent serializes an event as UTF-8 JSON.
func EncodePriceEvent(e PriceEvent) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal price event: %w", err)
	}
	return body, nil
}

// DecodePriceEvent parses and validates a queue payload.
func DecodePriceEvent(body []byte) (PriceEvent, error) {
	var e PriceEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return PriceEvent{}, fmt.Errorf("failed to unmarshal price event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return PriceEvent{}, fmt.Errorf("invalid price event: %w", err)
	}
	return e, nil
}

// DecodePriceEvents parses a source response body holding a JSON array.
func DecodePriceEvents(body []byte) ([]PriceEvent, error) {
	var events []PriceEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price list: %w", err)
	}
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("invalid price event at index %d: %w", i, err)
		}
	}
	return events, nil
}

var flightDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FlightDate accepts RFC 3339 timestamps as well as zone-less date-times and
// plain dates; zone-less values are read as UTC.
type FlightDate struct {
	time.Time
}

func NewFlightDate(t time.Time) FlightDate {
	return FlightDate{Time: t}
}

func (d FlightDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.Format(time.RFC3339Nano))
}

func (d *FlightDate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("departureDate must be a string: %w", err)
	}
	for _, layout := range flightDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized departureDate %q", raw)
}

// Equal compares instants, ignoring location.
func (d FlightDate) Equal(other FlightDate) bool {
	return d.Time.Equal(other.Time)
}
