package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AlertPreference is a standing request to be notified when the price for a
// destination drops to or below MaxPrice.
type AlertPreference struct {
	PreferenceID string          `json:"preferenceId,omitempty"`
	Destination  string          `json:"destination" binding:"required"`
	MaxPrice     decimal.Decimal `json:"maxPrice"`
	Currency     string          `json:"currency" binding:"required"`
}

// Matches reports whether the event satisfies this preference. Comparison is
// inclusive and currencies are not converted.
func (p AlertPreference) Matches(e PriceEvent) bool {
	return p.Destination == e.Destination && p.MaxPrice.GreaterThanOrEqual(e.Price)
}

// SameCurrency compares currency codes case-insensitively.
func (p AlertPreference) SameCurrency(e PriceEvent) bool {
	return strings.EqualFold(p.Currency, e.Currency)
}

type User struct {
	ID                string            `json:"id,omitempty"`
	Name              string            `json:"name" binding:"required"`
	Email             string            `json:"email" binding:"required"`
	MobileDeviceToken string            `json:"mobileDeviceToken,omitempty"`
	AlertPreferences  []AlertPreference `json:"alertPreferences"`
}

// Clone returns a deep copy so callers can mutate preferences freely.
func (u User) Clone() User {
	out := u
	if u.AlertPreferences != nil {
		out.AlertPreferences = make([]AlertPreference, len(u.AlertPreferences))
		copy(out.AlertPreferences, u.AlertPreferences)
	}
	return out
}

// DispatchMessage is derived per match and never persisted.
type DispatchMessage struct {
	User  User
	Event PriceEvent
	Text  string
}
