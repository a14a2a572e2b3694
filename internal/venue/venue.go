package venue

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("venue: not found")
	ErrInvalidInput = errors.New("venue: invalid input")
)

// Location is a physical venue owned by an organization.
type Location struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Address        string    `json:"address,omitempty"`
	Timezone       string    `json:"timezone,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Span is one opening interval on one weekday. Times are local wall-clock
// minutes since midnight; an interval where Closes <= Opens is invalid.
type Span struct {
	Weekday time.Weekday `json:"weekday"`
	Opens   int          `json:"opens"`
	Closes  int          `json:"closes"`
}

// SalesInstance is a named sales channel bound to a location.
type SalesInstance struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id"`
	Name       string    `json:"name"`
	Channel    string    `json:"channel"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Sales channels accepted by CreateSalesInstance.
const (
	ChannelDineIn   = "dine_in"
	ChannelTakeaway = "takeaway"
	ChannelDelivery = "delivery"
	ChannelKiosk    = "kiosk"
)

func validChannel(c string) bool {
	switch c {
	case ChannelDineIn, ChannelTakeaway, ChannelDelivery, ChannelKiosk:
		return true
	}
	return false
}

// Store describes persistence for locations, their operating hours and sales
// instances. ReplaceHours swaps the full week in one transaction.
type Store interface {
	CreateLocation(ctx context.Context, l *Location) error
	FindLocation(ctx context.Context, id string) (*Location, error)
	ListLocations(ctx context.Context, organizationID string) ([]*Location, error)
	UpdateLocation(ctx context.Context, l *Location) error
	DeleteLocation(ctx context.Context, id string) error

	ReplaceHours(ctx context.Context, locationID string, spans []Span) error
	HoursFor(ctx context.Context, locationID string) ([]Span, error)

	CreateSalesInstance(ctx context.Context, si *SalesInstance) error
	FindSalesInstance(ctx context.Context, id string) (*SalesInstance, error)
	ListSalesInstances(ctx context.Context, locationID string) ([]*SalesInstance, error)
	SetSalesInstanceActive(ctx context.Context, id string, active bool) error
	DeleteSalesInstance(ctx context.Context, id string) error
}
