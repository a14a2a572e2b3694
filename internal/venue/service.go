package venue

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mesaplatform/mesa/internal/ids"
)

const minutesPerDay = 24 * 60

// Service applies validation over the store.
type Service struct {
	store Store
	now   func() time.Time
}

type ServiceOption func(*Service)

// WithClock overrides the time source for tests.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) { s.now = fn }
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLocation creates a venue under the organization.
func (s *Service) CreateLocation(ctx context.Context, organizationID, name, address, timezone string) (*Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: location name is required", ErrInvalidInput)
	}
	timezone = strings.TrimSpace(timezone)
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, timezone)
		}
	}
	now := s.now().UTC()
	l := &Location{
		ID:             ids.New(),
		OrganizationID: organizationID,
		Name:           name,
		Address:        strings.TrimSpace(address),
		Timezone:       timezone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateLocation(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Location loads a venue by ID.
func (s *Service) Location(ctx context.Context, id string) (*Location, error) {
	return s.store.FindLocation(ctx, id)
}

// ListLocations lists the organization's venues.
func (s *Service) ListLocations(ctx context.Context, organizationID string) ([]*Location, error) {
	return s.store.ListLocations(ctx, organizationID)
}

// UpdateLocation renames or re-addresses a venue.
func (s *Service) UpdateLocation(ctx context.Context, id, name, address, timezone string) (*Location, error) {
	l, err := s.store.FindLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: location name is required", ErrInvalidInput)
	}
	timezone = strings.TrimSpace(timezone)
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, timezone)
		}
	}
	l.Name = name
	l.Address = strings.TrimSpace(address)
	l.Timezone = timezone
	l.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateLocation(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// DeleteLocation removes a venue and its dependent rows.
func (s *Service) DeleteLocation(ctx context.Context, id string) error {
	return s.store.DeleteLocation(ctx, id)
}

// ReplaceHours swaps the location's full weekly schedule. Spans may not
// overlap within a weekday and each must lie inside one day.
func (s *Service) ReplaceHours(ctx context.Context, locationID string, spans []Span) error {
	if _, err := s.store.FindLocation(ctx, locationID); err != nil {
		return err
	}
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Weekday != sorted[j].Weekday {
			return sorted[i].Weekday < sorted[j].Weekday
		}
		return sorted[i].Opens < sorted[j].Opens
	})
	for i, sp := range sorted {
		if sp.Weekday < time.Sunday || sp.Weekday > time.Saturday {
			return fmt.Errorf("%w: invalid weekday %d", ErrInvalidInput, sp.Weekday)
		}
		if sp.Opens < 0 || sp.Closes > minutesPerDay || sp.Closes <= sp.Opens {
			return fmt.Errorf("%w: invalid span %d-%d", ErrInvalidInput, sp.Opens, sp.Closes)
		}
		if i > 0 && sorted[i-1].Weekday == sp.Weekday && sorted[i-1].Closes > sp.Opens {
			return fmt.Errorf("%w: overlapping spans on %s", ErrInvalidInput, sp.Weekday)
		}
	}
	return s.store.ReplaceHours(ctx, locationID, sorted)
}

// Hours returns the location's weekly schedule.
func (s *Service) Hours(ctx context.Context, locationID string) ([]Span, error) {
	return s.store.HoursFor(ctx, locationID)
}

// CreateSalesInstance opens a sales channel on the location.
func (s *Service) CreateSalesInstance(ctx context.Context, locationID, name, channel string) (*SalesInstance, error) {
	if _, err := s.store.FindLocation(ctx, locationID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: sales instance name is required", ErrInvalidInput)
	}
	channel = strings.TrimSpace(strings.ToLower(channel))
	if !validChannel(channel) {
		return nil, fmt.Errorf("%w: unsupported channel %q", ErrInvalidInput, channel)
	}
	now := s.now().UTC()
	si := &SalesInstance{
		ID:         ids.New(),
		LocationID: locationID,
		Name:       name,
		Channel:    channel,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateSalesInstance(ctx, si); err != nil {
		return nil, err
	}
	return si, nil
}

// SalesInstance loads one sales channel.
func (s *Service) SalesInstance(ctx context.Context, id string) (*SalesInstance, error) {
	return s.store.FindSalesInstance(ctx, id)
}

// ListSalesInstances lists the location's sales channels.
func (s *Service) ListSalesInstances(ctx context.Context, locationID string) ([]*SalesInstance, error) {
	return s.store.ListSalesInstances(ctx, locationID)
}

// SetSalesInstanceActive flips the active flag.
func (s *Service) SetSalesInstanceActive(ctx context.Context, id string, active bool) error {
	return s.store.SetSalesInstanceActive(ctx, id, active)
}

// DeleteSalesInstance removes a sales channel.
func (s *Service) DeleteSalesInstance(ctx context.Context, id string) error {
	return s.store.DeleteSalesInstance(ctx, id)
}
