package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlasops/backoffice/internal/models"
	"github.com/atlasops/backoffice/internal/store"
	"github.com/atlasops/backoffice/internal/timeutil"
)

// ErrInvalidPeriod is returned for an analytics period outside the
// supported set.
var ErrInvalidPeriod = errors.New("invalid analytics period")

// recentLimit is how many recent contacts/subscriptions the overview
// includes.
const recentLimit = 5

// Service composes read-only dashboard views over the three
// collections. Any failing sub-query fails the whole call; no partial
// dashboards are served.
type Service struct {
	contacts store.ContactStore
	subs     store.SubscriptionStore
	users    store.UserStore
	now      func() time.Time
}

// NewService creates a new dashboard Service.
func NewService(contacts store.ContactStore, subs store.SubscriptionStore, users store.UserStore) *Service {
	return &Service{
		contacts: contacts,
		subs:     subs,
		users:    users,
		now:      time.Now,
	}
}

// CollectionSummary is the per-collection slice of the overview.
type CollectionSummary struct {
	Total    int
	ByStatus map[string]int
	Today    int
}

// Overview is the combined dashboard snapshot.
type Overview struct {
	Contacts            CollectionSummary
	Subscriptions       CollectionSummary
	Users               models.UserCounts
	RecentContacts      []models.Contact
	RecentSubscriptions []models.EmailSubscription
}

// Overview assembles counts and recent rows across contacts,
// subscriptions, and users.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	now := s.now()
	dayStart := timeutil.StartOfDay(now)
	o := &Overview{}
	var err error

	if o.Contacts.Total, err = s.contacts.CountContacts(ctx); err != nil {
		return nil, fmt.Errorf("counting contacts: %w", err)
	}
	if o.Contacts.ByStatus, err = s.contacts.CountContactsByStatus(ctx); err != nil {
		return nil, fmt.Errorf("counting contacts by status: %w", err)
	}
	if o.Contacts.Today, err = s.contacts.CountContactsSince(ctx, dayStart); err != nil {
		return nil, fmt.Errorf("counting contacts today: %w", err)
	}

	if o.Subscriptions.Total, err = s.subs.CountSubscriptions(ctx); err != nil {
		return nil, fmt.Errorf("counting subscriptions: %w", err)
	}
	if o.Subscriptions.ByStatus, err = s.subs.CountSubscriptionsByStatus(ctx); err != nil {
		return nil, fmt.Errorf("counting subscriptions by status: %w", err)
	}
	if o.Subscriptions.Today, err = s.subs.CountSubscriptionsSince(ctx, dayStart); err != nil {
		return nil, fmt.Errorf("counting subscriptions today: %w", err)
	}

	if o.Users, err = s.users.CountUsers(ctx, timeutil.StartOfMonth(now)); err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	if o.RecentContacts, err = s.contacts.RecentContacts(ctx, recentLimit); err != nil {
		return nil, fmt.Errorf("loading recent contacts: %w", err)
	}
	if o.RecentSubscriptions, err = s.subs.RecentSubscriptions(ctx, recentLimit); err != nil {
		return nil, fmt.Errorf("loading recent subscriptions: %w", err)
	}

	return o, nil
}

// Analytics is the day-bucketed growth view over a trailing window.
type Analytics struct {
	Period             string
	ContactGrowth      []models.GrowthPoint
	SubscriptionGrowth []models.GrowthPoint
}

// periodDays maps the supported trailing windows to their length.
var periodDays = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
	"1y":  365,
}

// Analytics returns chronological per-day creation counts for contacts
// and subscriptions over the requested trailing window (default 30d).
// Days with no creations are absent from the series.
func (s *Service) Analytics(ctx context.Context, period string) (*Analytics, error) {
	if period == "" {
		period = "30d"
	}
	days, ok := periodDays[period]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	since := s.now().UTC().AddDate(0, 0, -days)
	a := &Analytics{Period: period}
	var err error

	if a.ContactGrowth, err = s.contacts.ContactGrowth(ctx, since); err != nil {
		return nil, fmt.Errorf("loading contact growth: %w", err)
	}
	if a.SubscriptionGrowth, err = s.subs.SubscriptionGrowth(ctx, since); err != nil {
		return nil, fmt.Errorf("loading subscription growth: %w", err)
	}

	return a, nil
}
