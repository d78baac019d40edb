package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlasops/backoffice/internal/models"
	"github.com/atlasops/backoffice/internal/store"
	"github.com/atlasops/backoffice/internal/timeutil"
	"github.com/atlasops/backoffice/internal/validate"
)

// Sentinel errors returned by Service methods.
var (
	ErrNotFound            = errors.New("subscription not found")
	ErrAlreadySubscribed   = errors.New("email is already subscribed")
	ErrAlreadyUnsubscribed = errors.New("email is already unsubscribed")
	ErrInvalidStatus       = errors.New("invalid subscription status")
	ErrInvalidSource       = errors.New("invalid subscription source")
)

// defaultUnsubscribeReason is stored when the caller gives none.
const defaultUnsubscribeReason = "User requested"

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var validStatuses = map[string]bool{
	models.SubscriptionStatusActive:       true,
	models.SubscriptionStatusUnsubscribed: true,
	models.SubscriptionStatusBounced:      true,
	models.SubscriptionStatusComplained:   true,
}

var validSources = map[string]bool{
	models.SubscriptionSourceFooter: true,
	models.SubscriptionSourcePopup:  true,
	models.SubscriptionSourceManual: true,
	models.SubscriptionSourceImport: true,
}

// allPreferencesOn are the defaults for a fresh subscription.
var allPreferencesOn = models.SubscriptionPreferences{
	Newsletters: true,
	Promotions:  true,
	Updates:     true,
	Events:      true,
}

// Service provides email-subscription lifecycle logic.
type Service struct {
	subs store.SubscriptionStore
	now  func() time.Time
}

// NewService creates a new subscription Service.
func NewService(subs store.SubscriptionStore) *Service {
	return &Service{
		subs: subs,
		now:  time.Now,
	}
}

// SubscribeParams is a public subscribe request.
type SubscribeParams struct {
	Email       string
	Source      string
	Preferences models.PreferencePatch
	Metadata    models.SubscriptionMetadata
}

// Subscribe creates or reactivates a subscription for the email. The
// returned bool is true when a fresh subscription was created and false
// when a non-active one was reactivated. An already-active email is a
// conflict. Email uniqueness is guarded by the store's unique index, so
// a concurrent duplicate create also surfaces as ErrAlreadySubscribed.
func (s *Service) Subscribe(ctx context.Context, params SubscribeParams) (*models.EmailSubscription, bool, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if !validate.Email(email) {
		return nil, false, &validate.Error{Fields: map[string]string{
			"email": "a valid email address is required",
		}}
	}

	source := params.Source
	if source == "" {
		source = models.SubscriptionSourceFooter
	}
	if !validSources[source] {
		return nil, false, ErrInvalidSource
	}

	existing, err := s.subs.GetSubscriptionByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("looking up subscription: %w", err)
		}

		sub, err := s.subs.CreateSubscription(ctx, models.SubscriptionCreateParams{
			Email:       email,
			Source:      source,
			Preferences: params.Preferences.Apply(allPreferencesOn),
			Metadata:    params.Metadata,
		})
		if err != nil {
			if errors.Is(err, store.ErrDuplicateEmail) {
				return nil, false, ErrAlreadySubscribed
			}
			return nil, false, fmt.Errorf("creating subscription: %w", err)
		}
		return sub, true, nil
	}

	if existing.Status == models.SubscriptionStatusActive {
		return nil, false, ErrAlreadySubscribed
	}

	sub, err := s.subs.ReactivateSubscription(ctx, existing.ID, models.SubscriptionReactivateParams{
		Source:           source,
		SubscriptionDate: s.now(),
		Preferences:      params.Preferences.Apply(existing.Preferences),
		Metadata:         params.Metadata,
	})
	if err != nil {
		return nil, false, fmt.Errorf("reactivating subscription: %w", err)
	}
	return sub, false, nil
}

// Unsubscribe marks an active (or bounced/complained) subscription as
// unsubscribed. Unsubscribing an already-unsubscribed email is an
// invalid transition.
func (s *Service) Unsubscribe(ctx context.Context, email, reason string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	sub, err := s.subs.GetSubscriptionByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("looking up subscription: %w", err)
	}

	if sub.Status == models.SubscriptionStatusUnsubscribed {
		return ErrAlreadyUnsubscribed
	}

	if strings.TrimSpace(reason) == "" {
		reason = defaultUnsubscribeReason
	}

	if err := s.subs.MarkUnsubscribed(ctx, sub.ID, s.now(), reason); err != nil {
		return fmt.Errorf("unsubscribing: %w", err)
	}
	return nil
}

// ListParams are the admin list filters.
type ListParams struct {
	Status   string
	Source   string
	Search   string
	Page     int
	PageSize int
}

// List returns one page of subscriptions, newest first by subscription
// date, with pagination metadata.
func (s *Service) List(ctx context.Context, params ListParams) ([]models.EmailSubscription, models.Pagination, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)

	subs, total, err := s.subs.ListSubscriptions(ctx, models.SubscriptionQuery{
		Status: params.Status,
		Source: params.Source,
		Search: strings.TrimSpace(params.Search),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("listing subscriptions: %w", err)
	}

	return subs, models.NewPagination(page, pageSize, total), nil
}

// Get returns a single subscription.
func (s *Service) Get(ctx context.Context, publicID uuid.UUID) (*models.EmailSubscription, error) {
	sub, err := s.subs.GetSubscriptionByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("looking up subscription: %w", err)
	}
	return sub, nil
}

// Update applies admin mutations: a status transition, a preference
// merge, and a tag replacement. Transitioning to unsubscribed stamps
// the unsubscription date; transitioning to active clears it.
func (s *Service) Update(ctx context.Context, publicID uuid.UUID, params models.SubscriptionUpdateParams) (*models.EmailSubscription, error) {
	sub, err := s.Get(ctx, publicID)
	if err != nil {
		return nil, err
	}

	write := models.SubscriptionWrite{
		Status:               sub.Status,
		UnsubscriptionDate:   sub.UnsubscriptionDate,
		UnsubscriptionReason: sub.UnsubscriptionReason,
		Preferences:          params.Preferences.Apply(sub.Preferences),
		Tags:                 sub.Tags,
	}

	if params.Status != nil {
		if !validStatuses[*params.Status] {
			return nil, ErrInvalidStatus
		}
		write.Status = *params.Status

		switch {
		case write.Status == models.SubscriptionStatusUnsubscribed && sub.Status != models.SubscriptionStatusUnsubscribed:
			now := s.now()
			write.UnsubscriptionDate = &now
			if write.UnsubscriptionReason == "" {
				write.UnsubscriptionReason = "Updated by admin"
			}
		case write.Status == models.SubscriptionStatusActive:
			write.UnsubscriptionDate = nil
			write.UnsubscriptionReason = ""
		}
	}

	if params.Tags != nil {
		write.Tags = *params.Tags
	}

	if err := s.subs.UpdateSubscription(ctx, sub.ID, write); err != nil {
		return nil, fmt.Errorf("updating subscription: %w", err)
	}

	return s.Get(ctx, publicID)
}

// Delete removes a subscription entirely.
func (s *Service) Delete(ctx context.Context, publicID uuid.UUID) error {
	sub, err := s.Get(ctx, publicID)
	if err != nil {
		return err
	}
	if err := s.subs.DeleteSubscription(ctx, sub.ID); err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}

// Stats is a point-in-time snapshot over the subscriptions collection.
type Stats struct {
	Total      int
	ByStatus   map[string]int
	BySource   map[string]int
	Windows    models.WindowCounts
	Engagement models.EngagementSummary
}

// Stats recomputes grouped, windowed, and engagement counts on every
// call. Windows are anchored on the subscription date.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var err error

	if stats.Total, err = s.subs.CountSubscriptions(ctx); err != nil {
		return nil, fmt.Errorf("counting subscriptions: %w", err)
	}
	if stats.ByStatus, err = s.subs.CountSubscriptionsByStatus(ctx); err != nil {
		return nil, fmt.Errorf("counting subscriptions by status: %w", err)
	}
	if stats.BySource, err = s.subs.CountSubscriptionsBySource(ctx); err != nil {
		return nil, fmt.Errorf("counting subscriptions by source: %w", err)
	}

	now := s.now()
	if stats.Windows.Today, err = s.subs.CountSubscriptionsSince(ctx, timeutil.StartOfDay(now)); err != nil {
		return nil, fmt.Errorf("counting subscriptions today: %w", err)
	}
	if stats.Windows.ThisWeek, err = s.subs.CountSubscriptionsSince(ctx, now.Add(-7*24*time.Hour)); err != nil {
		return nil, fmt.Errorf("counting subscriptions this week: %w", err)
	}
	if stats.Windows.ThisMonth, err = s.subs.CountSubscriptionsSince(ctx, timeutil.StartOfMonth(now)); err != nil {
		return nil, fmt.Errorf("counting subscriptions this month: %w", err)
	}
	if stats.Windows.ThisYear, err = s.subs.CountSubscriptionsSince(ctx, timeutil.StartOfYear(now)); err != nil {
		return nil, fmt.Errorf("counting subscriptions this year: %w", err)
	}

	if stats.Engagement, err = s.subs.EngagementSummary(ctx); err != nil {
		return nil, fmt.Errorf("summarizing engagement: %w", err)
	}

	return stats, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
