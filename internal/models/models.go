package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact statuses.
const (
	ContactStatusNew        = "new"
	ContactStatusContacted  = "contacted"
	ContactStatusInProgress = "in-progress"
	ContactStatusCompleted  = "completed"
	ContactStatusCancelled  = "cancelled"
)

// Contact priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Subscription statuses.
const (
	SubscriptionStatusActive       = "active"
	SubscriptionStatusUnsubscribed = "unsubscribed"
	SubscriptionStatusBounced      = "bounced"
	SubscriptionStatusComplained   = "complained"
)

// Subscription sources.
const (
	SubscriptionSourceFooter = "website-footer"
	SubscriptionSourcePopup  = "website-popup"
	SubscriptionSourceManual = "manual"
	SubscriptionSourceImport = "import"
)

type User struct {
	ID           int64
	PublicID     uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Contact struct {
	ID           int64
	PublicID     uuid.UUID
	Name         string
	Email        string
	Phone        string
	Description  string
	Status       string
	Priority     string
	Source       string
	IPAddress    string
	UserAgent    string
	AssignedTo   *ContactAssignee
	FollowUpDate *time.Time
	Notes        []ContactNote
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContactAssignee is the display-safe projection of the assigned user.
type ContactAssignee struct {
	PublicID uuid.UUID
	Name     string
	Email    string
}

type ContactNote struct {
	ID        int64
	ContactID int64
	Text      string
	AddedBy   string
	AddedAt   time.Time
}

type ContactCreateParams struct {
	Name        string
	Email       string
	Phone       string
	Description string
	Source      string
	IPAddress   string
	UserAgent   string
	NoteText    string
	NoteAddedBy string
}

// ContactUpdateParams carries optional admin mutations. Nil means
// "leave unchanged"; ClearAssignee takes precedence over AssignedTo.
type ContactUpdateParams struct {
	Status        *string
	Priority      *string
	AssignedTo    *int64
	ClearAssignee bool
	FollowUpDate  *time.Time
}

type ContactQuery struct {
	Status   string
	Priority string
	Search   string
	Limit    int
	Offset   int
}

// SubscriptionPreferences are the per-category opt-ins. All default to
// true for a fresh subscription.
type SubscriptionPreferences struct {
	Newsletters bool
	Promotions  bool
	Updates     bool
	Events      bool
}

// PreferencePatch distinguishes absent fields from explicit false so
// resubscribes merge instead of replace.
type PreferencePatch struct {
	Newsletters *bool
	Promotions  *bool
	Updates     *bool
	Events      *bool
}

// Apply overlays the patch on top of prefs, leaving absent fields alone.
func (p PreferencePatch) Apply(prefs SubscriptionPreferences) SubscriptionPreferences {
	if p.Newsletters != nil {
		prefs.Newsletters = *p.Newsletters
	}
	if p.Promotions != nil {
		prefs.Promotions = *p.Promotions
	}
	if p.Updates != nil {
		prefs.Updates = *p.Updates
	}
	if p.Events != nil {
		prefs.Events = *p.Events
	}
	return prefs
}

// SubscriptionMetadata is request context captured at (re)subscription.
type SubscriptionMetadata struct {
	IPAddress string
	UserAgent string
	Referrer  string
	Country   string
	City      string
}

type EmailSubscription struct {
	ID                   int64
	PublicID             uuid.UUID
	Email                string
	Status               string
	Source               string
	SubscriptionDate     time.Time
	UnsubscriptionDate   *time.Time
	UnsubscriptionReason string
	Preferences          SubscriptionPreferences
	Metadata             SubscriptionMetadata
	Tags                 []string
	EmailsSent           int
	EmailsOpened         int
	EmailsClicked        int
	LastEmailSent        *time.Time
	LastEmailOpened      *time.Time
	LastEmailClicked     *time.Time
	IsVerified           bool
	VerifiedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// EngagementRate is the percentage of sent emails that were opened,
// rounded to the nearest integer. Zero when nothing was sent.
func (s *EmailSubscription) EngagementRate() int {
	if s.EmailsSent == 0 {
		return 0
	}
	return int(float64(s.EmailsOpened)/float64(s.EmailsSent)*100 + 0.5)
}

// ClickRate is the percentage of opened emails that were clicked.
func (s *EmailSubscription) ClickRate() int {
	if s.EmailsOpened == 0 {
		return 0
	}
	return int(float64(s.EmailsClicked)/float64(s.EmailsOpened)*100 + 0.5)
}

// SubscriptionDuration is the whole number of days the subscription has
// been (or was) active, measured against now for active subscriptions.
func (s *EmailSubscription) SubscriptionDuration(now time.Time) int {
	end := now
	if s.UnsubscriptionDate != nil {
		end = *s.UnsubscriptionDate
	}
	d := int(end.Sub(s.SubscriptionDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

type SubscriptionCreateParams struct {
	Email       string
	Source      string
	Preferences SubscriptionPreferences
	Metadata    SubscriptionMetadata
}

// SubscriptionReactivateParams is the single-statement update applied
// when a non-active subscription subscribes again.
type SubscriptionReactivateParams struct {
	Source           string
	SubscriptionDate time.Time
	Preferences      SubscriptionPreferences
	Metadata         SubscriptionMetadata
}

// SubscriptionWrite is the full set of mutable columns written by an
// admin update, computed by the service from the current row.
type SubscriptionWrite struct {
	Status               string
	UnsubscriptionDate   *time.Time
	UnsubscriptionReason string
	Preferences          SubscriptionPreferences
	Tags                 []string
}

// SubscriptionUpdateParams carries optional admin mutations.
type SubscriptionUpdateParams struct {
	Status      *string
	Preferences PreferencePatch
	Tags        *[]string
}

type SubscriptionQuery struct {
	Status string
	Source string
	Search string
	Limit  int
	Offset int
}

// Pagination is the page metadata attached to list responses.
type Pagination struct {
	CurrentPage int
	TotalPages  int
	TotalCount  int
	PageSize    int
}

// NewPagination computes page metadata for a total of total matching
// rows. TotalPages is zero when nothing matches.
func NewPagination(page, pageSize, total int) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		PageSize:    pageSize,
	}
}

// WindowCounts are rolling creation counts anchored to the call time.
// Each window is inclusive of its lower bound with no upper bound.
type WindowCounts struct {
	Today     int
	ThisWeek  int
	ThisMonth int
	ThisYear  int
}

// GrowthPoint is one day of a creation-count series.
type GrowthPoint struct {
	Date  time.Time
	Count int
}

// EngagementSummary aggregates delivery counters over the eligible
// (active and verified) subscriptions.
type EngagementSummary struct {
	TotalSent         int
	TotalOpened       int
	TotalClicked      int
	AvgEngagementRate float64
}

// UserCounts are the simple dashboard tallies over the users table.
type UserCounts struct {
	Total     int
	Active    int
	Admins    int
	ThisMonth int
}
