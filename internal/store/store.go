package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/atlasops/backoffice/internal/models"
)

// ErrDuplicateEmail is returned by CreateSubscription when the email's
// unique constraint rejects the insert. It is how a race between two
// concurrent subscribes for the same address resolves.
var ErrDuplicateEmail = errors.New("email already exists")

type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash, name, role string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByPublicID(ctx context.Context, publicID uuid.UUID) (*models.User, error)
	CountUsers(ctx context.Context, monthStart time.Time) (models.UserCounts, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) (*models.Session, error)
	GetSessionByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) error
}

type ContactStore interface {
	CreateContact(ctx context.Context, params models.ContactCreateParams) (*models.Contact, error)
	GetContactByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Contact, error)
	ContactExistsSince(ctx context.Context, email string, since time.Time) (bool, error)
	ListContacts(ctx context.Context, query models.ContactQuery) ([]models.Contact, int, error)
	UpdateContact(ctx context.Context, id int64, params models.ContactUpdateParams) error
	AddContactNote(ctx context.Context, contactID int64, text, addedBy string) (*models.ContactNote, error)
	DeleteContact(ctx context.Context, id int64) error
	CountContacts(ctx context.Context) (int, error)
	CountContactsByStatus(ctx context.Context) (map[string]int, error)
	CountContactsByPriority(ctx context.Context) (map[string]int, error)
	CountContactsBySource(ctx context.Context) (map[string]int, error)
	CountContactsSince(ctx context.Context, since time.Time) (int, error)
	RecentContacts(ctx context.Context, limit int) ([]models.Contact, error)
	ContactGrowth(ctx context.Context, since time.Time) ([]models.GrowthPoint, error)
}

type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, params models.SubscriptionCreateParams) (*models.EmailSubscription, error)
	GetSubscriptionByEmail(ctx context.Context, email string) (*models.EmailSubscription, error)
	GetSubscriptionByPublicID(ctx context.Context, publicID uuid.UUID) (*models.EmailSubscription, error)
	ReactivateSubscription(ctx context.Context, id int64, params models.SubscriptionReactivateParams) (*models.EmailSubscription, error)
	MarkUnsubscribed(ctx context.Context, id int64, at time.Time, reason string) error
	UpdateSubscription(ctx context.Context, id int64, write models.SubscriptionWrite) error
	DeleteSubscription(ctx context.Context, id int64) error
	ListSubscriptions(ctx context.Context, query models.SubscriptionQuery) ([]models.EmailSubscription, int, error)
	CountSubscriptions(ctx context.Context) (int, error)
	CountSubscriptionsByStatus(ctx context.Context) (map[string]int, error)
	CountSubscriptionsBySource(ctx context.Context) (map[string]int, error)
	CountSubscriptionsSince(ctx context.Context, since time.Time) (int, error)
	EngagementSummary(ctx context.Context) (models.EngagementSummary, error)
	RecentSubscriptions(ctx context.Context, limit int) ([]models.EmailSubscription, error)
	SubscriptionGrowth(ctx context.Context, since time.Time) ([]models.GrowthPoint, error)
}
