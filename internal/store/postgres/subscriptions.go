package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/atlasops/backoffice/internal/models"
	"github.com/atlasops/backoffice/internal/store"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, public_id, email, status, source,
	subscription_date, unsubscription_date, unsubscription_reason,
	pref_newsletters, pref_promotions, pref_updates, pref_events,
	ip_address, user_agent, referrer, country, city, tags,
	emails_sent, emails_opened, emails_clicked,
	last_email_sent, last_email_opened, last_email_clicked,
	is_verified, verified_at, created_at, updated_at`

func scanSubscription(row rowScanner) (*models.EmailSubscription, error) {
	sub := &models.EmailSubscription{}
	err := row.Scan(&sub.ID, &sub.PublicID, &sub.Email, &sub.Status, &sub.Source,
		&sub.SubscriptionDate, &sub.UnsubscriptionDate, &sub.UnsubscriptionReason,
		&sub.Preferences.Newsletters, &sub.Preferences.Promotions,
		&sub.Preferences.Updates, &sub.Preferences.Events,
		&sub.Metadata.IPAddress, &sub.Metadata.UserAgent, &sub.Metadata.Referrer,
		&sub.Metadata.Country, &sub.Metadata.City, pq.Array(&sub.Tags),
		&sub.EmailsSent, &sub.EmailsOpened, &sub.EmailsClicked,
		&sub.LastEmailSent, &sub.LastEmailOpened, &sub.LastEmailClicked,
		&sub.IsVerified, &sub.VerifiedAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// isUniqueViolation reports whether err is a postgres unique-constraint
// violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (s *SubscriptionStore) CreateSubscription(ctx context.Context, params models.SubscriptionCreateParams) (*models.EmailSubscription, error) {
	sub := &models.EmailSubscription{
		PublicID:    uuid.New(),
		Email:       params.Email,
		Status:      models.SubscriptionStatusActive,
		Source:      params.Source,
		Preferences: params.Preferences,
		Metadata:    params.Metadata,
		IsVerified:  true,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO email_subscriptions
		 (public_id, email, source, pref_newsletters, pref_promotions, pref_updates, pref_events,
		  ip_address, user_agent, referrer, country, city, is_verified, verified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, NOW())
		 RETURNING id, status, subscription_date, tags,
		           emails_sent, emails_opened, emails_clicked,
		           verified_at, created_at, updated_at`,
		sub.PublicID, sub.Email, sub.Source,
		sub.Preferences.Newsletters, sub.Preferences.Promotions,
		sub.Preferences.Updates, sub.Preferences.Events,
		sub.Metadata.IPAddress, sub.Metadata.UserAgent, sub.Metadata.Referrer,
		sub.Metadata.Country, sub.Metadata.City,
	).Scan(&sub.ID, &sub.Status, &sub.SubscriptionDate, pq.Array(&sub.Tags),
		&sub.EmailsSent, &sub.EmailsOpened, &sub.EmailsClicked,
		&sub.VerifiedAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateEmail
		}
		return nil, err
	}

	return sub, nil
}

func (s *SubscriptionStore) GetSubscriptionByEmail(ctx context.Context, email string) (*models.EmailSubscription, error) {
	return scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM email_subscriptions WHERE email = $1`, email))
}

func (s *SubscriptionStore) GetSubscriptionByPublicID(ctx context.Context, publicID uuid.UUID) (*models.EmailSubscription, error) {
	return scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM email_subscriptions WHERE public_id = $1`, publicID))
}

// ReactivateSubscription flips a non-active subscription back to active
// in one statement; the unconditional write is last-writer-wins on the
// single row.
func (s *SubscriptionStore) ReactivateSubscription(ctx context.Context, id int64, params models.SubscriptionReactivateParams) (*models.EmailSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE email_subscriptions SET
		   status = 'active',
		   source = $2,
		   subscription_date = $3,
		   unsubscription_date = NULL,
		   unsubscription_reason = '',
		   pref_newsletters = $4, pref_promotions = $5, pref_updates = $6, pref_events = $7,
		   ip_address = $8, user_agent = $9, referrer = $10, country = $11, city = $12,
		   updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+subscriptionColumns,
		id, params.Source, params.SubscriptionDate,
		params.Preferences.Newsletters, params.Preferences.Promotions,
		params.Preferences.Updates, params.Preferences.Events,
		params.Metadata.IPAddress, params.Metadata.UserAgent, params.Metadata.Referrer,
		params.Metadata.Country, params.Metadata.City,
	)
	return scanSubscription(row)
}

func (s *SubscriptionStore) MarkUnsubscribed(ctx context.Context, id int64, at time.Time, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_subscriptions SET
		   status = 'unsubscribed',
		   unsubscription_date = $2,
		   unsubscription_reason = $3,
		   updated_at = NOW()
		 WHERE id = $1`,
		id, at, reason,
	)
	return err
}

func (s *SubscriptionStore) UpdateSubscription(ctx context.Context, id int64, write models.SubscriptionWrite) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_subscriptions SET
		   status = $2,
		   unsubscription_date = $3,
		   unsubscription_reason = $4,
		   pref_newsletters = $5, pref_promotions = $6, pref_updates = $7, pref_events = $8,
		   tags = $9,
		   updated_at = NOW()
		 WHERE id = $1`,
		id, write.Status, write.UnsubscriptionDate, write.UnsubscriptionReason,
		write.Preferences.Newsletters, write.Preferences.Promotions,
		write.Preferences.Updates, write.Preferences.Events,
		pq.Array(write.Tags),
	)
	return err
}

func (s *SubscriptionStore) DeleteSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM email_subscriptions WHERE id = $1`, id)
	return err
}

func subscriptionFilter(query models.SubscriptionQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if query.Status != "" {
		args = append(args, query.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if query.Source != "" {
		args = append(args, query.Source)
		conds = append(conds, fmt.Sprintf("source = $%d", len(args)))
	}
	if query.Search != "" {
		args = append(args, "%"+escapeLike(query.Search)+"%")
		conds = append(conds, fmt.Sprintf("email ILIKE $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SubscriptionStore) ListSubscriptions(ctx context.Context, query models.SubscriptionQuery) ([]models.EmailSubscription, int, error) {
	where, args := subscriptionFilter(query)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_subscriptions`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(args, query.Limit, query.Offset)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM email_subscriptions%s ORDER BY subscription_date DESC LIMIT $%d OFFSET $%d`,
			subscriptionColumns, where, len(args)+1, len(args)+2),
		listArgs...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var subs []models.EmailSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, *sub)
	}
	return subs, total, rows.Err()
}

func (s *SubscriptionStore) CountSubscriptions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_subscriptions`).Scan(&count)
	return count, err
}

func (s *SubscriptionStore) CountSubscriptionsByStatus(ctx context.Context) (map[string]int, error) {
	return groupCount(ctx, s.db, `SELECT status, COUNT(*) FROM email_subscriptions GROUP BY status`)
}

func (s *SubscriptionStore) CountSubscriptionsBySource(ctx context.Context) (map[string]int, error) {
	return groupCount(ctx, s.db, `SELECT source, COUNT(*) FROM email_subscriptions GROUP BY source`)
}

func (s *SubscriptionStore) CountSubscriptionsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_subscriptions WHERE subscription_date >= $1`, since,
	).Scan(&count)
	return count, err
}

// EngagementSummary aggregates delivery counters over active, verified
// subscriptions. All fields are zero when no rows qualify.
func (s *SubscriptionStore) EngagementSummary(ctx context.Context) (models.EngagementSummary, error) {
	var summary models.EngagementSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(emails_sent), 0),
		        COALESCE(SUM(emails_opened), 0),
		        COALESCE(SUM(emails_clicked), 0),
		        COALESCE(AVG(CASE WHEN emails_sent = 0 THEN 0
		                          ELSE ROUND(emails_opened::numeric / emails_sent * 100) END), 0)
		 FROM email_subscriptions
		 WHERE status = 'active' AND is_verified`,
	).Scan(&summary.TotalSent, &summary.TotalOpened, &summary.TotalClicked, &summary.AvgEngagementRate)
	return summary, err
}

func (s *SubscriptionStore) RecentSubscriptions(ctx context.Context, limit int) ([]models.EmailSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM email_subscriptions
		 ORDER BY subscription_date DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.EmailSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// SubscriptionGrowth counts new subscriptions per UTC calendar day
// since the cutoff, anchored on subscription_date.
func (s *SubscriptionStore) SubscriptionGrowth(ctx context.Context, since time.Time) ([]models.GrowthPoint, error) {
	return growthSeries(ctx, s.db,
		`SELECT (subscription_date AT TIME ZONE 'UTC')::date AS day, COUNT(*)
		 FROM email_subscriptions WHERE subscription_date >= $1
		 GROUP BY day ORDER BY day`,
		since)
}
