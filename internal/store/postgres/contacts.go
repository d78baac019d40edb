package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlasops/backoffice/internal/models"
)

type ContactStore struct {
	db *sql.DB
}

func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

// contactColumns selects the contact row joined with the display-safe
// assignee projection.
const contactColumns = `c.id, c.public_id, c.name, c.email, c.phone, c.description,
	c.status, c.priority, c.source, c.ip_address, c.user_agent,
	u.public_id, u.name, u.email,
	c.follow_up_date, c.created_at, c.updated_at`

const contactFrom = ` FROM contacts c LEFT JOIN users u ON u.id = c.assigned_to`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	c := &models.Contact{}
	var assigneeID uuid.NullUUID
	var assigneeName, assigneeEmail sql.NullString

	err := row.Scan(&c.ID, &c.PublicID, &c.Name, &c.Email, &c.Phone, &c.Description,
		&c.Status, &c.Priority, &c.Source, &c.IPAddress, &c.UserAgent,
		&assigneeID, &assigneeName, &assigneeEmail,
		&c.FollowUpDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if assigneeID.Valid {
		c.AssignedTo = &models.ContactAssignee{
			PublicID: assigneeID.UUID,
			Name:     assigneeName.String,
			Email:    assigneeEmail.String,
		}
	}
	return c, nil
}

// CreateContact inserts the contact and its initial system note in a
// single transaction so a contact never exists without the note.
func (s *ContactStore) CreateContact(ctx context.Context, params models.ContactCreateParams) (*models.Contact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c := &models.Contact{
		PublicID:    uuid.New(),
		Name:        params.Name,
		Email:       params.Email,
		Phone:       params.Phone,
		Description: params.Description,
		Source:      params.Source,
		IPAddress:   params.IPAddress,
		UserAgent:   params.UserAgent,
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO contacts (public_id, name, email, phone, description, source, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, status, priority, created_at, updated_at`,
		c.PublicID, c.Name, c.Email, c.Phone, c.Description, c.Source, c.IPAddress, c.UserAgent,
	).Scan(&c.ID, &c.Status, &c.Priority, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	note := models.ContactNote{
		ContactID: c.ID,
		Text:      params.NoteText,
		AddedBy:   params.NoteAddedBy,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO contact_notes (contact_id, text, added_by)
		 VALUES ($1, $2, $3)
		 RETURNING id, added_at`,
		note.ContactID, note.Text, note.AddedBy,
	).Scan(&note.ID, &note.AddedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	c.Notes = []models.ContactNote{note}
	return c, nil
}

func (s *ContactStore) GetContactByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Contact, error) {
	c, err := scanContact(s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+contactFrom+` WHERE c.public_id = $1`, publicID))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, text, added_by, added_at
		 FROM contact_notes WHERE contact_id = $1 ORDER BY added_at`,
		c.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var n models.ContactNote
		if err := rows.Scan(&n.ID, &n.ContactID, &n.Text, &n.AddedBy, &n.AddedAt); err != nil {
			return nil, err
		}
		c.Notes = append(c.Notes, n)
	}
	return c, rows.Err()
}

func (s *ContactStore) ContactExistsSince(ctx context.Context, email string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contacts WHERE email = $1 AND created_at >= $2)`,
		email, since,
	).Scan(&exists)
	return exists, err
}

// contactFilter builds the WHERE clause shared by ListContacts and its
// count query.
func contactFilter(query models.ContactQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if query.Status != "" {
		args = append(args, query.Status)
		conds = append(conds, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if query.Priority != "" {
		args = append(args, query.Priority)
		conds = append(conds, fmt.Sprintf("c.priority = $%d", len(args)))
	}
	if query.Search != "" {
		args = append(args, "%"+escapeLike(query.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(c.name ILIKE $%d OR c.email ILIKE $%d OR c.phone ILIKE $%d)", n, n, n))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *ContactStore) ListContacts(ctx context.Context, query models.ContactQuery) ([]models.Contact, int, error) {
	where, args := contactFilter(query)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts c`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(args, query.Limit, query.Offset)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s%s%s ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d`,
			contactColumns, contactFrom, where, len(args)+1, len(args)+2),
		listArgs...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, total, rows.Err()
}

func (s *ContactStore) UpdateContact(ctx context.Context, id int64, params models.ContactUpdateParams) error {
	sets := []string{"updated_at = NOW()"}
	var args []interface{}

	if params.Status != nil {
		args = append(args, *params.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Priority != nil {
		args = append(args, *params.Priority)
		sets = append(sets, fmt.Sprintf("priority = $%d", len(args)))
	}
	if params.ClearAssignee {
		sets = append(sets, "assigned_to = NULL")
	} else if params.AssignedTo != nil {
		args = append(args, *params.AssignedTo)
		sets = append(sets, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if params.FollowUpDate != nil {
		args = append(args, *params.FollowUpDate)
		sets = append(sets, fmt.Sprintf("follow_up_date = $%d", len(args)))
	}

	args = append(args, id)
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE contacts SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...,
	)
	return err
}

func (s *ContactStore) AddContactNote(ctx context.Context, contactID int64, text, addedBy string) (*models.ContactNote, error) {
	note := &models.ContactNote{
		ContactID: contactID,
		Text:      text,
		AddedBy:   addedBy,
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO contact_notes (contact_id, text, added_by)
		 VALUES ($1, $2, $3)
		 RETURNING id, added_at`,
		note.ContactID, note.Text, note.AddedBy,
	).Scan(&note.ID, &note.AddedAt)
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *ContactStore) DeleteContact(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	return err
}

func (s *ContactStore) CountContacts(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, err
}

// groupCount runs a GROUP BY tally; only groups present in the data are
// returned.
func groupCount(ctx context.Context, db *sql.DB, query string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func (s *ContactStore) CountContactsByStatus(ctx context.Context) (map[string]int, error) {
	return groupCount(ctx, s.db, `SELECT status, COUNT(*) FROM contacts GROUP BY status`)
}

func (s *ContactStore) CountContactsByPriority(ctx context.Context) (map[string]int, error) {
	return groupCount(ctx, s.db, `SELECT priority, COUNT(*) FROM contacts GROUP BY priority`)
}

func (s *ContactStore) CountContactsBySource(ctx context.Context) (map[string]int, error) {
	return groupCount(ctx, s.db, `SELECT source, COUNT(*) FROM contacts GROUP BY source`)
}

func (s *ContactStore) CountContactsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE created_at >= $1`, since,
	).Scan(&count)
	return count, err
}

func (s *ContactStore) RecentContacts(ctx context.Context, limit int) ([]models.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contactColumns+contactFrom+` ORDER BY c.created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// ContactGrowth counts new contacts per UTC calendar day since the
// cutoff. Days with no creations are absent from the series.
func (s *ContactStore) ContactGrowth(ctx context.Context, since time.Time) ([]models.GrowthPoint, error) {
	return growthSeries(ctx, s.db,
		`SELECT (created_at AT TIME ZONE 'UTC')::date AS day, COUNT(*)
		 FROM contacts WHERE created_at >= $1
		 GROUP BY day ORDER BY day`,
		since)
}

func growthSeries(ctx context.Context, db *sql.DB, query string, since time.Time) ([]models.GrowthPoint, error) {
	rows, err := db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []models.GrowthPoint
	for rows.Next() {
		var p models.GrowthPoint
		if err := rows.Scan(&p.Date, &p.Count); err != nil {
			return nil, err
		}
		series = append(series, p)
	}
	return series, rows.Err()
}
