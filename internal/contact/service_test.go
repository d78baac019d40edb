package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atlasops/backoffice/internal/models"
	"github.com/atlasops/backoffice/internal/validate"
)

// --- Mock stores ---

type mockContactStore struct {
	contacts map[int64]*models.Contact
	nextID   int64
	noteID   int64
}

func newMockContactStore() *mockContactStore {
	return &mockContactStore{
		contacts: make(map[int64]*models.Contact),
		nextID:   1,
		noteID:   1,
	}
}

func (m *mockContactStore) CreateContact(_ context.Context, params models.ContactCreateParams) (*models.Contact, error) {
	now := time.Now()
	contact := &models.Contact{
		ID:          m.nextID,
		PublicID:    uuid.New(),
		Name:        params.Name,
		Email:       params.Email,
		Phone:       params.Phone,
		Description: params.Description,
		Status:      models.ContactStatusNew,
		Priority:    models.PriorityMedium,
		Source:      params.Source,
		IPAddress:   params.IPAddress,
		UserAgent:   params.UserAgent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	contact.Notes = []models.ContactNote{{
		ID:        m.noteID,
		ContactID: contact.ID,
		Text:      params.NoteText,
		AddedBy:   params.NoteAddedBy,
		AddedAt:   now,
	}}
	m.nextID++
	m.noteID++
	m.contacts[contact.ID] = contact
	return contact, nil
}

func (m *mockContactStore) GetContactByPublicID(_ context.Context, publicID uuid.UUID) (*models.Contact, error) {
	for _, c := range m.contacts {
		if c.PublicID == publicID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockContactStore) ContactExistsSince(_ context.Context, email string, since time.Time) (bool, error) {
	for _, c := range m.contacts {
		if c.Email == email && !c.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockContactStore) ListContacts(_ context.Context, query models.ContactQuery) ([]models.Contact, int, error) {
	var all []models.Contact
	for _, c := range m.contacts {
		if query.Status != "" && c.Status != query.Status {
			continue
		}
		if query.Priority != "" && c.Priority != query.Priority {
			continue
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if query.Offset >= total {
		return nil, total, nil
	}
	end := query.Offset + query.Limit
	if end > total {
		end = total
	}
	return all[query.Offset:end], total, nil
}

func (m *mockContactStore) UpdateContact(_ context.Context, id int64, params models.ContactUpdateParams) error {
	c, ok := m.contacts[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		c.Status = *params.Status
	}
	if params.Priority != nil {
		c.Priority = *params.Priority
	}
	if params.ClearAssignee {
		c.AssignedTo = nil
	} else if params.AssignedTo != nil {
		c.AssignedTo = &models.ContactAssignee{Name: fmt.Sprintf("user-%d", *params.AssignedTo)}
	}
	if params.FollowUpDate != nil {
		c.FollowUpDate = params.FollowUpDate
	}
	return nil
}

func (m *mockContactStore) AddContactNote(_ context.Context, contactID int64, text, addedBy string) (*models.ContactNote, error) {
	c, ok := m.contacts[contactID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	note := models.ContactNote{
		ID:        m.noteID,
		ContactID: contactID,
		Text:      text,
		AddedBy:   addedBy,
		AddedAt:   time.Now(),
	}
	m.noteID++
	c.Notes = append(c.Notes, note)
	return &note, nil
}

func (m *mockContactStore) DeleteContact(_ context.Context, id int64) error {
	delete(m.contacts, id)
	return nil
}

func (m *mockContactStore) CountContacts(_ context.Context) (int, error) {
	return len(m.contacts), nil
}

func (m *mockContactStore) CountContactsByStatus(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, c := range m.contacts {
		counts[c.Status]++
	}
	return counts, nil
}

func (m *mockContactStore) CountContactsByPriority(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, c := range m.contacts {
		counts[c.Priority]++
	}
	return counts, nil
}

func (m *mockContactStore) CountContactsBySource(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, c := range m.contacts {
		counts[c.Source]++
	}
	return counts, nil
}

func (m *mockContactStore) CountContactsSince(_ context.Context, since time.Time) (int, error) {
	count := 0
	for _, c := range m.contacts {
		if !c.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *mockContactStore) RecentContacts(_ context.Context, limit int) ([]models.Contact, error) {
	var out []models.Contact
	for _, c := range m.contacts {
		if len(out) == limit {
			break
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockContactStore) ContactGrowth(_ context.Context, _ time.Time) ([]models.GrowthPoint, error) {
	return nil, nil
}

type mockUserStore struct {
	users map[uuid.UUID]*models.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (m *mockUserStore) CreateUser(_ context.Context, email, passwordHash, name, role string) (*models.User, error) {
	user := &models.User{
		ID:           int64(len(m.users) + 1),
		PublicID:     uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		IsActive:     true,
	}
	m.users[user.PublicID] = user
	return user, nil
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByPublicID(_ context.Context, publicID uuid.UUID) (*models.User, error) {
	u, ok := m.users[publicID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserStore) CountUsers(_ context.Context, _ time.Time) (models.UserCounts, error) {
	return models.UserCounts{Total: len(m.users)}, nil
}

func validSubmit() SubmitParams {
	return SubmitParams{
		Name:        "Ada Lovelace",
		Email:       "ada@example.com",
		Description: "I would like a quote for a kitchen renovation.",
	}
}

// --- Tests ---

func TestSubmit_CreatesContactWithSystemNote(t *testing.T) {
	ms := newMockContactStore()
	svc := NewService(ms, newMockUserStore())

	params := validSubmit()
	params.Source = "landing-page"
	contact, err := svc.Submit(context.Background(), params)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if contact.Status != models.ContactStatusNew {
		t.Errorf("expected status new, got %s", contact.Status)
	}
	if contact.Priority != models.PriorityMedium {
		t.Errorf("expected priority medium, got %s", contact.Priority)
	}
	if len(contact.Notes) != 1 {
		t.Fatalf("expected exactly one note, got %d", len(contact.Notes))
	}
	note := contact.Notes[0]
	if note.Text != "Contact request received from landing-page" {
		t.Errorf("unexpected note text %q", note.Text)
	}
	if note.AddedBy != "system" {
		t.Errorf("expected note added by system, got %q", note.AddedBy)
	}
}

func TestSubmit_DefaultsSourceToWebsite(t *testing.T) {
	svc := NewService(newMockContactStore(), newMockUserStore())

	contact, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if contact.Source != "website" {
		t.Errorf("expected default source website, got %s", contact.Source)
	}
}

func TestSubmit_FieldValidation(t *testing.T) {
	svc := NewService(newMockContactStore(), newMockUserStore())

	_, err := svc.Submit(context.Background(), SubmitParams{
		Name:        "A",
		Email:       "nope",
		Phone:       "123",
		Description: "too short",
	})
	var vErr *validate.Error
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"name", "email", "phone", "description"} {
		if _, ok := vErr.Fields[field]; !ok {
			t.Errorf("expected %s field error, got %v", field, vErr.Fields)
		}
	}
}

func TestSubmit_OptionalPhone(t *testing.T) {
	svc := NewService(newMockContactStore(), newMockUserStore())

	params := validSubmit()
	params.Phone = ""
	if _, err := svc.Submit(context.Background(), params); err != nil {
		t.Fatalf("expected empty phone to be accepted, got %v", err)
	}

	params = validSubmit()
	params.Email = "ada2@example.com"
	params.Phone = "+14155550123"
	if _, err := svc.Submit(context.Background(), params); err != nil {
		t.Fatalf("expected valid phone to be accepted, got %v", err)
	}
}

func TestSubmit_DuplicateWithin24Hours(t *testing.T) {
	ms := newMockContactStore()
	svc := NewService(ms, newMockUserStore())
	ctx := context.Background()

	if _, err := svc.Submit(ctx, validSubmit()); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	_, err := svc.Submit(ctx, validSubmit())
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	// Age the stored contact past the window and the email is accepted
	// again.
	for _, c := range ms.contacts {
		c.CreatedAt = c.CreatedAt.Add(-25 * time.Hour)
	}
	if _, err := svc.Submit(ctx, validSubmit()); err != nil {
		t.Fatalf("expected submission after the window to succeed, got %v", err)
	}
}

func TestSubmit_DuplicateCheckUsesLowercasedEmail(t *testing.T) {
	ms := newMockContactStore()
	svc := NewService(ms, newMockUserStore())
	ctx := context.Background()

	if _, err := svc.Submit(ctx, validSubmit()); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	params := validSubmit()
	params.Email = "ADA@Example.com"
	if _, err := svc.Submit(ctx, params); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected case-insensitive duplicate rejection, got %v", err)
	}
}

func TestUpdate_StatusAndPriority(t *testing.T) {
	ms := newMockContactStore()
	svc := NewService(ms, newMockUserStore())
	ctx := context.Background()

	contact, err := svc.Submit(ctx, validSubmit())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	status := models.ContactStatusContacted
	priority := models.PriorityHigh
	updated, err := svc.Update(ctx, contact.PublicID, UpdateParams{
		Status:   &status,
		Priority: &priority,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != models.ContactStatusContacted {
		t.Errorf("expected status contacted, got %s", updated.Status)
	}
	if updated.Priority != models.PriorityHigh {
		t.Errorf("expected priority high, got %s", updated.Priority)
	}

	bad := "archived"
	if _, err := svc.Update(ctx, contact.PublicID, UpdateParams{Status: &bad}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.Update(ctx, contact.PublicID, UpdateParams{Priority: &bad}); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}

func TestUpdate_AssignAndClear(t *testing.T) {
	ms := newMockContactStore()
	us := newMockUserStore()
	svc := NewService(ms, us)
	ctx := context.Background()

	admin, err := us.CreateUser(ctx, "admin@example.com", "hash", "Admin", "admin")
	if err != nil {
		t.Fatalf("creating user failed: %v", err)
	}
	contact, err := svc.Submit(ctx, validSubmit())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	updated, err := svc.Update(ctx, contact.PublicID, UpdateParams{AssignedTo: &admin.PublicID})
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if updated.AssignedTo == nil {
		t.Fatal("expected assignee set")
	}

	unknown := uuid.New()
	if _, err := svc.Update(ctx, contact.PublicID, UpdateParams{AssignedTo: &unknown}); !errors.Is(err, ErrAssigneeNotFound) {
		t.Fatalf("expected ErrAssigneeNotFound, got %v", err)
	}

	updated, err = svc.Update(ctx, contact.PublicID, UpdateParams{ClearAssignee: true})
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if updated.AssignedTo != nil {
		t.Error("expected assignee cleared")
	}
}

func TestUpdate_AppendsAdminNote(t *testing.T) {
	ms := newMockContactStore()
	svc := NewService(ms, newMockUserStore())
	ctx := context.Background()

	contact, err := svc.Submit(ctx, validSubmit())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	updated, err := svc.Update(ctx, contact.PublicID, UpdateParams{
		Note:        "Called back, left voicemail.",
		NoteAddedBy: "Jordan",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(updated.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(updated.Notes))
	}
	last := updated.Notes[len(updated.Notes)-1]
	if last.Text != "Called back, left voicemail." || last.AddedBy != "Jordan" {
		t.Errorf("unexpected appended note %+v", last)
	}
}

func TestGet_UnknownID(t *testing.T) {
	svc := NewService(newMockContactStore(), newMockUserStore())

	_, err := svc.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_RemovesContact(t *testing.T) {
	ms := newMockContactStore()
	svc := NewService(ms, newMockUserStore())
	ctx := context.Background()

	contact, err := svc.Submit(ctx, validSubmit())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := svc.Delete(ctx, contact.PublicID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, contact.PublicID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestList_PaginationPastEnd(t *testing.T) {
	ms := newMockContactStore()
	svc := NewService(ms, newMockUserStore())
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		params := validSubmit()
		params.Email = fmt.Sprintf("contact%d@example.com", i)
		if _, err := svc.Submit(ctx, params); err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}

	contacts, pagination, err := svc.List(ctx, ListParams{Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(contacts) != 5 {
		t.Errorf("expected 5 items on page 3, got %d", len(contacts))
	}
	if pagination.TotalPages != 3 || pagination.TotalCount != 25 {
		t.Errorf("unexpected pagination %+v", pagination)
	}

	contacts, _, err = svc.List(ctx, ListParams{Page: 10, PageSize: 10})
	if err != nil {
		t.Fatalf("list past the end failed: %v", err)
	}
	if len(contacts) != 0 {
		t.Errorf("expected empty page past the end, got %d items", len(contacts))
	}
}

func TestStats_OmitsAbsentCategories(t *testing.T) {
	ms := newMockContactStore()
	svc := NewService(ms, newMockUserStore())
	ctx := context.Background()

	if _, err := svc.Submit(ctx, validSubmit()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("expected total 1, got %d", stats.Total)
	}
	if stats.ByStatus[models.ContactStatusNew] != 1 {
		t.Errorf("expected one new contact, got %v", stats.ByStatus)
	}
	if _, ok := stats.ByStatus[models.ContactStatusCompleted]; ok {
		t.Error("expected absent statuses to be omitted, not zeroed")
	}
	if stats.Windows.Today != 1 {
		t.Errorf("expected today count 1, got %d", stats.Windows.Today)
	}
}
