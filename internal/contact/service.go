package contact

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
	ErrNotFound            = errors.New("contact not found")
	ErrDuplicateSubmission = errors.New("a contact request for this email was received recently")
	ErrInvalidStatus       = errors.New("invalid contact status")
	ErrInvalidPriority     = errors.New("invalid contact priority")
	ErrAssigneeNotFound    = errors.New("assigned user not found")
)

// duplicateWindow is how long a second submission for the same email is
// rejected after the first.
const duplicateWindow = 24 * time.Hour

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var validStatuses = map[string]bool{
	models.ContactStatusNew:        true,
	models.ContactStatusContacted:  true,
	models.ContactStatusInProgress: true,
	models.ContactStatusCompleted:  true,
	models.ContactStatusCancelled:  true,
}

var validPriorities = map[string]bool{
	models.PriorityLow:    true,
	models.PriorityMedium: true,
	models.PriorityHigh:   true,
	models.PriorityUrgent: true,
}

// Service provides contact-request business logic.
type Service struct {
	contacts store.ContactStore
	users    store.UserStore
	now      func() time.Time
}

// NewService creates a new contact Service.
func NewService(contacts store.ContactStore, users store.UserStore) *Service {
	return &Service{
		contacts: contacts,
		users:    users,
		now:      time.Now,
	}
}

// SubmitParams is a public contact-form submission.
type SubmitParams struct {
	Name        string
	Email       string
	Phone       string
	Description string
	Source      string
	IPAddress   string
	UserAgent   string
}

// Submit validates and stores a public contact request. A submission
// for an email already seen within the last 24 hours is rejected. The
// created contact carries exactly one system note recording its source.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.Contact, error) {
	fields := make(map[string]string)

	name := strings.TrimSpace(params.Name)
	if len(name) < 2 || len(name) > 100 {
		fields["name"] = "name must be between 2 and 100 characters"
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if !validate.Email(email) {
		fields["email"] = "a valid email address is required"
	}

	phone := strings.TrimSpace(params.Phone)
	if phone != "" && !validate.Phone(phone) {
		fields["phone"] = "phone must be 10-15 digits with an optional leading +"
	}

	description := strings.TrimSpace(params.Description)
	if len(description) < 10 || len(description) > 1000 {
		fields["description"] = "description must be between 10 and 1000 characters"
	}

	if len(fields) > 0 {
		return nil, &validate.Error{Fields: fields}
	}

	exists, err := s.contacts.ContactExistsSince(ctx, email, s.now().Add(-duplicateWindow))
	if err != nil {
		return nil, fmt.Errorf("checking for duplicate submission: %w", err)
	}
	if exists {
		return nil, ErrDuplicateSubmission
	}

	source := params.Source
	if source == "" {
		source = "website"
	}

	contact, err := s.contacts.CreateContact(ctx, models.ContactCreateParams{
		Name:        name,
		Email:       email,
		Phone:       phone,
		Description: description,
		Source:      source,
		IPAddress:   params.IPAddress,
		UserAgent:   params.UserAgent,
		NoteText:    fmt.Sprintf("Contact request received from %s", source),
		NoteAddedBy: "system",
	})
	if err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}

	return contact, nil
}

// ListParams are the admin list filters.
type ListParams struct {
	Status   string
	Priority string
	Search   string
	Page     int
	PageSize int
}

// List returns one page of contacts, newest first, with pagination
// metadata. Pages past the end are empty, not an error.
func (s *Service) List(ctx context.Context, params ListParams) ([]models.Contact, models.Pagination, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)

	contacts, total, err := s.contacts.ListContacts(ctx, models.ContactQuery{
		Status:   params.Status,
		Priority: params.Priority,
		Search:   strings.TrimSpace(params.Search),
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("listing contacts: %w", err)
	}

	return contacts, models.NewPagination(page, pageSize, total), nil
}

// Get returns a single contact with its notes.
func (s *Service) Get(ctx context.Context, publicID uuid.UUID) (*models.Contact, error) {
	contact, err := s.contacts.GetContactByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("looking up contact: %w", err)
	}
	return contact, nil
}

// UpdateParams are the optional admin mutations on a contact. A nil
// field is left unchanged. ClearAssignee wins over AssignedTo.
type UpdateParams struct {
	Status        *string
	Priority      *string
	AssignedTo    *uuid.UUID
	ClearAssignee bool
	FollowUpDate  *time.Time
	Note          string
	NoteAddedBy   string
}

// Update applies admin mutations and optionally appends a note authored
// by the acting admin. It returns the updated contact.
func (s *Service) Update(ctx context.Context, publicID uuid.UUID, params UpdateParams) (*models.Contact, error) {
	contact, err := s.Get(ctx, publicID)
	if err != nil {
		return nil, err
	}

	if params.Status != nil && !validStatuses[*params.Status] {
		return nil, ErrInvalidStatus
	}
	if params.Priority != nil && !validPriorities[*params.Priority] {
		return nil, ErrInvalidPriority
	}

	storeParams := models.ContactUpdateParams{
		Status:        params.Status,
		Priority:      params.Priority,
		ClearAssignee: params.ClearAssignee,
		FollowUpDate:  params.FollowUpDate,
	}

	if !params.ClearAssignee && params.AssignedTo != nil {
		assignee, err := s.users.GetUserByPublicID(ctx, *params.AssignedTo)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrAssigneeNotFound
			}
			return nil, fmt.Errorf("looking up assignee: %w", err)
		}
		storeParams.AssignedTo = &assignee.ID
	}

	if err := s.contacts.UpdateContact(ctx, contact.ID, storeParams); err != nil {
		return nil, fmt.Errorf("updating contact: %w", err)
	}

	if text := strings.TrimSpace(params.Note); text != "" {
		addedBy := params.NoteAddedBy
		if addedBy == "" {
			addedBy = "admin"
		}
		if _, err := s.contacts.AddContactNote(ctx, contact.ID, text, addedBy); err != nil {
			return nil, fmt.Errorf("adding contact note: %w", err)
		}
	}

	return s.Get(ctx, publicID)
}

// Delete removes a contact and its notes.
func (s *Service) Delete(ctx context.Context, publicID uuid.UUID) error {
	contact, err := s.Get(ctx, publicID)
	if err != nil {
		return err
	}
	if err := s.contacts.DeleteContact(ctx, contact.ID); err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	return nil
}

// Stats is a point-in-time snapshot over the contacts collection.
type Stats struct {
	Total      int
	ByStatus   map[string]int
	ByPriority map[string]int
	BySource   map[string]int
	Windows    models.WindowCounts
}

// Stats recomputes grouped and windowed counts on every call.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var err error

	if stats.Total, err = s.contacts.CountContacts(ctx); err != nil {
		return nil, fmt.Errorf("counting contacts: %w", err)
	}
	if stats.ByStatus, err = s.contacts.CountContactsByStatus(ctx); err != nil {
		return nil, fmt.Errorf("counting contacts by status: %w", err)
	}
	if stats.ByPriority, err = s.contacts.CountContactsByPriority(ctx); err != nil {
		return nil, fmt.Errorf("counting contacts by priority: %w", err)
	}
	if stats.BySource, err = s.contacts.CountContactsBySource(ctx); err != nil {
		return nil, fmt.Errorf("counting contacts by source: %w", err)
	}

	now := s.now()
	if stats.Windows.Today, err = s.contacts.CountContactsSince(ctx, timeutil.StartOfDay(now)); err != nil {
		return nil, fmt.Errorf("counting contacts today: %w", err)
	}
	if stats.Windows.ThisWeek, err = s.contacts.CountContactsSince(ctx, now.Add(-7*24*time.Hour)); err != nil {
		return nil, fmt.Errorf("counting contacts this week: %w", err)
	}
	if stats.Windows.ThisMonth, err = s.contacts.CountContactsSince(ctx, timeutil.StartOfMonth(now)); err != nil {
		return nil, fmt.Errorf("counting contacts this month: %w", err)
	}
	if stats.Windows.ThisYear, err = s.contacts.CountContactsSince(ctx, timeutil.StartOfYear(now)); err != nil {
		return nil, fmt.Errorf("counting contacts this year: %w", err)
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
