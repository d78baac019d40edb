package handlers

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlasops/backoffice/internal/contact"
	"github.com/atlasops/backoffice/internal/models"
	"github.com/atlasops/backoffice/internal/validate"
	"github.com/atlasops/backoffice/internal/web/middleware"
)

// ContactHandler serves the public intake form and the admin contact
// endpoints.
type ContactHandler struct {
	contacts     *contact.Service
	maxBodyBytes int64
	exposeErrors bool
}

func NewContactHandler(contacts *contact.Service, maxBodyBytes int64, exposeErrors bool) *ContactHandler {
	return &ContactHandler{
		contacts:     contacts,
		maxBodyBytes: maxBodyBytes,
		exposeErrors: exposeErrors,
	}
}

type contactNoteJSON struct {
	Text    string    `json:"text"`
	AddedBy string    `json:"addedBy"`
	AddedAt time.Time `json:"addedAt"`
}

type contactAssigneeJSON struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type contactJSON struct {
	ID           uuid.UUID            `json:"id"`
	Name         string               `json:"name"`
	Email        string               `json:"email"`
	Phone        string               `json:"phone,omitempty"`
	Description  string               `json:"description"`
	Status       string               `json:"status"`
	Priority     string               `json:"priority"`
	Source       string               `json:"source"`
	AssignedTo   *contactAssigneeJSON `json:"assignedTo,omitempty"`
	FollowUpDate *time.Time           `json:"followUpDate,omitempty"`
	Notes        []contactNoteJSON    `json:"notes,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

func newContactJSON(c *models.Contact) contactJSON {
	out := contactJSON{
		ID:           c.PublicID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Description:  c.Description,
		Status:       c.Status,
		Priority:     c.Priority,
		Source:       c.Source,
		FollowUpDate: c.FollowUpDate,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.AssignedTo != nil {
		out.AssignedTo = &contactAssigneeJSON{
			ID:    c.AssignedTo.PublicID,
			Name:  c.AssignedTo.Name,
			Email: c.AssignedTo.Email,
		}
	}
	for _, n := range c.Notes {
		out.Notes = append(out.Notes, contactNoteJSON{
			Text:    n.Text,
			AddedBy: n.AddedBy,
			AddedAt: n.AddedAt,
		})
	}
	return out
}

// HandleSubmit accepts a public contact-form submission.
func (h *ContactHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		Description string `json:"description"`
		Source      string `json:"source"`
	}
	if !decodeJSON(w, r, h.maxBodyBytes, &payload) {
		return
	}

	created, err := h.contacts.Submit(r.Context(), contact.SubmitParams{
		Name:        payload.Name,
		Email:       payload.Email,
		Phone:       payload.Phone,
		Description: payload.Description,
		Source:      payload.Source,
		IPAddress:   clientIP(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		var vErr *validate.Error
		switch {
		case errors.As(err, &vErr):
			respondValidation(w, vErr.Fields)
		case errors.Is(err, contact.ErrDuplicateSubmission):
			respondError(w, http.StatusConflict, "a contact request for this email was received recently")
		default:
			respondInternal(w, err, h.exposeErrors)
		}
		return
	}

	respondMessage(w, http.StatusCreated, "contact request received", newContactJSON(created))
}

// HandleList returns one page of contacts for the admin view.
func (h *ContactHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contacts, pagination, err := h.contacts.List(r.Context(), contact.ListParams{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Search:   q.Get("search"),
		Page:     intParam(q.Get("page")),
		PageSize: intParam(q.Get("limit")),
	})
	if err != nil {
		respondInternal(w, err, h.exposeErrors)
		return
	}

	out := make([]contactJSON, 0, len(contacts))
	for i := range contacts {
		out = append(out, newContactJSON(&contacts[i]))
	}
	respondList(w, out, pagination)
}

// HandleGet returns one contact with its notes.
func (h *ContactHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	c, err := h.contacts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			respondError(w, http.StatusNotFound, "contact not found")
		} else {
			respondInternal(w, err, h.exposeErrors)
		}
		return
	}
	respondData(w, http.StatusOK, newContactJSON(c))
}

// HandleUpdate applies admin mutations to a contact.
func (h *ContactHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var payload struct {
		Status       *string    `json:"status"`
		Priority     *string    `json:"priority"`
		AssignedTo   *string    `json:"assignedTo"`
		FollowUpDate *time.Time `json:"followUpDate"`
		Note         string     `json:"note"`
	}
	if !decodeJSON(w, r, h.maxBodyBytes, &payload) {
		return
	}

	params := contact.UpdateParams{
		Status:       payload.Status,
		Priority:     payload.Priority,
		FollowUpDate: payload.FollowUpDate,
		Note:         payload.Note,
	}
	if user := middleware.UserFromContext(r.Context()); user != nil {
		params.NoteAddedBy = user.Name
	}
	if payload.AssignedTo != nil {
		if *payload.AssignedTo == "" {
			params.ClearAssignee = true
		} else {
			assigneeID, err := uuid.Parse(*payload.AssignedTo)
			if err != nil {
				respondError(w, http.StatusBadRequest, "assignedTo must be a valid id")
				return
			}
			params.AssignedTo = &assigneeID
		}
	}

	updated, err := h.contacts.Update(r.Context(), id, params)
	if err != nil {
		switch {
		case errors.Is(err, contact.ErrNotFound):
			respondError(w, http.StatusNotFound, "contact not found")
		case errors.Is(err, contact.ErrInvalidStatus), errors.Is(err, contact.ErrInvalidPriority):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, contact.ErrAssigneeNotFound):
			respondError(w, http.StatusBadRequest, "assigned user not found")
		default:
			respondInternal(w, err, h.exposeErrors)
		}
		return
	}
	respondMessage(w, http.StatusOK, "contact updated", newContactJSON(updated))
}

// HandleDelete removes a contact.
func (h *ContactHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.contacts.Delete(r.Context(), id); err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			respondError(w, http.StatusNotFound, "contact not found")
		} else {
			respondInternal(w, err, h.exposeErrors)
		}
		return
	}
	respondMessage(w, http.StatusOK, "contact deleted", nil)
}

// HandleStats returns the contact statistics snapshot.
func (h *ContactHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.contacts.Stats(r.Context())
	if err != nil {
		respondInternal(w, err, h.exposeErrors)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"total":      stats.Total,
		"byStatus":   stats.ByStatus,
		"byPriority": stats.ByPriority,
		"bySource":   stats.BySource,
		"today":      stats.Windows.Today,
		"thisWeek":   stats.Windows.ThisWeek,
		"thisMonth":  stats.Windows.ThisMonth,
		"thisYear":   stats.Windows.ThisYear,
	})
}

// parseID reads the {id} route parameter as a UUID, responding 404 on
// malformed values so unknown and invalid ids are indistinguishable.
func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip
}
