package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atlasops/backoffice/internal/models"
	"github.com/atlasops/backoffice/internal/subscription"
	"github.com/atlasops/backoffice/internal/validate"
)

// SubscriptionHandler serves the public subscribe/unsubscribe endpoints
// and the admin subscription-management endpoints.
type SubscriptionHandler struct {
	subs         *subscription.Service
	maxBodyBytes int64
	exposeErrors bool
}

func NewSubscriptionHandler(subs *subscription.Service, maxBodyBytes int64, exposeErrors bool) *SubscriptionHandler {
	return &SubscriptionHandler{
		subs:         subs,
		maxBodyBytes: maxBodyBytes,
		exposeErrors: exposeErrors,
	}
}

type preferencesJSON struct {
	Newsletters bool `json:"newsletters"`
	Promotions  bool `json:"promotions"`
	Updates     bool `json:"updates"`
	Events      bool `json:"events"`
}

type subscriptionJSON struct {
	ID                   uuid.UUID       `json:"id"`
	Email                string          `json:"email"`
	Status               string          `json:"status"`
	Source               string          `json:"source"`
	SubscriptionDate     time.Time       `json:"subscriptionDate"`
	UnsubscriptionDate   *time.Time      `json:"unsubscriptionDate,omitempty"`
	UnsubscriptionReason string          `json:"unsubscriptionReason,omitempty"`
	Preferences          preferencesJSON `json:"preferences"`
	Tags                 []string        `json:"tags"`
	EmailsSent           int             `json:"emailsSent"`
	EmailsOpened         int             `json:"emailsOpened"`
	EmailsClicked        int             `json:"emailsClicked"`
	IsVerified           bool            `json:"isVerified"`
	EngagementRate       int             `json:"engagementRate"`
	ClickRate            int             `json:"clickRate"`
	SubscriptionDuration int             `json:"subscriptionDuration"`
}

func newSubscriptionJSON(s *models.EmailSubscription) subscriptionJSON {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	return subscriptionJSON{
		ID:                   s.PublicID,
		Email:                s.Email,
		Status:               s.Status,
		Source:               s.Source,
		SubscriptionDate:     s.SubscriptionDate,
		UnsubscriptionDate:   s.UnsubscriptionDate,
		UnsubscriptionReason: s.UnsubscriptionReason,
		Preferences: preferencesJSON{
			Newsletters: s.Preferences.Newsletters,
			Promotions:  s.Preferences.Promotions,
			Updates:     s.Preferences.Updates,
			Events:      s.Preferences.Events,
		},
		Tags:                 tags,
		EmailsSent:           s.EmailsSent,
		EmailsOpened:         s.EmailsOpened,
		EmailsClicked:        s.EmailsClicked,
		IsVerified:           s.IsVerified,
		EngagementRate:       s.EngagementRate(),
		ClickRate:            s.ClickRate(),
		SubscriptionDuration: s.SubscriptionDuration(time.Now()),
	}
}

// preferencePatch converts the optional request preferences into a
// merge patch; absent fields stay nil.
type preferencePatchJSON struct {
	Newsletters *bool `json:"newsletters"`
	Promotions  *bool `json:"promotions"`
	Updates     *bool `json:"updates"`
	Events      *bool `json:"events"`
}

func (p *preferencePatchJSON) toPatch() models.PreferencePatch {
	if p == nil {
		return models.PreferencePatch{}
	}
	return models.PreferencePatch{
		Newsletters: p.Newsletters,
		Promotions:  p.Promotions,
		Updates:     p.Updates,
		Events:      p.Events,
	}
}

// HandleSubscribe accepts a public subscribe request. A fresh
// subscription responds 201; a reactivation responds 200 with a
// distinct message.
func (h *SubscriptionHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email       string               `json:"email"`
		Source      string               `json:"source"`
		Preferences *preferencePatchJSON `json:"preferences"`
	}
	if !decodeJSON(w, r, h.maxBodyBytes, &payload) {
		return
	}

	sub, created, err := h.subs.Subscribe(r.Context(), subscription.SubscribeParams{
		Email:       payload.Email,
		Source:      payload.Source,
		Preferences: payload.Preferences.toPatch(),
		Metadata: models.SubscriptionMetadata{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
			Referrer:  r.Referer(),
		},
	})
	if err != nil {
		var vErr *validate.Error
		switch {
		case errors.As(err, &vErr):
			respondValidation(w, vErr.Fields)
		case errors.Is(err, subscription.ErrAlreadySubscribed):
			respondError(w, http.StatusConflict, "email is already subscribed")
		case errors.Is(err, subscription.ErrInvalidSource):
			respondError(w, http.StatusBadRequest, "invalid subscription source")
		default:
			respondInternal(w, err, h.exposeErrors)
		}
		return
	}

	if created {
		respondMessage(w, http.StatusCreated, "subscribed successfully", newSubscriptionJSON(sub))
		return
	}
	respondMessage(w, http.StatusOK, "subscription reactivated", newSubscriptionJSON(sub))
}

// HandleUnsubscribe accepts a public unsubscribe request.
func (h *SubscriptionHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email  string `json:"email"`
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, h.maxBodyBytes, &payload) {
		return
	}

	if err := h.subs.Unsubscribe(r.Context(), payload.Email, payload.Reason); err != nil {
		switch {
		case errors.Is(err, subscription.ErrNotFound):
			respondError(w, http.StatusNotFound, "no subscription found for this email")
		case errors.Is(err, subscription.ErrAlreadyUnsubscribed):
			respondError(w, http.StatusBadRequest, "email is already unsubscribed")
		default:
			respondInternal(w, err, h.exposeErrors)
		}
		return
	}
	respondMessage(w, http.StatusOK, "unsubscribed successfully", nil)
}

// HandleList returns one page of subscriptions for the admin view.
func (h *SubscriptionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subs, pagination, err := h.subs.List(r.Context(), subscription.ListParams{
		Status:   q.Get("status"),
		Source:   q.Get("source"),
		Search:   q.Get("search"),
		Page:     intParam(q.Get("page")),
		PageSize: intParam(q.Get("limit")),
	})
	if err != nil {
		respondInternal(w, err, h.exposeErrors)
		return
	}

	out := make([]subscriptionJSON, 0, len(subs))
	for i := range subs {
		out = append(out, newSubscriptionJSON(&subs[i]))
	}
	respondList(w, out, pagination)
}

// HandleUpdate applies admin mutations to a subscription.
func (h *SubscriptionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var payload struct {
		Status      *string              `json:"status"`
		Preferences *preferencePatchJSON `json:"preferences"`
		Tags        *[]string            `json:"tags"`
	}
	if !decodeJSON(w, r, h.maxBodyBytes, &payload) {
		return
	}

	updated, err := h.subs.Update(r.Context(), id, models.SubscriptionUpdateParams{
		Status:      payload.Status,
		Preferences: payload.Preferences.toPatch(),
		Tags:        payload.Tags,
	})
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrNotFound):
			respondError(w, http.StatusNotFound, "subscription not found")
		case errors.Is(err, subscription.ErrInvalidStatus):
			respondError(w, http.StatusBadRequest, "invalid subscription status")
		default:
			respondInternal(w, err, h.exposeErrors)
		}
		return
	}
	respondMessage(w, http.StatusOK, "subscription updated", newSubscriptionJSON(updated))
}

// HandleDelete removes a subscription.
func (h *SubscriptionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.subs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			respondError(w, http.StatusNotFound, "subscription not found")
		} else {
			respondInternal(w, err, h.exposeErrors)
		}
		return
	}
	respondMessage(w, http.StatusOK, "subscription deleted", nil)
}

// HandleStats returns the subscription statistics snapshot.
func (h *SubscriptionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.subs.Stats(r.Context())
	if err != nil {
		respondInternal(w, err, h.exposeErrors)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"total":     stats.Total,
		"byStatus":  stats.ByStatus,
		"bySource":  stats.BySource,
		"today":     stats.Windows.Today,
		"thisWeek":  stats.Windows.ThisWeek,
		"thisMonth": stats.Windows.ThisMonth,
		"thisYear":  stats.Windows.ThisYear,
		"engagement": map[string]interface{}{
			"totalSent":         stats.Engagement.TotalSent,
			"totalOpened":       stats.Engagement.TotalOpened,
			"totalClicked":      stats.Engagement.TotalClicked,
			"avgEngagementRate": stats.Engagement.AvgEngagementRate,
		},
	})
}
