package handlers

import (
	"errors"
	"net/http"

	"github.com/atlasops/backoffice/internal/dashboard"
	"github.com/atlasops/backoffice/internal/models"
)

// DashboardHandler serves the combined admin overview and analytics.
type DashboardHandler struct {
	dashboards   *dashboard.Service
	exposeErrors bool
}

func NewDashboardHandler(dashboards *dashboard.Service, exposeErrors bool) *DashboardHandler {
	return &DashboardHandler{
		dashboards:   dashboards,
		exposeErrors: exposeErrors,
	}
}

type growthPointJSON struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

func newGrowthSeriesJSON(series []models.GrowthPoint) []growthPointJSON {
	out := make([]growthPointJSON, 0, len(series))
	for _, p := range series {
		out = append(out, growthPointJSON{
			Date:  p.Date.Format("2006-01-02"),
			Count: p.Count,
		})
	}
	return out
}

// HandleOverview returns the combined dashboard snapshot.
func (h *DashboardHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := h.dashboards.Overview(r.Context())
	if err != nil {
		respondInternal(w, err, h.exposeErrors)
		return
	}

	recentContacts := make([]map[string]interface{}, 0, len(o.RecentContacts))
	for _, c := range o.RecentContacts {
		recentContacts = append(recentContacts, map[string]interface{}{
			"id":        c.PublicID,
			"name":      c.Name,
			"email":     c.Email,
			"status":    c.Status,
			"priority":  c.Priority,
			"createdAt": c.CreatedAt,
		})
	}

	recentSubscriptions := make([]map[string]interface{}, 0, len(o.RecentSubscriptions))
	for _, s := range o.RecentSubscriptions {
		recentSubscriptions = append(recentSubscriptions, map[string]interface{}{
			"id":               s.PublicID,
			"email":            s.Email,
			"status":           s.Status,
			"source":           s.Source,
			"subscriptionDate": s.SubscriptionDate,
		})
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"contacts": map[string]interface{}{
			"total":    o.Contacts.Total,
			"byStatus": o.Contacts.ByStatus,
			"today":    o.Contacts.Today,
		},
		"subscriptions": map[string]interface{}{
			"total":    o.Subscriptions.Total,
			"byStatus": o.Subscriptions.ByStatus,
			"today":    o.Subscriptions.Today,
		},
		"users": map[string]interface{}{
			"total":     o.Users.Total,
			"active":    o.Users.Active,
			"admins":    o.Users.Admins,
			"thisMonth": o.Users.ThisMonth,
		},
		"recentContacts":      recentContacts,
		"recentSubscriptions": recentSubscriptions,
	})
}

// HandleAnalytics returns the day-bucketed growth series for the
// requested trailing window.
func (h *DashboardHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.dashboards.Analytics(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		if errors.Is(err, dashboard.ErrInvalidPeriod) {
			respondError(w, http.StatusBadRequest, "period must be one of 7d, 30d, 90d, 1y")
		} else {
			respondInternal(w, err, h.exposeErrors)
		}
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"period":             a.Period,
		"contactGrowth":      newGrowthSeriesJSON(a.ContactGrowth),
		"subscriptionGrowth": newGrowthSeriesJSON(a.SubscriptionGrowth),
	})
}
