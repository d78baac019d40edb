package models

import (
	"testing"
	"time"
)

func TestEngagementRate(t *testing.T) {
	cases := []struct {
		sent, opened, want int
	}{
		{0, 0, 0},
		{0, 10, 0},
		{50, 10, 20},
		{100, 100, 100},
		{3, 1, 33},
		{3, 2, 67},
	}
	for _, c := range cases {
		sub := EmailSubscription{EmailsSent: c.sent, EmailsOpened: c.opened}
		if got := sub.EngagementRate(); got != c.want {
			t.Errorf("EngagementRate(sent=%d, opened=%d) = %d, want %d", c.sent, c.opened, got, c.want)
		}
	}
}

func TestClickRate(t *testing.T) {
	cases := []struct {
		opened, clicked, want int
	}{
		{0, 0, 0},
		{10, 5, 50},
		{3, 1, 33},
	}
	for _, c := range cases {
		sub := EmailSubscription{EmailsOpened: c.opened, EmailsClicked: c.clicked}
		if got := sub.ClickRate(); got != c.want {
			t.Errorf("ClickRate(opened=%d, clicked=%d) = %d, want %d", c.opened, c.clicked, got, c.want)
		}
	}
}

func TestSubscriptionDuration(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	active := EmailSubscription{SubscriptionDate: now.AddDate(0, 0, -10)}
	if got := active.SubscriptionDuration(now); got != 10 {
		t.Errorf("expected 10 days for an active subscription, got %d", got)
	}

	// An unsubscribed row measures to its unsubscription date, not now.
	end := now.AddDate(0, 0, -3)
	ended := EmailSubscription{
		SubscriptionDate:   now.AddDate(0, 0, -10),
		UnsubscriptionDate: &end,
	}
	if got := ended.SubscriptionDuration(now); got != 7 {
		t.Errorf("expected 7 days for an ended subscription, got %d", got)
	}

	fresh := EmailSubscription{SubscriptionDate: now.Add(time.Minute)}
	if got := fresh.SubscriptionDuration(now); got != 0 {
		t.Errorf("expected 0 for a just-created subscription, got %d", got)
	}
}

func TestPreferencePatchApply(t *testing.T) {
	base := SubscriptionPreferences{Newsletters: true, Promotions: true, Updates: true, Events: true}

	// An empty patch leaves everything alone.
	if got := (PreferencePatch{}).Apply(base); got != base {
		t.Errorf("empty patch changed preferences: %+v", got)
	}

	off := false
	on := true
	got := PreferencePatch{Promotions: &off, Events: &off}.Apply(base)
	want := SubscriptionPreferences{Newsletters: true, Promotions: false, Updates: true, Events: false}
	if got != want {
		t.Errorf("patch applied wrong, got %+v want %+v", got, want)
	}

	// Patching back on works field by field.
	got = PreferencePatch{Promotions: &on}.Apply(got)
	if !got.Promotions || got.Events {
		t.Errorf("expected only promotions restored, got %+v", got)
	}
}

func TestNewPagination(t *testing.T) {
	cases := []struct {
		page, pageSize, total int
		wantPages             int
	}{
		{1, 10, 0, 0},
		{1, 10, 1, 1},
		{1, 10, 10, 1},
		{3, 10, 25, 3},
		{9, 10, 25, 3},
		{1, 10, 31, 4},
	}
	for _, c := range cases {
		p := NewPagination(c.page, c.pageSize, c.total)
		if p.TotalPages != c.wantPages {
			t.Errorf("NewPagination(%d, %d, %d).TotalPages = %d, want %d",
				c.page, c.pageSize, c.total, p.TotalPages, c.wantPages)
		}
		if p.CurrentPage != c.page || p.TotalCount != c.total || p.PageSize != c.pageSize {
			t.Errorf("NewPagination(%d, %d, %d) = %+v", c.page, c.pageSize, c.total, p)
		}
	}
}
