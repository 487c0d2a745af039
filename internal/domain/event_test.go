package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_Normalize_Defaults(t *testing.T) {
	now := time.Date(2025, 12, 25, 22, 42, 31, 123456789, time.UTC)
	e := &Event{Title: "deploy"}

	e.Normalize(now)

	assert.True(t, strings.HasPrefix(e.ID, "event_"))
	assert.Equal(t, []string{}, e.Tags)
	assert.Equal(t, map[string]any{}, e.Metadata)
	assert.Equal(t, SourceAPI, e.Source)
	assert.Equal(t, DisplayCard, e.DisplayAs)
	assert.Equal(t, now.Truncate(time.Millisecond), e.CreatedAt)
}

func TestEvent_Normalize_KeepsID(t *testing.T) {
	e := &Event{ID: "event_fixed", Source: SourceCommand}
	e.Normalize(time.Now())

	assert.Equal(t, "event_fixed", e.ID)
	assert.Equal(t, SourceCommand, e.Source)
}

func TestNewID_Distinct(t *testing.T) {
	a := NewID("event")
	b := NewID("event")

	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("event_")+32)
}

func TestWebhook_Accepts(t *testing.T) {
	assert.True(t, Webhook{Events: []string{"all"}}.Accepts("deploy"))
	assert.True(t, Webhook{}.Accepts("deploy"))
	assert.True(t, Webhook{Events: []string{"signup", "deploy"}}.Accepts("deploy"))
	assert.False(t, Webhook{Events: []string{"signup"}}.Accepts("deploy"))
}

func TestPushSubscription_MatchesAny(t *testing.T) {
	all := PushSubscription{}
	some := PushSubscription{ChannelIDs: []string{"ch_1", "ch_2"}}

	assert.True(t, all.MatchesAny([]string{"ch_9"}))
	assert.True(t, some.MatchesAny([]string{"ch_9", "ch_2"}))
	assert.False(t, some.MatchesAny([]string{"ch_9"}))
}

func TestNewEventWorkflow(t *testing.T) {
	e := &Event{ID: "event_1", ChannelID: "ch_1", OrganizationID: "org_1", ProjectID: "prj_1", Title: "Signup", Notify: true}

	wf := NewEventWorkflow(e)

	assert.Equal(t, "Signup", wf.EventType)
	assert.Equal(t, []string{}, wf.Tags)
	assert.True(t, wf.Notify)
}
