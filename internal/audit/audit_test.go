package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecorderFilters(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRecorder()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{Action: "Issue Book", Username: "admin", Timestamp: base},
		{Action: "Return Book", Username: "admin", Timestamp: base.Add(24 * time.Hour)},
		{Action: "Issue Book", Username: "clerk", Timestamp: base.Add(48 * time.Hour)},
	}
	for _, e := range events {
		require.NoError(t, r.Record(ctx, e))
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"by action", Filter{Action: "Issue Book"}, 2},
		{"action is case insensitive", Filter{Action: "issue book"}, 2},
		{"by username", Filter{Username: "admin"}, 2},
		{"by window", Filter{From: base.Add(12 * time.Hour), To: base.Add(36 * time.Hour)}, 1},
		{"action and user", Filter{Action: "Issue Book", Username: "clerk"}, 1},
		{"no match", Filter{Username: "nobody"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestNewEventCarriesActor(t *testing.T) {
	e := New("Update Settings", Actor{Username: "admin", Role: "admin"}, "changed fine per day")
	assert.Equal(t, "admin", e.Username)
	assert.Equal(t, "Update Settings", e.Action)
	assert.NotZero(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestActorContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, ok := ActorFromContext(ctx)
	assert.False(t, ok)

	ctx = WithActor(ctx, Actor{Username: "admin", Role: "admin"})
	a, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin", a.Username)
}
