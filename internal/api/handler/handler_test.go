package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/listing-flyer/internal/worker/domain"
)

func TestEventFrame(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.Event
		want string
	}{
		{
			name: "progress line",
			ev:   domain.Event{Kind: domain.EventProgress, Data: "🚀 Iniciando robot..."},
			want: "data: 🚀 Iniciando robot...\n\n",
		},
		{
			name: "heartbeat has no event name",
			ev:   domain.Event{Kind: domain.EventHeartbeat, Data: domain.HeartbeatLine},
			want: "data: ⏳\n\n",
		},
		{
			name: "done with url",
			ev:   domain.Event{Kind: domain.EventDone, Data: "https://casa-ab12.netlify.app"},
			want: "event: done\ndata: https://casa-ab12.netlify.app\n\n",
		},
		{
			name: "done without url",
			ev:   domain.Event{Kind: domain.EventDone},
			want: "event: done\ndata: \n\n",
		},
		{
			name: "error carries no payload",
			ev:   domain.Event{Kind: domain.EventError, Data: "ignored"},
			want: "event: error\ndata: Error\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EventFrame(tt.ev))
		})
	}
}

func TestJobCursor(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 30, 0, 123, time.UTC)
	encoded := EncodeJobCursor(&JobCursor{CreatedAt: created, JobID: "b"})

	cursor, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	assert.True(t, created.Equal(cursor.CreatedAt))
	assert.Equal(t, "b", cursor.JobID)

	assert.True(t, cursor.after(created.Add(-time.Second), "z"))
	assert.True(t, cursor.after(created, "a"))
	assert.False(t, cursor.after(created, "b"))
	assert.False(t, cursor.after(created.Add(time.Second), "a"))

	none, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, bad := range []string{"%%%", "bm8tc2VwYXJhdG9y", "YWJjfGlk"} {
		_, err := DecodeJobCursor(bad)
		assert.Error(t, err, bad)
	}
}
