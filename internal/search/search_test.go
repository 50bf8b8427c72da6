package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchParsesNewsResults(t *testing.T) {
	var gotQuery, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("api_key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"news_results":[
			{"title":"Agents everywhere","snippet":"a new framework","source":"TechNews","date":"2 hours ago","link":"https://example.com/agents"},
			{"title":"Second hit","snippet":"more news","source":"Wire","date":"5 hours ago","link":"https://example.com/second"}
		]}`))
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.SetBaseURL(server.URL)

	results, err := client.Search(context.Background(), "AI agents")
	require.NoError(t, err)

	assert.Equal(t, "AI agents", gotQuery)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, results, 2)
	assert.Equal(t, "Agents everywhere", results[0].Title)
	assert.Equal(t, "2 hours ago", results[0].PublishedDate)
	assert.Equal(t, "https://example.com/agents", results[0].Link)
}

func TestSearchNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	client := NewClient("bad-key")
	client.SetBaseURL(server.URL)

	_, err := client.Search(context.Background(), "anything")
	assert.Error(t, err)
}

func TestSearchAllSkipsFailedQueries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"news_results":[{"title":"Hit","link":"https://example.com/hit"}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.SetBaseURL(server.URL)
	// Keep the failing query from burning retry wait time.
	client.client.SetRetryCount(0)

	results := client.SearchAll(context.Background(), []string{"good", "broken", "also good"})
	assert.Len(t, results, 2)
}

func TestIsEnabled(t *testing.T) {
	assert.True(t, NewClient("key").IsEnabled())
	assert.False(t, NewClient("").IsEnabled())
}

func TestShouldRun(t *testing.T) {
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	yesterday := day.Add(-10 * time.Hour)
	thisMorning := day.Add(9 * time.Hour)

	tests := []struct {
		name    string
		lastRun *time.Time
		now     time.Time
		want    bool
	}{
		{
			name: "never ran, past the configured time",
			now:  day.Add(9 * time.Hour),
			want: true,
		},
		{
			name: "never ran, before the configured time",
			now:  day.Add(7 * time.Hour),
			want: false,
		},
		{
			name:    "ran yesterday, past the configured time",
			lastRun: &yesterday,
			now:     day.Add(9 * time.Hour),
			want:    true,
		},
		{
			name:    "already ran today",
			lastRun: &thisMorning,
			now:     day.Add(15 * time.Hour),
			want:    false,
		},
		{
			name: "exactly at the configured time",
			now:  day.Add(8 * time.Hour),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShouldRun(tt.lastRun, "08:00", tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldRunRejectsBadTime(t *testing.T) {
	for _, value := range []string{"", "8", "25:00", "08:61", "eight:00"} {
		_, err := ShouldRun(nil, value, time.Now())
		assert.Error(t, err, "value %q", value)
	}
}
