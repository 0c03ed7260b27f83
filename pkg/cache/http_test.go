package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResponse(status int, header http.Header, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func TestResponseToEntry(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	lastMod := time.Date(2025, 9, 28, 0, 0, 0, 0, time.UTC)

	resp := newResponse(http.StatusOK, http.Header{
		"Expires":       []string{expires.Format(http.TimeFormat)},
		"Last-Modified": []string{lastMod.Format(http.TimeFormat)},
		"Etag":          []string{`"abc123"`},
	}, `{"locationId":"100001"}`)

	entry, err := ResponseToEntry(resp)
	require.NoError(t, err)

	assert.Equal(t, `{"locationId":"100001"}`, string(entry.Data))
	assert.Equal(t, `"abc123"`, entry.ETag)
	assert.Equal(t, http.StatusOK, entry.StatusCode)
	assert.True(t, entry.Expires.Equal(expires))
	assert.True(t, entry.LastModified.Equal(lastMod))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"locationId":"100001"}`, string(body), "body must be restored for the caller")
}

func TestResponseToEntry_Nil(t *testing.T) {
	_, err := ResponseToEntry(nil)
	assert.Error(t, err)
}

func TestExpiresAt(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	tests := []struct {
		name   string
		header http.Header
		want   time.Time
	}{
		{"missing header", http.Header{}, now.Add(DefaultTTL)},
		{"malformed header", http.Header{"Expires": []string{"tomorrow"}}, now.Add(DefaultTTL)},
		{"past header", http.Header{"Expires": []string{now.Add(-time.Hour).Format(http.TimeFormat)}}, now},
		{"future header", http.Header{"Expires": []string{now.Add(time.Hour).Format(http.TimeFormat)}}, now.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expiresAt(tt.header, now)
			assert.True(t, got.Equal(tt.want), "expiresAt() = %v, want %v", got, tt.want)
		})
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	tests := []struct {
		name       string
		entry      *CacheEntry
		wantAdded  bool
		wantHeader string
		wantValue  string
	}{
		{
			name:       "etag",
			entry:      &CacheEntry{ETag: `"abc123"`},
			wantAdded:  true,
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
		{
			name:       "last modified",
			entry:      &CacheEntry{LastModified: time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)},
			wantAdded:  true,
			wantHeader: "If-Modified-Since",
			wantValue:  "Sun, 05 Jan 2025 12:00:00 GMT",
		},
		{
			name: "etag preferred",
			entry: &CacheEntry{
				ETag:         `"abc123"`,
				LastModified: time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC),
			},
			wantAdded:  true,
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
		{
			name:  "no validators",
			entry: &CacheEntry{Data: []byte("{}")},
		},
		{
			name: "nil entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "http://sandbox.local/merchants/1/metrics", nil)
			require.NoError(t, err)

			assert.Equal(t, tt.wantAdded, AddConditionalHeaders(req, tt.entry))
			if tt.wantHeader != "" {
				assert.Equal(t, tt.wantValue, req.Header.Get(tt.wantHeader))
			} else {
				assert.Empty(t, req.Header.Get("If-None-Match"))
				assert.Empty(t, req.Header.Get("If-Modified-Since"))
			}
		})
	}
}

func TestAddConditionalHeaders_NilRequest(t *testing.T) {
	assert.False(t, AddConditionalHeaders(nil, &CacheEntry{ETag: "x"}))
}

func TestEntryToResponse(t *testing.T) {
	entry := &CacheEntry{
		Data:       []byte(`{"ok":true}`),
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
	}

	resp := EntryToResponse(entry, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "200 OK", resp.Status)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Empty(t, entry.Headers.Get("X-Cache"), "entry headers must not be mutated")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
}
