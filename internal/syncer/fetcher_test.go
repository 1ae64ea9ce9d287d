package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkprog/go-crmsync-backend/internal/crm"
	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// scriptedClient serves pages keyed by cursor and can fail a cursor a fixed
// number of times before succeeding.
type scriptedClient struct {
	mu       sync.Mutex
	pages    map[string]*crm.Page
	failures map[string]int
	err      error
	cursors  []string
	sinces   []*time.Time
}

func (c *scriptedClient) FetchPage(ctx context.Context, t model.EntityType, cursor string, since *time.Time, limit int) (*crm.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors = append(c.cursors, cursor)
	c.sinces = append(c.sinces, since)
	if c.failures[cursor] > 0 {
		c.failures[cursor]--
		return nil, c.err
	}
	if page, ok := c.pages[cursor]; ok {
		return page, nil
	}
	return &crm.Page{}, nil
}

func page(hasMore bool, ids ...string) *crm.Page {
	p := &crm.Page{HasMore: hasMore}
	for _, id := range ids {
		p.Records = append(p.Records, model.RemoteRecord{"id": id})
	}
	if len(ids) > 0 {
		p.NextCursor = ids[len(ids)-1]
	}
	return p
}

func newTestFetcher(client crm.Client, maxRetries int) *Fetcher {
	return NewFetcher(client, 2, maxRetries, time.Millisecond, 5*time.Millisecond, zerolog.Nop())
}

func collect(t *testing.T, f *Fetcher, et model.EntityType, since *time.Time) ([]*crm.Page, int, error) {
	t.Helper()
	out := make(chan *crm.Page, 16)
	pages, err := f.Stream(context.Background(), et, since, out)
	close(out)
	var got []*crm.Page
	for p := range out {
		got = append(got, p)
	}
	return got, pages, err
}

func TestStreamFollowsCursor(t *testing.T) {
	client := &scriptedClient{pages: map[string]*crm.Page{
		"":    page(true, "v-1", "v-2"),
		"v-2": page(true, "v-3", "v-4"),
		"v-4": page(false, "v-5"),
	}}

	got, pages, err := collect(t, newTestFetcher(client, 3), model.EntityVolunteer, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"", "v-2", "v-4"}, client.cursors)
}

func TestStreamStopsOnEmptyPage(t *testing.T) {
	client := &scriptedClient{pages: map[string]*crm.Page{
		"":    page(true, "v-1"),
		"v-1": {HasMore: true}, // empty page despite has_more
	}}

	got, pages, err := collect(t, newTestFetcher(client, 3), model.EntityVolunteer, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	assert.Len(t, got, 1)
}

func TestStreamRetriesTransientFailure(t *testing.T) {
	client := &scriptedClient{
		pages:    map[string]*crm.Page{"": page(false, "v-1")},
		failures: map[string]int{"": 2},
		err:      &crm.StatusError{StatusCode: 503},
	}

	got, _, err := collect(t, newTestFetcher(client, 3), model.EntityVolunteer, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	// Two failures then success, all on the same cursor.
	assert.Equal(t, []string{"", "", ""}, client.cursors)
}

func TestStreamRetryExhaustionNamesCursor(t *testing.T) {
	client := &scriptedClient{
		pages:    map[string]*crm.Page{"": page(true, "v-1", "v-2")},
		failures: map[string]int{"v-2": 10},
		err:      &crm.StatusError{StatusCode: 503},
	}

	got, _, err := collect(t, newTestFetcher(client, 2), model.EntityVolunteer, nil)
	require.Len(t, got, 1)
	var fErr *FetchError
	require.ErrorAs(t, err, &fErr)
	// The error names the last successfully consumed cursor for resumption.
	assert.Equal(t, "v-2", fErr.Cursor)
	assert.Equal(t, model.EntityVolunteer, fErr.EntityType)
}

func TestStreamPermanentErrorSkipsRetry(t *testing.T) {
	client := &scriptedClient{
		failures: map[string]int{"": 10},
		err:      &crm.StatusError{StatusCode: 401},
	}

	_, _, err := collect(t, newTestFetcher(client, 5), model.EntityVolunteer, nil)
	var fErr *FetchError
	require.ErrorAs(t, err, &fErr)
	// A 401 is not retried: exactly one attempt.
	assert.Len(t, client.cursors, 1)
}

func TestStreamPassesSince(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	client := &scriptedClient{pages: map[string]*crm.Page{"": page(false, "v-1")}}

	_, _, err := collect(t, newTestFetcher(client, 3), model.EntityVolunteer, &since)
	require.NoError(t, err)
	require.NotEmpty(t, client.sinces)
	require.NotNil(t, client.sinces[0])
	assert.True(t, client.sinces[0].Equal(since))
}

func TestStreamStopsOnContextCancel(t *testing.T) {
	client := &scriptedClient{pages: map[string]*crm.Page{
		"":    page(true, "v-1"),
		"v-1": page(true, "v-2"),
		"v-2": page(false, "v-3"),
	}}
	f := newTestFetcher(client, 3)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan *crm.Page) // unbuffered: Stream blocks on send
	done := make(chan struct{})
	var streamErr error
	go func() {
		defer close(done)
		_, streamErr = f.Stream(ctx, model.EntityVolunteer, nil, out)
	}()

	<-out // take the first page
	cancel()
	<-done
	assert.ErrorIs(t, streamErr, context.Canceled)
}
