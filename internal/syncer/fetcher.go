package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/sparkprog/go-crmsync-backend/internal/crm"
	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// Fetcher streams export pages from the CRM into a channel, retrying
// transient failures with bounded exponential backoff. The cursor is the
// external ID of the last record of the previous page, so remote inserts or
// deletes during a run cannot skip or duplicate records.
type Fetcher struct {
	client        crm.Client
	pageSize      int
	maxRetries    uint64
	retryInterval time.Duration
	maxRetryWait  time.Duration
	log           zerolog.Logger
}

func NewFetcher(client crm.Client, pageSize, maxRetries int, retryInterval, maxRetryWait time.Duration, log zerolog.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Fetcher{
		client:        client,
		pageSize:      pageSize,
		maxRetries:    uint64(maxRetries),
		retryInterval: retryInterval,
		maxRetryWait:  maxRetryWait,
		log:           log.With().Str("component", "fetcher").Logger(),
	}
}

// Stream fetches pages in cursor order and sends them on out until the
// source reports no more records or ctx is cancelled. It returns the number
// of pages handed off; on retry exhaustion the error is a *FetchError
// naming the last successfully consumed cursor. The caller owns closing
// out.
func (f *Fetcher) Stream(ctx context.Context, t model.EntityType, since *time.Time, out chan<- *crm.Page) (int, error) {
	cursor := ""
	pages := 0
	for {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		page, err := f.fetchPage(ctx, t, cursor, since)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return pages, err
			}
			return pages, &FetchError{EntityType: t, Cursor: cursor, Err: err}
		}
		if len(page.Records) == 0 {
			return pages, nil
		}
		f.log.Debug().
			Str("entity_type", string(t)).
			Str("cursor", cursor).
			Int("records", len(page.Records)).
			Msg("page fetched")

		select {
		case out <- page:
		case <-ctx.Done():
			return pages, ctx.Err()
		}
		pages++
		cursor = page.NextCursor
		if !page.HasMore {
			return pages, nil
		}
	}
}

func (f *Fetcher) fetchPage(ctx context.Context, t model.EntityType, cursor string, since *time.Time) (*crm.Page, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.retryInterval
	bo.MaxInterval = f.maxRetryWait

	attempt := 0
	operation := func() (*crm.Page, error) {
		attempt++
		page, err := f.client.FetchPage(ctx, t, cursor, since, f.pageSize)
		if err != nil {
			var statusErr *crm.StatusError
			if errors.As(err, &statusErr) && !statusErr.Temporary() {
				// Auth or request errors will not heal on retry.
				return nil, backoff.Permanent(err)
			}
			f.log.Warn().
				Str("entity_type", string(t)).
				Str("cursor", cursor).
				Int("attempt", attempt).
				Err(err).
				Msg("page fetch failed, retrying")
			return nil, err
		}
		return page, nil
	}
	return backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, f.maxRetries), ctx))
}
