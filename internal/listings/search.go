package listings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/job-matcher/internal/apperr"
)

// Query describes one fetch.
type Query struct {
	Title    string `mapstructure:"title" json:"jobTitle"`
	Location string `mapstructure:"location" json:"location"`
	Limit    int    `mapstructure:"limit" json:"limit"`
}

// Cursor tracks pagination within a single Fetch call.
type Cursor struct {
	Token     string
	Collected int
}

// Result is the outcome of a Fetch. Upstream holds the absorbed provider
// failure, if any; Jobs is empty in that case.
type Result struct {
	Jobs     []Job
	Pages    int
	Upstream error
}

// Fetch collects up to q.Limit unique jobs in provider order.
//
// Provider failures never surface as an error: they are logged, recorded in
// Result.Upstream and yield an empty result. Only context cancellation of
// ctx itself is returned.
func (c *Client) Fetch(ctx context.Context, q Query) (*Result, error) {
	result := &Result{}
	if q.Limit <= 0 || strings.TrimSpace(q.Title) == "" {
		return result, nil
	}

	seen := make(map[Key]struct{})
	jobs := make([]Job, 0, q.Limit)
	cursor := &Cursor{}
	limiter := rate.NewLimiter(rate.Every(c.PageDelay), 1)

	for cursor.Collected < q.Limit {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fetchCanceled(ctx, err)
		}

		page, err := c.fetchPage(ctx, q, cursor.Token)
		result.Pages++
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			upstream := apperr.UpstreamUnavailable("fetch listings page", err)
			c.logger.Error("listings provider failed, returning no jobs",
				zap.String("query", q.Title),
				zap.String("location", q.Location),
				zap.Int("page", result.Pages),
				zap.Error(upstream),
			)
			result.Upstream = upstream
			return result, nil
		}

		added := 0
		for _, item := range page.JobsResult {
			job := normalize(item)
			if job.Empty() {
				c.logger.Debug("normalized record without recognisable fields",
					zap.Error(apperr.MalformedRecord("listing has no known fields")),
				)
			}

			if _, dup := seen[job.Key()]; dup {
				continue
			}
			seen[job.Key()] = struct{}{}
			jobs = append(jobs, job)
			added++
		}
		cursor.Collected = len(jobs)

		c.logger.Debug("got listings page",
			zap.Int("page", result.Pages),
			zap.Int("received", len(page.JobsResult)),
			zap.Int("added", added),
			zap.Int("collected", cursor.Collected),
			zap.String("provider_message", page.Error),
		)

		if added == 0 {
			break
		}

		cursor.Token = page.Pagination.NextPageToken
		if cursor.Token == "" {
			break
		}
	}

	if len(jobs) > q.Limit {
		jobs = jobs[:q.Limit]
	}
	result.Jobs = jobs

	return result, nil
}

func (c *Client) fetchPage(ctx context.Context, q Query, token string) (*pageResponse, error) {
	pageCtx, cancel := context.WithTimeout(ctx, c.PageTimeout)
	defer cancel()

	var page pageResponse
	if err := c.getJSON(pageCtx, searchPath, c.buildParams(q, token), &page); err != nil {
		return nil, err
	}

	return &page, nil
}

func (c *Client) buildParams(q Query, token string) url.Values {
	params := url.Values{}
	params.Set("engine", engine)
	params.Set("q", q.Title)
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	if c.Language != "" {
		params.Set("hl", c.Language)
	}
	if c.Country != "" {
		params.Set("gl", c.Country)
	}
	if token != "" {
		params.Set("next_page_token", token)
	}
	params.Set("api_key", c.apiKey)

	return params
}

// fetchCanceled reports cancellation as the context error. The rate
// limiter reports a deadline that would pass while waiting as its own
// error, which is mapped to DeadlineExceeded.
func fetchCanceled(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("wait for next page: %w", context.DeadlineExceeded)
}
