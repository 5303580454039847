package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/assay/internal/criteria"
	"github.com/JaimeStill/assay/internal/events"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/submission"
	"github.com/JaimeStill/assay/pkg/pagination"
)

// errPending marks a wait that ended before the job reached a terminal state.
var errPending = errors.New("job still pending")

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// client talks to the assay HTTP API.
type client struct {
	base string
	http *http.Client
}

func newClient(base string, httpClient *http.Client) *client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &client{
		base: strings.TrimRight(base, "/"),
		http: httpClient,
	}
}

func (c *client) Submit(ctx context.Context, req submission.Request) (*submission.Handle, error) {
	var h submission.Handle
	if _, err := c.do(ctx, http.MethodPost, "/submissions", req, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *client) Job(ctx context.Context, id string) (jobs.Job, error) {
	var j jobs.Job
	_, err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &j)
	return j, err
}

// Wait asks the server to hold the request until the job is terminal. The
// returned job carries the latest state even when errPending is returned.
func (c *client) Wait(ctx context.Context, id string, timeout time.Duration) (jobs.Job, error) {
	var j jobs.Job
	path := "/jobs/" + url.PathEscape(id) + "/wait?timeout=" + url.QueryEscape(timeout.String())

	status, err := c.do(ctx, http.MethodGet, path, nil, &j)
	if err != nil {
		return j, err
	}
	if status == http.StatusAccepted {
		return j, errPending
	}
	return j, nil
}

func (c *client) Queue(ctx context.Context) (jobs.QueueInfo, error) {
	var info jobs.QueueInfo
	_, err := c.do(ctx, http.MethodGet, "/jobs/queue", nil, &info)
	return info, err
}

func (c *client) Stats(ctx context.Context, days int) ([]events.CriterionStats, error) {
	var stats []events.CriterionStats
	_, err := c.do(ctx, http.MethodGet, "/events/stats?days="+strconv.Itoa(days), nil, &stats)
	return stats, err
}

func (c *client) Daily(ctx context.Context, days int) ([]events.DailyStats, error) {
	var stats []events.DailyStats
	_, err := c.do(ctx, http.MethodGet, "/events/daily?days="+strconv.Itoa(days), nil, &stats)
	return stats, err
}

func (c *client) Criteria(ctx context.Context, page, pageSize int) (*pagination.PageResult[criteria.Criterion], error) {
	var result pagination.PageResult[criteria.Criterion]
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	if _, err := c.do(ctx, http.MethodGet, "/criteria?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return resp.StatusCode, &apiError{Status: resp.StatusCode, Message: e.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
