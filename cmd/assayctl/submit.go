package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/submission"
)

func newSubmitCmd() *cobra.Command {
	var (
		file   string
		text   string
		srcURL string
		date   string
		force  bool
		wait   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit text or a URL for evaluation against active criteria",
		Long: `Submit reads the source text from --text, --file, or standard input
("--file -"). With only --url the server fetches and extracts the page.
--wait blocks until every pending assignment is terminal or the duration
elapses.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(cmd.InOrStdin(), file, text, srcURL, date, force)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c := apiClient()

			h, err := c.Submit(ctx, req)
			if err != nil {
				return err
			}

			if wait > 0 && h.Pending() {
				if err := awaitAssignments(ctx, c, h, wait); err != nil && !errors.Is(err, errPending) {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, h)
			}
			return printHandle(out, h)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read text from file (- for stdin)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Source text")
	cmd.Flags().StringVarP(&srcURL, "url", "u", "", "Source URL")
	cmd.Flags().StringVar(&date, "date", "", "Source date (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-evaluate even when results exist")
	cmd.Flags().DurationVarP(&wait, "wait", "w", 0, "Wait for results up to this long")
	cmd.MarkFlagsMutuallyExclusive("file", "text")

	return cmd
}

func buildRequest(stdin io.Reader, file, text, srcURL, date string, force bool) (submission.Request, error) {
	req := submission.Request{Text: text, ForceRecheck: force}

	switch {
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return req, fmt.Errorf("read stdin: %w", err)
		}
		req.Text = string(data)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return req, fmt.Errorf("read %s: %w", file, err)
		}
		req.Text = string(data)
	}

	if srcURL != "" {
		req.SourceURL = &srcURL
	}

	if date != "" {
		t, err := parseDate(date)
		if err != nil {
			return req, err
		}
		req.SourceDate = &t
	}

	if req.Text == "" && req.SourceURL == nil {
		return req, errors.New("one of --text, --file, or --url is required")
	}
	return req, nil
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want RFC 3339 or YYYY-MM-DD", v)
}

// awaitAssignments waits on every pending assignment concurrently and folds
// the terminal results back into h.
func awaitAssignments(ctx context.Context, c *client, h *submission.Handle, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]jobs.Job, len(h.Assignments))
	var pending atomic.Bool

	for i, a := range h.Assignments {
		if a.Status.Terminal() {
			continue
		}
		g.Go(func() error {
			j, err := c.Wait(gctx, a.TaskID, timeout)
			results[i] = j
			if errors.Is(err, errPending) {
				pending.Store(true)
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range h.Assignments {
		j := results[i]
		if j.ID == "" {
			continue
		}
		h.Assignments[i].Status = j.Status
		h.Assignments[i].Result = j.Result
		h.Assignments[i].Error = j.Error
	}

	if pending.Load() {
		return errPending
	}
	return nil
}
