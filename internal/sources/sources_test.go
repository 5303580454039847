package sources_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/assay/internal/fingerprint"
	"github.com/JaimeStill/assay/internal/sources"
	"github.com/JaimeStill/assay/pkg/lifecycle"
	"github.com/JaimeStill/assay/pkg/pagination"
	"github.com/JaimeStill/assay/pkg/storage"
)

type fakeStorage struct {
	uploadFn   func(ctx context.Context, key string, r io.Reader, contentType string) error
	downloadFn func(ctx context.Context, key string) (io.ReadCloser, error)
	existsFn   func(ctx context.Context, key string) (bool, error)
}

func (f *fakeStorage) Start(*lifecycle.Coordinator) error { return nil }
func (f *fakeStorage) Ping(context.Context) error         { return nil }

func (f *fakeStorage) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	return f.uploadFn(ctx, key, r, contentType)
}

func (f *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return f.downloadFn(ctx, key)
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	return f.existsFn(ctx, key)
}

func newSystem(store storage.System) sources.System {
	return sources.New(
		nil,
		store,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func TestStorageKey(t *testing.T) {
	if got := sources.StorageKey("abc"); got != "sources/abc.txt" {
		t.Errorf("StorageKey = %q", got)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sources.ErrNotFound, http.StatusNotFound},
		{sources.ErrEmptyText, http.StatusBadRequest},
		{sources.ErrTextUnavailable, http.StatusNotFound},
		{fmt.Errorf("download source text: %w", storage.ErrInvalidKey), http.StatusBadRequest},
		{fmt.Errorf("download source text: %w", storage.ErrEmptyKey), http.StatusBadRequest},
		{errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := sources.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestText(t *testing.T) {
	store := &fakeStorage{
		downloadFn: func(_ context.Context, key string) (io.ReadCloser, error) {
			switch key {
			case sources.StorageKey("present"):
				return io.NopCloser(strings.NewReader("patient started fulvestrant")), nil
			case sources.StorageKey("empty"):
				return io.NopCloser(strings.NewReader("")), nil
			}
			return nil, storage.ErrNotFound
		},
	}
	sys := newSystem(store)

	text, err := sys.Text(context.Background(), "present")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "patient started fulvestrant" {
		t.Errorf("Text = %q", text)
	}

	for _, hash := range []string{"missing", "empty"} {
		if _, err := sys.Text(context.Background(), hash); !errors.Is(err, sources.ErrTextUnavailable) {
			t.Errorf("Text(%s) error = %v, want ErrTextUnavailable", hash, err)
		}
	}
}

func TestUpsertRejectsEmptyText(t *testing.T) {
	store := &fakeStorage{
		existsFn: func(context.Context, string) (bool, error) {
			t.Error("storage touched for empty text")
			return false, nil
		},
	}

	_, _, err := newSystem(store).Upsert(context.Background(), sources.UpsertCommand{
		Fingerprint: fingerprint.Compute(" \n\t "),
	})
	if !errors.Is(err, sources.ErrEmptyText) {
		t.Errorf("error = %v, want ErrEmptyText", err)
	}
}

func TestUpsertArchiveFailureStopsBeforeDatabase(t *testing.T) {
	store := &fakeStorage{
		existsFn: func(context.Context, string) (bool, error) { return false, nil },
		uploadFn: func(context.Context, string, io.Reader, string) error {
			return errors.New("azurite down")
		},
	}

	_, _, err := newSystem(store).Upsert(context.Background(), sources.UpsertCommand{
		Fingerprint: fingerprint.Compute("some text"),
	})
	if err == nil || !strings.Contains(err.Error(), "archive source text") {
		t.Errorf("error = %v", err)
	}
}

func TestFiltersFromQuery(t *testing.T) {
	f := sources.FiltersFromQuery(url.Values{
		"url":           {"example.com"},
		"from":          {"2026-01-01"},
		"to":            {"2026-02-01T00:00:00Z"},
		"force_recheck": {"false"},
	})

	if f.URL == nil || *f.URL != "example.com" {
		t.Errorf("URL = %v", f.URL)
	}
	if f.From == nil || !f.From.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("From = %v", f.From)
	}
	if f.To == nil || f.To.Month() != time.February {
		t.Errorf("To = %v", f.To)
	}
	if f.ForceRecheck == nil || *f.ForceRecheck {
		t.Errorf("ForceRecheck = %v", f.ForceRecheck)
	}

	empty := sources.FiltersFromQuery(url.Values{"from": {"last tuesday"}})
	if empty.From != nil {
		t.Error("unparseable date should be ignored")
	}
}
