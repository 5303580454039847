// Package sources stores one row per distinct text fingerprint and archives
// the normalized text so workers can evaluate it.
package sources

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/assay/internal/fingerprint"
)

// Source is a submitted text identified by its fingerprint.
type Source struct {
	ID           uuid.UUID  `json:"id"`
	SourceHash   string     `json:"source_hash"`
	SourceURL    *string    `json:"source_url,omitempty"`
	SourceDate   *time.Time `json:"source_date,omitempty"`
	IngestTS     time.Time  `json:"ingest_ts"`
	ForceRecheck bool       `json:"force_recheck"`
	TextPreview  string     `json:"text_preview"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SourceText is the archived normalized text of a source.
type SourceText struct {
	SourceHash string `json:"source_hash"`
	Text       string `json:"text"`
}

// UpsertCommand carries a fingerprinted submission. SourceURL and SourceDate
// only overwrite stored metadata when supplied.
type UpsertCommand struct {
	Fingerprint  fingerprint.Fingerprint
	SourceURL    *string
	SourceDate   *time.Time
	ForceRecheck bool
}

// StorageKey returns the blob key of the archived normalized text.
func StorageKey(sourceHash string) string {
	return "sources/" + sourceHash + ".txt"
}
