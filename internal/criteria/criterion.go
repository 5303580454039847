// Package criteria is the registry of natural-language criteria that sources
// are evaluated against. The pipeline only reads it; criteria are edited by
// syncing a seed file.
package criteria

import "time"

// Criterion is one versioned evaluation rule. Version increases whenever the
// text or threshold changes, which invalidates prior analyses for reuse.
type Criterion struct {
	ID        string    `json:"id"`
	Text      string    `json:"criterion_text"`
	Version   int       `json:"version"`
	IsActive  bool      `json:"is_active"`
	Threshold *float64  `json:"threshold,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is the set of active criteria read in a single statement. One
// snapshot drives one fan-out so every job of a submission sees the same
// registry state.
type Snapshot struct {
	Criteria []Criterion `json:"criteria"`
	TakenAt  time.Time   `json:"taken_at"`
}

// Empty reports whether no criteria are active.
func (s Snapshot) Empty() bool {
	return len(s.Criteria) == 0
}

// Lookup returns the criterion with id from the snapshot.
func (s Snapshot) Lookup(id string) (Criterion, bool) {
	for _, c := range s.Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}
