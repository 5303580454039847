package criteria

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed is one entry of a criteria seed file.
type Seed struct {
	ID        string   `yaml:"id"`
	Text      string   `yaml:"text"`
	Threshold *float64 `yaml:"threshold,omitempty"`
	Active    *bool    `yaml:"active,omitempty"`
}

// IsActive reports the requested active state; omitted means active.
func (s Seed) IsActive() bool {
	return s.Active == nil || *s.Active
}

type seedFile struct {
	Criteria []Seed `yaml:"criteria"`
}

// LoadSeed reads and validates a YAML seed file.
func LoadSeed(path string) ([]Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// ParseSeed decodes a YAML document of the form:
//
//	criteria:
//	  - id: serd-mention
//	    text: The text names a selective estrogen receptor degrader.
//	    threshold: 0.7
func ParseSeed(r io.Reader) ([]Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file seedFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidSeed)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	seen := make(map[string]bool, len(file.Criteria))
	for i := range file.Criteria {
		s := &file.Criteria[i]
		s.ID = strings.TrimSpace(s.ID)
		s.Text = strings.TrimSpace(s.Text)

		if s.ID == "" {
			return nil, fmt.Errorf("%w: entry %d: id required", ErrInvalidSeed, i)
		}
		if s.Text == "" {
			return nil, fmt.Errorf("%w: %s: text required", ErrInvalidSeed, s.ID)
		}
		if s.Threshold != nil && (*s.Threshold < 0 || *s.Threshold > 1) {
			return nil, fmt.Errorf("%w: %s: threshold %v outside [0,1]", ErrInvalidSeed, s.ID, *s.Threshold)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidSeed, s.ID)
		}
		seen[s.ID] = true
	}

	return file.Criteria, nil
}

// SyncResult lists the ids affected by a sync.
type SyncResult struct {
	Created     []string `json:"created"`
	Updated     []string `json:"updated"`
	Unchanged   []string `json:"unchanged"`
	Deactivated []string `json:"deactivated"`
}

// Change is one planned write.
type Change struct {
	Seed        Seed
	Create      bool
	BumpVersion bool
}

// Plan is the set of writes needed to bring the registry in line with a seed.
type Plan struct {
	Changes    []Change
	Deactivate []string
	Result     SyncResult
}

// Diff compares existing criteria with seeds. A change to text or threshold
// bumps the version; toggling only the active flag does not.
func Diff(existing []Criterion, seeds []Seed, prune bool) Plan {
	current := make(map[string]Criterion, len(existing))
	for _, c := range existing {
		current[c.ID] = c
	}

	var plan Plan
	inSeed := make(map[string]bool, len(seeds))

	for _, s := range seeds {
		inSeed[s.ID] = true

		c, ok := current[s.ID]
		if !ok {
			plan.Changes = append(plan.Changes, Change{Seed: s, Create: true})
			plan.Result.Created = append(plan.Result.Created, s.ID)
			continue
		}

		bump := c.Text != s.Text || !sameThreshold(c.Threshold, s.Threshold)
		if !bump && c.IsActive == s.IsActive() {
			plan.Result.Unchanged = append(plan.Result.Unchanged, s.ID)
			continue
		}

		plan.Changes = append(plan.Changes, Change{Seed: s, BumpVersion: bump})
		plan.Result.Updated = append(plan.Result.Updated, s.ID)
	}

	if prune {
		for _, c := range existing {
			if !inSeed[c.ID] && c.IsActive {
				plan.Deactivate = append(plan.Deactivate, c.ID)
				plan.Result.Deactivated = append(plan.Result.Deactivated, c.ID)
			}
		}
	}

	return plan
}

func sameThreshold(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
