package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// TargetSet is the set of external link-back targets an entry has already
// notified. It serializes as a sorted JSON array so that two equal sets
// always produce identical bytes.
type TargetSet map[string]struct{}

// NewTargetSet builds a set from targets, skipping blanks.
func NewTargetSet(targets ...string) TargetSet {
	s := make(TargetSet, len(targets))
	s.Add(targets...)
	return s
}

// Add inserts targets, trimming whitespace and skipping blanks.
func (s TargetSet) Add(targets ...string) {
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t != "" {
			s[t] = struct{}{}
		}
	}
}

func (s TargetSet) Has(target string) bool {
	_, ok := s[target]
	return ok
}

func (s TargetSet) Len() int { return len(s) }

// Union returns a new set holding the members of s and other.
func (s TargetSet) Union(other TargetSet) TargetSet {
	out := make(TargetSet, len(s)+len(other))
	for t := range s {
		out[t] = struct{}{}
	}
	for t := range other {
		out[t] = struct{}{}
	}
	return out
}

// Difference returns the members of s that are not in any of others.
func (s TargetSet) Difference(others ...TargetSet) TargetSet {
	out := make(TargetSet, len(s))
outer:
	for t := range s {
		for _, o := range others {
			if o.Has(t) {
				continue outer
			}
		}
		out[t] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s TargetSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (s TargetSet) Clone() TargetSet {
	return s.Union(nil)
}

func (s TargetSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *TargetSet) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*s = NewTargetSet(list...)
	return nil
}

// Value stores the set as its JSON array text.
func (s TargetSet) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON array from a text/jsonb column. NULL yields an empty set.
func (s *TargetSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = TargetSet{}
		return nil
	case string:
		return s.UnmarshalJSON([]byte(v))
	case []byte:
		return s.UnmarshalJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into TargetSet", src)
	}
}
