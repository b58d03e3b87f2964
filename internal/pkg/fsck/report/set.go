// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package report

import (
	"slices"
	"strings"
)

// Sink accepts anomalies.
type Sink interface {
	Report(Anomaly)
}

// Set is a deduplicating anomaly collection which keeps the order of first occurrence.
type Set struct {
	seen      map[string]struct{}
	anomalies []Anomaly
	counts    map[Kind]int
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{
		seen:   map[string]struct{}{},
		counts: map[Kind]int{},
	}
}

// Report implements Sink.
func (s *Set) Report(a Anomaly) {
	if _, ok := s.seen[a.Message]; ok {
		return
	}

	s.seen[a.Message] = struct{}{}
	s.anomalies = append(s.anomalies, a)
	s.counts[a.Kind]++
}

// HasAnomalies is true when at least one anomaly was reported.
func (s *Set) HasAnomalies() bool {
	return len(s.anomalies) > 0
}

// Len returns the number of distinct anomalies.
func (s *Set) Len() int {
	return len(s.anomalies)
}

// Count returns the number of distinct anomalies of the kind.
func (s *Set) Count(kind Kind) int {
	return s.counts[kind]
}

// Drain returns the anomalies in order of first occurrence and empties the set.
func (s *Set) Drain() []Anomaly {
	anomalies := s.anomalies

	s.seen = map[string]struct{}{}
	s.anomalies = nil
	s.counts = map[Kind]int{}

	return anomalies
}

// Sorted returns a copy of anomalies ordered by message.
func Sorted(anomalies []Anomaly) []Anomaly {
	sorted := slices.Clone(anomalies)

	slices.SortFunc(sorted, func(a, b Anomaly) int {
		return strings.Compare(a.Message, b.Message)
	})

	return sorted
}
