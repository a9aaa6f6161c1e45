package service

import (
	"sort"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"
)

// Flag origins and reasons.
const (
	SystemActor  = "system"
	ManualReason = "Moderação manual"
)

// FlagStore maps post ids to flag records. It is not safe for concurrent
// use; Moderation serializes access.
type FlagStore struct {
	records map[string]models.FlagRecord
}

// NewFlagStore wraps records, which may be nil.
func NewFlagStore(records map[string]models.FlagRecord) *FlagStore {
	if records == nil {
		records = make(map[string]models.FlagRecord)
	}
	return &FlagStore{records: records}
}

// Toggle unflags a flagged post or flags it manually on behalf of actor
// (SystemActor when empty). It reports the new state and the record created.
func (s *FlagStore) Toggle(id, actor string, now time.Time) (bool, models.FlagRecord) {
	if _, ok := s.records[id]; ok {
		delete(s.records, id)
		return false, models.FlagRecord{}
	}
	if actor == "" {
		actor = SystemActor
	}
	rec := models.FlagRecord{Timestamp: now.UTC(), FlaggedBy: actor, Reason: ManualReason}
	s.records[id] = rec
	return true, rec
}

// FlagAll flags every id that is not flagged yet and returns how many were added.
func (s *FlagStore) FlagAll(ids []string, actor, reason string, now time.Time) int {
	added := 0
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			continue
		}
		s.records[id] = models.FlagRecord{Timestamp: now.UTC(), FlaggedBy: actor, Reason: reason}
		added++
	}
	return added
}

// Has reports whether id is flagged.
func (s *FlagStore) Has(id string) bool {
	_, ok := s.records[id]
	return ok
}

// Get returns the record for id.
func (s *FlagStore) Get(id string) (models.FlagRecord, bool) {
	r, ok := s.records[id]
	return r, ok
}

func (s *FlagStore) Len() int { return len(s.records) }

// Snapshot copies the records.
func (s *FlagStore) Snapshot() map[string]models.FlagRecord {
	out := make(map[string]models.FlagRecord, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// MuteStore is the set of muted authors. Like FlagStore it relies on the
// caller for locking.
type MuteStore struct {
	authors map[string]struct{}
}

// NewMuteStore builds the set from authors.
func NewMuteStore(authors []string) *MuteStore {
	m := &MuteStore{authors: make(map[string]struct{}, len(authors))}
	for _, a := range authors {
		if a != "" {
			m.authors[a] = struct{}{}
		}
	}
	return m
}

// Mute adds author and reports whether the set changed.
func (m *MuteStore) Mute(author string) bool {
	if _, ok := m.authors[author]; ok || author == "" {
		return false
	}
	m.authors[author] = struct{}{}
	return true
}

// Unmute removes author and reports whether the set changed.
func (m *MuteStore) Unmute(author string) bool {
	if _, ok := m.authors[author]; !ok {
		return false
	}
	delete(m.authors, author)
	return true
}

// Has reports whether author is muted.
func (m *MuteStore) Has(author string) bool {
	_, ok := m.authors[author]
	return ok
}

// Set returns the muted authors as a lookup set. The map must not be
// modified.
func (m *MuteStore) Set() map[string]struct{} { return m.authors }

// List returns the muted authors sorted.
func (m *MuteStore) List() []string {
	out := make([]string, 0, len(m.authors))
	for a := range m.authors {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
