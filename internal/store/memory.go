package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

// corpusSnapshot is an immutable version of the corpus. Mutations build a new
// snapshot and swap the pointer, so readers and in-flight scoring passes are
// never exposed to in-place edits.
type corpusSnapshot struct {
	version uint64
	records []model.SubsidyRecord
}

// MemoryStore implements Store with a copy-on-write in-memory corpus.
// Reads are lock-free; writers are serialized by mu.
type MemoryStore struct {
	snap atomic.Pointer[corpusSnapshot]

	mu       sync.Mutex
	analyses map[string]*model.AnalysisRun
	order    []string // analysis ids, insertion order
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	s := &MemoryStore{analyses: make(map[string]*model.AnalysisRun)}
	s.snap.Store(&corpusSnapshot{})
	return s
}

// NewMemoryWithRecords creates a MemoryStore pre-loaded with the given corpus.
func NewMemoryWithRecords(records []model.SubsidyRecord) *MemoryStore {
	s := NewMemory()
	snap := &corpusSnapshot{version: 1, records: append([]model.SubsidyRecord(nil), records...)}
	s.snap.Store(snap)
	return s
}

// Version returns the current corpus snapshot version.
func (s *MemoryStore) Version() uint64 {
	return s.snap.Load().version
}

func (s *MemoryStore) ListSubsidies(_ context.Context, filter SubsidyFilter) ([]model.SubsidyRecord, error) {
	snap := s.snap.Load()
	out := applyFilter(snap.records, filter)
	sortByDeadline(out)
	return applyLimit(out, filter.Limit), nil
}

func (s *MemoryStore) GetSubsidy(_ context.Context, id string) (*model.SubsidyRecord, error) {
	snap := s.snap.Load()
	for i := range snap.records {
		if snap.records[i].ID == id {
			rec := snap.records[i]
			return &rec, nil
		}
	}
	return nil, &NotFoundError{Entity: "subsidy", ID: id}
}

func (s *MemoryStore) UpsertSubsidy(_ context.Context, rec model.SubsidyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snap.Load()
	records := append([]model.SubsidyRecord(nil), old.records...)

	replaced := false
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}

	s.snap.Store(&corpusSnapshot{version: old.version + 1, records: records})
	return nil
}

func (s *MemoryStore) DeleteSubsidy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snap.Load()
	records := make([]model.SubsidyRecord, 0, len(old.records))
	found := false
	for i := range old.records {
		if old.records[i].ID == id {
			found = true
			continue
		}
		records = append(records, old.records[i])
	}
	if !found {
		return &NotFoundError{Entity: "subsidy", ID: id}
	}

	s.snap.Store(&corpusSnapshot{version: old.version + 1, records: records})
	return nil
}

func (s *MemoryStore) Snapshot(_ context.Context) ([]model.SubsidyRecord, error) {
	return s.snap.Load().records, nil
}

func (s *MemoryStore) ListCategories(_ context.Context) ([]string, error) {
	return collectCategories(s.snap.Load().records), nil
}

func (s *MemoryStore) ListPrefectures(_ context.Context) ([]string, error) {
	return collectPrefectures(s.snap.Load().records), nil
}

func (s *MemoryStore) SaveAnalysis(_ context.Context, run *model.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.analyses[run.ID]; !ok {
		s.order = append(s.order, run.ID)
	}
	saved := *run
	s.analyses[run.ID] = &saved
	return nil
}

func (s *MemoryStore) GetAnalysis(_ context.Context, id string) (*model.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.analyses[id]
	if !ok {
		return nil, &NotFoundError{Entity: "analysis", ID: id}
	}
	out := *run
	return &out, nil
}

func (s *MemoryStore) ListAnalyses(_ context.Context, limit int) ([]model.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.AnalysisRun, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.analyses[id])
	}

	// Newest first.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AnalyzedAt.After(out[j].AnalyzedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
