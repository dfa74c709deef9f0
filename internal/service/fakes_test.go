package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jjenkins/laborwatch/internal/model"
)

// memDirectory is an in-memory jurisdiction directory satisfying both
// JurisdictionDirectory and TargetResolver
type memDirectory struct {
	mu        sync.Mutex
	nextID    int
	byID      map[int]model.Jurisdiction
	createErr error
}

func newMemDirectory() *memDirectory {
	return &memDirectory{nextID: 1, byID: map[int]model.Jurisdiction{}}
}

func (d *memDirectory) add(j model.Jurisdiction) model.Jurisdiction {
	d.mu.Lock()
	defer d.mu.Unlock()
	j.ID = d.nextID
	d.nextID++
	d.byID[j.ID] = j
	return j
}

func (d *memDirectory) GetByID(ctx context.Context, id int) (*model.Jurisdiction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.byID[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func (d *memDirectory) GetByCityState(ctx context.Context, city, state string) (*model.Jurisdiction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, j := range d.byID {
		if strings.EqualFold(j.City, city) && strings.EqualFold(j.State, state) {
			return &j, nil
		}
	}
	return nil, nil
}

func (d *memDirectory) Create(ctx context.Context, j *model.Jurisdiction) error {
	if d.createErr != nil {
		return d.createErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	j.ID = d.nextID
	d.nextID++
	d.byID[j.ID] = *j
	return nil
}

// memFactStore is an in-memory FactClassifier with the same reconciliation
// semantics as the SQL stores
type memFactStore struct {
	mu          sync.Mutex
	nextID      int
	records     []memRecord
	classifyErr error
}

type memRecord struct {
	id             int
	jurisdictionID int
	category       string
	title          string
	value          string
	previous       string
}

func newMemFactStore() *memFactStore {
	return &memFactStore{nextID: 1}
}

func (s *memFactStore) seed(jurisdictionID int, category, title, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, memRecord{
		id:             s.nextID,
		jurisdictionID: jurisdictionID,
		category:       category,
		title:          title,
		value:          value,
	})
	s.nextID++
}

func normalize(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

func (s *memFactStore) Classify(ctx context.Context, jurisdictionID int, level model.Level, fact model.DiscoveredFact) (model.ClassifyResult, error) {
	if s.classifyErr != nil {
		return model.ClassifyResult{}, s.classifyErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		r := &s.records[i]
		if r.jurisdictionID != jurisdictionID || r.category != fact.Category || normalize(r.title) != normalize(fact.Title) {
			continue
		}
		if r.value == fact.Value {
			return model.ClassifyResult{Status: model.StatusExisting, RecordID: r.id}, nil
		}
		r.previous = r.value
		r.value = fact.Value
		return model.ClassifyResult{Status: model.StatusUpdated, RecordID: r.id}, nil
	}

	s.records = append(s.records, memRecord{
		id:             s.nextID,
		jurisdictionID: jurisdictionID,
		category:       fact.Category,
		title:          fact.Title,
		value:          fact.Value,
	})
	s.nextID++
	return model.ClassifyResult{Status: model.StatusNew, RecordID: s.nextID - 1}, nil
}

// fakeResearcher scripts the research capability
type fakeResearcher struct {
	mu              sync.Mutex
	requirements    []model.DiscoveredFact
	legislation     []model.DiscoveredFact
	requirementsErr error
	legislationErr  error
	reverifyFn      func(model.DiscoveredFact) (model.DiscoveredFact, error)
	reverifyCalls   int

	// delay simulates a slow research call that honors cancellation
	delay time.Duration
	// block, when non-nil, holds DiscoverRequirements until closed
	block chan struct{}
}

func (f *fakeResearcher) wait(ctx context.Context) error {
	if f.block != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.block:
		}
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return nil
}

func (f *fakeResearcher) DiscoverRequirements(ctx context.Context, j *model.Jurisdiction) ([]model.DiscoveredFact, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.requirementsErr != nil {
		return nil, f.requirementsErr
	}
	return f.requirements, nil
}

func (f *fakeResearcher) DiscoverLegislation(ctx context.Context, j *model.Jurisdiction) ([]model.DiscoveredFact, error) {
	if f.legislationErr != nil {
		return nil, f.legislationErr
	}
	return f.legislation, nil
}

func (f *fakeResearcher) Reverify(ctx context.Context, j *model.Jurisdiction, fact model.DiscoveredFact) (model.DiscoveredFact, error) {
	f.mu.Lock()
	f.reverifyCalls++
	f.mu.Unlock()
	if f.reverifyFn != nil {
		return f.reverifyFn(fact)
	}
	return fact, nil
}

// collectEvents returns an EmitFunc that appends into the returned slice.
// Single-goroutine use only.
func collectEvents() (*[]Event, EmitFunc) {
	events := &[]Event{}
	return events, func(e Event) error {
		*events = append(*events, e)
		return nil
	}
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}
