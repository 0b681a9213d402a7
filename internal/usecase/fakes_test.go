package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
)

var _ ports.Store = (*memStore)(nil)

// memStore keeps listings and attempts in memory with the same semantics as the SQL store.
type memStore struct {
	mu        sync.Mutex
	listings  map[string]domain.TriageRecord
	order     []string
	attempts  []domain.SentMessageRecord
	templates []domain.MessageTemplate

	lookupErr error
	saveErr   map[string]error
}

func newMemStore() *memStore {
	return &memStore{listings: make(map[string]domain.TriageRecord), saveErr: make(map[string]error)}
}

func (s *memStore) ExistingListingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := s.listings[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *memStore) SaveTriage(_ context.Context, record domain.TriageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveErr[record.ID]; err != nil {
		return err
	}
	if prev, ok := s.listings[record.ID]; ok {
		record.MessageSent = prev.MessageSent
		record.Deleted = prev.Deleted
	} else {
		s.order = append(s.order, record.ID)
	}
	s.listings[record.ID] = record
	return nil
}

func (s *memStore) DispatchCandidates(_ context.Context) ([]domain.TriageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TriageRecord
	for _, id := range s.order {
		rec := s.listings[id]
		if rec.Category == domain.CategoryNormal && rec.FilterStatus == domain.StatusPassed && !rec.Deleted && !rec.MessageSent {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) MarkMessageSent(_ context.Context, id string) error {
	return s.update(id, func(r *domain.TriageRecord) { r.MessageSent = true })
}

func (s *memStore) MarkDeleted(_ context.Context, id string) error {
	return s.update(id, func(r *domain.TriageRecord) { r.Deleted = true })
}

func (s *memStore) update(id string, fn func(*domain.TriageRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.listings[id]
	if !ok {
		return errors.New("unknown listing " + id)
	}
	fn(&rec)
	s.listings[id] = rec
	return nil
}

func (s *memStore) AttemptedListingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make(map[string]bool)
	for _, a := range s.attempts {
		if wanted[a.ListingID] {
			out[a.ListingID] = true
		}
	}
	return out, nil
}

func (s *memStore) ListingIDsByStatus(_ context.Context, status domain.SendStatus) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool)
	for _, a := range s.attempts {
		if a.Status == status {
			out[a.ListingID] = true
		}
	}
	return out, nil
}

func (s *memStore) AppendAttempt(_ context.Context, record domain.SentMessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = int64(len(s.attempts) + 1)
	s.attempts = append(s.attempts, record)
	return nil
}

func (s *memStore) ActiveTemplates(_ context.Context) ([]domain.MessageTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MessageTemplate
	for _, t := range s.templates {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) Stats(_ context.Context) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Stats{Listings: len(s.listings)}, nil
}

func (s *memStore) attemptsFor(id string) []domain.SentMessageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SentMessageRecord
	for _, a := range s.attempts {
		if a.ListingID == id {
			out = append(out, a)
		}
	}
	return out
}

func (s *memStore) record(id string) (domain.TriageRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.listings[id]
	return rec, ok
}

func (s *memStore) seed(records ...domain.TriageRecord) {
	for i, rec := range records {
		if rec.Category == "" {
			rec.Category = domain.CategoryNormal
		}
		if rec.FilterStatus == "" {
			rec.FilterStatus = domain.StatusPassed
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Date(2026, 10, 1, 12, i, 0, 0, time.UTC)
		}
		_ = s.SaveTriage(context.Background(), rec)
	}
}

type fakeMessenger struct {
	mu        sync.Mutex
	authErr   error
	removed   map[string]bool
	checkErr  map[string]error
	submitErr map[string]error

	authCalls int
	submitted []string
	texts     []string
}

func (m *fakeMessenger) EnsureAuthenticated(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authCalls++
	return m.authErr
}

func (m *fakeMessenger) CheckRemoved(_ context.Context, listing domain.TriageRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkErr[listing.ID]; err != nil {
		return false, err
	}
	return m.removed[listing.ID], nil
}

func (m *fakeMessenger) SubmitMessage(_ context.Context, listing domain.TriageRecord, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.submitErr[listing.ID]; err != nil {
		return err
	}
	m.submitted = append(m.submitted, listing.ID)
	m.texts = append(m.texts, text)
	return nil
}

type fakeSource struct {
	pages        map[int][]domain.CandidateListing
	pageErr      map[int]error
	descriptions map[string]domain.ListingDetails
	descErr      map[string]error

	requestedPages []int
}

func (s *fakeSource) FetchCandidates(_ context.Context, _ domain.SearchConfig, page int) ([]domain.CandidateListing, error) {
	s.requestedPages = append(s.requestedPages, page)
	if err := s.pageErr[page]; err != nil {
		return nil, err
	}
	return s.pages[page], nil
}

func (s *fakeSource) FetchDescription(_ context.Context, listing domain.CandidateListing) (domain.ListingDetails, error) {
	if err := s.descErr[listing.ID]; err != nil {
		return domain.ListingDetails{}, err
	}
	return s.descriptions[listing.ID], nil
}

type fakeClassifier struct {
	batchReply string
	batchErr   error
	yesNoReply string
	yesNoErr   error
}

func (c *fakeClassifier) ClassifyBatch(context.Context, string) (string, error) {
	return c.batchReply, c.batchErr
}

func (c *fakeClassifier) ClassifyYesNo(context.Context, string) (string, error) {
	return c.yesNoReply, c.yesNoErr
}

type fakeNotifier struct {
	digests []string
	err     error
}

func (n *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return n.err
}

// recordingSleep captures requested delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}
