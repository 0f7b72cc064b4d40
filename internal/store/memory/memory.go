// Package memory is an in-process core.Store for tests and dry runs.
//
// It honors the same contracts as the database backends: natural-key
// uniqueness, full-replace posting upserts, and join semantics that drop
// postings whose organization reference does not resolve.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

// Store keeps organizations and postings in maps guarded by a mutex.
type Store struct {
	mu       sync.RWMutex
	orgs     map[string]core.Organization // by organization key
	refs     map[core.OrganizationRef]string
	postings map[string]core.Posting // by posting key
	closed   bool
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		orgs:     make(map[string]core.Organization),
		refs:     make(map[core.OrganizationRef]string),
		postings: make(map[string]core.Posting),
	}
}

func (s *Store) checkOpen() error {
	if s.closed {
		return core.Unavailable("memory store is closed", nil)
	}
	return nil
}

func (s *Store) UpsertOrganization(ctx context.Context, org core.Organization) (core.OrganizationRef, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return "", false, err
	}

	existing, ok := s.orgs[org.Key]
	if ok {
		org.Ref = existing.Ref
	} else {
		org.Ref = core.OrganizationRef(uuid.NewString())
		s.refs[org.Ref] = org.Key
	}
	org.Industry = cloneString(org.Industry)
	s.orgs[org.Key] = org
	return org.Ref, !ok, nil
}

func (s *Store) UpsertPosting(ctx context.Context, p core.Posting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.postings[p.Key] = clonePosting(p)
	return nil
}

func (s *Store) FindPostings(ctx context.Context, pred core.Predicate, page core.Page) ([]core.Posting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.postings))
	for k := range s.postings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var matched []core.Posting
	for _, k := range keys {
		if p := s.postings[k]; pred.Match(p) {
			matched = append(matched, clonePosting(p))
		}
	}

	if page.IsZero() {
		return matched, nil
	}
	start := min(page.Offset(), len(matched))
	end := min(start+page.Limit, len(matched))
	return matched[start:end], nil
}

func (s *Store) Aggregate(ctx context.Context, spec core.ReportSpec) ([]core.ReportRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	byOrg := make(map[core.OrganizationRef]int64)
	var nullCount int64

	for _, p := range s.postings {
		switch {
		case spec.JoinOrganization:
			if p.Organization == nil {
				continue
			}
			if _, ok := s.refs[*p.Organization]; !ok {
				continue
			}
			byOrg[*p.Organization]++

		case spec.Unwind:
			for _, v := range p.FieldValues(spec.Field) {
				counts[v]++
			}

		default:
			v, ok := p.FieldValue(spec.Field)
			if !ok {
				nullCount++
				continue
			}
			counts[v]++
		}
	}

	rows := make([]core.ReportRow, 0, len(counts)+len(byOrg)+1)
	for k, n := range counts {
		rows = append(rows, core.ReportRow{Key: &k, Count: n})
	}
	// Organizations group by reference, so two organizations sharing a
	// name stay separate rows.
	for ref, n := range byOrg {
		name := s.orgs[s.refs[ref]].Name
		rows = append(rows, core.ReportRow{Key: &name, Count: n})
	}
	if nullCount > 0 {
		rows = append(rows, core.ReportRow{Count: nullCount})
	}
	return rows, nil
}

// EnsureSchema is a no-op.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkOpen()
}

// Close makes every later call fail with core.ErrStoreUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Organization returns the stored organization with key.
func (s *Store) Organization(key string) (core.Organization, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[key]
	return org, ok
}

// Posting returns the stored posting with key.
func (s *Store) Posting(key string) (core.Posting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.postings[key]
	return clonePosting(p), ok
}

// Counts returns the number of organizations and postings.
func (s *Store) Counts() (organizations, postings int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orgs), len(s.postings)
}

// DeleteOrganization removes an organization but leaves postings that
// reference it, which is how a dangling reference looks to the reports.
func (s *Store) DeleteOrganization(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org, ok := s.orgs[key]; ok {
		delete(s.refs, org.Ref)
		delete(s.orgs, key)
	}
}

func clonePosting(p core.Posting) core.Posting {
	p.Industry = cloneString(p.Industry)
	p.SalaryType = cloneString(p.SalaryType)
	p.DegreeMin = cloneString(p.DegreeMin)
	p.Certification = cloneString(p.Certification)
	if p.ClosingDate != nil {
		t := *p.ClosingDate
		p.ClosingDate = &t
	}
	if p.Organization != nil {
		ref := *p.Organization
		p.Organization = &ref
	}
	p.Skills = slices.Clone(p.Skills)
	p.SkillWeights = slices.Clone(p.SkillWeights)
	p.SoftSkills = slices.Clone(p.SoftSkills)
	p.SoftSkillWeights = slices.Clone(p.SoftSkillWeights)
	p.Qualifications = slices.Clone(p.Qualifications)
	p.DegreeLevels = slices.Clone(p.DegreeLevels)
	return p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
