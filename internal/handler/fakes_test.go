package handler

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
	"github.com/iliyamo/movie-catalog/internal/utils"
	"github.com/iliyamo/movie-catalog/internal/validation"
)

// memMovies is an in-memory MovieStore. Search mirrors the SQL repository:
// case-insensitive title and actor filters, the sort key with id as the
// tie-breaker, then the limit/offset window.
type memMovies struct {
	mu      sync.Mutex
	nextID  uint64
	rows    map[uint64]model.Movie
	pingErr error
	lastQ   repository.MovieSearchQuery
}

func newMemMovies() *memMovies {
	return &memMovies{rows: map[uint64]model.Movie{}}
}

func (s *memMovies) Create(_ context.Context, m *model.Movie) error {
	if err := validation.Struct(m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	if m.Actors == nil {
		m.Actors = []string{}
	}
	s.rows[m.ID] = cloneMovie(*m)
	return nil
}

func (s *memMovies) GetByID(_ context.Context, id uint64) (model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return model.Movie{}, repository.ErrMovieNotFound
	}
	return cloneMovie(m), nil
}

func (s *memMovies) Update(_ context.Context, m *model.Movie) error {
	if err := validation.Struct(m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[m.ID]; !ok {
		return repository.ErrMovieNotFound
	}
	s.rows[m.ID] = cloneMovie(*m)
	return nil
}

func (s *memMovies) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return repository.ErrMovieNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *memMovies) Search(_ context.Context, q repository.MovieSearchQuery) ([]model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQ = q
	out := []model.Movie{}
	for _, m := range s.rows {
		if q.Title != "" && !containsFold(m.Title, q.Title) {
			continue
		}
		if q.Actor != "" && !slices.ContainsFunc(m.Actors, func(a string) bool { return containsFold(a, q.Actor) }) {
			continue
		}
		out = append(out, cloneMovie(m))
	}
	desc := strings.EqualFold(q.Order, "DESC")
	sort.Slice(out, func(i, j int) bool {
		c := compareBy(q.Sort, out[i], out[j])
		if c == 0 {
			return out[i].ID < out[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	if q.Offset >= len(out) {
		return []model.Movie{}, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memMovies) Ping(context.Context) error { return s.pingErr }

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func compareBy(key string, a, b model.Movie) int {
	switch key {
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "year", "releaseYear":
		return cmp.Compare(a.ReleaseYear, b.ReleaseYear)
	case "format":
		return strings.Compare(string(a.Format), string(b.Format))
	default:
		return cmp.Compare(a.ID, b.ID)
	}
}

func (s *memMovies) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func cloneMovie(m model.Movie) model.Movie {
	m.Actors = append([]string{}, m.Actors...)
	return m
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.CatalogEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.CatalogEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// memUsers is an in-memory UserStore.
type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
	err    error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uint64]model.User{}}
}

func (s *memUsers) Create(_ context.Context, email, name, password string, cost int) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	s.nextID++
	s.byID[s.nextID] = model.User{ID: s.nextID, Email: email, Name: name, PasswordHash: hash}
	return s.nextID, nil
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	if s.err != nil {
		return model.User{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (s *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	if s.err != nil {
		return model.User{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

// memTokens is an in-memory TokenStore keyed by token hash.
type memTokens struct {
	mu      sync.Mutex
	tokens  map[string]*tokenRow
	revoked []uint64
}

type tokenRow struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: map[string]*tokenRow{}}
}

func (s *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[hash] = &tokenRow{userID: userID, exp: exp}
	return nil
}

func (s *memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[hash]
	if !ok || row.revoked || time.Now().After(row.exp) {
		return 0, repository.ErrInvalidRefresh
	}
	return row.userID, nil
}

func (s *memTokens) RevokeByHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[hash]
	if !ok || row.revoked {
		return repository.ErrInvalidRefresh
	}
	row.revoked = true
	return nil
}

func (s *memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.tokens {
		if row.userID == userID {
			row.revoked = true
		}
	}
	s.revoked = append(s.revoked, userID)
	return nil
}

func (s *memTokens) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.tokens {
		if !row.revoked {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")
