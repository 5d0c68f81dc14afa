package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/validation"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MovieRepo stores movies in `movies` and their ordered cast in
// `movie_actors`.
type MovieRepo struct{ db *sql.DB }

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

// Ping checks that the database is reachable.
func (r *MovieRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create validates m, inserts the movie and its actors in one transaction
// and sets m.ID on success.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
	if err := validation.Struct(m); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		"INSERT INTO movies (title, release_year, format) VALUES (?,?,?)",
		m.Title, m.ReleaseYear, string(m.Format))
	if err != nil {
		return fmt.Errorf("insert movie: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert movie: %w", err)
	}
	if err := insertActors(ctx, tx, uint64(id), m.Actors); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit movie: %w", err)
	}

	m.ID = uint64(id)
	if m.Actors == nil {
		m.Actors = []string{}
	}
	return nil
}

// GetByID returns the movie with its actors in stored order.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (model.Movie, error) {
	var (
		m      model.Movie
		format string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, title, release_year, format FROM movies WHERE id=? LIMIT 1",
		id).Scan(&m.ID, &m.Title, &m.ReleaseYear, &format)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Movie{}, ErrMovieNotFound
		}
		return model.Movie{}, fmt.Errorf("select movie: %w", err)
	}
	m.Format = model.Format(format)

	actors, err := loadActors(ctx, r.db, []uint64{id})
	if err != nil {
		return model.Movie{}, err
	}
	m.Actors = actors[id]
	return m, nil
}

// Update replaces every field of the movie identified by m.ID, including the
// full actor list.
func (r *MovieRepo) Update(ctx context.Context, m *model.Movie) error {
	if err := validation.Struct(m); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// MySQL reports zero affected rows for an UPDATE that changes nothing,
	// so existence is checked with a locking read instead.
	var locked uint64
	err = tx.QueryRowContext(ctx, "SELECT id FROM movies WHERE id=? FOR UPDATE", m.ID).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMovieNotFound
		}
		return fmt.Errorf("lock movie: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE movies SET title=?, release_year=?, format=? WHERE id=?",
		m.Title, m.ReleaseYear, string(m.Format), m.ID); err != nil {
		return fmt.Errorf("update movie: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM movie_actors WHERE movie_id=?", m.ID); err != nil {
		return fmt.Errorf("clear actors: %w", err)
	}
	if err := insertActors(ctx, tx, m.ID, m.Actors); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit movie: %w", err)
	}
	if m.Actors == nil {
		m.Actors = []string{}
	}
	return nil
}

// Delete removes the movie; its actor rows go with it through the
// ON DELETE CASCADE foreign key.
func (r *MovieRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM movies WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	if n == 0 {
		return ErrMovieNotFound
	}
	return nil
}

func insertActors(ctx context.Context, q querier, movieID uint64, actors []string) error {
	if len(actors) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(actors))
	args := make([]any, 0, len(actors)*3)
	for pos, name := range actors {
		placeholders = append(placeholders, "(?,?,?)")
		args = append(args, movieID, pos, name)
	}
	_, err := q.ExecContext(ctx,
		"INSERT INTO movie_actors (movie_id, position, name) VALUES "+strings.Join(placeholders, ","),
		args...)
	if err != nil {
		return fmt.Errorf("insert actors: %w", err)
	}
	return nil
}

// loadActors returns the cast of every requested movie keyed by movie id.
// Every id is present in the result, with an empty slice when the movie has
// no actors.
func loadActors(ctx context.Context, q querier, ids []uint64) (map[uint64][]string, error) {
	out := make(map[uint64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		out[id] = []string{}
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT movie_id, name FROM movie_actors WHERE movie_id IN ("+strings.Join(placeholders, ",")+
			") ORDER BY movie_id, position",
		args...)
	if err != nil {
		return nil, fmt.Errorf("select actors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   uint64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		out[id] = append(out[id], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select actors: %w", err)
	}
	return out, nil
}
