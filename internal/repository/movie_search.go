package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/validation"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// sortColumns maps the sort keys accepted from clients to columns. Nothing
// outside this map ever reaches the ORDER BY clause.
var sortColumns = map[string]string{
	"id":          "m.id",
	"title":       "m.title",
	"year":        "m.release_year",
	"releaseYear": "m.release_year",
	"format":      "m.format",
}

// likeEscaper escapes MySQL LIKE wildcards using the default escape
// character (backslash).
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// MovieSearchQuery defines filters, ordering and the pagination window for
// listing movies. Build it with NewMovieSearchQuery; Search treats it as a
// read-only value.
type MovieSearchQuery struct {
	Title  string // substring of movies.title
	Actor  string // substring of any actor name
	Sort   string // key of sortColumns
	Order  string // ASC or DESC
	Limit  int
	Offset int
}

// NewMovieSearchQuery parses raw query parameters. Empty parameters take
// their defaults (sort id, order ASC, limit 20, offset 0); anything present
// but invalid yields a *validation.ValidationError.
func NewMovieSearchQuery(title, actor, sort, order, limit, offset string) (MovieSearchQuery, error) {
	q := MovieSearchQuery{
		Title:  title,
		Actor:  actor,
		Sort:   "id",
		Order:  "ASC",
		Limit:  DefaultSearchLimit,
		Offset: 0,
	}

	if sort = strings.TrimSpace(sort); sort != "" {
		if _, ok := sortColumns[sort]; !ok {
			return MovieSearchQuery{}, validation.Errorf("sort must be one of: id, title, year, format")
		}
		q.Sort = sort
	}

	if order = strings.ToUpper(strings.TrimSpace(order)); order != "" {
		if order != "ASC" && order != "DESC" {
			return MovieSearchQuery{}, validation.Errorf("order must be ASC or DESC")
		}
		q.Order = order
	}

	if limit = strings.TrimSpace(limit); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > MaxSearchLimit {
			return MovieSearchQuery{}, validation.Errorf("limit must be an integer between 1 and %d", MaxSearchLimit)
		}
		q.Limit = n
	}

	if offset = strings.TrimSpace(offset); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return MovieSearchQuery{}, validation.Errorf("offset must be a non-negative integer")
		}
		q.Offset = n
	}

	return q, nil
}

// orderClause renders the ORDER BY list. A non-id sort key gets id as a
// tie-breaker so consecutive pages never overlap.
func (q MovieSearchQuery) orderClause() (string, error) {
	col, ok := sortColumns[q.Sort]
	if !ok {
		return "", validation.Errorf("sort must be one of: id, title, year, format")
	}
	dir := "ASC"
	if strings.EqualFold(q.Order, "DESC") {
		dir = "DESC"
	}
	clause := col + " " + dir
	if col != "m.id" {
		clause += ", m.id ASC"
	}
	return clause, nil
}

// Search returns one page of movies matching q with their actors loaded.
// An empty page is not an error here; callers decide how to report it.
func (r *MovieRepo) Search(ctx context.Context, q MovieSearchQuery) ([]model.Movie, error) {
	orderBy, err := q.orderClause()
	if err != nil {
		return nil, err
	}

	where := []string{}
	args := []any{}
	if q.Title != "" {
		where = append(where, "m.title LIKE ?")
		args = append(args, "%"+likeEscaper.Replace(q.Title)+"%")
	}
	if q.Actor != "" {
		where = append(where, "EXISTS (SELECT 1 FROM movie_actors a WHERE a.movie_id = m.id AND a.name LIKE ?)")
		args = append(args, "%"+likeEscaper.Replace(q.Actor)+"%")
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	dataSQL := `SELECT m.id, m.title, m.release_year, m.format
		FROM movies m
		WHERE ` + cond + `
		ORDER BY ` + orderBy + `
		LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	defer rows.Close()

	out := make([]model.Movie, 0, q.Limit)
	for rows.Next() {
		var (
			m      model.Movie
			format string
		)
		if err := rows.Scan(&m.ID, &m.Title, &m.ReleaseYear, &format); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		m.Format = model.Format(format)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]uint64, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	actors, err := loadActors(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Actors = actors[out[i].ID]
	}
	return out, nil
}
