// Package queue defines the catalog event payloads exchanged over RabbitMQ
// and the background consumer that writes them to the audit log.
package queue

import "time"

// Catalog event types.
const (
	EventMovieCreated   = "movie.created"
	EventMovieUpdated   = "movie.updated"
	EventMovieDeleted   = "movie.deleted"
	EventMoviesImported = "movies.imported"
)

// CatalogEvent is published after a successful change to the catalog.  It
// carries enough context for downstream consumers to log or notify without
// querying the primary database.  Imported and Total are only set for
// movies.imported; MovieID and Title only for single-movie events.
type CatalogEvent struct {
	Type       string    `json:"type"`
	UserID     uint64    `json:"user_id"`
	MovieID    uint64    `json:"movie_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Imported   int       `json:"imported,omitempty"`
	Total      int       `json:"total,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
