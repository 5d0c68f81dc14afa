package handler // handler defines http handlers

import (
	"context"  // context for store calls
	"errors"   // errors.As for validation errors
	"strconv"  // strconv converts path parameters to numeric ids
	"strings"  // strings trims raw parameters

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/iliyamo/movie-catalog/internal/middleware" // context keys set by JWTAuth
	"github.com/iliyamo/movie-catalog/internal/model"      // movie record
	"github.com/iliyamo/movie-catalog/internal/repository" // search query value
	"github.com/iliyamo/movie-catalog/internal/validation" // ValidationError kind
)

// MovieStore is the record store behind the movie endpoints.
// *repository.MovieRepo satisfies it.
type MovieStore interface {
	Create(ctx context.Context, m *model.Movie) error
	GetByID(ctx context.Context, id uint64) (model.Movie, error)
	Update(ctx context.Context, m *model.Movie) error
	Delete(ctx context.Context, id uint64) error
	Search(ctx context.Context, q repository.MovieSearchQuery) ([]model.Movie, error)
	Ping(ctx context.Context) error
}

// fail writes the JSON error envelope {"message": ..., "error": ...}.  The
// error detail is omitted when err is nil; validation errors also list the
// offending fields.
func fail(c echo.Context, status int, message string, err error) error {
	body := echo.Map{"message": message}
	if err != nil {
		body["error"] = err.Error()
		var ve *validation.ValidationError
		if errors.As(err, &ve) && len(ve.Fields) > 0 {
			body["fields"] = ve.Fields
		}
	}
	return c.JSON(status, body)
}

// parseID reads the :id path parameter as a positive integer.
func parseID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		return 0, validation.Errorf("id must be a positive integer")
	}
	return id, nil
}

// getUserID extracts the authenticated user id placed in the context by
// JWTAuth.  Zero means the request is anonymous.
func getUserID(c echo.Context) uint64 {
	id, _ := c.Get(middleware.ContextUserID).(uint64)
	return id
}

// requestID returns the id assigned by the RequestID middleware.
func requestID(c echo.Context) string {
	id, _ := c.Get(middleware.ContextRequestID).(string)
	return id
}
