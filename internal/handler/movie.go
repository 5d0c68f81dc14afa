package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/importer"
	"github.com/iliyamo/movie-catalog/internal/logging"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
	"github.com/iliyamo/movie-catalog/internal/service"
	"github.com/iliyamo/movie-catalog/internal/validation"
)

// MovieHandler serves the /api/v1/movies endpoints.
type MovieHandler struct {
	Movies   MovieStore
	Importer *importer.Importer
	Events   service.EventPublisher
	Import   config.ImportConfig
}

func NewMovieHandler(movies MovieStore, events service.EventPublisher, importCfg config.ImportConfig) *MovieHandler {
	if movies == nil {
		panic("nil movie store passed to NewMovieHandler")
	}
	if events == nil {
		events = service.NopPublisher{}
	}
	return &MovieHandler{
		Movies:   movies,
		Importer: importer.New(movies),
		Events:   events,
		Import:   importCfg,
	}
}

// movieReq is the body of POST /movies. Only the year's presence is checked
// here, since its zero value is a legal year; every other rule is the
// store's.
type movieReq struct {
	Title  string   `json:"title"`
	Year   *int     `json:"year" validate:"required"`
	Format string   `json:"format"`
	Actors []string `json:"actors"`
}

func (r movieReq) movie() model.Movie {
	m := model.Movie{Title: r.Title, Format: model.Format(r.Format), Actors: r.Actors}
	if r.Year != nil {
		m.ReleaseYear = *r.Year
	}
	if m.Actors == nil {
		m.Actors = []string{}
	}
	return m
}

// moviePatch is the body of PATCH /movies/:id. Only fields present in the
// body are changed.
type moviePatch struct {
	Title  *string   `json:"title"`
	Year   *int      `json:"year"`
	Format *string   `json:"format"`
	Actors *[]string `json:"actors"`
}

func (p moviePatch) apply(m *model.Movie) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Year != nil {
		m.ReleaseYear = *p.Year
	}
	if p.Format != nil {
		m.Format = model.Format(*p.Format)
	}
	if p.Actors != nil {
		m.Actors = *p.Actors
		if m.Actors == nil {
			m.Actors = []string{}
		}
	}
}

// AddMovie handles POST /api/v1/movies.
func (h *MovieHandler) AddMovie(c echo.Context) error {
	var req movieReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Error while adding movie", err)
	}
	if err := validation.Struct(req); err != nil {
		return fail(c, http.StatusBadRequest, "Error while adding movie", err)
	}
	m := req.movie()
	if err := h.Movies.Create(c.Request().Context(), &m); err != nil {
		if !validation.IsValidationError(err) {
			logging.Ctx(c.Request().Context()).Error().Err(err).Msg("create movie")
		}
		return fail(c, http.StatusBadRequest, "Error while adding movie", err)
	}
	h.publish(c, queue.CatalogEvent{Type: queue.EventMovieCreated, MovieID: m.ID, Title: m.Title})
	return c.JSON(http.StatusCreated, echo.Map{"data": m, "status": 1})
}

// DeleteMovie handles DELETE /api/v1/movies/:id.
func (h *MovieHandler) DeleteMovie(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Error while deleting movie", err)
	}
	if err := h.Movies.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return fail(c, http.StatusNotFound, "Movie not found", nil)
		}
		logging.Ctx(c.Request().Context()).Error().Err(err).Uint64("movie_id", id).Msg("delete movie")
		return fail(c, http.StatusBadRequest, "Error while deleting movie", err)
	}
	h.publish(c, queue.CatalogEvent{Type: queue.EventMovieDeleted, MovieID: id})
	return c.JSON(http.StatusOK, echo.Map{"status": 1})
}

// UpdateMovie handles PATCH /api/v1/movies/:id. The patched record is
// validated as a whole before it is stored.
func (h *MovieHandler) UpdateMovie(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Error while updating movie", err)
	}
	ctx := c.Request().Context()

	m, err := h.Movies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return fail(c, http.StatusNotFound, "Movie not found", nil)
		}
		return fail(c, http.StatusBadRequest, "Error while updating movie", err)
	}

	var patch moviePatch
	if err := c.Bind(&patch); err != nil {
		return fail(c, http.StatusBadRequest, "Error while updating movie", err)
	}
	patch.apply(&m)
	m.ID = id

	if err := h.Movies.Update(ctx, &m); err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return fail(c, http.StatusNotFound, "Movie not found", nil)
		}
		return fail(c, http.StatusBadRequest, "Error while updating movie", err)
	}
	h.publish(c, queue.CatalogEvent{Type: queue.EventMovieUpdated, MovieID: m.ID, Title: m.Title})
	return c.JSON(http.StatusOK, echo.Map{"data": m, "status": 1})
}

// GetMovie handles GET /api/v1/movies/:id.
func (h *MovieHandler) GetMovie(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Error while getting movie", err)
	}
	m, err := h.Movies.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return fail(c, http.StatusNotFound, "Movie not found", nil)
		}
		return fail(c, http.StatusBadRequest, "Error while getting movie", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": m, "status": 1})
}

// ListMovies handles GET /api/v1/movies?title=&actor=&sort=&order=&limit=&offset=.
// The body is a bare array of movies; an empty page is reported as 404.
func (h *MovieHandler) ListMovies(c echo.Context) error {
	q, err := repository.NewMovieSearchQuery(
		strings.TrimSpace(c.QueryParam("title")),
		strings.TrimSpace(c.QueryParam("actor")),
		c.QueryParam("sort"),
		c.QueryParam("order"),
		c.QueryParam("limit"),
		c.QueryParam("offset"),
	)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid query parameters", err)
	}

	movies, err := h.Movies.Search(c.Request().Context(), q)
	if err != nil {
		logging.Ctx(c.Request().Context()).Error().Err(err).Msg("search movies")
		return fail(c, http.StatusBadRequest, "Error while getting movies", err)
	}
	if len(movies) == 0 {
		return fail(c, http.StatusNotFound, "Movies not found", nil)
	}
	return c.JSON(http.StatusOK, movies)
}

// publish sends a catalog event on behalf of the current request. Failures
// are logged by the publisher and never affect the response.
func (h *MovieHandler) publish(c echo.Context, ev queue.CatalogEvent) {
	ev.UserID = getUserID(c)
	ev.RequestID = requestID(c)
	ev.OccurredAt = time.Now().UTC()
	_ = h.Events.Publish(c.Request().Context(), ev)
}
