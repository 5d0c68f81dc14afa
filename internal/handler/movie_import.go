package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-catalog/internal/importer"
	"github.com/iliyamo/movie-catalog/internal/logging"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/validation"
)

// importMeta is the "meta" object of the import response.
type importMeta struct {
	Imported int                `json:"imported"`
	Total    int                `json:"total"`
	Failures []importer.Failure `json:"failures,omitempty"`
}

// ImportMovies handles POST /api/v1/movies/import.  The multipart field
// "file" is spooled to a temp file, read back and fed to the importer.  The
// temp file is removed when the request finishes.
func (h *MovieHandler) ImportMovies(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "File not found", nil)
	}
	if h.Import.MaxBytes > 0 && fh.Size > h.Import.MaxBytes {
		return fail(c, http.StatusBadRequest, "File too large",
			validation.Errorf("file must be at most %d bytes", h.Import.MaxBytes))
	}

	ctx := c.Request().Context()
	log := logging.Ctx(ctx)

	path, err := h.spool(fh.Open)
	if path != "" {
		defer func() {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warn().Err(rmErr).Str("path", path).Msg("remove import upload")
			}
		}()
	}
	if err != nil {
		log.Error().Err(err).Msg("spool import upload")
		return fail(c, http.StatusInternalServerError, "Error while importing movies", nil)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("read import upload")
		return fail(c, http.StatusInternalServerError, "Error while importing movies", nil)
	}

	// a dead store would otherwise turn every section into a failure
	if err := h.Movies.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("store unavailable before import")
		return fail(c, http.StatusInternalServerError, "Error while importing movies", nil)
	}

	res, err := h.Importer.Import(ctx, string(content))
	if err != nil {
		log.Warn().Err(err).Int("processed", res.Total).Msg("import interrupted")
		return fail(c, http.StatusInternalServerError, "Error while importing movies", nil)
	}

	h.publish(c, queue.CatalogEvent{Type: queue.EventMoviesImported, Imported: res.Imported, Total: res.Total})

	meta := importMeta{Imported: res.Imported, Total: res.Total}
	if h.Import.ReportFailures {
		meta.Failures = res.Failures
	}
	return c.JSON(http.StatusOK, echo.Map{"data": res.Movies, "meta": meta, "status": 1})
}

// spool copies the upload into a temp file under the configured upload
// directory and returns its path.  The path is returned whenever the file
// was created, even on a copy error, so the caller can clean it up.
func (h *MovieHandler) spool(open func() (multipart.File, error)) (string, error) {
	src, err := open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dir := h.Import.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := os.CreateTemp(dir, "movies-import-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := dst.Name()
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return path, fmt.Errorf("copy upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return path, fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}
