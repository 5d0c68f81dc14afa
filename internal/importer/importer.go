package importer

import (
	"context"

	"github.com/iliyamo/movie-catalog/internal/logging"
	"github.com/iliyamo/movie-catalog/internal/metrics"
	"github.com/iliyamo/movie-catalog/internal/model"
)

// MovieCreator is the slice of the record store the importer needs.
type MovieCreator interface {
	Create(ctx context.Context, m *model.Movie) error
}

// Failure records why a section was not imported. Section is the zero-based
// position of the block in the file.
type Failure struct {
	Section int    `json:"section"`
	Reason  string `json:"reason"`
}

// Result aggregates one import run. Movies holds the created records in
// input order.
type Result struct {
	Imported int
	Total    int
	Movies   []model.Movie
	Failures []Failure
}

// Importer stores parsed sections one by one. A failed section never stops
// the run and already created movies are kept.
type Importer struct {
	store MovieCreator
}

func New(store MovieCreator) *Importer {
	if store == nil {
		panic("nil store passed to importer.New")
	}
	return &Importer{store: store}
}

// Run creates a movie for every section, sequentially and in order. It only
// returns an error when ctx is cancelled; the result then covers the
// sections processed so far.
func (i *Importer) Run(ctx context.Context, sections []Section) (Result, error) {
	res := Result{Movies: make([]model.Movie, 0, len(sections))}
	log := logging.Ctx(ctx)

	for idx, sec := range sections {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Total++

		m, err := sec.Movie()
		if err == nil {
			err = i.store.Create(ctx, &m)
		}
		if err != nil {
			res.Failures = append(res.Failures, Failure{Section: idx, Reason: err.Error()})
			metrics.ImportSections.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Int("section", idx).Str("title", sec.Title).Msg("import section rejected")
			continue
		}
		res.Imported++
		res.Movies = append(res.Movies, m)
		metrics.ImportSections.WithLabelValues("imported").Inc()
	}

	log.Info().Int("imported", res.Imported).Int("total", res.Total).Msg("movie import finished")
	return res, nil
}

// Import parses content and runs it in one call.
func (i *Importer) Import(ctx context.Context, content string) (Result, error) {
	return i.Run(ctx, Parse(content))
}
