// Package importer turns the plain-text movie export format into movie
// records and stores them one section at a time.
//
// The format is a sequence of sections separated by a blank line. Each
// section holds "Key: Value" lines:
//
//	Title: Blazing Saddles
//	Release Year: 1974
//	Format: VHS
//	Stars: Mel Brooks, Clevon Little, Harvey Korman
package importer

import (
	"strconv"
	"strings"

	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/validation"
)

const (
	sectionSep = "\n\n"
	keySep     = ": "
	actorSep   = ", "
)

// Section is one blank-line-delimited block of an import file before it is
// validated. Year is nil when the Release Year line is missing or is not a
// base-10 integer in full ("1999abc" is rejected, not truncated).
type Section struct {
	Title  string
	Year   *int
	Format string
	Actors []string
}

// Movie converts the section into a movie record. A section without a
// usable year is rejected here; every other rule is left to the store.
func (s Section) Movie() (model.Movie, error) {
	if s.Year == nil {
		return model.Movie{}, validation.Field("year", "integer", "year must be an integer")
	}
	m := model.Movie{
		Title:  s.Title,
		Format: model.Format(s.Format),
		Actors: s.Actors,
	}
	m.ReleaseYear = *s.Year
	if m.Actors == nil {
		m.Actors = []string{}
	}
	return m, nil
}

// Parse splits content into sections. Every block between separators yields
// a Section, including empty leading or trailing blocks, so the number of
// sections always equals the number of blocks in the file.
func Parse(content string) []Section {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(content, sectionSep)
	out := make([]Section, 0, len(blocks))
	for _, block := range blocks {
		out = append(out, parseSection(block))
	}
	return out
}

func parseSection(block string) Section {
	var s Section
	for _, line := range strings.Split(block, "\n") {
		key, value, ok := strings.Cut(line, keySep)
		if !ok {
			continue
		}
		switch key {
		case "Title":
			s.Title = value
		case "Release Year":
			s.Year = parseYear(value)
		case "Format":
			s.Format = value
		case "Stars":
			s.Actors = splitActors(value)
		}
	}
	return s
}

func parseYear(value string) *int {
	y, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return &y
}

func splitActors(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, actorSep)
}
