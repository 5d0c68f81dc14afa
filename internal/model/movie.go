package model

// Format is the physical release format of a movie.
type Format string

const (
	FormatVHS    Format = "VHS"
	FormatDVD    Format = "DVD"
	FormatBluRay Format = "Blu-ray"
)

// Formats lists every accepted format in declaration order.
var Formats = []Format{FormatVHS, FormatDVD, FormatBluRay}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Movie represents a row in the `movies` table together with its ordered
// `movie_actors` rows.
//
// Fields:
//  ID          – primary key assigned by the store.
//  Title       – movie title, never empty.
//  ReleaseYear – release year.  Any integer, zero included; presence is
//                checked where input is decoded.
//  Format      – one of VHS, DVD, Blu-ray.
//  Actors      – actor names in insertion order.
type Movie struct {
	ID          uint64   `json:"id"`
	Title       string   `json:"title" validate:"required,max=255"`
	ReleaseYear int      `json:"year"`
	Format      Format   `json:"format" validate:"required,oneof=VHS DVD Blu-ray"`
	Actors      []string `json:"actors" validate:"dive,required,max=255"`
}
