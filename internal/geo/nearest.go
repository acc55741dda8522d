package geo

import (
	"github.com/rotisserie/eris"
)

// ErrEmptyInput is returned when a nearest-neighbour search is asked to pick
// from an empty candidate set.
var ErrEmptyInput = eris.New("geo: empty candidate set")

// Match is the result of a nearest-neighbour search.
type Match[T any] struct {
	Item           T
	Index          int
	DistanceMeters float64
}

// Nearest returns the candidate closest to point. at extracts each candidate's
// coordinate. Ties keep the first candidate encountered. An empty candidate set
// returns ErrEmptyInput.
func Nearest[T any](point Coordinate, candidates []T, at func(T) Coordinate) (Match[T], error) {
	var best Match[T]
	if len(candidates) == 0 {
		return best, eris.Wrap(ErrEmptyInput, "geo: nearest")
	}

	best.Index = -1
	for i, c := range candidates {
		d := DistanceMeters(point, at(c))
		if best.Index < 0 || d < best.DistanceMeters {
			best = Match[T]{Item: c, Index: i, DistanceMeters: d}
		}
	}
	return best, nil
}
