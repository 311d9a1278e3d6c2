package engine

import "errors"

var (
	// ErrInvalidConfig is wrapped by every constructor validation failure.
	ErrInvalidConfig = errors.New("invalid engine config")

	// ErrNoSeedTarget is returned when a seeding request names neither a
	// count nor ids.
	ErrNoSeedTarget = errors.New("seed request names neither count nor ids")

	// ErrInsufficientSusceptible is returned when more infections are
	// requested than there are susceptible individuals.
	ErrInsufficientSusceptible = errors.New("not enough susceptible individuals")

	// ErrNotSusceptible is returned when a seeding request names an
	// individual that is not currently susceptible.
	ErrNotSusceptible = errors.New("individual is not susceptible")
)
