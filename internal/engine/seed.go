package engine

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/population"
)

// SeedRequest selects individuals for exogenous infection: either a number
// drawn at random from the susceptible set, or an explicit id list. Build
// one with ByCount or ByIDs; the zero value is rejected with ErrNoSeedTarget.
type SeedRequest struct {
	mode  seedMode
	count int
	ids   []agents.ID
}

type seedMode uint8

const (
	seedNone seedMode = iota
	seedCount
	seedIDs
)

// ByCount requests n infections among the currently susceptible.
func ByCount(n int) SeedRequest {
	return SeedRequest{mode: seedCount, count: n}
}

// ByIDs requests infection of exactly the given individuals.
func ByIDs(ids ...agents.ID) SeedRequest {
	return SeedRequest{mode: seedIDs, ids: ids}
}

func (r SeedRequest) String() string {
	switch r.mode {
	case seedCount:
		return fmt.Sprintf("count=%d", r.count)
	case seedIDs:
		return fmt.Sprintf("ids=%v", r.ids)
	}
	return "none"
}

// seedInfections applies req to pop. Candidates are the ids eligible for
// infection (susceptible and, where liveness applies, alive). A rejected
// request leaves pop untouched, logs a warning and returns the reason.
func seedInfections(model string, pop *population.Population, candidates []agents.ID, req SeedRequest, rng *rand.Rand) error {
	var chosen []agents.ID
	switch req.mode {
	case seedCount:
		if req.count < 0 || req.count > len(candidates) {
			slog.Warn("exogenous infection rejected", "model", model,
				"requested", req.count, "susceptible", len(candidates))
			return fmt.Errorf("%w: requested %d, have %d", ErrInsufficientSusceptible, req.count, len(candidates))
		}
		chosen = sample(rng, candidates, req.count)
	case seedIDs:
		eligible := make(map[agents.ID]bool, len(candidates))
		for _, id := range candidates {
			eligible[id] = true
		}
		for _, id := range req.ids {
			if !eligible[id] {
				slog.Warn("exogenous infection rejected", "model", model, "id", int(id))
				return fmt.Errorf("%w: id %d", ErrNotSusceptible, id)
			}
		}
		chosen = req.ids
	default:
		slog.Warn("exogenous infection rejected", "model", model, "reason", "no count or ids")
		return ErrNoSeedTarget
	}

	for _, id := range chosen {
		pop.At(id).Infect()
	}
	pop.Reindex()
	if len(chosen) > 0 {
		slog.Debug("exogenous infection", "model", model, "infected", len(chosen))
	}
	return nil
}
