package engine

import (
	"context"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
)

// qualify polls the filter until it passes ConsecutiveFilterMatches times
// in a row. A zero interval or duration disables filtering. Running out of
// rounds fails qualification.
func (e *Engine) qualify(ctx context.Context, keys *domain.PoolKeys) bool {
	interval, duration := e.cfg.FilterCheckInterval, e.cfg.FilterCheckDuration
	if interval == 0 || duration == 0 {
		return true
	}

	required := e.cfg.ConsecutiveFilterMatches
	if required < 1 {
		required = 1
	}

	log := e.logger.With().Str("mint", keys.BaseMint.String()).Logger()
	matches := 0

	verdict, done, err := poll(ctx, interval, rounds(duration, interval), func(ctx context.Context) (bool, bool) {
		ok, err := e.filter.Evaluate(ctx, keys)
		if err != nil {
			log.Debug().Err(err).Msg("filter evaluation failed")
			ok = false
		}
		observability.RecordFilterRound(ok)

		if !ok {
			matches = 0
			return false, false
		}
		matches++
		log.Debug().Int("matches", matches).Int("required", required).Msg("filter match")
		return matches >= required, matches >= required
	})
	if err != nil {
		return false
	}
	return done && verdict
}
