package queue

import (
	"math/rand/v2"

	"github.com/samber/lo"
)

// SelectRender picks one render uniformly at random among those that
// still have coordinates to hand out, or nil when none do. Random
// selection approximates fair share across users without keeping any
// per-user state; fairness is statistical, not deterministic.
func SelectRender(renders []*Render) *Render {
	active := lo.Filter(renders, func(r *Render, _ int) bool {
		return !r.IsQueueDrained()
	})

	if len(active) == 0 {
		return nil
	}

	return active[rand.IntN(len(active))]
}
