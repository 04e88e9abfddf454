package scoring

import (
	"sort"

	"github.com/skylith/reoffer/internal/models"
)

// Score rates one rebooking option. Nonstop routings, matching cabin, and a
// feasible connection each add a fixed weight; arrival delay erodes the
// remainder minute by minute up to 20 minutes.
func Score(opt models.Option) int {
	score := 0
	if opt.Stops == 0 {
		score += 50
	}
	if opt.SameCabin {
		score += 20
	}
	if opt.MCTOk {
		score += 20
	}
	diff := opt.ArrivalDiffMin
	if diff > 20 {
		diff = 20
	}
	if diff < 0 {
		diff = 0
	}
	score += 20 - diff
	return score
}

// Rank scores every option and returns them ordered best first. Options
// with equal scores keep their input order.
func Rank(opts []models.Option) []models.Option {
	ranked := make([]models.Option, len(opts))
	copy(ranked, opts)
	for i := range ranked {
		ranked[i].Score = Score(ranked[i])
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	return ranked
}
