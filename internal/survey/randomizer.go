package survey

import (
	"math/rand/v2"

	"github.com/pavelanni/eqarena/internal/model"
)

// Randomize decides the display order of both decisions of a question.
// Each decision gets its own fair coin flip.
func Randomize(layout model.Layout, rng *rand.Rand) model.GroundTruth {
	return model.GroundTruth{
		Choice1: orderChoice(layout.Choice1, rng.IntN(2) == 0),
		Choice2: orderChoice(layout.Choice2, rng.IntN(2) == 0),
	}
}

func orderChoice(c model.ChoiceLayout, swap bool) model.ChoiceTruth {
	order := c.Candidates
	if swap {
		order[0], order[1] = order[1], order[0]
	}
	pos := 0
	if order[1] == c.Correct {
		pos = 1
	}
	return model.ChoiceTruth{
		Order:             order,
		CorrectClipNumber: c.Correct,
		CorrectPosition:   pos,
	}
}
