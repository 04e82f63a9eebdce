package survey

import (
	"testing"
	"time"

	"github.com/pavelanni/eqarena/internal/model"
)

func TestRandomizeInvariants(t *testing.T) {
	layout := model.DefaultLayout()
	rng := NewSeededRand(time.Unix(42, 0))

	swapped := map[model.ChoiceSlot]int{}
	const runs = 200
	for range runs {
		gt := Randomize(layout, rng)
		for _, slot := range []model.ChoiceSlot{model.Choice1, model.Choice2} {
			ct := gt.Choice(slot)
			cl := layout.Choice(slot)

			if !(ct.Order == cl.Candidates || ct.Order == [2]int{cl.Candidates[1], cl.Candidates[0]}) {
				t.Fatalf("choice %d order %v is not a permutation of %v", slot, ct.Order, cl.Candidates)
			}
			if ct.CorrectClipNumber != cl.Correct {
				t.Fatalf("choice %d correct = %d, want %d", slot, ct.CorrectClipNumber, cl.Correct)
			}
			if ct.Order[ct.CorrectPosition] != ct.CorrectClipNumber {
				t.Fatalf("choice %d correct position %d does not hold clip %d in %v",
					slot, ct.CorrectPosition, ct.CorrectClipNumber, ct.Order)
			}
			if ct.Order != cl.Candidates {
				swapped[slot]++
			}
		}
	}

	for slot, n := range swapped {
		if n == 0 || n == runs {
			t.Errorf("choice %d was swapped %d of %d times", slot, n, runs)
		}
	}
}
