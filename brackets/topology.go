package brackets

import "github.com/Dosada05/knockout-cup/models"

// DestinationOf returns the slot the winner of tag moves into and whether it
// takes the home position there. ok is false for FINAL and invalid tags.
func DestinationOf(tag models.RoundTag) (next models.RoundTag, isHome bool, ok bool) {
	if !tag.Valid() {
		return models.RoundTag{}, false, false
	}
	nextRound, ok := tag.Round.Next()
	if !ok {
		return models.RoundTag{}, false, false
	}
	next = models.RoundTag{Round: nextRound, Index: (tag.Index + 1) / 2}
	return next, tag.Index%2 == 1, true
}

// PositionOf is DestinationOf with the parity expressed as a slot position.
func PositionOf(tag models.RoundTag) (models.RoundTag, models.SlotPosition, bool) {
	next, isHome, ok := DestinationOf(tag)
	if !ok {
		return models.RoundTag{}, "", false
	}
	if isHome {
		return next, models.PositionHome, true
	}
	return next, models.PositionAway, true
}

// FeedersOf returns the home and away feeder slots of a QF, SF or FINAL tag.
func FeedersOf(tag models.RoundTag) (home, away models.RoundTag, ok bool) {
	if !tag.Valid() || tag.Round == models.RoundOf16 {
		return models.RoundTag{}, models.RoundTag{}, false
	}
	prev := models.Rounds[tag.Round.Number()-2]
	home = models.RoundTag{Round: prev, Index: tag.Index*2 - 1}
	away = models.RoundTag{Round: prev, Index: tag.Index * 2}
	return home, away, true
}

// RemainingRounds counts how many advancements separate tag from the FINAL.
func RemainingRounds(tag models.RoundTag) int {
	if !tag.Valid() {
		return 0
	}
	return len(models.Rounds) - tag.Round.Number()
}
