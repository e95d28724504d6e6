// knockout-cup/brackets/single_elimination.go
package brackets

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Dosada05/knockout-cup/models"
)

// DateCount is the number of match days a 16-team cup is played over.
const DateCount = 5

var (
	ErrWrongParticipantCount = errors.New("bracket requires exactly 16 participants")
	ErrWrongDateCount        = errors.New("bracket requires exactly 5 match dates")
	ErrInvalidParticipant    = errors.New("participant identifier is blank or duplicated")
	ErrInvalidDates          = errors.New("match dates must be set and in chronological order")
)

// DefaultVenues is used when no venue list is configured.
var DefaultVenues = []string{"Central Stadium", "Riverside Park", "North Arena", "Harbour Ground"}

type SingleEliminationGenerator struct {
	venues []string
}

func NewSingleEliminationGenerator(venues []string) BracketGenerator {
	if len(venues) == 0 {
		venues = DefaultVenues
	}
	v := make([]string, len(venues))
	copy(v, venues)
	return &SingleEliminationGenerator{venues: v}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination16"
}

// GenerateBracket draws the 16 participants into R16 and lays out empty
// QF, SF and FINAL slots. The returned slots are in topology order.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*models.MatchSlot, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	drawn := make([]string, len(params.Participants))
	copy(drawn, params.Participants)
	shuffle(drawn, params.Seed)

	slots := make([]*models.MatchSlot, 0, models.SlotCount)
	// Kickoff order is counted per calendar day, so rounds sharing a date
	// do not share kickoff times.
	dayOrder := make(map[string]int, DateCount)

	for _, tag := range models.AllRoundTags() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		day := params.Dates[matchDay(tag)]
		key := day.Format(time.DateOnly)
		slot := &models.MatchSlot{
			TournamentID: params.TournamentID,
			Tag:          tag,
			Date:         KickoffTime(day, tag, dayOrder[key]),
			Location:     g.venues[tag.Order()%len(g.venues)],
		}
		dayOrder[key]++

		if tag.Round == models.RoundOf16 {
			k := int(tag.Index) - 1
			home, away := drawn[2*k], drawn[2*k+1]
			slot.HomeTeam = &home
			slot.AwayTeam = &away
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

func validateParams(params GenerateBracketParams) error {
	if len(params.Participants) != models.BracketSize {
		return fmt.Errorf("%w: got %d", ErrWrongParticipantCount, len(params.Participants))
	}
	if len(params.Dates) != DateCount {
		return fmt.Errorf("%w: got %d", ErrWrongDateCount, len(params.Dates))
	}

	seen := make(map[string]struct{}, len(params.Participants))
	for _, p := range params.Participants {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: blank identifier", ErrInvalidParticipant)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: %q", ErrInvalidParticipant, p)
		}
		seen[p] = struct{}{}
	}

	for i, d := range params.Dates {
		if d.IsZero() {
			return fmt.Errorf("%w: date %d is empty", ErrInvalidDates, i+1)
		}
		if i > 0 && d.Before(params.Dates[i-1]) {
			return fmt.Errorf("%w: date %d (%s) precedes date %d", ErrInvalidDates, i+1, d.Format(time.DateOnly), i)
		}
	}
	return nil
}

func shuffle(teams []string, seed *uint64) {
	if seed == nil {
		rand.Shuffle(len(teams), func(i, j int) { teams[i], teams[j] = teams[j], teams[i] })
		return
	}
	r := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	r.Shuffle(len(teams), func(i, j int) { teams[i], teams[j] = teams[j], teams[i] })
}

// matchDay maps a slot to its index in the five dates.
func matchDay(tag models.RoundTag) int {
	switch tag.Round {
	case models.RoundOf16:
		if tag.Index <= 4 {
			return 0
		}
		return 1
	case models.QuarterFinal:
		return 2
	case models.SemiFinal:
		return 3
	default:
		return 4
	}
}

// KickoffTime derives the kickoff from the match day and the slot's order on
// that day. Weekends start at 12:00 with 2h30 between kickoffs, weekdays at
// 16:00 with 1h45. The FINAL is played at 18:00 on weekends, 20:00 otherwise.
func KickoffTime(day time.Time, tag models.RoundTag, orderInDay int) time.Time {
	weekend := day.Weekday() == time.Saturday || day.Weekday() == time.Sunday
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	if tag.Round == models.Final {
		if weekend {
			return midnight.Add(18 * time.Hour)
		}
		return midnight.Add(20 * time.Hour)
	}

	if weekend {
		return midnight.Add(12*time.Hour + time.Duration(orderInDay)*150*time.Minute)
	}
	return midnight.Add(16*time.Hour + time.Duration(orderInDay)*105*time.Minute)
}
