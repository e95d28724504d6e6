package models

import (
	"time"

	"github.com/google/uuid"
)

// SlotPosition is the side of a match slot a participant occupies.
type SlotPosition string

const (
	PositionHome SlotPosition = "home"
	PositionAway SlotPosition = "away"
)

// MatchSlot is one of the 15 matches of a tournament. HomeTeam/AwayTeam are
// set at creation for R16 and only by advancement for later rounds.
type MatchSlot struct {
	TournamentID uuid.UUID `json:"tournament_id" db:"tournament_id"`
	Tag          RoundTag  `json:"tag" db:"-"`
	HomeTeam     *string   `json:"home_team,omitempty" db:"home_team"`
	AwayTeam     *string   `json:"away_team,omitempty" db:"away_team"`
	HomeScore    *int      `json:"home_score,omitempty" db:"home_score"`
	AwayScore    *int      `json:"away_score,omitempty" db:"away_score"`
	Completed    bool      `json:"completed" db:"completed"`
	Date         time.Time `json:"date" db:"match_time"`
	Location     string    `json:"location" db:"location"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Participant returns the team at the given position, nil when unset.
func (m *MatchSlot) Participant(pos SlotPosition) *string {
	if pos == PositionHome {
		return m.HomeTeam
	}
	return m.AwayTeam
}

// SetParticipant assigns the team at the given position.
func (m *MatchSlot) SetParticipant(pos SlotPosition, team *string) {
	if pos == PositionHome {
		m.HomeTeam = team
		return
	}
	m.AwayTeam = team
}

// Ready reports whether both participants and both scores are present.
func (m *MatchSlot) Ready() bool {
	return m.Completed && m.HomeTeam != nil && m.AwayTeam != nil && m.HomeScore != nil && m.AwayScore != nil
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (m *MatchSlot) Clone() *MatchSlot {
	if m == nil {
		return nil
	}
	c := *m
	c.HomeTeam = cloneString(m.HomeTeam)
	c.AwayTeam = cloneString(m.AwayTeam)
	c.HomeScore = cloneInt(m.HomeScore)
	c.AwayScore = cloneInt(m.AwayScore)
	return &c
}

// SameTeam compares two optional team identifiers.
func SameTeam(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
