package models

import (
	"time"

	"github.com/google/uuid"
)

// TournamentStatus mirrors the tournament_status enum in the database.
type TournamentStatus string

const (
	StatusActive    TournamentStatus = "active"
	StatusCompleted TournamentStatus = "completed"
)

// Tournament is a 16-team knockout cup. Its slots live in match_slots and are
// created and destroyed together with it.
type Tournament struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	Name         string           `json:"name" db:"name"`
	Status       TournamentStatus `json:"status" db:"status"`
	ChampionTeam *string          `json:"champion_team,omitempty" db:"champion_team"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

// Bracket groups a tournament's slots by round for display.
type Bracket struct {
	Tournament *Tournament  `json:"tournament"`
	Round1     []*MatchSlot `json:"round1"`
	Round2     []*MatchSlot `json:"round2"`
	Round3     []*MatchSlot `json:"round3"`
	Final      *MatchSlot   `json:"final"`
	Champion   *string      `json:"champion,omitempty"`
}
