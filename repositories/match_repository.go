package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/knockout-cup/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound           = errors.New("match slot not found")
	ErrMatchesExist            = errors.New("match slots already exist for this tournament")
	ErrMatchParticipantChanged = errors.New("match participant changed since it was read")
	ErrMatchTournamentInvalid  = errors.New("match slot tournament conflict or invalid")
)

type MatchRepository interface {
	// CreateMatches stores all slots of a tournament at once. It fails with
	// ErrMatchesExist and writes nothing if the tournament already has slots.
	CreateMatches(ctx context.Context, tournamentID uuid.UUID, slots []*models.MatchSlot) error
	GetMatch(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag) (*models.MatchSlot, error)
	ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]*models.MatchSlot, error)
	// UpdateMatchParticipant writes participant at pos only if the stored
	// value still equals expected, otherwise ErrMatchParticipantChanged.
	UpdateMatchParticipant(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag, pos models.SlotPosition, expected, participant *string) error
	UpdateMatchResult(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag, homeScore, awayScore *int, completed bool) error
	DeleteAllMatches(ctx context.Context, tournamentID uuid.UUID) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `tournament_id, round, round_index, home_team, away_team, home_score, away_score, completed, match_time, location, updated_at`

func (r *postgresMatchRepository) CreateMatches(ctx context.Context, tournamentID uuid.UUID, slots []*models.MatchSlot) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		// Serialises concurrent creators of the same tournament.
		var locked uuid.UUID
		err := tx.QueryRowContext(ctx, `SELECT id FROM tournaments WHERE id = $1 FOR UPDATE`, tournamentID).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMatchTournamentInvalid
			}
			return err
		}

		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_slots WHERE tournament_id = $1`, tournamentID).Scan(&existing); err != nil {
			return err
		}
		if existing > 0 {
			return ErrMatchesExist
		}

		query := `
			INSERT INTO match_slots
				(tournament_id, round, round_index, slot_order, home_team, away_team,
				 home_score, away_score, completed, match_time, location)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING updated_at`

		for _, s := range slots {
			err := tx.QueryRowContext(ctx, query,
				tournamentID,
				string(s.Tag.Round),
				int(s.Tag.Index),
				s.Tag.Order(),
				s.HomeTeam,
				s.AwayTeam,
				s.HomeScore,
				s.AwayScore,
				s.Completed,
				s.Date,
				s.Location,
			).Scan(&s.UpdatedAt)
			if err != nil {
				return r.handleMatchError(err)
			}
		}
		return nil
	})
}

func (r *postgresMatchRepository) GetMatch(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag) (*models.MatchSlot, error) {
	query := `SELECT ` + matchColumns + `
		FROM match_slots
		WHERE tournament_id = $1 AND round = $2 AND round_index = $3`

	slot, err := scanMatch(r.db.QueryRowContext(ctx, query, tournamentID, string(tag.Round), int(tag.Index)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return slot, nil
}

func (r *postgresMatchRepository) ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]*models.MatchSlot, error) {
	query := `SELECT ` + matchColumns + `
		FROM match_slots
		WHERE tournament_id = $1
		ORDER BY slot_order ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]*models.MatchSlot, 0, models.SlotCount)
	for rows.Next() {
		slot, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		slots = append(slots, slot)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *postgresMatchRepository) UpdateMatchParticipant(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag, pos models.SlotPosition, expected, participant *string) error {
	column, err := positionColumn(pos)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE match_slots
		SET %[1]s = $1, updated_at = now()
		WHERE tournament_id = $2 AND round = $3 AND round_index = $4
		  AND %[1]s IS NOT DISTINCT FROM $5`, column)

	result, err := r.db.ExecContext(ctx, query, participant, tournamentID, string(tag.Round), int(tag.Index), expected)
	if err != nil {
		return r.handleMatchError(err)
	}
	if err := checkAffectedRows(result, ErrMatchParticipantChanged); err != nil {
		if !errors.Is(err, ErrMatchParticipantChanged) {
			return err
		}
		// Zero rows means either the slot is gone or the guard failed.
		if _, getErr := r.GetMatch(ctx, tournamentID, tag); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}

func (r *postgresMatchRepository) UpdateMatchResult(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag, homeScore, awayScore *int, completed bool) error {
	query := `
		UPDATE match_slots
		SET home_score = $1, away_score = $2, completed = $3, updated_at = now()
		WHERE tournament_id = $4 AND round = $5 AND round_index = $6`

	result, err := r.db.ExecContext(ctx, query, homeScore, awayScore, completed, tournamentID, string(tag.Round), int(tag.Index))
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) DeleteAllMatches(ctx context.Context, tournamentID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM match_slots WHERE tournament_id = $1`, tournamentID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMatch(row rowScanner) (*models.MatchSlot, error) {
	var (
		slot      models.MatchSlot
		round     string
		index     int
		homeTeam  sql.NullString
		awayTeam  sql.NullString
		homeScore sql.NullInt64
		awayScore sql.NullInt64
	)
	err := row.Scan(
		&slot.TournamentID,
		&round,
		&index,
		&homeTeam,
		&awayTeam,
		&homeScore,
		&awayScore,
		&slot.Completed,
		&slot.Date,
		&slot.Location,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tag, err := models.NewRoundTag(models.RoundName(round), index)
	if err != nil {
		return nil, fmt.Errorf("corrupt match slot row: %w", err)
	}
	slot.Tag = tag
	slot.HomeTeam = nullStringPtr(homeTeam)
	slot.AwayTeam = nullStringPtr(awayTeam)
	slot.HomeScore = nullIntPtr(homeScore)
	slot.AwayScore = nullIntPtr(awayScore)
	return &slot, nil
}

func positionColumn(pos models.SlotPosition) (string, error) {
	switch pos {
	case models.PositionHome:
		return "home_team", nil
	case models.PositionAway:
		return "away_team", nil
	default:
		return "", fmt.Errorf("unknown slot position %q", pos)
	}
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullIntPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return ErrMatchesExist
		case "23503": // foreign_key_violation
			if pqErr.Constraint == "match_slots_tournament_id_fkey" {
				return ErrMatchTournamentInvalid
			}
		}
	}
	return err
}
