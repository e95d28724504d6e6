package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/knockout-cup/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentConflict = errors.New("tournament already exists")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	// GetActive returns the most recently created active tournament.
	GetActive(ctx context.Context) (*models.Tournament, error)
	List(ctx context.Context) ([]models.Tournament, error)
	// SetChampion records the champion and marks the tournament completed;
	// a nil champion puts it back to active.
	SetChampion(ctx context.Context, id uuid.UUID, champion *string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (id, name, status, champion_team)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, t.ID, t.Name, t.Status, t.ChampionTeam).Scan(&t.CreatedAt)
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	query := `
		SELECT id, name, status, champion_team, created_at
		FROM tournaments
		WHERE id = $1`

	return r.getOne(ctx, query, id)
}

func (r *postgresTournamentRepository) GetActive(ctx context.Context) (*models.Tournament, error) {
	query := `
		SELECT id, name, status, champion_team, created_at
		FROM tournaments
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT 1`

	return r.getOne(ctx, query, models.StatusActive)
}

func (r *postgresTournamentRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Tournament, error) {
	t := &models.Tournament{}
	var champion sql.NullString
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.Name, &t.Status, &champion, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	t.ChampionTeam = nullStringPtr(champion)
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context) ([]models.Tournament, error) {
	query := `
		SELECT id, name, status, champion_team, created_at
		FROM tournaments
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		var champion sql.NullString
		if scanErr := rows.Scan(&t.ID, &t.Name, &t.Status, &champion, &t.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		t.ChampionTeam = nullStringPtr(champion)
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) SetChampion(ctx context.Context, id uuid.UUID, champion *string) error {
	status := models.StatusActive
	if champion != nil {
		status = models.StatusCompleted
	}
	query := `UPDATE tournaments SET champion_team = $1, status = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, champion, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrTournamentConflict
	}
	return err
}
