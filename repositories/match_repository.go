package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-live/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchTeamInvalid       = errors.New("match team conflict or invalid")
	ErrMatchWinnerTeamInvalid = errors.New("match winner team conflict or invalid")
)

type MatchRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus, isFinal bool, outcome models.MatchOutcome, winnerTeamID *int) error
	SetSlotTeam(ctx context.Context, exec SQLExecutor, matchID int, slot int, teamID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, team1_id, team2_id, predecessor_1, predecessor_2,
	       successor, status, is_final, outcome, winner_team_id, created_at`

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE id = $1`

	match := &models.Match{}
	err := exec.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.TournamentID,
		&match.Team1ID,
		&match.Team2ID,
		&match.Predecessor1,
		&match.Predecessor2,
		&match.Successor,
		&match.Status,
		&match.IsFinal,
		&match.Outcome,
		&match.WinnerTeamID,
		&match.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var match models.Match
		if scanErr := rows.Scan(
			&match.ID,
			&match.TournamentID,
			&match.Team1ID,
			&match.Team2ID,
			&match.Predecessor1,
			&match.Predecessor2,
			&match.Successor,
			&match.Status,
			&match.IsFinal,
			&match.Outcome,
			&match.WinnerTeamID,
			&match.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &match)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus, isFinal bool, outcome models.MatchOutcome, winnerTeamID *int) error {
	query := `
		UPDATE matches
		SET status = $1, is_final = $2, outcome = $3, winner_team_id = $4
		WHERE id = $5`

	result, err := exec.ExecContext(ctx, query, status, isFinal, outcome, winnerTeamID, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// SetSlotTeam writes one successor seat. slot must be 1 or 2.
func (r *postgresMatchRepository) SetSlotTeam(ctx context.Context, exec SQLExecutor, matchID int, slot int, teamID int) error {
	var query string
	switch slot {
	case 1:
		query = `UPDATE matches SET team1_id = $1 WHERE id = $2`
	case 2:
		query = `UPDATE matches SET team2_id = $1 WHERE id = $2`
	default:
		return fmt.Errorf("SetSlotTeam: invalid slot %d for match %d", slot, matchID)
	}

	result, err := exec.ExecContext(ctx, query, teamID, matchID)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_team1_id_fkey", "matches_team2_id_fkey":
			return ErrMatchTeamInvalid
		case "matches_winner_team_id_fkey":
			return ErrMatchWinnerTeamInvalid
		}
	}
	return err
}
