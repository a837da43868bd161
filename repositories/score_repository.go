package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/bracket-live/models"
	"github.com/lib/pq"
)

var (
	ErrScoreMatchInvalid = errors.New("score match conflict or invalid")
	ErrScoreTeamInvalid  = errors.New("score team conflict or invalid")
)

type ScoreRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, score *models.Score) error
	SeedZeroScores(ctx context.Context, exec SQLExecutor, scores []*models.Score) error
	ListByMatch(ctx context.Context, matchID int) ([]*models.Score, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Score, error)
}

type postgresScoreRepository struct {
	db *sql.DB
}

func NewPostgresScoreRepository(db *sql.DB) ScoreRepository {
	return &postgresScoreRepository{db: db}
}

// Upsert writes the score for a (match, team) pair, relying on the
// scores_match_id_team_id_key unique constraint. Resubmitting the same
// result converges to a single row per team.
func (r *postgresScoreRepository) Upsert(ctx context.Context, exec SQLExecutor, score *models.Score) error {
	query := `
		INSERT INTO scores (match_id, team_id, tournament_id, score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (match_id, team_id) DO UPDATE SET score = EXCLUDED.score
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		score.MatchID,
		score.TeamID,
		score.TournamentID,
		score.Points,
	).Scan(&score.ID, &score.CreatedAt)

	return r.handleScoreError(err)
}

// SeedZeroScores bulk-inserts the initial rows for a successor match.
// DO NOTHING on conflict keeps concurrent sibling completions from
// race-seeding duplicates under weak isolation.
func (r *postgresScoreRepository) SeedZeroScores(ctx context.Context, exec SQLExecutor, scores []*models.Score) error {
	if len(scores) == 0 {
		return nil
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`INSERT INTO scores (match_id, team_id, tournament_id, score) VALUES `)

	args := make([]interface{}, 0, len(scores)*4)
	for i, s := range scores {
		if i > 0 {
			queryBuilder.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&queryBuilder, "($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
		args = append(args, s.MatchID, s.TeamID, s.TournamentID, s.Points)
	}
	queryBuilder.WriteString(` ON CONFLICT (match_id, team_id) DO NOTHING`)

	if _, err := exec.ExecContext(ctx, queryBuilder.String(), args...); err != nil {
		return fmt.Errorf("failed to seed score rows: %w", r.handleScoreError(err))
	}
	return nil
}

func (r *postgresScoreRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.Score, error) {
	query := `
		SELECT id, match_id, team_id, tournament_id, score, created_at
		FROM scores
		WHERE match_id = $1
		ORDER BY team_id ASC`

	return r.queryScores(ctx, query, matchID)
}

func (r *postgresScoreRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Score, error) {
	query := `
		SELECT id, match_id, team_id, tournament_id, score, created_at
		FROM scores
		WHERE tournament_id = $1
		ORDER BY match_id ASC, team_id ASC`

	return r.queryScores(ctx, query, tournamentID)
}

func (r *postgresScoreRepository) queryScores(ctx context.Context, query string, arg interface{}) ([]*models.Score, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	scores := make([]*models.Score, 0)
	for rows.Next() {
		var score models.Score
		if scanErr := rows.Scan(
			&score.ID,
			&score.MatchID,
			&score.TeamID,
			&score.TournamentID,
			&score.Points,
			&score.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", scanErr)
		}
		scores = append(scores, &score)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during score rows iteration: %w", err)
	}
	return scores, nil
}

func (r *postgresScoreRepository) handleScoreError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "scores_match_id_fkey", "scores_tournament_id_fkey":
			return ErrScoreMatchInvalid
		case "scores_team_id_fkey":
			return ErrScoreTeamInvalid
		}
	}
	return err
}
