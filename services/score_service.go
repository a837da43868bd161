package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Dosada05/bracket-live/live"
	"github.com/Dosada05/bracket-live/models"
	"github.com/Dosada05/bracket-live/repositories"
)

// Broadcaster delivers a fire-and-forget message to every live subscriber
// of a room. Satisfied by *live.Hub.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

// ScoreSubmission is the parsed body of a score update request.
type ScoreSubmission struct {
	Score        string
	Final        bool
	Outcome      models.MatchOutcome
	WinnerTeamID *int
}

type ScoreUpdateResult struct {
	Message      string `json:"message"`
	MatchID      int    `json:"match_id"`
	Team1Score   int    `json:"team1_score"`
	Team2Score   int    `json:"team2_score"`
	WinnerTeamID *int   `json:"winner_team_id"`
	IsFinal      bool   `json:"is_final"`
}

type WalkoverResult struct {
	Message      string              `json:"message"`
	MatchID      int                 `json:"match_id"`
	Outcome      models.MatchOutcome `json:"outcome"`
	WinnerTeamID int                 `json:"winner_team_id"`
}

type ScoreService interface {
	// SubmitResult validates and records a result for one match and, when
	// the match becomes final with a winner, advances that winner into the
	// successor match. Returns *ScoreUpdateResult for normal submissions
	// and *WalkoverResult for non-normal outcomes.
	SubmitResult(ctx context.Context, matchID, tournamentID int, input ScoreSubmission) (interface{}, error)
	ListMatchScores(ctx context.Context, matchID int) ([]*models.Score, error)
}

type scoreService struct {
	txManager repositories.TxManager
	matchRepo repositories.MatchRepository
	scoreRepo repositories.ScoreRepository
	hub       Broadcaster
	logger    *slog.Logger
}

func NewScoreService(
	txManager repositories.TxManager,
	matchRepo repositories.MatchRepository,
	scoreRepo repositories.ScoreRepository,
	hub Broadcaster,
	logger *slog.Logger,
) ScoreService {
	return &scoreService{
		txManager: txManager,
		matchRepo: matchRepo,
		scoreRepo: scoreRepo,
		hub:       hub,
		logger:    logger,
	}
}

func (s *scoreService) SubmitResult(ctx context.Context, matchID, tournamentID int, input ScoreSubmission) (interface{}, error) {
	if matchID <= 0 || tournamentID <= 0 {
		return nil, ErrMatchIDRequired
	}

	outcome := input.Outcome
	if outcome == "" {
		outcome = models.OutcomeNormal
	}

	var result interface{}

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}

		if outcome != models.OutcomeNormal {
			res, walkErr := s.resolveWalkover(ctx, exec, match, outcome, input.WinnerTeamID)
			if walkErr != nil {
				return walkErr
			}
			result = res
			return nil
		}

		res, normErr := s.resolveNormal(ctx, exec, match, tournamentID, input)
		if normErr != nil {
			return normErr
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The notification is sent only after the transaction is durably
	// committed. Walkover completions do not broadcast; clients learn about
	// them from the bracket view.
	if update, ok := result.(*ScoreUpdateResult); ok {
		room := liveRoomID(tournamentID)
		s.hub.BroadcastToRoom(room, live.Message{
			Type:    live.TypeScoreUpdate,
			Payload: update,
			RoomID:  room,
		})
	} else {
		s.logger.Debug("skipping live broadcast for walkover completion",
			slog.Int("match_id", matchID),
			slog.Int("tournament_id", tournamentID),
		)
	}

	return result, nil
}

// resolveWalkover records a non-score outcome. The winner is taken exactly
// as submitted and the match is final by definition, so the bracket always
// advances when a successor exists.
func (s *scoreService) resolveWalkover(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, outcome models.MatchOutcome, winnerTeamID *int) (*WalkoverResult, error) {
	if winnerTeamID == nil || *winnerTeamID <= 0 {
		return nil, ErrWinnerRequired
	}
	winner := *winnerTeamID

	if err := s.matchRepo.UpdateResult(ctx, exec, match.ID, models.MatchStatusCompleted, true, outcome, &winner); err != nil {
		return nil, err
	}

	if match.Successor != nil {
		if err := s.advanceWinner(ctx, exec, *match.Successor, match.ID, winner); err != nil {
			return nil, err
		}
	}

	return &WalkoverResult{
		Message:      "Match completed via walkover",
		MatchID:      match.ID,
		Outcome:      outcome,
		WinnerTeamID: winner,
	}, nil
}

// resolveNormal upserts the two per-team score rows and, when the result is
// marked final, locks in the winner and advances the bracket. With final
// unset the rows are written but the match stays open, which is how
// incremental live score entry works.
func (s *scoreService) resolveNormal(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, tournamentID int, input ScoreSubmission) (*ScoreUpdateResult, error) {
	if input.Score == "" {
		return nil, ErrScoreRequired
	}
	team1Score, team2Score, err := parseScoreLine(input.Score)
	if err != nil {
		return nil, err
	}
	if match.Team1ID == nil || match.Team2ID == nil {
		return nil, ErrMatchSeatsOpen
	}

	rows := []*models.Score{
		{MatchID: match.ID, TeamID: *match.Team1ID, TournamentID: tournamentID, Points: team1Score},
		{MatchID: match.ID, TeamID: *match.Team2ID, TournamentID: tournamentID, Points: team2Score},
	}
	for _, row := range rows {
		if err := s.scoreRepo.Upsert(ctx, exec, row); err != nil {
			return nil, err
		}
	}

	winnerTeamID := match.WinnerTeamID
	isFinal := match.IsFinal

	if input.Final {
		isFinal = true
		switch {
		case team1Score > team2Score:
			winnerTeamID = match.Team1ID
		case team2Score > team1Score:
			winnerTeamID = match.Team2ID
		default:
			// A tie locks the match without a winner; nothing propagates.
			winnerTeamID = nil
		}

		if err := s.matchRepo.UpdateResult(ctx, exec, match.ID, models.MatchStatusCompleted, true, models.OutcomeNormal, winnerTeamID); err != nil {
			return nil, err
		}

		if winnerTeamID != nil && match.Successor != nil {
			if err := s.advanceWinner(ctx, exec, *match.Successor, match.ID, *winnerTeamID); err != nil {
				return nil, err
			}
		}
	}

	return &ScoreUpdateResult{
		Message:      "Scores updated successfully",
		MatchID:      match.ID,
		Team1Score:   team1Score,
		Team2Score:   team2Score,
		WinnerTeamID: winnerTeamID,
		IsFinal:      isFinal,
	}, nil
}

// advanceWinner slots the winner of completedID into the matching seat of
// the successor and, on the transition where both seats become filled,
// seeds the successor's two zero-score rows. A missing successor or a
// predecessor mismatch is bracket-wiring drift: tolerated, but logged so it
// can be diagnosed upstream.
func (s *scoreService) advanceWinner(ctx context.Context, exec repositories.SQLExecutor, successorID, completedID, winnerTeamID int) error {
	successor, err := s.matchRepo.GetByID(ctx, exec, successorID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			s.logger.Warn("successor match does not exist, winner not advanced",
				slog.Int("successor_id", successorID),
				slog.Int("completed_match_id", completedID),
			)
			return nil
		}
		return err
	}

	var slot int
	switch {
	case successor.Predecessor1 != nil && *successor.Predecessor1 == completedID:
		slot = 1
	case successor.Predecessor2 != nil && *successor.Predecessor2 == completedID:
		slot = 2
	default:
		s.logger.Warn("completed match is not a predecessor of its successor, winner not advanced",
			slog.Int("successor_id", successorID),
			slog.Int("completed_match_id", completedID),
		)
		return nil
	}

	seat, otherSeat := successor.Team1ID, successor.Team2ID
	if slot == 2 {
		seat, otherSeat = successor.Team2ID, successor.Team1ID
	}

	if seat != nil {
		// The seat was filled by an earlier completion of the same
		// predecessor. Re-seating the same team is a no-op; a different
		// team means the predecessor's result changed after advancing.
		if *seat == winnerTeamID {
			return nil
		}
		s.logger.Warn("successor seat already held by another team, overwriting",
			slog.Int("successor_id", successorID),
			slog.Int("slot", slot),
			slog.Int("previous_team_id", *seat),
			slog.Int("winner_team_id", winnerTeamID),
		)
		return s.matchRepo.SetSlotTeam(ctx, exec, successor.ID, slot, winnerTeamID)
	}

	if err := s.matchRepo.SetSlotTeam(ctx, exec, successor.ID, slot, winnerTeamID); err != nil {
		return err
	}

	if otherSeat == nil {
		return nil
	}

	team1, team2 := winnerTeamID, *otherSeat
	if slot == 2 {
		team1, team2 = *otherSeat, winnerTeamID
	}
	seeds := []*models.Score{
		{MatchID: successor.ID, TeamID: team1, TournamentID: successor.TournamentID, Points: 0},
		{MatchID: successor.ID, TeamID: team2, TournamentID: successor.TournamentID, Points: 0},
	}
	return s.scoreRepo.SeedZeroScores(ctx, exec, seeds)
}

func (s *scoreService) ListMatchScores(ctx context.Context, matchID int) ([]*models.Score, error) {
	if matchID <= 0 {
		return nil, ErrMatchIDRequired
	}
	scores, err := s.scoreRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores for match %d: %w", matchID, err)
	}
	return scores, nil
}

// parseScoreLine splits "X-Y" into the two non-negative team scores.
func parseScoreLine(scoreText string) (int, int, error) {
	parts := strings.Split(scoreText, "-")
	if len(parts) != 2 {
		return 0, 0, ErrScoreFormat
	}
	team1Score, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || team1Score < 0 {
		return 0, 0, ErrScoreFormat
	}
	team2Score, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || team2Score < 0 {
		return 0, 0, ErrScoreFormat
	}
	return team1Score, team2Score, nil
}

func liveRoomID(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}
