package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Dosada05/bracket-live/models"
	"github.com/Dosada05/bracket-live/repositories"
)

// fakeTxManager runs the unit of work without a real database. Rollback
// semantics are the SQL manager's concern; here an error from fn is simply
// surfaced so callers can assert nothing was broadcast after a failure.
type fakeTxManager struct{}

func (f *fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type mockMatchRepository struct {
	matches    map[int]*models.Match
	getCalls   int
	slotWrites int
}

func newMockMatchRepository(matches ...*models.Match) *mockMatchRepository {
	m := &mockMatchRepository{matches: make(map[int]*models.Match)}
	for _, match := range matches {
		m.matches[match.ID] = match
	}
	return m
}

func (m *mockMatchRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	m.getCalls++
	if match, ok := m.matches[id]; ok {
		copied := *match
		return &copied, nil
	}
	return nil, repositories.ErrMatchNotFound
}

func (m *mockMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	var result []*models.Match
	for _, match := range m.matches {
		if match.TournamentID == tournamentID {
			result = append(result, match)
		}
	}
	return result, nil
}

func (m *mockMatchRepository) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, id int, status models.MatchStatus, isFinal bool, outcome models.MatchOutcome, winnerTeamID *int) error {
	match, ok := m.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.Status = status
	match.IsFinal = isFinal
	match.Outcome = outcome
	match.WinnerTeamID = winnerTeamID
	return nil
}

func (m *mockMatchRepository) SetSlotTeam(ctx context.Context, exec repositories.SQLExecutor, matchID int, slot int, teamID int) error {
	match, ok := m.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.slotWrites++
	id := teamID
	if slot == 1 {
		match.Team1ID = &id
	} else {
		match.Team2ID = &id
	}
	return nil
}

type scoreKey struct {
	matchID int
	teamID  int
}

type mockScoreRepository struct {
	rows      map[scoreKey]*models.Score
	nextID    int
	seedCalls int
	upsertErr error
}

func newMockScoreRepository() *mockScoreRepository {
	return &mockScoreRepository{rows: make(map[scoreKey]*models.Score), nextID: 1}
}

func (m *mockScoreRepository) Upsert(ctx context.Context, exec repositories.SQLExecutor, score *models.Score) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	key := scoreKey{score.MatchID, score.TeamID}
	if existing, ok := m.rows[key]; ok {
		existing.Points = score.Points
		score.ID = existing.ID
		return nil
	}
	score.ID = m.nextID
	m.nextID++
	copied := *score
	m.rows[key] = &copied
	return nil
}

func (m *mockScoreRepository) SeedZeroScores(ctx context.Context, exec repositories.SQLExecutor, scores []*models.Score) error {
	m.seedCalls++
	for _, score := range scores {
		key := scoreKey{score.MatchID, score.TeamID}
		if _, ok := m.rows[key]; ok {
			continue // ON CONFLICT DO NOTHING
		}
		copied := *score
		copied.ID = m.nextID
		m.nextID++
		m.rows[key] = &copied
	}
	return nil
}

func (m *mockScoreRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.Score, error) {
	var result []*models.Score
	for _, score := range m.rows {
		if score.MatchID == matchID {
			result = append(result, score)
		}
	}
	return result, nil
}

func (m *mockScoreRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Score, error) {
	var result []*models.Score
	for _, score := range m.rows {
		if score.TournamentID == tournamentID {
			result = append(result, score)
		}
	}
	return result, nil
}

type mockBroadcaster struct {
	rooms    []string
	messages []interface{}
}

func (m *mockBroadcaster) BroadcastToRoom(roomID string, message interface{}) {
	m.rooms = append(m.rooms, roomID)
	m.messages = append(m.messages, message)
}

func intPtr(v int) *int { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScoreService(matchRepo *mockMatchRepository, scoreRepo *mockScoreRepository, hub *mockBroadcaster) ScoreService {
	return NewScoreService(&fakeTxManager{}, matchRepo, scoreRepo, hub, testLogger())
}

// pendingMatch builds an open first-round match with both teams seated.
func pendingMatch(id, tournamentID, team1, team2 int) *models.Match {
	return &models.Match{
		ID:           id,
		TournamentID: tournamentID,
		Team1ID:      intPtr(team1),
		Team2ID:      intPtr(team2),
		Status:       models.MatchStatusPending,
		Outcome:      models.OutcomeNormal,
	}
}

func TestSubmitResultValidation(t *testing.T) {
	tests := []struct {
		name         string
		matchID      int
		tournamentID int
		input        ScoreSubmission
		wantErr      error
	}{
		{
			name:         "missing match id",
			matchID:      0,
			tournamentID: 1,
			input:        ScoreSubmission{Score: "3-1"},
			wantErr:      ErrMatchIDRequired,
		},
		{
			name:         "missing tournament id",
			matchID:      10,
			tournamentID: 0,
			input:        ScoreSubmission{Score: "3-1"},
			wantErr:      ErrMatchIDRequired,
		},
		{
			name:         "match not found",
			matchID:      99,
			tournamentID: 1,
			input:        ScoreSubmission{Score: "3-1"},
			wantErr:      ErrMatchNotFound,
		},
		{
			name:         "walkover without winner",
			matchID:      10,
			tournamentID: 1,
			input:        ScoreSubmission{Outcome: models.OutcomeWalkover},
			wantErr:      ErrWinnerRequired,
		},
		{
			name:         "normal without score",
			matchID:      10,
			tournamentID: 1,
			input:        ScoreSubmission{},
			wantErr:      ErrScoreRequired,
		},
		{
			name:         "single number",
			matchID:      10,
			tournamentID: 1,
			input:        ScoreSubmission{Score: "3"},
			wantErr:      ErrScoreFormat,
		},
		{
			name:         "too many separators",
			matchID:      10,
			tournamentID: 1,
			input:        ScoreSubmission{Score: "3-1-2"},
			wantErr:      ErrScoreFormat,
		},
		{
			name:         "non-numeric",
			matchID:      10,
			tournamentID: 1,
			input:        ScoreSubmission{Score: "a-b"},
			wantErr:      ErrScoreFormat,
		},
		{
			name:         "negative score",
			matchID:      10,
			tournamentID: 1,
			input:        ScoreSubmission{Score: "3--1"},
			wantErr:      ErrScoreFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matchRepo := newMockMatchRepository(pendingMatch(10, 1, 100, 200))
			scoreRepo := newMockScoreRepository()
			hub := &mockBroadcaster{}
			svc := newTestScoreService(matchRepo, scoreRepo, hub)

			_, err := svc.SubmitResult(context.Background(), tt.matchID, tt.tournamentID, tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(scoreRepo.rows) != 0 {
				t.Errorf("validation failure must not write score rows, found %d", len(scoreRepo.rows))
			}
			if len(hub.messages) != 0 {
				t.Errorf("validation failure must not broadcast, got %d messages", len(hub.messages))
			}
		})
	}
}

func TestSubmitResultMissingIDsSkipLookup(t *testing.T) {
	matchRepo := newMockMatchRepository(pendingMatch(10, 1, 100, 200))
	svc := newTestScoreService(matchRepo, newMockScoreRepository(), &mockBroadcaster{})

	if _, err := svc.SubmitResult(context.Background(), 0, 0, ScoreSubmission{Score: "3-1"}); !errors.Is(err, ErrMatchIDRequired) {
		t.Fatalf("expected ErrMatchIDRequired, got %v", err)
	}
	if matchRepo.getCalls != 0 {
		t.Errorf("missing ids must be rejected before any store lookup, got %d lookups", matchRepo.getCalls)
	}
}

func TestSubmitResultIdempotentUpsert(t *testing.T) {
	matchRepo := newMockMatchRepository(pendingMatch(10, 1, 100, 200))
	scoreRepo := newMockScoreRepository()
	hub := &mockBroadcaster{}
	svc := newTestScoreService(matchRepo, scoreRepo, hub)

	for i := 0; i < 3; i++ {
		result, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{Score: "3-1"})
		if err != nil {
			t.Fatalf("submission %d failed: %v", i, err)
		}
		update, ok := result.(*ScoreUpdateResult)
		if !ok {
			t.Fatalf("expected *ScoreUpdateResult, got %T", result)
		}
		if update.Team1Score != 3 || update.Team2Score != 1 {
			t.Errorf("expected 3-1, got %d-%d", update.Team1Score, update.Team2Score)
		}
		if update.IsFinal {
			t.Error("non-final submission must leave the match open")
		}
		if update.WinnerTeamID != nil {
			t.Errorf("non-final submission must not declare a winner, got %d", *update.WinnerTeamID)
		}
	}

	if len(scoreRepo.rows) != 2 {
		t.Fatalf("expected exactly 2 score rows after resubmissions, got %d", len(scoreRepo.rows))
	}
	if got := scoreRepo.rows[scoreKey{10, 100}].Points; got != 3 {
		t.Errorf("team 100 score = %d, want 3", got)
	}
	if got := scoreRepo.rows[scoreKey{10, 200}].Points; got != 1 {
		t.Errorf("team 200 score = %d, want 1", got)
	}
	if len(hub.messages) != 3 {
		t.Errorf("every committed normal update broadcasts, got %d messages", len(hub.messages))
	}
}

func TestSubmitResultFinalWinnerDetermination(t *testing.T) {
	tests := []struct {
		name       string
		score      string
		wantWinner *int
	}{
		{"team1 wins", "3-1", intPtr(100)},
		{"team2 wins", "1-3", intPtr(200)},
		{"tie has no winner", "2-2", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := pendingMatch(10, 1, 100, 200)
			match.Successor = intPtr(20)
			successor := &models.Match{
				ID:           20,
				TournamentID: 1,
				Predecessor1: intPtr(10),
				Predecessor2: intPtr(9),
				Status:       models.MatchStatusPending,
				Outcome:      models.OutcomeNormal,
			}
			matchRepo := newMockMatchRepository(match, successor)
			scoreRepo := newMockScoreRepository()
			svc := newTestScoreService(matchRepo, scoreRepo, &mockBroadcaster{})

			result, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{Score: tt.score, Final: true})
			if err != nil {
				t.Fatalf("SubmitResult failed: %v", err)
			}
			update := result.(*ScoreUpdateResult)

			stored := matchRepo.matches[10]
			if !stored.IsFinal {
				t.Error("final submission must lock the match")
			}
			if stored.Status != models.MatchStatusCompleted {
				t.Errorf("status = %s, want completed", stored.Status)
			}

			if tt.wantWinner == nil {
				if stored.WinnerTeamID != nil {
					t.Errorf("tie must have no winner, got %d", *stored.WinnerTeamID)
				}
				if update.WinnerTeamID != nil {
					t.Errorf("tie response must have no winner, got %d", *update.WinnerTeamID)
				}
				if matchRepo.slotWrites != 0 {
					t.Error("tie must not advance the bracket")
				}
				return
			}

			if stored.WinnerTeamID == nil || *stored.WinnerTeamID != *tt.wantWinner {
				t.Fatalf("winner = %v, want %d", stored.WinnerTeamID, *tt.wantWinner)
			}
			if succ := matchRepo.matches[20]; succ.Team1ID == nil || *succ.Team1ID != *tt.wantWinner {
				t.Errorf("successor team1 seat = %v, want %d", succ.Team1ID, *tt.wantWinner)
			}
		})
	}
}

func TestSubmitResultWalkover(t *testing.T) {
	match := pendingMatch(10, 1, 100, 200)
	match.Successor = intPtr(20)
	successor := &models.Match{
		ID:           20,
		TournamentID: 1,
		Predecessor1: intPtr(10),
		Predecessor2: intPtr(9),
		Status:       models.MatchStatusPending,
		Outcome:      models.OutcomeNormal,
	}
	matchRepo := newMockMatchRepository(match, successor)
	scoreRepo := newMockScoreRepository()
	hub := &mockBroadcaster{}
	svc := newTestScoreService(matchRepo, scoreRepo, hub)

	// No score field at all: walkovers bypass score parsing entirely.
	result, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{
		Outcome:      models.OutcomeWalkover,
		WinnerTeamID: intPtr(200),
	})
	if err != nil {
		t.Fatalf("SubmitResult failed: %v", err)
	}

	walkover, ok := result.(*WalkoverResult)
	if !ok {
		t.Fatalf("expected *WalkoverResult, got %T", result)
	}
	if walkover.WinnerTeamID != 200 || walkover.Outcome != models.OutcomeWalkover {
		t.Errorf("unexpected walkover result: %+v", walkover)
	}

	stored := matchRepo.matches[10]
	if !stored.IsFinal || stored.Status != models.MatchStatusCompleted {
		t.Error("walkover must complete and lock the match")
	}
	if stored.WinnerTeamID == nil || *stored.WinnerTeamID != 200 {
		t.Errorf("winner = %v, want 200", stored.WinnerTeamID)
	}
	if stored.Outcome != models.OutcomeWalkover {
		t.Errorf("outcome = %s, want walkover", stored.Outcome)
	}

	// Walkovers propagate even though the final flag was never set.
	if succ := matchRepo.matches[20]; succ.Team1ID == nil || *succ.Team1ID != 200 {
		t.Errorf("successor team1 seat = %v, want 200", succ.Team1ID)
	}

	if len(hub.messages) != 0 {
		t.Errorf("walkover completions do not broadcast, got %d messages", len(hub.messages))
	}
}

func TestAdvanceWinnerSeatSelection(t *testing.T) {
	match := pendingMatch(10, 1, 100, 200)
	match.Successor = intPtr(20)
	successor := &models.Match{
		ID:           20,
		TournamentID: 1,
		Predecessor1: intPtr(9),
		Predecessor2: intPtr(10),
		Team1ID:      intPtr(300),
		Status:       models.MatchStatusPending,
		Outcome:      models.OutcomeNormal,
	}
	matchRepo := newMockMatchRepository(match, successor)
	scoreRepo := newMockScoreRepository()
	svc := newTestScoreService(matchRepo, scoreRepo, &mockBroadcaster{})

	if _, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{Score: "3-1", Final: true}); err != nil {
		t.Fatalf("SubmitResult failed: %v", err)
	}

	succ := matchRepo.matches[20]
	if succ.Team2ID == nil || *succ.Team2ID != 100 {
		t.Fatalf("predecessor_2 completion must fill the team2 seat, got %v", succ.Team2ID)
	}
	if succ.Team1ID == nil || *succ.Team1ID != 300 {
		t.Errorf("team1 seat must stay untouched, got %v", succ.Team1ID)
	}

	// Both seats are now filled: exactly two zero rows for the successor.
	if scoreRepo.seedCalls != 1 {
		t.Fatalf("expected 1 seed call, got %d", scoreRepo.seedCalls)
	}
	for _, teamID := range []int{300, 100} {
		row, ok := scoreRepo.rows[scoreKey{20, teamID}]
		if !ok {
			t.Fatalf("missing seed row for team %d", teamID)
		}
		if row.Points != 0 {
			t.Errorf("seed row for team %d = %d, want 0", teamID, row.Points)
		}
		if row.TournamentID != 1 {
			t.Errorf("seed row tournament = %d, want the successor's own tournament", row.TournamentID)
		}
	}
}

func TestAdvanceWinnerSeedsOnlyWhenBothSeatsFill(t *testing.T) {
	match := pendingMatch(10, 1, 100, 200)
	match.Successor = intPtr(20)
	successor := &models.Match{
		ID:           20,
		TournamentID: 1,
		Predecessor1: intPtr(10),
		Predecessor2: intPtr(9),
		Status:       models.MatchStatusPending,
		Outcome:      models.OutcomeNormal,
	}
	matchRepo := newMockMatchRepository(match, successor)
	scoreRepo := newMockScoreRepository()
	svc := newTestScoreService(matchRepo, scoreRepo, &mockBroadcaster{})

	if _, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{Score: "3-1", Final: true}); err != nil {
		t.Fatalf("SubmitResult failed: %v", err)
	}

	if scoreRepo.seedCalls != 0 {
		t.Fatalf("half-filled successor must not be seeded, got %d seed calls", scoreRepo.seedCalls)
	}
	if succ := matchRepo.matches[20]; succ.Team1ID == nil || *succ.Team1ID != 100 {
		t.Fatalf("team1 seat = %v, want 100", succ.Team1ID)
	}
}

func TestResubmitFinalDoesNotReseed(t *testing.T) {
	match := pendingMatch(10, 1, 100, 200)
	match.Successor = intPtr(20)
	successor := &models.Match{
		ID:           20,
		TournamentID: 1,
		Predecessor1: intPtr(10),
		Predecessor2: intPtr(9),
		Team2ID:      intPtr(300), // already advanced from match 9
		Status:       models.MatchStatusPending,
		Outcome:      models.OutcomeNormal,
	}
	matchRepo := newMockMatchRepository(match, successor)
	scoreRepo := newMockScoreRepository()
	svc := newTestScoreService(matchRepo, scoreRepo, &mockBroadcaster{})

	if _, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{Score: "3-1", Final: true}); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if scoreRepo.seedCalls != 1 {
		t.Fatalf("expected the both-seats transition to seed once, got %d", scoreRepo.seedCalls)
	}

	if _, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{Score: "3-1", Final: true}); err != nil {
		t.Fatalf("resubmission failed: %v", err)
	}

	if scoreRepo.seedCalls != 1 {
		t.Errorf("resubmission must not re-seed the successor, got %d seed calls", scoreRepo.seedCalls)
	}
	if got := scoreRepo.rows[scoreKey{10, 100}].Points; got != 3 {
		t.Errorf("team 100 score = %d, want 3", got)
	}
	if got := scoreRepo.rows[scoreKey{10, 200}].Points; got != 1 {
		t.Errorf("team 200 score = %d, want 1", got)
	}
	if succRows := len(scoreRepo.rows); succRows != 4 {
		t.Errorf("expected 2 match rows + 2 seed rows, got %d", succRows)
	}
}

func TestAdvanceWinnerToleratesBracketDrift(t *testing.T) {
	t.Run("missing successor", func(t *testing.T) {
		match := pendingMatch(10, 1, 100, 200)
		match.Successor = intPtr(77) // does not exist
		matchRepo := newMockMatchRepository(match)
		svc := newTestScoreService(matchRepo, newMockScoreRepository(), &mockBroadcaster{})

		if _, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{Score: "3-1", Final: true}); err != nil {
			t.Fatalf("missing successor must not fail the submission: %v", err)
		}
	})

	t.Run("mismatched predecessors", func(t *testing.T) {
		match := pendingMatch(10, 1, 100, 200)
		match.Successor = intPtr(20)
		successor := &models.Match{
			ID:           20,
			TournamentID: 1,
			Predecessor1: intPtr(8),
			Predecessor2: intPtr(9),
			Status:       models.MatchStatusPending,
			Outcome:      models.OutcomeNormal,
		}
		matchRepo := newMockMatchRepository(match, successor)
		scoreRepo := newMockScoreRepository()
		svc := newTestScoreService(matchRepo, scoreRepo, &mockBroadcaster{})

		if _, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{Score: "3-1", Final: true}); err != nil {
			t.Fatalf("predecessor mismatch must not fail the submission: %v", err)
		}
		succ := matchRepo.matches[20]
		if succ.Team1ID != nil || succ.Team2ID != nil {
			t.Error("mismatched successor seats must stay untouched")
		}
		if scoreRepo.seedCalls != 0 {
			t.Error("mismatched successor must not be seeded")
		}
	})
}

func TestSubmitResultBroadcastsAfterCommit(t *testing.T) {
	matchRepo := newMockMatchRepository(pendingMatch(10, 7, 100, 200))
	hub := &mockBroadcaster{}
	svc := newTestScoreService(matchRepo, newMockScoreRepository(), hub)

	if _, err := svc.SubmitResult(context.Background(), 10, 7, ScoreSubmission{Score: "2-0"}); err != nil {
		t.Fatalf("SubmitResult failed: %v", err)
	}

	if len(hub.rooms) != 1 || hub.rooms[0] != "tournament_7" {
		t.Fatalf("expected one broadcast to tournament_7, got %v", hub.rooms)
	}
}

func TestSubmitResultStorageFailure(t *testing.T) {
	storageErr := errors.New("connection reset")
	matchRepo := newMockMatchRepository(pendingMatch(10, 1, 100, 200))
	scoreRepo := newMockScoreRepository()
	scoreRepo.upsertErr = storageErr
	hub := &mockBroadcaster{}
	svc := newTestScoreService(matchRepo, scoreRepo, hub)

	if _, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{Score: "3-1"}); !errors.Is(err, storageErr) {
		t.Fatalf("expected the storage error to propagate, got %v", err)
	}
	if len(hub.messages) != 0 {
		t.Error("a failed transaction must not broadcast")
	}
}

func TestSubmitResultOpenSeats(t *testing.T) {
	match := &models.Match{
		ID:           10,
		TournamentID: 1,
		Team1ID:      intPtr(100), // team2 seat still open
		Status:       models.MatchStatusPending,
		Outcome:      models.OutcomeNormal,
	}
	matchRepo := newMockMatchRepository(match)
	svc := newTestScoreService(matchRepo, newMockScoreRepository(), &mockBroadcaster{})

	if _, err := svc.SubmitResult(context.Background(), 10, 1, ScoreSubmission{Score: "3-1"}); !errors.Is(err, ErrMatchSeatsOpen) {
		t.Fatalf("expected ErrMatchSeatsOpen, got %v", err)
	}
}

func TestParseScoreLine(t *testing.T) {
	tests := []struct {
		in      string
		t1, t2  int
		wantErr bool
	}{
		{"3-1", 3, 1, false},
		{"0-0", 0, 0, false},
		{"10-7", 10, 7, false},
		{" 3-1 ", 3, 1, false},
		{"", 0, 0, true},
		{"3", 0, 0, true},
		{"3-", 0, 0, true},
		{"-1", 0, 0, true},
		{"3-1-2", 0, 0, true},
		{"a-b", 0, 0, true},
	}
	for _, tt := range tests {
		t1, t2, err := parseScoreLine(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseScoreLine(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseScoreLine(%q): %v", tt.in, err)
			continue
		}
		if t1 != tt.t1 || t2 != tt.t2 {
			t.Errorf("parseScoreLine(%q) = %d, %d; want %d, %d", tt.in, t1, t2, tt.t1, tt.t2)
		}
	}
}
