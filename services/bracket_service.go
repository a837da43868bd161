package services

import (
	"context"
	"fmt"

	"github.com/Dosada05/bracket-live/models"
	"github.com/Dosada05/bracket-live/repositories"
	"github.com/Dosada05/bracket-live/storage"
	"golang.org/x/sync/errgroup"
)

// MatchView is one bracket node enriched with its score rows and team
// details for rendering.
type MatchView struct {
	models.Match
	Scores []models.Score `json:"scores"`
	Team1  *models.Team   `json:"team1,omitempty"`
	Team2  *models.Team   `json:"team2,omitempty"`
}

type BracketView struct {
	TournamentID int         `json:"tournament_id"`
	Matches      []MatchView `json:"matches"`
}

type BracketService interface {
	// GetTournamentBracket assembles the full bracket of a tournament:
	// every match with its current score rows and the teams seated so far.
	GetTournamentBracket(ctx context.Context, tournamentID int) (*BracketView, error)
}

type bracketService struct {
	matchRepo repositories.MatchRepository
	scoreRepo repositories.ScoreRepository
	teamRepo  repositories.TeamRepository
	uploader  storage.FileUploader
}

func NewBracketService(
	matchRepo repositories.MatchRepository,
	scoreRepo repositories.ScoreRepository,
	teamRepo repositories.TeamRepository,
	uploader storage.FileUploader,
) BracketService {
	return &bracketService{
		matchRepo: matchRepo,
		scoreRepo: scoreRepo,
		teamRepo:  teamRepo,
		uploader:  uploader,
	}
}

func (s *bracketService) GetTournamentBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	if tournamentID <= 0 {
		return nil, ErrMatchIDRequired
	}

	var (
		matches []*models.Match
		scores  []*models.Score
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByTournament(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to fetch matches for tournament %d: %w", tournamentID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		scores, err = s.scoreRepo.ListByTournament(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to fetch scores for tournament %d: %w", tournamentID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	teamsByID, err := s.loadSeatedTeams(ctx, matches)
	if err != nil {
		return nil, err
	}

	scoresByMatch := make(map[int][]models.Score, len(matches))
	for _, score := range scores {
		scoresByMatch[score.MatchID] = append(scoresByMatch[score.MatchID], *score)
	}

	view := &BracketView{
		TournamentID: tournamentID,
		Matches:      make([]MatchView, 0, len(matches)),
	}
	for _, match := range matches {
		mv := MatchView{Match: *match}
		if rows, ok := scoresByMatch[match.ID]; ok {
			mv.Scores = rows
		} else {
			mv.Scores = []models.Score{}
		}
		if match.Team1ID != nil {
			mv.Team1 = teamsByID[*match.Team1ID]
		}
		if match.Team2ID != nil {
			mv.Team2 = teamsByID[*match.Team2ID]
		}
		view.Matches = append(view.Matches, mv)
	}
	return view, nil
}

func (s *bracketService) loadSeatedTeams(ctx context.Context, matches []*models.Match) (map[int]*models.Team, error) {
	idSet := make(map[int]bool)
	for _, match := range matches {
		if match.Team1ID != nil {
			idSet[*match.Team1ID] = true
		}
		if match.Team2ID != nil {
			idSet[*match.Team2ID] = true
		}
	}
	if len(idSet) == 0 {
		return map[int]*models.Team{}, nil
	}

	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	teams, err := s.teamRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch teams for bracket: %w", err)
	}

	teamsByID := make(map[int]*models.Team, len(teams))
	for _, team := range teams {
		populateTeamLogoURL(team, s.uploader)
		teamsByID[team.ID] = team
	}
	return teamsByID, nil
}

func populateTeamLogoURL(team *models.Team, uploader storage.FileUploader) {
	if team != nil && team.LogoKey != nil && *team.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*team.LogoKey)
		if url != "" {
			team.LogoURL = &url
		}
	}
}
