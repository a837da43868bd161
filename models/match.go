package models

import "time"

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusCompleted MatchStatus = "completed"
)

type MatchOutcome string

const (
	OutcomeNormal   MatchOutcome = "normal"
	OutcomeWalkover MatchOutcome = "walkover"
	OutcomeForfeit  MatchOutcome = "forfeit"
)

// Match is a node in the single-elimination tree. Predecessor1/Predecessor2
// point at the two matches feeding this one, Successor at the match the
// winner advances into. A seat (Team1ID/Team2ID) stays nil until the
// corresponding predecessor completes.
type Match struct {
	ID           int          `json:"id"`
	TournamentID int          `json:"tournament_id"`
	Team1ID      *int         `json:"team1_id,omitempty"`
	Team2ID      *int         `json:"team2_id,omitempty"`
	Predecessor1 *int         `json:"predecessor_1,omitempty"`
	Predecessor2 *int         `json:"predecessor_2,omitempty"`
	Successor    *int         `json:"successor,omitempty"`
	Status       MatchStatus  `json:"status"`
	IsFinal      bool         `json:"is_final"`
	Outcome      MatchOutcome `json:"outcome"`
	WinnerTeamID *int         `json:"winner_team_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
