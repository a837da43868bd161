package models

import "time"

// Score is the per-(match, team) result row. At most one row exists per
// (MatchID, TeamID) pair; rows are upserted in place, never deleted.
type Score struct {
	ID           int       `json:"id"`
	MatchID      int       `json:"match_id"`
	TeamID       int       `json:"team_id"`
	TournamentID int       `json:"tournament_id"`
	Points       int       `json:"score"`
	CreatedAt    time.Time `json:"created_at"`
}
