package services

import "errors"

// Shared sentinel errors, mapped to HTTP statuses in handlers.
var (
	// Score submission validation
	ErrMatchIDRequired = errors.New("match_id and tournament_id are required")
	ErrScoreRequired   = errors.New("score is required for normal matches")
	ErrScoreFormat     = errors.New(`score format must be "X-Y"`)
	ErrWinnerRequired  = errors.New("winner_team_id required for walkover")
	ErrMatchSeatsOpen  = errors.New("match teams are not determined yet")
	ErrMatchNotFound   = errors.New("match not found")

	// Teams
	ErrTeamNotFound     = errors.New("team not found")
	ErrValidationFailed = errors.New("validation failed")

	// Auth
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrPasswordTooShort       = errors.New("password is too short")

	// Storage
	ErrUploaderNotConfigured = errors.New("file storage is not configured")
)
