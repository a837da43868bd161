package routes

import (
	"time"

	"github.com/Dosada05/bracket-live/handlers"
	"github.com/Dosada05/bracket-live/middleware"
	"github.com/Dosada05/bracket-live/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	scoreHandler *handlers.ScoreHandler,
	bracketHandler *handlers.BracketHandler,
	teamHandler *handlers.TeamHandler,
	authHandler *handlers.AuthHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret string,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.With(middleware.RateLimit(60, time.Minute)).
		Post("/update-score", scoreHandler.UpdateScore)

	router.Get("/matches/{matchID}/scores", scoreHandler.ListMatchScores)
	router.Get("/tournaments/{tournamentID}/bracket", bracketHandler.GetTournamentBracket)

	router.Route("/teams/{teamID}", func(r chi.Router) {
		r.Get("/", teamHandler.GetTeam)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize(models.RoleOrganizer, models.RoleAdmin))
			r.Put("/logo", teamHandler.UploadLogo)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
