package routes

import (
	"github.com/Dosada05/rps-arena/handlers"
	"github.com/Dosada05/rps-arena/middleware"
	"github.com/Dosada05/rps-arena/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Tournament *handlers.TournamentHandler
	Match      *handlers.MatchHandler
	WebSocket  *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, jwtSecret []byte) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Post("/auth/signup", h.Auth.SignUpHandler)
	router.Post("/auth/signin", h.Auth.SignInHandler)

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты для просмотра
		r.Get("/", h.Tournament.ListHandler)
		r.Get("/{tournamentID}", h.Tournament.GetByIDHandler)
		r.Get("/{tournamentID}/bracket", h.Tournament.BracketHandler)

		// Защищённые маршруты
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			// Создавать турниры могут организаторы и админы; игроки
			// регистрируются и играют.
			r.With(middleware.Authorize(models.RoleOrganizer, models.RoleAdmin)).
				Post("/", h.Tournament.CreateHandler)
			r.Post("/{tournamentID}/registration", h.Tournament.OpenRegistrationHandler)
			r.Post("/{tournamentID}/participants", h.Tournament.RegisterHandler)
			r.Post("/{tournamentID}/start", h.Tournament.StartHandler)
			r.Delete("/{tournamentID}", h.Tournament.CancelHandler)
			r.Post("/{tournamentID}/logo", h.Tournament.UploadLogoHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", h.Match.GetHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/quick", h.Match.CreateQuickHandler)
			r.Post("/{matchID}/join", h.Match.JoinHandler)
			r.Post("/{matchID}/moves", h.Match.SubmitMoveHandler)
			r.Post("/{matchID}/forfeit", h.Match.ForfeitHandler)
		})
	})

	router.With(authenticate).Get("/users/{userID}/stats", h.Match.StatsHandler)

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	return router
}
