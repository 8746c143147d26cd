package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dosada05/playoff-scoring/handlers"
)

type Handlers struct {
	Score     *handlers.ScoreHandler
	Ranking   *handlers.RankingHandler
	Bracket   *handlers.BracketHandler
	Summary   *handlers.SummaryHandler
	WebSocket *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, h Handlers, gatherer prometheus.Gatherer, allowedOrigins []string) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	router.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		r.Route("/performance/{teamNumber}/{runNumber}", func(r chi.Router) {
			r.Get("/", h.Score.GetPerformanceScore)
			r.Put("/", h.Score.PutPerformanceScore)
			r.Delete("/", h.Score.DeletePerformanceScore)
		})

		r.Get("/rankings", h.Ranking.GetTeamRankings)
		r.Get("/seeding", h.Ranking.GetPlayoffSeedingOrder)

		r.Get("/brackets", h.Bracket.ListBrackets)
		r.Get("/brackets/{bracketName}", h.Bracket.GetBracket)

		r.Post("/summary", h.Summary.Summarize)
	})

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)
}
