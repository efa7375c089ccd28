package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/signet/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	roomsHandler := handlers.NewRoomsHandler(s.rooms, s.accounts, s.artifacts)
	accountsHandler := handlers.NewAccountsHandler(s.accounts, s.signatures, s.service.Normalizer())
	trainHandler := handlers.NewTrainHandler(s.rooms, s.service, s.jobManager)
	recognitionHandler := handlers.NewRecognitionHandler(s.rooms, s.accounts, s.service)
	verificationHandler := handlers.NewVerificationHandler(s.rooms, s.accounts, s.service)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// SSE streams stay open for the whole training run
		r.Get("/train/{jobId}/events", trainHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(5 * time.Minute))

			// Accounts and enrollment
			r.Get("/accounts", accountsHandler.List)
			r.Post("/accounts", accountsHandler.Create)
			r.Get("/accounts/{accountID}", accountsHandler.Get)
			r.Get("/accounts/{accountID}/signatures", accountsHandler.ListSignatures)
			r.Post("/accounts/{accountID}/signatures", accountsHandler.UploadSignatures)
			r.Delete("/signatures/{signatureID}", accountsHandler.DeleteSignature)

			// Rooms and membership
			r.Get("/rooms", roomsHandler.List)
			r.Post("/rooms", roomsHandler.Create)
			r.Get("/rooms/{roomID}", roomsHandler.Get)
			r.Delete("/rooms/{roomID}", roomsHandler.Delete)
			r.Get("/rooms/{roomID}/members", roomsHandler.Members)
			r.Get("/rooms/{roomID}/members.csv", roomsHandler.ExportMembers)
			r.Post("/rooms/{roomID}/members", roomsHandler.Join)
			r.Delete("/rooms/{roomID}/members/{accountID}", roomsHandler.Leave)

			// Matching
			r.Post("/rooms/{roomID}/train", trainHandler.Start)
			r.Post("/rooms/{roomID}/recognize", recognitionHandler.Recognize)
			r.Post("/rooms/{roomID}/verify", verificationHandler.Verify)

			// Training jobs
			r.Get("/train/{jobId}", trainHandler.Status)
			r.Delete("/train/{jobId}", trainHandler.Cancel)
		})
	})
}
