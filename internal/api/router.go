package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// jsonBodyLimit caps every JSON request body. Multipart uploads carry their
// own larger limit inside the upload handlers.
const jsonBodyLimit = 1 << 20

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.With(middleware.RequestSize(jsonBodyLimit)).
			Get("/users/by-username/{username}", apiHandler.GetUserByUsernameHandler)
		r.With(middleware.RequestSize(jsonBodyLimit)).
			Get("/projects/{projectID}", apiHandler.GetProjectHandler)
		r.Post("/billing/webhook", apiHandler.WebhookHandler)
		r.With(middleware.RequestSize(jsonBodyLimit)).
			Post("/oauth/token", apiHandler.TokenHandler) // authenticates with the code itself

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Multipart uploads, capped by the upload handlers instead
			r.Post("/content/file", apiHandler.UploadFileHandler)
			r.Post("/content/writing-sample", apiHandler.UploadWritingSampleHandler)
			r.Post("/projects/{projectID}/content/file", apiHandler.UploadFileHandler)

			// JSON routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequestSize(jsonBodyLimit))

				r.Post("/users/init", apiHandler.InitUserHandler)
				r.Get("/users/me", apiHandler.GetMeHandler)
				r.Put("/users/me/profile", apiHandler.UpdateProfileHandler)

				// Grounded Q&A and conversational intake
				r.Post("/ask", apiHandler.AskHandler)
				r.Post("/intake", apiHandler.IntakeHandler)

				// Profile-scope content
				r.Post("/content/text", apiHandler.SaveTextHandler)
				r.Get("/conversations", apiHandler.ListConversationsHandler)
				r.Delete("/conversations/{itemID}", apiHandler.DeleteConversationHandler)
				r.Get("/files", apiHandler.ListFilesHandler)
				r.Delete("/files/{itemID}", apiHandler.DeleteFileHandler)

				// Projects and project-scope content
				r.Post("/projects", apiHandler.CreateProjectHandler)
				r.Get("/projects", apiHandler.ListProjectsHandler)
				r.Put("/projects/{projectID}", apiHandler.UpdateProjectHandler)
				r.Delete("/projects/{projectID}", apiHandler.DeleteProjectHandler)
				r.Post("/projects/{projectID}/ask", apiHandler.AskProjectHandler)
				r.Post("/projects/{projectID}/content/text", apiHandler.SaveTextHandler)
				r.Get("/projects/{projectID}/conversations", apiHandler.ListConversationsHandler)
				r.Delete("/projects/{projectID}/conversations/{itemID}", apiHandler.DeleteConversationHandler)
				r.Get("/projects/{projectID}/files", apiHandler.ListFilesHandler)
				r.Delete("/projects/{projectID}/files/{itemID}", apiHandler.DeleteFileHandler)

				// Billing
				r.Get("/billing/subscription", apiHandler.SubscriptionHandler)
				r.Post("/billing/checkout", apiHandler.CheckoutHandler)

				// OAuth bridging (authorize requires a logged-in user)
				r.Get("/oauth/authorize", apiHandler.AuthorizeHandler)
				r.Post("/oauth/cleanup", apiHandler.CleanupHandler)
			})
		})
	})

	return r
}
