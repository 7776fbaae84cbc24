package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"notehub/internal/catalog"
	"notehub/internal/handlers"
	"notehub/internal/identity"
	"notehub/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Identity        identity.Service
	Notes           service.NoteService
	Views           handlers.NoteViews
	Catalog         *catalog.Catalog
	DB              handlers.Pinger
	AdminInviteCode string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) (http.Handler, error) {
	home, err := handlers.NewHomeHandler()
	if err != nil {
		return nil, err
	}
	health := handlers.NewHealthHandler(deps.DB)
	auth := handlers.NewAuthHandler(deps.Identity, deps.AdminInviteCode)
	noteHandler := handlers.NewNoteHandler(deps.Notes, deps.Views, deps.Catalog)
	liveHandler := handlers.NewLiveHandler(deps.Views, deps.Catalog)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	requireAuth := RequireAuth(deps.Identity)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", health)
		r.Method(http.MethodGet, "/catalog", handlers.NewCatalogHandler(deps.Catalog))
		r.Get("/links/normalize", handlers.NormalizeLink)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", auth.Register)
			r.Post("/login", auth.Login)
			r.Post("/login/federated", auth.LoginFederated)
			r.Post("/admin/login", auth.AdminLogin)
			r.Post("/admin/register", auth.AdminRegister)
			r.Post("/logout", auth.Logout)
			r.Post("/password/reset", auth.RequestPasswordReset)
			r.Post("/password/reset/confirm", auth.ConfirmPasswordReset)
			r.Post("/verify", auth.VerifyEmail)
			r.With(requireAuth).Post("/password", auth.ChangePassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", auth.Me)
			r.Patch("/me", auth.UpdateMe)
			r.Get("/browse/{batch}/{termLevel}", noteHandler.Browse)
			r.Get("/notes/term/{termLevel}", noteHandler.ByTerm)
			r.Method(http.MethodGet, "/live", liveHandler)

			r.Route("/admin/notes", func(r chi.Router) {
				r.Use(RequireAdmin)

				r.Get("/", noteHandler.AdminList)
				r.Post("/", noteHandler.Create)
				r.Get("/groups", noteHandler.Groups)
				r.Put("/{id}", noteHandler.Update)
				r.Delete("/{id}", noteHandler.Delete)
				r.Get("/{id}/edit", noteHandler.Edit)
			})
		})
	})

	r.Method(http.MethodGet, "/", home)

	return r, nil
}
