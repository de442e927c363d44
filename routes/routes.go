package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"surveyvault/app"
	"surveyvault/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Post("/user/register", Register(app))
	api.Post("/user/login", Login(app))
	api.Post("/user/refresh", Refresh(app))

	api.Get("/surveys/{id}/latest", GetLatestVersion(app))

	api.Group(func(r chi.Router) {
		r.Use(middlewares.MaybeUser(app.Config))

		r.Get("/surveys", ListSurveys(app))
		r.Get("/surveys/{id}/user-version", GetUserSurveyVersion(app))
		r.Post("/surveys/{id}/responses", SubmitResponse(app))
		r.Post("/surveys/{id}/responses/detail", SubmitResponseDetail(app))
		r.Get("/surveys/{id}/response", GetResponse(app))
	})

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Admin(app.Config))

		r.Post("/surveys", CreateSurvey(app))
		r.Get("/surveys", ListSurveysWithVersions(app))
		r.Post("/surveys/{id}", EditSurvey(app))
		r.Get("/surveys/{id}/versions/{versionId}", GetSurveyVersion(app))
		r.Get("/surveys/{id}/responses", GetResponses(app))
	})

	return api
}
