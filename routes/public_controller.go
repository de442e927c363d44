package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"surveyvault/app"
	"surveyvault/httpx"
	"surveyvault/log"
	"surveyvault/routes/middlewares"
	"surveyvault/survey"
)

// renderDomainError maps core domain errors to status codes; anything else is
// an internal error with a logged cause.
func renderDomainError(w http.ResponseWriter, code string, err error) {
	switch {
	case errors.Is(err, survey.ErrSurveyNotFound),
		errors.Is(err, survey.ErrVersionNotFound),
		errors.Is(err, survey.ErrQuestionNotFound),
		errors.Is(err, survey.ErrNoResponse):
		httpx.LogNotFound(w, code, err)
	default:
		httpx.LogInternalError(w, code, err)
	}
}

func ListSurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := ""
		if user := middlewares.UserFromRequest(r); user != nil {
			userID = user.ID
		}

		surveys, err := survey.ListSurveys(r.Context(), app.DB, userID)
		if err != nil {
			renderDomainError(w, "get_surveys", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"surveys": surveys,
		})
	}
}

func GetLatestVersion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyID := chi.URLParam(r, "id")

		view, err := survey.GetLatestVersion(r.Context(), app.DB, surveyID)
		if err != nil {
			renderDomainError(w, "get_latest_version", err)
			return
		}

		render.JSON(w, r, view)
	}
}

func GetUserSurveyVersion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyID := chi.URLParam(r, "id")
		userID := ""
		if user := middlewares.UserFromRequest(r); user != nil {
			userID = user.ID
		}

		view, err := survey.GetUserSurveyVersion(r.Context(), app.DB, surveyID, userID)
		if err != nil {
			renderDomainError(w, "get_user_survey_version", err)
			return
		}

		render.JSON(w, r, view)
	}
}

func SubmitResponseDetail(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyID := chi.URLParam(r, "id")

		in := survey.AnswerInput{}
		err := render.DecodeJSON(r.Body, &in)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		response, err := survey.SubmitResponseDetail(r.Context(), app.DB, surveyID, in, middlewares.UserFromRequest(r))
		if err != nil {
			renderDomainError(w, "submit_response_detail", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, response)
	}
}

func SubmitResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyID := chi.URLParam(r, "id")

		in := survey.ResponseInput{}
		err := render.DecodeJSON(r.Body, &in)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		response, err := survey.SubmitResponse(r.Context(), app.DB, surveyID, in, middlewares.UserFromRequest(r))
		if err != nil {
			renderDomainError(w, "submit_response", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, response)
	}
}

func GetResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyID := chi.URLParam(r, "id")

		user := middlewares.UserFromRequest(r)
		if user == nil {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "get_response.anonymous")
			return
		}

		view, err := survey.GetResponse(r.Context(), app.DB, surveyID, user.ID)
		if err != nil {
			renderDomainError(w, "get_response", err)
			return
		}

		render.JSON(w, r, view)
	}
}
