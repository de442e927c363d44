package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"surveyvault/app"
	"surveyvault/httpx"
	"surveyvault/log"
	"surveyvault/survey"
)

func CreateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := survey.SurveyInput{}
		err := render.DecodeJSON(r.Body, &in)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		created, err := survey.CreateSurvey(r.Context(), tx, in)
		if err != nil {
			renderDomainError(w, "create_survey", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "create_survey.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, created)
	}
}

func EditSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyID := chi.URLParam(r, "id")

		in := survey.SurveyInput{}
		err := render.DecodeJSON(r.Body, &in)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		version, err := survey.EditSurvey(r.Context(), tx, surveyID, in)
		if err != nil {
			renderDomainError(w, "edit_survey", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "edit_survey.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, version)
	}
}

func ListSurveysWithVersions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveys, err := survey.ListSurveysWithVersions(r.Context(), app.DB)
		if err != nil {
			renderDomainError(w, "get_surveys_with_versions", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"surveys": surveys,
		})
	}
}

func GetSurveyVersion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyID := chi.URLParam(r, "id")
		versionID := chi.URLParam(r, "versionId")

		version, err := survey.GetSurveyVersion(r.Context(), app.DB, surveyID, versionID)
		if err != nil {
			renderDomainError(w, "get_survey_version", err)
			return
		}
		// an unknown version is an empty result, not an error
		if version == nil {
			httpx.LogNotFound(w, "get_survey_version", versionID)
			return
		}

		render.JSON(w, r, version)
	}
}

func GetResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyID := chi.URLParam(r, "id")
		versionID := r.URL.Query().Get("versionId")

		view, err := survey.GetResponses(r.Context(), app.DB, surveyID, versionID)
		if err != nil {
			renderDomainError(w, "get_responses", err)
			return
		}

		render.JSON(w, r, view)
	}
}
