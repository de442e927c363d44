package survey

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// AnonymousUser is the synthetic identity shown for responses submitted
// without authentication.
var AnonymousUser = UserRef{ID: "anonymous", Name: "Anonymous"}

// GetResponse returns the respondent's answers against their bound version,
// collapsed back to one logical answer per question (multi-select rows merge
// into one option id list).
func GetResponse(ctx context.Context, db DBTX, surveyID, userID string) (ResponseView, error) {
	versionView, err := GetUserSurveyVersion(ctx, db, surveyID, userID)
	if err != nil {
		return ResponseView{}, err
	}
	if versionView.Version == nil {
		return ResponseView{}, errors.Wrapf(ErrNoResponse, "survey %s, user %s", surveyID, userID)
	}

	response, err := loadUserResponse(ctx, db, versionView.Version.ID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ResponseView{}, errors.Wrapf(ErrNoResponse, "survey %s, user %s", surveyID, userID)
	}
	if err != nil {
		return ResponseView{}, err
	}

	view := ResponseView{
		SurveyVersionID: response.SurveyVersionID,
		UserID:          response.UserID,
		IsComplete:      response.IsComplete,
		Answers:         []Answer{},
	}

	byQuestion := map[string]int{}
	for _, d := range response.Details {
		idx, seen := byQuestion[d.QuestionID]
		if !seen {
			idx = len(view.Answers)
			byQuestion[d.QuestionID] = idx
			view.Answers = append(view.Answers, Answer{
				QuestionID:        d.QuestionID,
				SelectedOptionIDs: []string{},
				FreeFormAnswer:    d.FreeFormAnswer,
			})
		}

		answer := &view.Answers[idx]
		if d.SelectedOptionID != nil {
			answer.SelectedOptionIDs = append(answer.SelectedOptionIDs, *d.SelectedOptionID)
		}
		if seen && d.FreeFormAnswer != nil && *d.FreeFormAnswer != "" {
			answer.FreeFormAnswer = d.FreeFormAnswer
		}
	}
	return view, nil
}

// GetResponses is the admin view: every response to the survey, grouped by
// version, with question and option text denormalized for display. Unlike
// GetResponse, multi-select rows stay one entry per selected option.
func GetResponses(ctx context.Context, db DBTX, surveyID, versionID string) (SurveyResponsesView, error) {
	view := SurveyResponsesView{Responses: []VersionResponses{}}
	err := db.QueryRowContext(ctx, `
		SELECT id, title, description FROM survey WHERE id = ?`,
		surveyID,
	).Scan(&view.Survey.ID, &view.Survey.Title, &view.Survey.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return SurveyResponsesView{}, errors.Wrapf(ErrSurveyNotFound, "id %s", surveyID)
	}
	if err != nil {
		return SurveyResponsesView{}, errors.Wrap(err, "query survey")
	}

	versions, err := listVersionRefs(ctx, db, surveyID, versionID)
	if err != nil {
		return SurveyResponsesView{}, err
	}

	details, err := loadDetailViews(ctx, db, surveyID, versionID)
	if err != nil {
		return SurveyResponsesView{}, err
	}

	respondents, err := loadRespondents(ctx, db, surveyID, versionID, details)
	if err != nil {
		return SurveyResponsesView{}, err
	}

	for _, version := range versions {
		group := VersionResponses{
			Version:   version,
			Responses: respondents[version.ID],
		}
		if group.Responses == nil {
			group.Responses = []RespondentView{}
		}
		view.Responses = append(view.Responses, group)
	}
	return view, nil
}

func listVersionRefs(ctx context.Context, db DBTX, surveyID, versionID string) ([]VersionRef, error) {
	query := `
		SELECT id, version FROM survey_version
		WHERE survey_id = ?`
	args := []any{surveyID}
	if versionID != "" {
		query += ` AND id = ?`
		args = append(args, versionID)
	}
	query += ` ORDER BY version`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query versions")
	}
	defer rows.Close()

	versions := []VersionRef{}
	for rows.Next() {
		v := VersionRef{}
		err = rows.Scan(&v.ID, &v.Version)
		if err != nil {
			return nil, errors.Wrap(err, "scan version")
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// loadDetailViews denormalizes every detail row of the survey's responses,
// keyed by response id.
func loadDetailViews(ctx context.Context, db DBTX, surveyID, versionID string) (map[string][]DetailView, error) {
	query := `
		SELECT
			d.response_id,
			d.question_id, q.text,
			o.id, o.text,
			d.free_form_answer
		FROM survey_response_detail d
		INNER JOIN survey_question q ON (d.question_id = q.id)
		LEFT OUTER JOIN survey_question_option o ON (d.selected_option_id = o.id)
		INNER JOIN survey_response r ON (d.response_id = r.id)
		INNER JOIN survey_version v ON (r.survey_version_id = v.id)
		WHERE v.survey_id = ?`
	args := []any{surveyID}
	if versionID != "" {
		query += ` AND v.id = ?`
		args = append(args, versionID)
	}
	query += ` ORDER BY d.rowid`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query response details")
	}
	defer rows.Close()

	details := map[string][]DetailView{}
	for rows.Next() {
		var responseID string
		d := DetailView{}
		var optID, optText sql.NullString
		err = rows.Scan(&responseID, &d.QuestionID, &d.QuestionText, &optID, &optText, &d.FreeFormAnswer)
		if err != nil {
			return nil, errors.Wrap(err, "scan response detail")
		}
		if optID.Valid {
			d.SelectedOption = &OptionRef{ID: optID.String, Text: optText.String}
		}
		details[responseID] = append(details[responseID], d)
	}
	return details, rows.Err()
}

// loadRespondents groups responses by version id, resolving each respondent's
// identity (or the synthetic anonymous one).
func loadRespondents(ctx context.Context, db DBTX, surveyID, versionID string, details map[string][]DetailView) (map[string][]RespondentView, error) {
	query := `
		SELECT r.id, r.survey_version_id, u.id, u.name
		FROM survey_response r
		LEFT OUTER JOIN user u ON (r.user_id = u.id)
		INNER JOIN survey_version v ON (r.survey_version_id = v.id)
		WHERE v.survey_id = ?`
	args := []any{surveyID}
	if versionID != "" {
		query += ` AND v.id = ?`
		args = append(args, versionID)
	}
	query += ` ORDER BY r.rowid`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query responses")
	}
	defer rows.Close()

	respondents := map[string][]RespondentView{}
	for rows.Next() {
		var responseID, responseVersionID string
		var userID, userName sql.NullString
		err = rows.Scan(&responseID, &responseVersionID, &userID, &userName)
		if err != nil {
			return nil, errors.Wrap(err, "scan response")
		}

		respondent := RespondentView{
			User:            AnonymousUser,
			ResponseDetails: details[responseID],
		}
		if userID.Valid {
			respondent.User = UserRef{ID: userID.String, Name: userName.String}
		}
		if respondent.ResponseDetails == nil {
			respondent.ResponseDetails = []DetailView{}
		}
		respondents[responseVersionID] = append(respondents[responseVersionID], respondent)
	}
	return respondents, rows.Err()
}
