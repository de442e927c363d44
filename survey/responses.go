package survey

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// SubmitResponseDetail records one answer. Version resolution, response
// find-or-create, the merge and completion recomputation all run inside one
// transaction; any failure rolls the whole submission back.
func SubmitResponseDetail(ctx context.Context, db *sql.DB, surveyID string, in AnswerInput, user *User) (*Response, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	response, err := FindOrCreateResponse(ctx, tx, surveyID, user)
	if err != nil {
		return nil, err
	}
	err = SaveResponseDetail(ctx, tx, response, in)
	if err != nil {
		return nil, err
	}
	err = CheckAndMarkCompletion(ctx, tx, response)
	if err != nil {
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return response, nil
}

// SubmitResponse records a batch of answers in payload order, under the same
// transactional contract as the single-answer path.
func SubmitResponse(ctx context.Context, db *sql.DB, surveyID string, in ResponseInput, user *User) (*Response, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	response, err := FindOrCreateResponse(ctx, tx, surveyID, user)
	if err != nil {
		return nil, err
	}
	for _, detail := range in.ResponseDetails {
		err = SaveResponseDetail(ctx, tx, response, detail)
		if err != nil {
			return nil, err
		}
	}
	err = CheckAndMarkCompletion(ctx, tx, response)
	if err != nil {
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return response, nil
}

// FindOrCreateResponse resolves the respondent's effective version and reuses
// their in-progress response when they are authenticated. Anonymous callers
// get a fresh response on every call; there is deliberately nothing to key a
// reuse on.
func FindOrCreateResponse(ctx context.Context, tx DBTX, surveyID string, user *User) (*Response, error) {
	userID := ""
	if user != nil {
		userID = user.ID
	}

	view, err := GetUserSurveyVersion(ctx, tx, surveyID, userID)
	if err != nil {
		return nil, err
	}
	if view.Version == nil {
		return nil, errors.Wrapf(ErrVersionNotFound, "survey %s has no versions", surveyID)
	}

	if user != nil {
		response, err := loadUserResponse(ctx, tx, view.Version.ID, userID)
		if err == nil {
			return response, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	response := &Response{
		ID:              newID(),
		SurveyVersionID: view.Version.ID,
		Details:         []ResponseDetail{},
	}
	var userVal any
	if user != nil {
		response.UserID = &user.ID
		userVal = user.ID
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO survey_response (id, survey_version_id, user_id) VALUES (?, ?, ?)`,
		response.ID, response.SurveyVersionID, userVal,
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert response")
	}
	return response, nil
}

func loadUserResponse(ctx context.Context, db DBTX, versionID, userID string) (*Response, error) {
	response := &Response{Details: []ResponseDetail{}}
	err := db.QueryRowContext(ctx, `
		SELECT id, survey_version_id, user_id, is_complete
		FROM survey_response
		WHERE survey_version_id = ? AND user_id = ?`,
		versionID, userID,
	).Scan(&response.ID, &response.SurveyVersionID, &response.UserID, &response.IsComplete)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "query response")
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, question_id, selected_option_id, free_form_answer
		FROM survey_response_detail
		WHERE response_id = ?
		ORDER BY rowid`,
		response.ID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query response details")
	}
	defer rows.Close()

	for rows.Next() {
		d := ResponseDetail{ResponseID: response.ID}
		err = rows.Scan(&d.ID, &d.QuestionID, &d.SelectedOptionID, &d.FreeFormAnswer)
		if err != nil {
			return nil, errors.Wrap(err, "scan response detail")
		}
		response.Details = append(response.Details, d)
	}
	return response, rows.Err()
}

// SaveResponseDetail merges one incoming answer into the response.
//
// MULTI_SELECT answers replace the whole stored option set; an empty list
// clears the answer. Other types keep at most one detail row per question.
// Option ownership and type/payload coherence are not checked: the merger
// trusts the caller.
func SaveResponseDetail(ctx context.Context, tx DBTX, response *Response, in AnswerInput) error {
	var questionType QuestionType
	err := tx.QueryRowContext(ctx, `
		SELECT type FROM survey_question WHERE id = ?`,
		in.QuestionID,
	).Scan(&questionType)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(ErrQuestionNotFound, "id %s", in.QuestionID)
	}
	if err != nil {
		return errors.Wrap(err, "query question")
	}

	if questionType == MultiSelect {
		return replaceMultiSelect(ctx, tx, response, in)
	}
	return upsertSingleDetail(ctx, tx, response, in)
}

func replaceMultiSelect(ctx context.Context, tx DBTX, response *Response, in AnswerInput) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM survey_response_detail
		WHERE response_id = ? AND question_id = ?`,
		response.ID, in.QuestionID,
	)
	if err != nil {
		return errors.Wrap(err, "clear multi-select details")
	}

	kept := response.Details[:0]
	for _, d := range response.Details {
		if d.QuestionID != in.QuestionID {
			kept = append(kept, d)
		}
	}
	response.Details = kept

	for _, optionID := range in.SelectedOptionIDs {
		optionID := optionID
		d := ResponseDetail{
			ID:               newID(),
			ResponseID:       response.ID,
			QuestionID:       in.QuestionID,
			SelectedOptionID: &optionID,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO survey_response_detail (id, response_id, question_id, selected_option_id, free_form_answer)
			VALUES (?, ?, ?, ?, NULL)`,
			d.ID, d.ResponseID, d.QuestionID, optionID,
		)
		if err != nil {
			return errors.Wrap(err, "insert multi-select detail")
		}
		response.Details = append(response.Details, d)
	}
	return nil
}

func upsertSingleDetail(ctx context.Context, tx DBTX, response *Response, in AnswerInput) error {
	var selected *string
	if len(in.SelectedOptionIDs) > 0 {
		selected = &in.SelectedOptionIDs[0]
	}

	for i := range response.Details {
		d := &response.Details[i]
		if d.QuestionID != in.QuestionID {
			continue
		}

		d.SelectedOptionID = selected
		d.FreeFormAnswer = in.FreeFormAnswer
		_, err := tx.ExecContext(ctx, `
			UPDATE survey_response_detail
			SET selected_option_id = ?, free_form_answer = ?
			WHERE id = ?`,
			nullable(selected), nullable(in.FreeFormAnswer), d.ID,
		)
		return errors.Wrap(err, "update detail")
	}

	d := ResponseDetail{
		ID:               newID(),
		ResponseID:       response.ID,
		QuestionID:       in.QuestionID,
		SelectedOptionID: selected,
		FreeFormAnswer:   in.FreeFormAnswer,
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO survey_response_detail (id, response_id, question_id, selected_option_id, free_form_answer)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.ResponseID, d.QuestionID, nullable(selected), nullable(in.FreeFormAnswer),
	)
	if err != nil {
		return errors.Wrap(err, "insert detail")
	}
	response.Details = append(response.Details, d)
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// CheckAndMarkCompletion flips is_complete once every question of the bound
// version has at least one detail row. The distinct count runs against the
// detail table, not the in-memory list: multi-select answers store several
// rows per question. The flag is one-way; nothing here ever resets it.
func CheckAndMarkCompletion(ctx context.Context, tx DBTX, response *Response) error {
	var total int
	err := tx.QueryRowContext(ctx, `
		SELECT count(q.id)
		FROM survey_version v
		LEFT OUTER JOIN survey_question q ON (v.id = q.survey_version_id)
		WHERE v.id = ?
		GROUP BY v.id`,
		response.SurveyVersionID,
	).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(ErrVersionNotFound, "id %s", response.SurveyVersionID)
	}
	if err != nil {
		return errors.Wrap(err, "count questions")
	}

	var answered int
	err = tx.QueryRowContext(ctx, `
		SELECT count(DISTINCT question_id)
		FROM survey_response_detail
		WHERE response_id = ?`,
		response.ID,
	).Scan(&answered)
	if err != nil {
		return errors.Wrap(err, "count answered questions")
	}

	if response.IsComplete || answered != total {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE survey_response SET is_complete = 1 WHERE id = ?`,
		response.ID,
	)
	if err != nil {
		return errors.Wrap(err, "mark complete")
	}
	response.IsComplete = true
	return nil
}
