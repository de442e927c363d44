package survey

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// CreateSurvey creates the survey row, version 1 and the question/option tree.
// The caller owns the transaction.
func CreateSurvey(ctx context.Context, tx DBTX, in SurveyInput) (Survey, error) {
	s := Survey{
		ID:          newID(),
		Title:       in.Title,
		Description: in.Description,
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO survey (id, title, description) VALUES (?, ?, ?)`,
		s.ID, s.Title, s.Description,
	)
	if err != nil {
		return Survey{}, errors.Wrap(err, "insert survey")
	}

	versionID := newID()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO survey_version (id, survey_id, version) VALUES (?, ?, 1)`,
		versionID, s.ID,
	)
	if err != nil {
		return Survey{}, errors.Wrap(err, "insert version")
	}

	err = insertQuestionTree(ctx, tx, versionID, in.Questions)
	if err != nil {
		return Survey{}, err
	}
	return s, nil
}

// EditSurvey snapshots a brand-new version numbered latest+1 and rebuilds the
// question tree from the input. Title and description are patched only when
// supplied non-empty. Existing versions and responses are untouched.
func EditSurvey(ctx context.Context, tx DBTX, surveyID string, in SurveyInput) (Version, error) {
	latest, err := GetLatestVersion(ctx, tx, surveyID)
	if err != nil {
		return Version{}, err
	}

	next := Version{
		ID:       newID(),
		SurveyID: surveyID,
		Version:  1,
	}
	if latest.Version != nil {
		next.Version = latest.Version.Version + 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO survey_version (id, survey_id, version) VALUES (?, ?, ?)`,
		next.ID, next.SurveyID, next.Version,
	)
	if err != nil {
		return Version{}, errors.Wrap(err, "insert version")
	}

	if in.Title != "" {
		_, err = tx.ExecContext(ctx, `UPDATE survey SET title = ? WHERE id = ?`, in.Title, surveyID)
		if err != nil {
			return Version{}, errors.Wrap(err, "patch title")
		}
	}
	if in.Description != "" {
		_, err = tx.ExecContext(ctx, `UPDATE survey SET description = ? WHERE id = ?`, in.Description, surveyID)
		if err != nil {
			return Version{}, errors.Wrap(err, "patch description")
		}
	}

	err = insertQuestionTree(ctx, tx, next.ID, in.Questions)
	if err != nil {
		return Version{}, err
	}
	return next, nil
}

// insertQuestionTree persists questions and options in input order, trusting
// caller-supplied sequence numbers verbatim.
func insertQuestionTree(ctx context.Context, tx DBTX, versionID string, questions []QuestionInput) error {
	qStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO survey_question (id, survey_version_id, type, text, sequence_number)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "insert questions: prepare")
	}
	defer qStmt.Close()

	oStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO survey_question_option (id, question_id, text, sequence_number)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "insert options: prepare")
	}
	defer oStmt.Close()

	for _, q := range questions {
		questionID := newID()
		_, err = qStmt.ExecContext(ctx, questionID, versionID, q.Type, q.Text, q.SequenceNumber)
		if err != nil {
			return errors.Wrap(err, "insert question")
		}

		for _, o := range q.Options {
			_, err = oStmt.ExecContext(ctx, newID(), questionID, o.Text, o.SequenceNumber)
			if err != nil {
				return errors.Wrap(err, "insert option")
			}
		}
	}
	return nil
}

// GetLatestVersion resolves the survey's newest version together with its
// title and description.
func GetLatestVersion(ctx context.Context, db DBTX, surveyID string) (VersionView, error) {
	view, err := loadSurveyHead(ctx, db, surveyID)
	if err != nil {
		return VersionView{}, err
	}

	var versionID string
	err = db.QueryRowContext(ctx, `
		SELECT id FROM survey_version
		WHERE survey_id = ?
		ORDER BY version DESC
		LIMIT 1`,
		surveyID,
	).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return view, nil
	}
	if err != nil {
		return VersionView{}, errors.Wrap(err, "query latest version")
	}

	view.Version, err = loadVersion(ctx, db, versionID)
	return view, err
}

// GetSurveyVersion looks up one exact version scoped to its owning survey.
// A miss yields (nil, nil), not an error; callers must check.
func GetSurveyVersion(ctx context.Context, db DBTX, surveyID, versionID string) (*Version, error) {
	v := &Version{}
	err := db.QueryRowContext(ctx, `
		SELECT id, survey_id, version FROM survey_version
		WHERE id = ? AND survey_id = ?`,
		versionID, surveyID,
	).Scan(&v.ID, &v.SurveyID, &v.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query version")
	}

	v.Questions, err = loadQuestions(ctx, db, v.ID)
	return v, err
}

// GetUserSurveyVersion returns the version an authenticated respondent is
// already answering against, so edits never shift the shape under them.
// Anonymous callers (empty userID) and first-time respondents get the latest.
func GetUserSurveyVersion(ctx context.Context, db DBTX, surveyID, userID string) (VersionView, error) {
	if userID == "" {
		return GetLatestVersion(ctx, db, surveyID)
	}

	view, err := loadSurveyHead(ctx, db, surveyID)
	if err != nil {
		return VersionView{}, err
	}

	var versionID string
	err = db.QueryRowContext(ctx, `
		SELECT v.id
		FROM survey_response r
		INNER JOIN survey_version v ON (r.survey_version_id = v.id)
		WHERE r.user_id = ? AND v.survey_id = ?
		LIMIT 1`,
		userID, surveyID,
	).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return GetLatestVersion(ctx, db, surveyID)
	}
	if err != nil {
		return VersionView{}, errors.Wrap(err, "query in-progress response")
	}

	view.Version, err = loadVersion(ctx, db, versionID)
	return view, err
}

// ListSurveys lists every survey; when a respondent id is given, each entry
// carries whether that respondent completed any version of it.
func ListSurveys(ctx context.Context, db DBTX, userID string) ([]SurveyListItem, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, title, description FROM survey`)
	if err != nil {
		return nil, errors.Wrap(err, "query surveys")
	}
	defer rows.Close()

	surveys := []SurveyListItem{}
	for rows.Next() {
		item := SurveyListItem{}
		err = rows.Scan(&item.ID, &item.Title, &item.Description)
		if err != nil {
			return nil, errors.Wrap(err, "scan survey")
		}
		surveys = append(surveys, item)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "scan surveys")
	}

	if userID == "" {
		return surveys, nil
	}

	completed, err := completedSurveyIDs(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	for i := range surveys {
		surveys[i].Completed = completed[surveys[i].ID]
	}
	return surveys, nil
}

func completedSurveyIDs(ctx context.Context, db DBTX, userID string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT v.survey_id
		FROM survey_response r
		INNER JOIN survey_version v ON (r.survey_version_id = v.id)
		WHERE r.user_id = ? AND r.is_complete`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query completed surveys")
	}
	defer rows.Close()

	completed := map[string]bool{}
	for rows.Next() {
		var id string
		err = rows.Scan(&id)
		if err != nil {
			return nil, errors.Wrap(err, "scan completed survey")
		}
		completed[id] = true
	}
	return completed, rows.Err()
}

// ListSurveysWithVersions returns every survey with its full version trees.
func ListSurveysWithVersions(ctx context.Context, db DBTX) ([]SurveyWithVersions, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, title, description FROM survey`)
	if err != nil {
		return nil, errors.Wrap(err, "query surveys")
	}
	defer rows.Close()

	surveys := []SurveyWithVersions{}
	for rows.Next() {
		s := SurveyWithVersions{Versions: []Version{}}
		err = rows.Scan(&s.ID, &s.Title, &s.Description)
		if err != nil {
			return nil, errors.Wrap(err, "scan survey")
		}
		surveys = append(surveys, s)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "scan surveys")
	}

	for i := range surveys {
		ids, err := versionIDs(ctx, db, surveys[i].ID)
		if err != nil {
			return nil, err
		}
		for _, versionID := range ids {
			v, err := loadVersion(ctx, db, versionID)
			if err != nil {
				return nil, err
			}
			surveys[i].Versions = append(surveys[i].Versions, *v)
		}
	}
	return surveys, nil
}

func versionIDs(ctx context.Context, db DBTX, surveyID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM survey_version
		WHERE survey_id = ?
		ORDER BY version`,
		surveyID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query versions")
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		err = rows.Scan(&id)
		if err != nil {
			return nil, errors.Wrap(err, "scan version id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadSurveyHead(ctx context.Context, db DBTX, surveyID string) (VersionView, error) {
	view := VersionView{}
	err := db.QueryRowContext(ctx, `
		SELECT id, title, description FROM survey WHERE id = ?`,
		surveyID,
	).Scan(&view.ID, &view.Title, &view.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return VersionView{}, errors.Wrapf(ErrSurveyNotFound, "id %s", surveyID)
	}
	if err != nil {
		return VersionView{}, errors.Wrap(err, "query survey")
	}
	return view, nil
}

func loadVersion(ctx context.Context, db DBTX, versionID string) (*Version, error) {
	v := &Version{}
	err := db.QueryRowContext(ctx, `
		SELECT id, survey_id, version FROM survey_version WHERE id = ?`,
		versionID,
	).Scan(&v.ID, &v.SurveyID, &v.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrVersionNotFound, "id %s", versionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query version")
	}

	v.Questions, err = loadQuestions(ctx, db, versionID)
	return v, err
}

func loadQuestions(ctx context.Context, db DBTX, versionID string) ([]Question, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			q.id, q.type, q.text, q.sequence_number,
			o.id, o.text, o.sequence_number
		FROM survey_question q
		LEFT OUTER JOIN survey_question_option o ON (q.id = o.question_id)
		WHERE q.survey_version_id = ?
		ORDER BY q.sequence_number, q.id, o.sequence_number, o.id`,
		versionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query questions")
	}
	defer rows.Close()

	questions := []Question{}
	for rows.Next() {
		q := Question{SurveyVersionID: versionID, Options: []Option{}}
		var optID, optText sql.NullString
		var optSeq sql.NullInt64
		err = rows.Scan(
			&q.ID, &q.Type, &q.Text, &q.SequenceNumber,
			&optID, &optText, &optSeq,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan question")
		}

		lastIdx := len(questions) - 1
		if lastIdx < 0 || questions[lastIdx].ID != q.ID {
			questions = append(questions, q)
			lastIdx++
		}
		if optID.Valid {
			questions[lastIdx].Options = append(questions[lastIdx].Options, Option{
				ID:             optID.String,
				QuestionID:     q.ID,
				Text:           optText.String,
				SequenceNumber: int(optSeq.Int64),
			})
		}
	}
	return questions, errors.Wrap(rows.Err(), "scan questions")
}
