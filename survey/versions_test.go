package survey

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSurveyBuildsVersionOne(t *testing.T) {
	db := openTestDB(t)
	view := createTestSurvey(t, db, feedbackSurvey())

	assert.Equal(t, "Customer Feedback", view.Title)
	assert.Equal(t, "Tell us how we did", view.Description)
	require.NotNil(t, view.Version)
	assert.Equal(t, 1, view.Version.Version)

	require.Len(t, view.Version.Questions, 2)
	q1, q2 := view.Version.Questions[0], view.Version.Questions[1]
	assert.Equal(t, SingleSelect, q1.Type)
	assert.Equal(t, "How did you hear about us?", q1.Text)
	require.Len(t, q1.Options, 2)
	assert.Equal(t, "From a friend", q1.Options[0].Text)
	assert.Equal(t, "Web search", q1.Options[1].Text)
	assert.Equal(t, FreeForm, q2.Type)
	assert.Empty(t, q2.Options)
}

func TestGetLatestVersionUnknownSurvey(t *testing.T) {
	db := openTestDB(t)

	_, err := GetLatestVersion(context.Background(), db, "no-such-survey")
	assert.True(t, errors.Is(err, ErrSurveyNotFound))
}

func TestEditSurveyIncrementsVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	view := createTestSurvey(t, db, feedbackSurvey())

	edited := feedbackSurvey()
	edited.Title = "Customer Feedback 2024"
	edited.Description = ""
	edited.Questions = edited.Questions[:1]
	v2 := editTestSurvey(t, db, view.ID, edited)

	assert.Equal(t, 2, v2.Version)

	latest, err := GetLatestVersion(ctx, db, view.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, latest.Version.ID)
	assert.Equal(t, 2, latest.Version.Version)
	require.Len(t, latest.Version.Questions, 1)

	// only non-empty fields are patched
	assert.Equal(t, "Customer Feedback 2024", latest.Title)
	assert.Equal(t, "Tell us how we did", latest.Description)
}

func TestEditSurveyLeavesPreviousVersionUntouched(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	view := createTestSurvey(t, db, feedbackSurvey())
	v1 := view.Version

	edited := feedbackSurvey()
	edited.Questions = []QuestionInput{
		{Type: FreeForm, Text: "One big question", SequenceNumber: 1},
	}
	editTestSurvey(t, db, view.ID, edited)

	before, err := GetSurveyVersion(ctx, db, view.ID, v1.ID)
	require.NoError(t, err)
	require.NotNil(t, before)
	assert.Equal(t, 1, before.Version)
	require.Len(t, before.Questions, 2)
	assert.Equal(t, v1.Questions[0].ID, before.Questions[0].ID)
	assert.Len(t, before.Questions[0].Options, 2)
}

func TestEditUnknownSurvey(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = EditSurvey(ctx, tx, "no-such-survey", feedbackSurvey())
	assert.True(t, errors.Is(err, ErrSurveyNotFound))
}

func TestGetSurveyVersionMissIsEmptyNotError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	view := createTestSurvey(t, db, feedbackSurvey())

	version, err := GetSurveyVersion(ctx, db, view.ID, "no-such-version")
	require.NoError(t, err)
	assert.Nil(t, version)

	// version ids are scoped to their owning survey
	other := createTestSurvey(t, db, toppingsSurvey())
	version, err = GetSurveyVersion(ctx, db, other.ID, view.Version.ID)
	require.NoError(t, err)
	assert.Nil(t, version)
}

func TestGetUserSurveyVersionPinsInProgressRespondent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	view := createTestSurvey(t, db, feedbackSurvey())
	v1 := view.Version
	user := insertTestUser(t, db, "ada")

	// the user starts answering against version 1
	_, err := SubmitResponseDetail(ctx, db, view.ID, AnswerInput{
		QuestionID:        v1.Questions[0].ID,
		SelectedOptionIDs: []string{v1.Questions[0].Options[0].ID},
	}, user)
	require.NoError(t, err)

	editTestSurvey(t, db, view.ID, feedbackSurvey())

	pinned, err := GetUserSurveyVersion(ctx, db, view.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, pinned.Version)
	assert.Equal(t, v1.ID, pinned.Version.ID)

	// anonymous callers and fresh users see the latest shape
	anon, err := GetUserSurveyVersion(ctx, db, view.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, anon.Version.Version)

	fresh := insertTestUser(t, db, "grace")
	latest, err := GetUserSurveyVersion(ctx, db, view.ID, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version.Version)
}

func TestListSurveysCompletedFlag(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	feedback := createTestSurvey(t, db, feedbackSurvey())
	toppings := createTestSurvey(t, db, toppingsSurvey())
	user := insertTestUser(t, db, "ada")

	q := toppings.Version.Questions[0]
	_, err := SubmitResponseDetail(ctx, db, toppings.ID, AnswerInput{
		QuestionID:        q.ID,
		SelectedOptionIDs: []string{q.Options[0].ID},
	}, user)
	require.NoError(t, err)

	surveys, err := ListSurveys(ctx, db, user.ID)
	require.NoError(t, err)
	require.Len(t, surveys, 2)

	completed := map[string]bool{}
	for _, s := range surveys {
		completed[s.ID] = s.Completed
	}
	assert.False(t, completed[feedback.ID])
	assert.True(t, completed[toppings.ID])

	// anonymous listing carries no completion info
	surveys, err = ListSurveys(ctx, db, "")
	require.NoError(t, err)
	for _, s := range surveys {
		assert.False(t, s.Completed)
	}
}

func TestListSurveysWithVersions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	view := createTestSurvey(t, db, feedbackSurvey())
	editTestSurvey(t, db, view.ID, feedbackSurvey())

	surveys, err := ListSurveysWithVersions(ctx, db)
	require.NoError(t, err)
	require.Len(t, surveys, 1)
	require.Len(t, surveys[0].Versions, 2)
	assert.Equal(t, 1, surveys[0].Versions[0].Version)
	assert.Equal(t, 2, surveys[0].Versions[1].Version)
	assert.Len(t, surveys[0].Versions[1].Questions, 2)
}
