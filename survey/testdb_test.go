package survey

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"surveyvault/config"
	"surveyvault/database"
)

var testDBCount int64

// openTestDB opens a fresh in-memory database with the full migrated schema.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	n := atomic.AddInt64(&testDBCount, 1)
	cfg := config.Config{
		DBUrl: fmt.Sprintf("file:survey_test_%d?mode=memory&cache=shared", n),
	}
	db, err := database.Open(cfg)
	require.NoError(t, err, "open test database")

	t.Cleanup(func() { db.Close() })
	return db
}

// feedbackSurvey is the canonical two-question fixture: one single-select
// question with two options, one free-form question.
func feedbackSurvey() SurveyInput {
	return SurveyInput{
		Title:       "Customer Feedback",
		Description: "Tell us how we did",
		Questions: []QuestionInput{
			{
				Type:           SingleSelect,
				Text:           "How did you hear about us?",
				SequenceNumber: 1,
				Options: []OptionInput{
					{Text: "From a friend", SequenceNumber: 1},
					{Text: "Web search", SequenceNumber: 2},
				},
			},
			{
				Type:           FreeForm,
				Text:           "Any other comments?",
				SequenceNumber: 2,
			},
		},
	}
}

// toppingsSurvey is a one-question multi-select fixture with three options.
func toppingsSurvey() SurveyInput {
	return SurveyInput{
		Title: "Pizza Night",
		Questions: []QuestionInput{
			{
				Type:           MultiSelect,
				Text:           "Pick your toppings",
				SequenceNumber: 1,
				Options: []OptionInput{
					{Text: "Mushrooms", SequenceNumber: 1},
					{Text: "Olives", SequenceNumber: 2},
					{Text: "Anchovies", SequenceNumber: 3},
				},
			},
		},
	}
}

func createTestSurvey(t *testing.T, db *sql.DB, in SurveyInput) VersionView {
	t.Helper()
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	created, err := CreateSurvey(ctx, tx, in)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	view, err := GetLatestVersion(ctx, db, created.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Version)
	return view
}

func editTestSurvey(t *testing.T, db *sql.DB, surveyID string, in SurveyInput) Version {
	t.Helper()
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	version, err := EditSurvey(ctx, tx, surveyID, in)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return version
}

func insertTestUser(t *testing.T, db *sql.DB, name string) *User {
	t.Helper()

	user := &User{ID: newID(), Name: name}
	_, err := db.Exec(`
		INSERT INTO user (id, name, email, password_hash, is_admin)
		VALUES (?, ?, ?, 'x', 0)`,
		user.ID, user.Name, name+"@example.com",
	)
	require.NoError(t, err)
	return user
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()

	var n int
	err := db.QueryRow(query, args...).Scan(&n)
	require.NoError(t, err)
	return n
}

func strptr(s string) *string {
	return &s
}
