package survey

import (
	"context"
	"database/sql"

	"github.com/gofrs/uuid"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx. Read operations accept
// whichever handle the caller holds; write operations are always handed an
// open transaction by their orchestrator.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type QuestionType string

const (
	SingleSelect QuestionType = "SINGLE_SELECT"
	MultiSelect  QuestionType = "MULTI_SELECT"
	FreeForm     QuestionType = "FREE_FORM"
)

type Survey struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Version is one immutable snapshot of a survey's question tree.
type Version struct {
	ID        string     `json:"id"`
	SurveyID  string     `json:"surveyId"`
	Version   int        `json:"version"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID              string       `json:"id"`
	SurveyVersionID string       `json:"surveyVersionId"`
	Type            QuestionType `json:"type"`
	Text            string       `json:"text"`
	SequenceNumber  int          `json:"sequenceNumber"`
	Options         []Option     `json:"options"`
}

type Option struct {
	ID             string `json:"id"`
	QuestionID     string `json:"questionId"`
	Text           string `json:"text"`
	SequenceNumber int    `json:"sequenceNumber"`
}

// Response is one respondent's answer session, permanently bound to the
// version it was created against.
type Response struct {
	ID              string           `json:"id"`
	SurveyVersionID string           `json:"surveyVersionId"`
	UserID          *string          `json:"userId"`
	IsComplete      bool             `json:"isComplete"`
	Details         []ResponseDetail `json:"responseDetails"`
}

type ResponseDetail struct {
	ID               string  `json:"id"`
	ResponseID       string  `json:"responseId"`
	QuestionID       string  `json:"questionId"`
	SelectedOptionID *string `json:"selectedOptionId"`
	FreeFormAnswer   *string `json:"freeFormAnswer"`
}

type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"-"`
}

// Input DTOs. Ordering and sequence numbers are trusted verbatim.

type SurveyInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Questions   []QuestionInput `json:"questions"`
}

type QuestionInput struct {
	Type           QuestionType  `json:"type"`
	Text           string        `json:"text"`
	SequenceNumber int           `json:"sequenceNumber"`
	Options        []OptionInput `json:"options"`
}

type OptionInput struct {
	Text           string `json:"text"`
	SequenceNumber int    `json:"sequenceNumber"`
}

type AnswerInput struct {
	QuestionID        string   `json:"questionId"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
	FreeFormAnswer    *string  `json:"freeFormAnswer"`
}

type ResponseInput struct {
	ResponseDetails []AnswerInput `json:"responseDetails"`
}

// Read views.

// VersionView pairs a survey's identity with one resolved version tree.
type VersionView struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Version     *Version `json:"version"`
}

type SurveyListItem struct {
	Survey
	Completed bool `json:"completed"`
}

type SurveyWithVersions struct {
	Survey
	Versions []Version `json:"versions"`
}

// Answer is the merged, per-question view of a respondent's detail rows.
type Answer struct {
	QuestionID        string   `json:"questionId"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
	FreeFormAnswer    *string  `json:"freeFormAnswer"`
}

type ResponseView struct {
	SurveyVersionID string   `json:"surveyVersionId"`
	UserID          *string  `json:"userId"`
	IsComplete      bool     `json:"isComplete"`
	Answers         []Answer `json:"responseDetails"`
}

type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OptionRef struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// DetailView is one denormalized detail row for admin display. Multi-select
// answers keep one entry per selected option here.
type DetailView struct {
	QuestionID     string     `json:"questionId"`
	QuestionText   string     `json:"questionText"`
	SelectedOption *OptionRef `json:"selectedOption"`
	FreeFormAnswer *string    `json:"freeFormAnswer"`
}

type RespondentView struct {
	User            UserRef      `json:"user"`
	ResponseDetails []DetailView `json:"responseDetails"`
}

type VersionRef struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

type VersionResponses struct {
	Version   VersionRef       `json:"version"`
	Responses []RespondentView `json:"responses"`
}

type SurveyResponsesView struct {
	Survey    Survey             `json:"survey"`
	Responses []VersionResponses `json:"responses"`
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}
