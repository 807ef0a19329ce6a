package domain

// QuestionType selects how submitted answers are parsed and rated.
type QuestionType string

const (
	TypeText         QuestionType = "text"
	TypeSingleChoice QuestionType = "single_choice"
	TypeNumber       QuestionType = "number"
	TypeTime         QuestionType = "time"
)

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeText, TypeSingleChoice, TypeNumber, TypeTime:
		return true
	}
	return false
}

// Subquestion is addressed by its ordinal position inside the parent question.
type Subquestion struct {
	Text    string   `json:"text" yaml:"text"`
	Answer  string   `json:"answer" yaml:"answer"`
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// Question is immutable once the catalog has been loaded.
type Question struct {
	ID           int           `json:"id" yaml:"id" validate:"gt=0"`
	Type         QuestionType  `json:"type" yaml:"type" validate:"required"`
	Text         string        `json:"text" yaml:"text"`
	Subquestions []Subquestion `json:"subquestions" yaml:"subquestions" validate:"min=1,dive"`
}

// Catalog is the ordered list of quiz questions.
type Catalog struct {
	Questions []Question `json:"questions" yaml:"questions" validate:"min=1,dive"`
}

// Question looks up a question by id.
func (c Catalog) Question(id int) (Question, bool) {
	for _, q := range c.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Team is a contestant group. Token is an optional join secret.
type Team struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Token string `json:"-" yaml:"token,omitempty"`
}

// AnswerRecord is the grading state of one (question, team, subquestion) triple.
// Answer holds the normalized value and is nil until the team submits.
type AnswerRecord struct {
	Answer *string `json:"answer" yaml:"answer"`
	Rating int     `json:"rating" yaml:"rating"`
}

// Snapshot is the full answer table: question id -> team -> subquestion index.
type Snapshot map[int]map[string]map[int]AnswerRecord

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for qid, teams := range s {
		tm := make(map[string]map[int]AnswerRecord, len(teams))
		for team, subs := range teams {
			sm := make(map[int]AnswerRecord, len(subs))
			for idx, rec := range subs {
				if rec.Answer != nil {
					v := *rec.Answer
					rec.Answer = &v
				}
				sm[idx] = rec
			}
			tm[team] = sm
		}
		out[qid] = tm
	}
	return out
}

// SessionState is the process-wide quiz control state.
type SessionState struct {
	ActiveQuestionID int  `json:"active_question_id"`
	SubmissionOpen   bool `json:"submission_open"`
}

// QuestionRatings lists a team's ratings for one question, by subquestion index.
type QuestionRatings struct {
	QuestionID int   `json:"question_id"`
	Ratings    []int `json:"ratings"`
}

// ScoreboardRow is one team's line on the scoreboard.
type ScoreboardRow struct {
	Team      string            `json:"team"`
	Questions []QuestionRatings `json:"questions"`
	Total     int               `json:"total"`
}

// PublicSubquestion is a subquestion without its canonical answer.
type PublicSubquestion struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices,omitempty"`
}

// PublicQuestion is what contestants get to see of a question.
type PublicQuestion struct {
	ID           int                 `json:"id"`
	Type         QuestionType        `json:"type"`
	Text         string              `json:"text"`
	Subquestions []PublicSubquestion `json:"subquestions"`
}

// Public strips canonical answers from q.
func (q Question) Public() PublicQuestion {
	subs := make([]PublicSubquestion, 0, len(q.Subquestions))
	for _, sq := range q.Subquestions {
		subs = append(subs, PublicSubquestion{Text: sq.Text, Choices: sq.Choices})
	}
	return PublicQuestion{ID: q.ID, Type: q.Type, Text: q.Text, Subquestions: subs}
}

// TeamView is the current state as seen by one team.
type TeamView struct {
	Team           string         `json:"team"`
	Question       PublicQuestion `json:"question"`
	SubmissionOpen bool           `json:"submission_open"`
	Answers        []AnswerRecord `json:"answers"`
}
