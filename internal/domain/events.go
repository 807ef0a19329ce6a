package domain

// Event names as sent in the "msg" field.
const (
	MsgActiveQuestionChanged = "active_question_changed"
	MsgSubmissionGateChanged = "submission_gate_changed"
	MsgAnswersChanged        = "answers_changed"
)

// Event is a change notification pushed to live clients. Clients re-fetch state
// after receiving one.
type Event struct {
	Msg        string `json:"msg"`
	QuestionID int    `json:"question_id,omitempty"`
	Open       *bool  `json:"open,omitempty"`
}

func ActiveQuestionChanged(questionID int) Event {
	return Event{Msg: MsgActiveQuestionChanged, QuestionID: questionID}
}

func SubmissionGateChanged(open bool) Event {
	return Event{Msg: MsgSubmissionGateChanged, Open: &open}
}

func AnswersChanged(questionID int) Event {
	return Event{Msg: MsgAnswersChanged, QuestionID: questionID}
}
