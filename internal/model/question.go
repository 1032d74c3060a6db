package model

// SmartQuestion is a clarifying question the remote service wants answered
// before it filters the recognised roster down to the user's own shifts.
type SmartQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

// QuestionAnswer is the user's answer to one SmartQuestion.
type QuestionAnswer struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}
