package models

// Question is one entry of the quiz dataset.
type Question struct {
	Question string   `json:"question" yaml:"question"`
	Options  []string `json:"options" yaml:"options"`
	Correct  int      `json:"correct" yaml:"correct"`
}

// QuestionData is the public part of a question, without the answer.
type QuestionData struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Public strips the correct index.
func (q Question) Public() QuestionData {
	return QuestionData{Question: q.Question, Options: q.Options}
}
