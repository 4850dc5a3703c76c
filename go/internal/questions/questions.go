package questions

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/quizparty/go/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultTimeLimit is the answer window of each question.
const DefaultTimeLimit = 30 * time.Second

var ErrEmptySet = errors.New("question set is empty")

// Set is the read-only quiz dataset shared by every room.
type Set struct {
	Questions []models.Question
	TimeLimit time.Duration
}

type fileFormat struct {
	TimeLimitSec int               `yaml:"time_limit_sec"`
	Questions    []models.Question `yaml:"questions"`
}

// Default returns the built-in five question quiz.
func Default() *Set {
	return &Set{
		TimeLimit: DefaultTimeLimit,
		Questions: []models.Question{
			{
				Question: "What is the largest planet in the Solar System?",
				Options:  []string{"Earth", "Mars", "Jupiter", "Saturn"},
				Correct:  2,
			},
			{
				Question: "In what year did Cabral's fleet reach Brazil?",
				Options:  []string{"1492", "1500", "1822", "1889"},
				Correct:  1,
			},
			{
				Question: "Which chemical element has the symbol 'O'?",
				Options:  []string{"Gold", "Oxygen", "Osmium", "Oganesson"},
				Correct:  1,
			},
			{
				Question: "How many sides does a hexagon have?",
				Options:  []string{"4", "5", "6", "8"},
				Correct:  2,
			},
			{
				Question: "What is the capital of France?",
				Options:  []string{"London", "Berlin", "Madrid", "Paris"},
				Correct:  3,
			},
		},
	}
}

// LoadFile reads a YAML dataset. A missing time_limit_sec keeps the default.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse questions file: %w", err)
	}

	set := &Set{Questions: f.Questions, TimeLimit: DefaultTimeLimit}
	if f.TimeLimitSec > 0 {
		set.TimeLimit = time.Duration(f.TimeLimitSec) * time.Second
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks every question has options and an in-range answer.
func (s *Set) Validate() error {
	if len(s.Questions) == 0 {
		return ErrEmptySet
	}
	if s.TimeLimit <= 0 {
		return fmt.Errorf("time limit must be positive, got %s", s.TimeLimit)
	}
	for i, q := range s.Questions {
		if q.Question == "" {
			return fmt.Errorf("question %d: empty text", i)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: need at least 2 options, got %d", i, len(q.Options))
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return fmt.Errorf("question %d: correct index %d out of range", i, q.Correct)
		}
	}
	return nil
}

func (s *Set) Len() int { return len(s.Questions) }

// At returns the question at index i and whether it exists.
func (s *Set) At(i int) (models.Question, bool) {
	if i < 0 || i >= len(s.Questions) {
		return models.Question{}, false
	}
	return s.Questions[i], true
}

// LastIndex is the index of the final question.
func (s *Set) LastIndex() int { return len(s.Questions) - 1 }
