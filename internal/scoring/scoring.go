// Package scoring grades exam answers. Everything here is pure: no I/O, no clocks.
package scoring

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// Outcome is the graded total for one student's answer set.
type Outcome struct {
	Score       float64
	TotalPoints float64
}

// Percentage returns the rounded percentage of the outcome.
func (o Outcome) Percentage() int {
	return Percentage(o.Score, o.TotalPoints)
}

// Calculate grades answers against the exam's questions. Every question counts towards the
// total whether answered or not; free-text questions contribute nothing until graded by hand.
func Calculate(questions []models.Question, answers []models.Answer) Outcome {
	responses := make(map[uint]string, len(answers))
	for _, answer := range answers {
		responses[answer.QuestionID] = ResponseText(answer.Response)
	}

	var outcome Outcome
	for _, question := range questions {
		points := question.Points
		if points < 0 {
			points = 0
		}
		outcome.TotalPoints += points

		response, answered := responses[question.ID]
		if answered && IsCorrect(question, response) {
			outcome.Score += points
		}
	}

	return outcome
}

// IsCorrect applies the comparison rule for the question type.
func IsCorrect(question models.Question, response string) bool {
	expected := strings.TrimSpace(question.CorrectAnswer)
	given := strings.TrimSpace(response)
	if expected == "" || given == "" {
		return false
	}

	switch question.Type {
	case models.QuestionMultipleChoice:
		return given == expected
	case models.QuestionTrueFalse:
		return strings.EqualFold(given, expected)
	default:
		return false
	}
}

// Percentage rounds 100*score/total half away from zero. A zero total yields 0.
func Percentage(score, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * score / total))
}

// ResponseText flattens a stored JSON response into the text compared against the key.
// Strings are unquoted, booleans and numbers keep their literal form, anything else is
// returned as compact JSON.
func ResponseText(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	var value interface{}
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return string(trimmed)
	}

	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return string(trimmed)
		}
		return buf.String()
	}
}
