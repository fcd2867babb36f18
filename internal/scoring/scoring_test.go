package scoring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

func answer(questionID uint, raw string) models.Answer {
	return models.Answer{QuestionID: questionID, Response: datatypes.JSON(raw)}
}

func TestCalculateTwoQuestionExample(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Type: models.QuestionMultipleChoice, CorrectAnswer: "B", Points: 10},
		{ID: 2, Type: models.QuestionMultipleChoice, CorrectAnswer: "D", Points: 20},
	}

	all := Calculate(questions, []models.Answer{answer(1, `"B"`), answer(2, `"D"`)})
	require.Equal(t, 30.0, all.Score)
	require.Equal(t, 30.0, all.TotalPoints)
	require.Equal(t, 100, all.Percentage())

	one := Calculate(questions, []models.Answer{answer(1, `"B"`), answer(2, `"A"`)})
	require.Equal(t, 10.0, one.Score)
	require.Equal(t, 30.0, one.TotalPoints)
	require.Equal(t, 33, one.Percentage())
}

func TestCalculateRules(t *testing.T) {
	tests := []struct {
		name     string
		question models.Question
		raw      string
		want     float64
	}{
		{name: "choice exact", question: models.Question{ID: 1, Type: models.QuestionMultipleChoice, CorrectAnswer: "Lagos", Points: 5}, raw: `" Lagos "`, want: 5},
		{name: "choice case differs", question: models.Question{ID: 1, Type: models.QuestionMultipleChoice, CorrectAnswer: "Lagos", Points: 5}, raw: `"lagos"`, want: 0},
		{name: "true false bool", question: models.Question{ID: 1, Type: models.QuestionTrueFalse, CorrectAnswer: "True", Points: 2}, raw: `true`, want: 2},
		{name: "true false string", question: models.Question{ID: 1, Type: models.QuestionTrueFalse, CorrectAnswer: "false", Points: 2}, raw: `"FALSE"`, want: 2},
		{name: "numeric choice", question: models.Question{ID: 1, Type: models.QuestionMultipleChoice, CorrectAnswer: "3", Points: 1}, raw: `3`, want: 1},
		{name: "short answer ungraded", question: models.Question{ID: 1, Type: models.QuestionShortAnswer, CorrectAnswer: "photosynthesis", Points: 4}, raw: `"photosynthesis"`, want: 0},
		{name: "essay ungraded", question: models.Question{ID: 1, Type: models.QuestionEssay, Points: 10}, raw: `"long text"`, want: 0},
		{name: "empty response", question: models.Question{ID: 1, Type: models.QuestionMultipleChoice, CorrectAnswer: "A", Points: 3}, raw: `""`, want: 0},
		{name: "null response", question: models.Question{ID: 1, Type: models.QuestionMultipleChoice, CorrectAnswer: "A", Points: 3}, raw: `null`, want: 0},
		{name: "missing key", question: models.Question{ID: 1, Type: models.QuestionMultipleChoice, Points: 3}, raw: `"A"`, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			outcome := Calculate([]models.Question{tc.question}, []models.Answer{answer(tc.question.ID, tc.raw)})
			require.Equal(t, tc.want, outcome.Score)
		})
	}
}

func TestCalculateCountsUnansweredAndIgnoresStrangers(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Type: models.QuestionMultipleChoice, CorrectAnswer: "A", Points: 4},
		{ID: 2, Type: models.QuestionMultipleChoice, CorrectAnswer: "B", Points: 6},
		{ID: 3, Type: models.QuestionEssay, Points: -5},
	}

	outcome := Calculate(questions, []models.Answer{answer(1, `"A"`), answer(99, `"A"`)})
	require.Equal(t, 4.0, outcome.Score)
	require.Equal(t, 10.0, outcome.TotalPoints)
	require.Equal(t, 40, outcome.Percentage())
}

func TestPercentageZeroTotal(t *testing.T) {
	require.Equal(t, 0, Percentage(0, 0))
	require.Equal(t, 0, Calculate(nil, nil).Percentage())
}

func TestScoreNeverExceedsTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	choices := []string{"A", "B", "C", "D"}

	for round := 0; round < 200; round++ {
		count := rng.Intn(8) + 1
		questions := make([]models.Question, 0, count)
		answers := make([]models.Answer, 0, count)
		for i := 0; i < count; i++ {
			id := uint(i + 1)
			questions = append(questions, models.Question{
				ID:            id,
				Type:          models.QuestionMultipleChoice,
				CorrectAnswer: choices[rng.Intn(len(choices))],
				Points:        float64(rng.Intn(20)),
			})
			if rng.Intn(3) > 0 {
				answers = append(answers, answer(id, `"`+choices[rng.Intn(len(choices))]+`"`))
			}
		}

		outcome := Calculate(questions, answers)
		require.GreaterOrEqual(t, outcome.Score, 0.0)
		require.LessOrEqual(t, outcome.Score, outcome.TotalPoints)
		require.GreaterOrEqual(t, outcome.Percentage(), 0)
		require.LessOrEqual(t, outcome.Percentage(), 100)
	}
}

func TestResponseText(t *testing.T) {
	require.Equal(t, "B", ResponseText([]byte(`"B"`)))
	require.Equal(t, "true", ResponseText([]byte(`true`)))
	require.Equal(t, "2.5", ResponseText([]byte(`2.5`)))
	require.Equal(t, `["A","B"]`, ResponseText([]byte(`[ "A", "B" ]`)))
	require.Equal(t, "", ResponseText(nil))
	require.Equal(t, "plain", ResponseText([]byte(`plain`)))
}
