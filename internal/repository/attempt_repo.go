package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// AnswerInput is one submitted response.
type AnswerInput struct {
	QuestionID uint
	Response   datatypes.JSON
}

// SubmissionInput carries everything persisted by a single exam submission.
type SubmissionInput struct {
	StudentID   uint
	ExamID      uint
	Answers     []AnswerInput
	SubmittedAt time.Time
}

// Grader turns the full persisted answer set into the result row to insert.
type Grader func(answers []models.Answer) models.Result

// ResetScope selects the rows removed by an attempt reset. A nil StudentID resets everyone.
type ResetScope struct {
	ExamID    uint
	StudentID *uint
}

// ResetCounts reports how many rows a reset removed per table.
type ResetCounts struct {
	Attempts int64
	Answers  int64
	Results  int64
}

// AttemptRepository owns the student side of an exam: attempts, answers and results.
type AttemptRepository interface {
	Start(ctx context.Context, studentID, examID uint, at time.Time) (models.ExamAttempt, error)
	GetAttempt(ctx context.Context, studentID, examID uint) (models.ExamAttempt, error)
	HasResult(ctx context.Context, studentID, examID uint) (bool, error)
	GetResult(ctx context.Context, studentID, examID uint) (models.Result, error)
	ListResults(ctx context.Context, examID uint) ([]models.Result, error)
	Submit(ctx context.Context, input SubmissionInput, grade Grader) (models.Result, error)
	Reset(ctx context.Context, scope ResetScope) (ResetCounts, error)
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository constructs the attempt repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

// Start records an in-progress attempt. Starting twice returns the existing attempt.
func (r *attemptRepository) Start(ctx context.Context, studentID, examID uint, at time.Time) (models.ExamAttempt, error) {
	attempt := models.ExamAttempt{
		StudentID: studentID,
		ExamID:    examID,
		Status:    models.AttemptInProgress,
		StartedAt: at,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "exam_id"}},
			DoNothing: true,
		}).
		Create(&attempt).Error
	if err != nil {
		return models.ExamAttempt{}, err
	}
	return r.GetAttempt(ctx, studentID, examID)
}

func (r *attemptRepository) GetAttempt(ctx context.Context, studentID, examID uint) (models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		First(&attempt).Error; err != nil {
		return models.ExamAttempt{}, err
	}
	return attempt, nil
}

func (r *attemptRepository) HasResult(ctx context.Context, studentID, examID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Result{}).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *attemptRepository) GetResult(ctx context.Context, studentID, examID uint) (models.Result, error) {
	var result models.Result
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		First(&result).Error; err != nil {
		return models.Result{}, err
	}
	return result, nil
}

func (r *attemptRepository) ListResults(ctx context.Context, examID uint) ([]models.Result, error) {
	var results []models.Result
	if err := r.db.WithContext(ctx).
		Preload("Student.User").
		Where("exam_id = ?", examID).
		Order("percentage DESC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Submit upserts the answers, grades the complete answer set, inserts the result and closes the
// attempt. Every step shares one transaction; a unique violation on the result surfaces as
// gorm.ErrDuplicatedKey when the connection translates errors.
func (r *attemptRepository) Submit(ctx context.Context, input SubmissionInput, grade Grader) (models.Result, error) {
	var result models.Result
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range input.Answers {
			answer := models.Answer{
				StudentID:  input.StudentID,
				ExamID:     input.ExamID,
				QuestionID: item.QuestionID,
				Response:   item.Response,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "student_id"}, {Name: "exam_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"response", "updated_at"}),
			}).Create(&answer).Error; err != nil {
				return err
			}
		}

		var answers []models.Answer
		if err := tx.Where("student_id = ? AND exam_id = ?", input.StudentID, input.ExamID).
			Find(&answers).Error; err != nil {
			return err
		}

		result = grade(answers)
		result.StudentID = input.StudentID
		result.ExamID = input.ExamID
		if result.GradedAt.IsZero() {
			result.GradedAt = input.SubmittedAt
		}
		if err := tx.Omit("Student").Create(&result).Error; err != nil {
			return err
		}

		submittedAt := input.SubmittedAt
		attempt := models.ExamAttempt{
			StudentID:   input.StudentID,
			ExamID:      input.ExamID,
			Status:      models.AttemptSubmitted,
			StartedAt:   input.SubmittedAt,
			SubmittedAt: &submittedAt,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "exam_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "submitted_at", "updated_at"}),
		}).Create(&attempt).Error
	})
	if err != nil {
		return models.Result{}, err
	}
	return result, nil
}

// Reset deletes attempts, answers and results of one exam, optionally for a single student.
func (r *attemptRepository) Reset(ctx context.Context, scope ResetScope) (ResetCounts, error) {
	var counts ResetCounts
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := func(model interface{}) (int64, error) {
			query := tx.Where("exam_id = ?", scope.ExamID)
			if scope.StudentID != nil {
				query = query.Where("student_id = ?", *scope.StudentID)
			}
			result := query.Delete(model)
			return result.RowsAffected, result.Error
		}

		var err error
		if counts.Results, err = scoped(&models.Result{}); err != nil {
			return err
		}
		if counts.Answers, err = scoped(&models.Answer{}); err != nil {
			return err
		}
		counts.Attempts, err = scoped(&models.ExamAttempt{})
		return err
	})
	if err != nil {
		return ResetCounts{}, err
	}
	return counts, nil
}
