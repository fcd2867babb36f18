package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/observability"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
)

// PassPercentage is the lowest percentage counted as a pass in exam statistics.
const PassPercentage = 50

// StatsInvalidator drops cached aggregates after results change.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context, examID uint)
}

// ExamResultService lists results and cached statistics of an exam.
type ExamResultService interface {
	StatsInvalidator
	Results(ctx context.Context, principal policy.Principal, examID uint) (dto.ExamResultsResponse, error)
	MyResult(ctx context.Context, principal policy.Principal, examID uint) (dto.ExamResultResponse, error)
}

type examResultService struct {
	exams    repository.ExamRepository
	attempts repository.AttemptRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewExamResultService constructs the result service. A nil cache disables stats caching.
func NewExamResultService(exams repository.ExamRepository, attempts repository.AttemptRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ExamResultService {
	return &examResultService{
		exams:    exams,
		attempts: attempts,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "exam_result_service").Logger(),
		now:      time.Now,
	}
}

func statsCacheKey(examID uint) string {
	return fmt.Sprintf("exam:stats:%d", examID)
}

func (s *examResultService) Results(ctx context.Context, principal policy.Principal, examID uint) (dto.ExamResultsResponse, error) {
	exam, err := loadExam(ctx, s.exams, examID, false)
	if err != nil {
		return dto.ExamResultsResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.ExamManage, examResource(exam)); err != nil {
		return dto.ExamResultsResponse{}, err
	}

	results, err := s.attempts.ListResults(ctx, exam.ID)
	if err != nil {
		return dto.ExamResultsResponse{}, err
	}

	items := make([]dto.ExamResultResponse, 0, len(results))
	for _, result := range results {
		items = append(items, dto.NewExamResultResponse(result))
	}

	return dto.ExamResultsResponse{
		Results: items,
		Stats:   s.stats(ctx, exam.ID, results),
	}, nil
}

func (s *examResultService) stats(ctx context.Context, examID uint, results []models.Result) dto.ExamStats {
	cacheKey := statsCacheKey(examID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var stats dto.ExamStats
			if unmarshalErr := json.Unmarshal([]byte(cached), &stats); unmarshalErr == nil {
				observability.ExamStatsCache().WithLabelValues("hit").Inc()
				stats.CacheHit = true
				return stats
			}
		} else if err != redis.Nil {
			observability.Logger(ctx, s.logger).Warn().Err(err).Msg("failed to read exam stats cache")
		}
	}

	observability.ExamStatsCache().WithLabelValues("miss").Inc()
	stats := AggregateResults(results, s.now().UTC())

	if s.cache != nil {
		payload, err := json.Marshal(stats)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				observability.Logger(ctx, s.logger).Warn().Err(err).Msg("failed to store exam stats cache")
			}
		}
	}

	return stats
}

func (s *examResultService) InvalidateStats(ctx context.Context, examID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(examID)).Err(); err != nil {
		observability.Logger(ctx, s.logger).Warn().Err(err).Uint("exam_id", examID).Msg("failed to invalidate exam stats cache")
	}
}

func (s *examResultService) MyResult(ctx context.Context, principal policy.Principal, examID uint) (dto.ExamResultResponse, error) {
	if err := policy.Precheck(principal, policy.ExamTake); err != nil {
		return dto.ExamResultResponse{}, err
	}
	if principal.StudentID == 0 {
		return dto.ExamResultResponse{}, ErrStudentProfileMissing
	}

	exam, err := loadExam(ctx, s.exams, examID, false)
	if err != nil {
		return dto.ExamResultResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.ExamTake, examResource(exam)); err != nil {
		return dto.ExamResultResponse{}, err
	}

	result, err := s.attempts.GetResult(ctx, principal.StudentID, exam.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResultResponse{}, ErrResultNotFound
		}
		return dto.ExamResultResponse{}, err
	}
	return dto.NewExamResultResponse(result), nil
}

// AggregateResults summarises result percentages. An empty slice yields zero values.
func AggregateResults(results []models.Result, generatedAt time.Time) dto.ExamStats {
	stats := dto.ExamStats{Submissions: len(results), GeneratedAt: generatedAt}
	if len(results) == 0 {
		return stats
	}

	var sum, passed int
	stats.LowestPercentage = results[0].Percentage
	for _, result := range results {
		sum += result.Percentage
		if result.Percentage > stats.HighestPercentage {
			stats.HighestPercentage = result.Percentage
		}
		if result.Percentage < stats.LowestPercentage {
			stats.LowestPercentage = result.Percentage
		}
		if result.Percentage >= PassPercentage {
			passed++
		}
	}

	stats.AveragePercentage = roundTo(float64(sum)/float64(len(results)), 2)
	stats.PassRate = roundTo(100*float64(passed)/float64(len(results)), 2)
	return stats
}

func roundTo(value float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(value*factor) / factor
}
