package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/digischool/exam-api/internal/dto"
	"github.com/digischool/exam-api/internal/models"
	"github.com/digischool/exam-api/internal/repository"
)

// Result lookup errors mapped to HTTP statuses by the handlers.
var (
	ErrResultNotFound = errors.New("result not found")
	ErrResultNotReady = errors.New("result is not published yet")
)

const (
	statisticsCacheTTL = 5 * time.Minute
	passPercentage     = 33.0
)

// ResultService serves student-facing results and exam statistics.
type ResultService interface {
	GetStudentResult(ctx context.Context, studentID, examID string) (dto.ResultResponse, error)
	Statistics(ctx context.Context, examID string) (dto.ResultStatisticsResponse, error)
}

type resultService struct {
	exams       repository.ExamRepository
	results     repository.ResultRepository
	submissions repository.SubmissionRepository
	releaser    ReleaseService
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewResultService constructs the result service. The redis client is
// optional; without it statistics are computed on every call. A
// non-positive cacheTTL falls back to the default.
func NewResultService(
	exams repository.ExamRepository,
	results repository.ResultRepository,
	submissions repository.SubmissionRepository,
	releaser ReleaseService,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) ResultService {
	if cacheTTL <= 0 {
		cacheTTL = statisticsCacheTTL
	}
	return &resultService{
		exams:       exams,
		results:     results,
		submissions: submissions,
		releaser:    releaser,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger.With().Str("component", "result_service").Logger(),
		tracer:      otel.Tracer("github.com/digischool/exam-api/internal/service/result"),
		now:         time.Now,
	}
}

// GetStudentResult returns the student's published result. Suspended
// results are always visible together with their reason. When the exam has
// ended but the result is still unpublished, a release pass is attempted
// opportunistically before giving up.
func (s *resultService) GetStudentResult(ctx context.Context, studentID, examID string) (dto.ResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "result.get", trace.WithAttributes(
		attribute.String("exam.id", examID),
	))
	defer span.End()

	result, err := s.results.GetByStudentAndExam(ctx, studentID, examID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	if result == nil || !result.IsPublished {
		if released, rerr := s.maybeRelease(ctx, examID); rerr == nil && released {
			result, err = s.results.GetByStudentAndExam(ctx, studentID, examID)
			if err != nil {
				span.RecordError(err)
				return dto.ResultResponse{}, err
			}
		}
	}

	if result == nil {
		return dto.ResultResponse{}, ErrResultNotFound
	}
	if !result.IsPublished {
		return dto.ResultResponse{}, ErrResultNotReady
	}

	return dto.NewResultResponse(*result), nil
}

// Statistics aggregates the exam's published results, served from redis
// when fresh.
func (s *resultService) Statistics(ctx context.Context, examID string) (dto.ResultStatisticsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "result.statistics", trace.WithAttributes(
		attribute.String("exam.id", examID),
	))
	defer span.End()

	cacheKey := fmt.Sprintf("exam:%s:statistics", examID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var stats dto.ResultStatisticsResponse
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				return stats, nil
			}
		}
	}

	results, err := s.results.ListByExam(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultStatisticsResponse{}, err
	}

	submitted, err := s.submissions.CountSubmitted(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultStatisticsResponse{}, err
	}

	stats := computeStatistics(examID, int(submitted), results)

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Str("exam_id", examID).Msg("failed to cache exam statistics")
			}
		}
	}

	return stats, nil
}

func computeStatistics(examID string, submitted int, results []models.Result) dto.ResultStatisticsResponse {
	stats := dto.ResultStatisticsResponse{
		ExamID:         examID,
		TotalSubmitted: submitted,
	}

	var sum float64
	first := true
	passed := 0

	for _, r := range results {
		if !r.IsPublished {
			continue
		}
		stats.TotalPublished++
		if r.IsSuspended() {
			stats.TotalSuspended++
			continue
		}

		sum += r.Total
		if first || r.Total > stats.HighestMarks {
			stats.HighestMarks = r.Total
		}
		if first || r.Total < stats.LowestMarks {
			stats.LowestMarks = r.Total
		}
		first = false

		if r.Percentage >= passPercentage {
			passed++
		}
	}

	graded := stats.TotalPublished - stats.TotalSuspended
	if graded > 0 {
		stats.AverageMarks = sum / float64(graded)
		stats.PassRate = float64(passed) / float64(graded) * 100
	}

	return stats
}

// maybeRelease triggers a release pass for an exam whose window has closed
// but whose results never published, typically because the scheduler was
// down at the deadline.
func (s *resultService) maybeRelease(ctx context.Context, examID string) (bool, error) {
	exam, err := s.exams.GetWithSets(ctx, examID)
	if err != nil {
		if isNotFound(err) {
			return false, ErrExamNotFound
		}
		return false, err
	}
	if !exam.Ended(s.now()) {
		return false, nil
	}

	summary, err := s.releaser.FinalizeExam(ctx, examID, "lazy")
	if err != nil {
		if !errors.Is(err, ErrEvaluationsPending) {
			s.logger.Warn().Err(err).Str("exam_id", examID).Msg("opportunistic release failed")
		}
		return false, err
	}

	return summary.Released > 0, nil
}
