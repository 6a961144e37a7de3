package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/digischool/exam-api/internal/dto"
	"github.com/digischool/exam-api/internal/grading"
	"github.com/digischool/exam-api/internal/models"
	"github.com/digischool/exam-api/internal/observability"
	"github.com/digischool/exam-api/internal/repository"
)

// examFinalizeTimeout caps how long one exam's release pass may run inside
// a sweep so a single huge exam cannot starve the rest.
const examFinalizeTimeout = 2 * time.Minute

// ReleaseService finalizes exams: regrades every submission from its stored
// answers, publishes results and assigns ranks. Finalization is idempotent;
// results are upserted by (student, exam), suspended results are never
// revisited and non-manual passes leave already-published rows untouched.
type ReleaseService interface {
	FinalizeExam(ctx context.Context, examID, trigger string) (dto.ReleaseSummary, error)
	SweepEnded(ctx context.Context) (int, error)
}

type releaseService struct {
	exams       repository.ExamRepository
	submissions repository.SubmissionRepository
	results     repository.ResultRepository
	atomic      repository.Atomic
	activity    ActivityRecorder
	events      ResultEventPublisher
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewReleaseService constructs the release service.
func NewReleaseService(
	exams repository.ExamRepository,
	submissions repository.SubmissionRepository,
	results repository.ResultRepository,
	atomic repository.Atomic,
	activity ActivityRecorder,
	events ResultEventPublisher,
	logger zerolog.Logger,
) ReleaseService {
	return &releaseService{
		exams:       exams,
		submissions: submissions,
		results:     results,
		atomic:      atomic,
		activity:    activity,
		events:      events,
		logger:      logger.With().Str("component", "release_service").Logger(),
		tracer:      otel.Tracer("github.com/digischool/exam-api/internal/service/release"),
		now:         time.Now,
	}
}

// FinalizeExam grades and publishes every submitted answer sheet of one
// exam. A failure on one submission is logged and skipped so the rest of
// the cohort still releases.
func (s *releaseService) FinalizeExam(ctx context.Context, examID, trigger string) (dto.ReleaseSummary, error) {
	ctx, span := s.tracer.Start(ctx, "release.finalize_exam", trace.WithAttributes(
		attribute.String("exam.id", examID),
		attribute.String("release.trigger", trigger),
	))
	defer span.End()

	summary := dto.ReleaseSummary{ExamID: examID, Trigger: trigger}

	exam, err := s.exams.GetWithSets(ctx, examID)
	if err != nil {
		if isNotFound(err) {
			return summary, ErrExamNotFound
		}
		span.RecordError(err)
		return summary, err
	}

	resolver, err := s.buildResolver(exam)
	if err != nil {
		span.RecordError(err)
		return summary, err
	}

	// The manual trigger comes from the evaluation flow, which has already
	// verified every submission carries marks. Other triggers must not
	// publish a mixed exam mid-evaluation.
	if trigger != "manual" && resolver.HasSubjective() {
		ready, err := s.allEvaluated(ctx, examID)
		if err != nil {
			span.RecordError(err)
			return summary, err
		}
		if !ready {
			return summary, ErrEvaluationsPending
		}
	}

	submissions, err := s.submissions.ListByExam(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return summary, err
	}

	mappings, err := s.exams.ListStudentMaps(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return summary, err
	}
	assigned := make(map[string]string, len(mappings))
	for _, m := range mappings {
		assigned[m.StudentID] = m.ExamSetID
	}

	firstSubmitterSetID := ""
	for _, sub := range submissions {
		if sub.IsSubmitted() && sub.ExamSetID != nil && *sub.ExamSetID != "" {
			firstSubmitterSetID = *sub.ExamSetID
			break
		}
	}

	now := s.now()
	var published []models.Result

	for _, sub := range submissions {
		if !sub.IsSubmitted() {
			summary.Skipped++
			continue
		}

		existing, err := s.results.GetByStudentAndExam(ctx, sub.StudentID, sub.ExamID)
		if err != nil {
			s.logger.Error().Err(err).Str("student_id", sub.StudentID).Msg("result lookup failed during release")
			summary.Failed++
			continue
		}
		if existing != nil && existing.IsSuspended() {
			summary.Skipped++
			continue
		}
		// Re-grading published rows is reserved for the manual trigger so
		// evaluator corrections can land. The scheduler sweeps ended exams
		// every interval; without this skip each pass would re-announce the
		// whole cohort.
		if trigger != "manual" && existing != nil && existing.IsPublished {
			summary.Skipped++
			continue
		}

		result, err := s.gradeSubmission(exam, resolver, sub, assigned[sub.StudentID], firstSubmitterSetID, existing, now)
		if err != nil {
			s.logger.Error().Err(err).Str("student_id", sub.StudentID).Str("exam_id", examID).Msg("failed to grade submission during release")
			summary.Failed++
			continue
		}

		if err := s.results.Upsert(ctx, &result); err != nil {
			s.logger.Error().Err(err).Str("student_id", sub.StudentID).Msg("failed to persist released result")
			summary.Failed++
			continue
		}

		published = append(published, result)
		summary.Released++
	}

	if summary.Released > 0 {
		if err := s.assignRanks(ctx, examID); err != nil {
			span.RecordError(err)
			s.logger.Error().Err(err).Str("exam_id", examID).Msg("failed to assign ranks")
		}
	}

	for _, result := range published {
		if s.events != nil {
			if err := s.events.ResultPublished(ctx, ResultEvent{
				ExamID:    result.ExamID,
				StudentID: result.StudentID,
				ResultID:  result.ID,
				Status:    result.Status,
				Total:     result.Total,
				Trigger:   trigger,
			}); err != nil {
				s.logger.Warn().Err(err).Str("result_id", result.ID).Msg("failed to publish release event")
			}
		}
		observability.ResultsPublishedTotal().WithLabelValues(trigger).Inc()
	}

	if s.activity != nil && summary.Released > 0 {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    "scheduler",
			ActorRole:  "system",
			Action:     "results.released",
			EntityType: "exam",
			EntityID:   examID,
			Metadata: map[string]interface{}{
				"released": summary.Released,
				"skipped":  summary.Skipped,
				"failed":   summary.Failed,
				"trigger":  trigger,
			},
		})
	}

	span.SetAttributes(
		attribute.Int("release.published", summary.Released),
		attribute.Int("release.skipped", summary.Skipped),
		attribute.Int("release.failed", summary.Failed),
	)
	if summary.Failed > 0 {
		span.SetStatus(codes.Error, "partial_release")
	}

	return summary, nil
}

// SweepEnded finalizes every active exam whose window has closed. Mixed
// exams still waiting on evaluator marks are left alone; they release when
// evaluations are submitted.
func (s *releaseService) SweepEnded(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "release.sweep")
	defer span.End()

	exams, err := s.exams.ListEnded(ctx, s.now())
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	released := 0
	for _, exam := range exams {
		examCtx, cancel := context.WithTimeout(ctx, examFinalizeTimeout)
		summary, err := s.FinalizeExam(examCtx, exam.ID, "sweep")
		cancel()
		if err != nil {
			if !errors.Is(err, ErrEvaluationsPending) {
				s.logger.Error().Err(err).Str("exam_id", exam.ID).Msg("release sweep failed for exam")
			}
			continue
		}
		released += summary.Released
	}

	observability.ReleaseSweepsTotal().Inc()
	span.SetAttributes(attribute.Int("release.total_published", released))

	return released, nil
}

func (s *releaseService) gradeSubmission(
	exam models.Exam,
	resolver *grading.Resolver,
	sub models.ExamSubmission,
	assignedSetID, firstSubmitterSetID string,
	existing *models.Result,
	now time.Time,
) (models.Result, error) {
	if assignedSetID == "" && sub.ExamSetID != nil {
		assignedSetID = *sub.ExamSetID
	}

	answers := grading.ParseAnswers(sub.Answers)
	questions, _ := resolver.BaseQuestions(assignedSetID, firstSubmitterSetID)

	policy := grading.Policy{NegativeMarkingPercent: exam.MCQNegativeMarking}
	_, totals := grading.EvaluateAll(questions, answers, resolver, policy)

	result := models.Result{
		ID:               uuid.NewString(),
		StudentID:        sub.StudentID,
		ExamID:           sub.ExamID,
		MCQMarks:         totals.MCQ,
		CQMarks:          totals.CQ,
		SQMarks:          totals.SQ,
		Total:            totals.Total,
		Percentage:       grading.Percentage(totals.Total, exam.TotalMarks),
		Status:           models.ResultStatusNormal,
		IsPublished:      true,
		PublishedAt:      &now,
		ExamSubmissionID: sub.ID,
	}
	result.Grade = grading.LetterGrade(result.Percentage)

	if existing != nil {
		result.ID = existing.ID
		result.Comment = existing.Comment
		if existing.IsPublished && existing.PublishedAt != nil {
			result.PublishedAt = existing.PublishedAt
		}
	}

	return result, nil
}

// assignRanks applies standard competition ranking over the exam's
// published, non-suspended results: equal totals share a rank and the next
// rank skips accordingly.
func (s *releaseService) assignRanks(ctx context.Context, examID string) error {
	results, err := s.results.ListByExam(ctx, examID)
	if err != nil {
		return err
	}

	ranked := make([]models.Result, 0, len(results))
	for _, r := range results {
		if r.IsPublished && !r.IsSuspended() {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total > ranked[j].Total
	})

	for i := range ranked {
		rank := i + 1
		if i > 0 && ranked[i].Total == ranked[i-1].Total {
			rank = *ranked[i-1].Rank
		}
		ranked[i].Rank = &rank

		if err := s.results.Update(ctx, &ranked[i]); err != nil {
			return err
		}
	}

	return nil
}

func (s *releaseService) allEvaluated(ctx context.Context, examID string) (bool, error) {
	submissions, err := s.submissions.ListByExam(ctx, examID)
	if err != nil {
		return false, err
	}

	for _, sub := range submissions {
		if !sub.IsSubmitted() {
			continue
		}
		if sub.ExceededQuestionLimit {
			continue
		}
		if !sub.IsEvaluated() {
			return false, nil
		}
	}

	return true, nil
}

func (s *releaseService) buildResolver(exam models.Exam) (*grading.Resolver, error) {
	snapshots := make([]grading.SetSnapshot, 0, len(exam.ExamSets))
	for _, set := range exam.ExamSets {
		if !set.HasQuestions() {
			continue
		}
		questions, err := grading.ParseQuestions(set.QuestionsJSON)
		if err != nil {
			s.logger.Warn().Err(err).Str("exam_set_id", set.ID).Msg("skipping unreadable exam set snapshot")
			continue
		}
		snapshots = append(snapshots, grading.SetSnapshot{ID: set.ID, Questions: questions})
	}

	return grading.NewResolver(snapshots...), nil
}
