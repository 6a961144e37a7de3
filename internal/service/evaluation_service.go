package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/digischool/exam-api/internal/dto"
	"github.com/digischool/exam-api/internal/grading"
	"github.com/digischool/exam-api/internal/models"
	"github.com/digischool/exam-api/internal/repository"
)

// Evaluation errors mapped to HTTP statuses by the handlers.
var (
	ErrNotAssigned        = errors.New("evaluator is not assigned to this exam")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrUnknownQuestion    = errors.New("marks reference a question outside the exam")
	ErrNotSubjective      = errors.New("marks may only be saved on cq and sq questions")
	ErrMarksExceedMax     = errors.New("marks exceed the question maximum")
	ErrResultSuspended    = errors.New("result is suspended")
	ErrNothingToFinalize  = errors.New("no evaluated submissions to finalize")
	ErrEvaluationsPending = errors.New("submissions are still awaiting evaluation")
)

const roleAdmin = "admin"

// EvaluationService is the evaluator's surface: the per-exam worklist,
// saving manual marks and finalizing the whole exam.
type EvaluationService interface {
	ListExam(ctx context.Context, examID string, actor ActivityActor) (dto.EvaluationListResponse, error)
	SaveMarks(ctx context.Context, examID string, actor ActivityActor, payload dto.SaveMarksRequest) (dto.SubmissionResponse, error)
	SubmitAll(ctx context.Context, examID string, actor ActivityActor, payload dto.SubmitEvaluationsRequest) (dto.ReleaseSummary, error)
}

type evaluationService struct {
	exams       repository.ExamRepository
	submissions repository.SubmissionRepository
	results     repository.ResultRepository
	assignments repository.EvaluationAssignmentRepository
	releaser    ReleaseService
	validator   *validator.Validate
	activity    ActivityRecorder
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewEvaluationService constructs the evaluation service.
func NewEvaluationService(
	exams repository.ExamRepository,
	submissions repository.SubmissionRepository,
	results repository.ResultRepository,
	assignments repository.EvaluationAssignmentRepository,
	releaser ReleaseService,
	validate *validator.Validate,
	activity ActivityRecorder,
	logger zerolog.Logger,
) EvaluationService {
	return &evaluationService{
		exams:       exams,
		submissions: submissions,
		results:     results,
		assignments: assignments,
		releaser:    releaser,
		validator:   validate,
		activity:    activity,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
		tracer:      otel.Tracer("github.com/digischool/exam-api/internal/service/evaluation"),
		now:         time.Now,
	}
}

// ListExam builds the evaluator worklist: every submitted answer sheet with
// its auto-graded breakdown and running totals. The exam's evaluation
// status is derived from the submissions, never stored.
func (s *evaluationService) ListExam(ctx context.Context, examID string, actor ActivityActor) (dto.EvaluationListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.list", trace.WithAttributes(
		attribute.String("exam.id", examID),
	))
	defer span.End()

	if err := s.authorize(ctx, examID, actor); err != nil {
		return dto.EvaluationListResponse{}, err
	}

	exam, resolver, err := s.loadExamContext(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return dto.EvaluationListResponse{}, err
	}

	submissions, err := s.submissions.ListByExam(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return dto.EvaluationListResponse{}, err
	}

	mappings, err := s.exams.ListStudentMaps(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return dto.EvaluationListResponse{}, err
	}
	assigned := make(map[string]string, len(mappings))
	for _, m := range mappings {
		assigned[m.StudentID] = m.ExamSetID
	}

	response := dto.EvaluationListResponse{ExamID: examID}
	policy := grading.Policy{NegativeMarkingPercent: exam.MCQNegativeMarking}

	for _, sub := range submissions {
		if !sub.IsSubmitted() {
			continue
		}
		response.TotalRows++
		if sub.IsEvaluated() || sub.ExceededQuestionLimit {
			response.Evaluated++
		}

		answers := grading.ParseAnswers(sub.Answers)
		setID := assigned[sub.StudentID]
		if setID == "" && sub.ExamSetID != nil {
			setID = *sub.ExamSetID
		}
		questions, _ := resolver.BaseQuestions(setID, "")
		results, totals := grading.EvaluateAll(questions, answers, resolver, policy)

		row := dto.EvaluationRow{
			Submission: dto.NewSubmissionResponse(sub),
			MCQMarks:   totals.MCQ,
			CQMarks:    totals.CQ,
			SQMarks:    totals.SQ,
			Total:      totals.Total,
		}
		for _, res := range results {
			q, _ := resolver.Find(res.QuestionID)
			row.Breakdown = append(row.Breakdown, dto.NewQuestionBreakdown(q, res, answers[res.QuestionID]))
		}
		response.Rows = append(response.Rows, row)
	}

	response.Remaining = response.TotalRows - response.Evaluated
	switch {
	case response.TotalRows == 0 || response.Evaluated == 0:
		response.Status = models.EvaluationStatusPending
	case response.Remaining == 0:
		response.Status = models.EvaluationStatusCompleted
	default:
		response.Status = models.EvaluationStatusInProgress
	}

	return response, nil
}

// SaveMarks stores an evaluator's manual marks for one submission. Marks
// land inside the answers document as `${id}_marks` sibling keys, the shape
// the clients already understand. Saving against a suspended result is an
// admin-only override.
func (s *evaluationService) SaveMarks(ctx context.Context, examID string, actor ActivityActor, payload dto.SaveMarksRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.save_marks", trace.WithAttributes(
		attribute.String("exam.id", examID),
		attribute.String("evaluation.student_id", payload.StudentID),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	if err := s.authorize(ctx, examID, actor); err != nil {
		return dto.SubmissionResponse{}, err
	}

	exam, resolver, err := s.loadExamContext(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByStudentAndExam(ctx, payload.StudentID, examID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	if submission == nil || !submission.IsSubmitted() {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	result, err := s.results.GetByStudentAndExam(ctx, payload.StudentID, examID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	if result != nil && result.IsSuspended() && actor.Role != roleAdmin {
		return dto.SubmissionResponse{}, ErrResultSuspended
	}

	for id, marks := range payload.Marks {
		q, ok := resolver.Find(id)
		if !ok {
			return dto.SubmissionResponse{}, ErrUnknownQuestion
		}
		if !q.Type.IsSubjective() {
			return dto.SubmissionResponse{}, ErrNotSubjective
		}
		if marks < 0 || marks > q.Marks {
			return dto.SubmissionResponse{}, ErrMarksExceedMax
		}
	}

	answers := grading.ParseAnswers(submission.Answers)
	for id, marks := range payload.Marks {
		entry := answers[id]
		m := marks
		entry.ManualMarks = &m
		answers[id] = entry
	}
	submission.Answers = grading.FlattenAnswers(answers, submission.Answers)

	if notes := strings.TrimSpace(s.sanitizer.Sanitize(payload.Notes)); notes != "" {
		submission.EvaluatorNotes = notes
	}

	setID := ""
	if submission.ExamSetID != nil {
		setID = *submission.ExamSetID
	}
	questions, _ := resolver.BaseQuestions(setID, "")
	policy := grading.Policy{NegativeMarkingPercent: exam.MCQNegativeMarking}
	_, totals := grading.EvaluateAll(questions, answers, resolver, policy)

	score := totals.Total
	submission.Score = &score
	if !totals.NeedsManual {
		now := s.now()
		submission.EvaluatedAt = &now
	}

	if err := s.submissions.Update(ctx, submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marks_persist_failed")
		return dto.SubmissionResponse{}, err
	}

	if result != nil && !result.IsSuspended() && !result.IsPublished {
		result.MCQMarks = totals.MCQ
		result.CQMarks = totals.CQ
		result.SQMarks = totals.SQ
		result.Total = totals.Total
		result.Percentage = grading.Percentage(totals.Total, exam.TotalMarks)
		result.Grade = grading.LetterGrade(result.Percentage)
		if err := s.results.Update(ctx, result); err != nil {
			span.RecordError(err)
			return dto.SubmissionResponse{}, err
		}
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "evaluation.marks_saved",
			EntityType: "submission",
			EntityID:   submission.ID,
			Metadata: map[string]interface{}{
				"exam_id":    examID,
				"student_id": payload.StudentID,
				"questions":  len(payload.Marks),
				"total":      totals.Total,
			},
		})
	}

	span.SetAttributes(attribute.Float64("evaluation.total", totals.Total))

	return dto.NewSubmissionResponse(*submission), nil
}

// SubmitAll finalizes the exam once every submission carries evaluator
// marks, publishing all results in one release pass.
func (s *evaluationService) SubmitAll(ctx context.Context, examID string, actor ActivityActor, payload dto.SubmitEvaluationsRequest) (dto.ReleaseSummary, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.submit_all", trace.WithAttributes(
		attribute.String("exam.id", examID),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.ReleaseSummary{}, err
	}

	if err := s.authorize(ctx, examID, actor); err != nil {
		return dto.ReleaseSummary{}, err
	}

	submissions, err := s.submissions.ListByExam(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return dto.ReleaseSummary{}, err
	}

	evaluated := 0
	for _, sub := range submissions {
		if !sub.IsSubmitted() || sub.ExceededQuestionLimit {
			continue
		}
		if !sub.IsEvaluated() {
			return dto.ReleaseSummary{}, ErrEvaluationsPending
		}
		evaluated++
	}
	if evaluated == 0 {
		return dto.ReleaseSummary{}, ErrNothingToFinalize
	}

	summary, err := s.releaser.FinalizeExam(ctx, examID, "manual")
	if err != nil {
		span.RecordError(err)
		return dto.ReleaseSummary{}, err
	}

	if comment := strings.TrimSpace(s.sanitizer.Sanitize(payload.Comment)); comment != "" {
		s.attachComment(ctx, examID, comment)
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "evaluation.submitted",
			EntityType: "exam",
			EntityID:   examID,
			Metadata: map[string]interface{}{
				"released": summary.Released,
			},
		})
	}

	return summary, nil
}

func (s *evaluationService) attachComment(ctx context.Context, examID, comment string) {
	results, err := s.results.ListByExam(ctx, examID)
	if err != nil {
		s.logger.Warn().Err(err).Str("exam_id", examID).Msg("failed to load results for comment")
		return
	}
	for i := range results {
		if results[i].IsSuspended() || results[i].Comment != "" {
			continue
		}
		results[i].Comment = comment
		if err := s.results.Update(ctx, &results[i]); err != nil {
			s.logger.Warn().Err(err).Str("result_id", results[i].ID).Msg("failed to attach evaluator comment")
		}
	}
}

func (s *evaluationService) authorize(ctx context.Context, examID string, actor ActivityActor) error {
	if actor.Role == roleAdmin {
		return nil
	}
	ok, err := s.assignments.IsAssigned(ctx, examID, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAssigned
	}
	return nil
}

func (s *evaluationService) loadExamContext(ctx context.Context, examID string) (models.Exam, *grading.Resolver, error) {
	exam, err := s.exams.GetWithSets(ctx, examID)
	if err != nil {
		if isNotFound(err) {
			return models.Exam{}, nil, ErrExamNotFound
		}
		return models.Exam{}, nil, err
	}

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

	return exam, grading.NewResolver(snapshots...), nil
}
