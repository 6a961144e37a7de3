package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
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

// Submission lifecycle errors mapped to HTTP statuses by the handlers.
var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrExamNotStarted     = errors.New("exam has not started yet")
	ErrExamEnded          = errors.New("exam window has closed")
	ErrSectionTimeExpired = errors.New("section time limit expired")
	ErrRetakeNotAllowed   = errors.New("exam was already submitted")
	ErrEmptyAnswers       = errors.New("answers payload is empty")
)

// SuspensionReasonLimit is the fixed message stored on results voided by the
// question-limit policy.
const SuspensionReasonLimit = "Student answered more questions than allowed"

// sectionGrace is how far past a section's time limit a late submission is
// still accepted, absorbing client clock skew and slow uploads.
const sectionGrace = 2 * time.Minute

// Submission phases accepted by Start and Submit.
const (
	PhaseObjective = "objective"
	PhaseCqSq      = "cq_sq"
	PhaseFinal     = "final"
)

// SubmissionService runs the exam submission lifecycle: session start,
// answer intake, limit enforcement and grading.
type SubmissionService interface {
	Start(ctx context.Context, studentID, examID, phase string) (dto.SubmissionResponse, error)
	Submit(ctx context.Context, studentID, examID string, payload dto.SubmitExamRequest) (dto.SubmitExamResponse, error)
}

type submissionService struct {
	exams       repository.ExamRepository
	submissions repository.SubmissionRepository
	atomic      repository.Atomic
	validator   *validator.Validate
	activity    ActivityRecorder
	events      ResultEventPublisher
	releaser    ReleaseService
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs the submission service. The releaser
// publishes results parked earlier once the last rostered student submits.
func NewSubmissionService(
	exams repository.ExamRepository,
	submissions repository.SubmissionRepository,
	atomic repository.Atomic,
	validate *validator.Validate,
	activity ActivityRecorder,
	events ResultEventPublisher,
	releaser ReleaseService,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		exams:       exams,
		submissions: submissions,
		atomic:      atomic,
		validator:   validate,
		activity:    activity,
		events:      events,
		releaser:    releaser,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/digischool/exam-api/internal/service/submission"),
		now:         time.Now,
	}
}

// Start opens (or resumes) the student's session and stamps the phase start
// time. Starting is idempotent: repeating a phase keeps the original stamp
// so refreshing the exam page never extends the clock.
func (s *submissionService) Start(ctx context.Context, studentID, examID, phase string) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.start", trace.WithAttributes(
		attribute.String("exam.id", examID),
		attribute.String("submission.phase", phase),
	))
	defer span.End()

	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	now := s.now()
	if now.Before(exam.StartTime) {
		return dto.SubmissionResponse{}, ErrExamNotStarted
	}
	if exam.Ended(now) {
		return dto.SubmissionResponse{}, ErrExamEnded
	}

	submission, err := s.submissions.GetByStudentAndExam(ctx, studentID, examID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	if submission != nil && submission.IsSubmitted() && !exam.AllowRetake {
		return dto.SubmissionResponse{}, ErrRetakeNotAllowed
	}

	if submission == nil {
		submission = &models.ExamSubmission{
			ID:        uuid.NewString(),
			StudentID: studentID,
			ExamID:    examID,
			Status:    models.SubmissionStatusInProgress,
		}
	}

	if submission.StartedAt == nil {
		submission.StartedAt = &now
	}
	switch phase {
	case PhaseObjective:
		if submission.ObjectiveStartedAt == nil {
			submission.ObjectiveStartedAt = &now
			submission.ObjectiveStatus = models.SubmissionStatusInProgress
		}
	case PhaseCqSq:
		if submission.CqSqStartedAt == nil {
			submission.CqSqStartedAt = &now
			submission.CqSqStatus = models.SubmissionStatusInProgress
		}
	}

	if mapping, err := s.exams.GetStudentMap(ctx, studentID, examID); err == nil && mapping != nil {
		setID := mapping.ExamSetID
		submission.ExamSetID = &setID
	}

	if err := s.submissions.Upsert(ctx, submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_start_failed")
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(*submission), nil
}

// Submit finalizes a phase. On the final phase the submission is validated
// against the question-limit policy and graded: pure objective exams publish
// once the roster has finished (or no roster is configured), mixed exams
// park the result unpublished for evaluators.
func (s *submissionService) Submit(ctx context.Context, studentID, examID string, payload dto.SubmitExamRequest) (dto.SubmitExamResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.String("exam.id", examID),
		attribute.String("submission.phase", payload.Phase),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmitExamResponse{}, err
	}
	if len(payload.Answers) == 0 {
		return dto.SubmitExamResponse{}, ErrEmptyAnswers
	}

	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmitExamResponse{}, err
	}

	now := s.now()
	if now.Before(exam.StartTime) {
		return dto.SubmitExamResponse{}, ErrExamNotStarted
	}
	if now.After(exam.EndTime.Add(sectionGrace)) {
		return dto.SubmitExamResponse{}, ErrExamEnded
	}

	existing, err := s.submissions.GetByStudentAndExam(ctx, studentID, examID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmitExamResponse{}, err
	}
	alreadySubmitted := existing != nil && existing.IsSubmitted()
	if alreadySubmitted && !exam.AllowRetake {
		return dto.SubmitExamResponse{}, ErrRetakeNotAllowed
	}
	if err := s.checkSectionTime(exam, existing, payload.Phase, now); err != nil {
		return dto.SubmitExamResponse{}, err
	}

	resolver, assignedSetID, firstSubmitterSetID, err := s.buildResolver(ctx, exam, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmitExamResponse{}, err
	}

	answers := grading.ParseAnswers(payload.Answers)

	submission := existing
	if submission == nil {
		submission = &models.ExamSubmission{
			ID:        uuid.NewString(),
			StudentID: studentID,
			ExamID:    examID,
		}
	}
	if assignedSetID != "" {
		setID := assignedSetID
		submission.ExamSetID = &setID
	}
	submission.Answers = grading.FlattenAnswers(answers, payload.Answers)
	s.stampPhase(submission, payload.Phase, now)

	if payload.Phase == PhaseObjective {
		if err := s.submissions.Upsert(ctx, submission); err != nil {
			span.RecordError(err)
			return dto.SubmitExamResponse{}, err
		}
		observability.ExamSubmissionsTotal().WithLabelValues("section").Inc()
		return dto.SubmitExamResponse{
			SubmissionID: submission.ID,
			Status:       submission.Status,
			Message:      "objective section submitted",
		}, nil
	}

	submission.Status = models.SubmissionStatusSubmitted
	submission.SubmittedAt = &now

	caps := grading.Caps{CQ: exam.CQRequiredQuestions, SQ: exam.SQRequiredQuestions}
	counts := grading.CountAnswered(answers, resolver)
	if caps.Exceeded(counts) {
		return s.suspend(ctx, span, exam, submission, now)
	}

	questions, strategy := resolver.BaseQuestions(assignedSetID, firstSubmitterSetID)
	span.SetAttributes(attribute.String("grading.base_strategy", string(strategy)))

	policy := grading.Policy{NegativeMarkingPercent: exam.MCQNegativeMarking}
	_, totals := grading.EvaluateAll(questions, answers, resolver, policy)

	autoGraded := !resolver.HasSubjective()

	// An objective-only result goes out immediately once nothing can still
	// change the ranking: the window closed, or no roster is configured, or
	// this submission completes the roster. Mid-window with classmates still
	// writing, the result parks unpublished until the cohort releases.
	publishNow := autoGraded
	rosterComplete := false
	if autoGraded && exam.ActiveStudents > 0 && !exam.Ended(now) {
		submitted, err := s.submissions.CountSubmitted(ctx, examID)
		if err != nil {
			span.RecordError(err)
			return dto.SubmitExamResponse{}, err
		}
		if !alreadySubmitted {
			submitted++
		}
		rosterComplete = submitted >= int64(exam.ActiveStudents)
		publishNow = rosterComplete
	}

	result := models.Result{
		ID:               uuid.NewString(),
		StudentID:        studentID,
		ExamID:           examID,
		MCQMarks:         totals.MCQ,
		CQMarks:          totals.CQ,
		SQMarks:          totals.SQ,
		Total:            totals.Total,
		Percentage:       grading.Percentage(totals.Total, exam.TotalMarks),
		Status:           models.ResultStatusNormal,
		ExamSubmissionID: submission.ID,
	}
	result.Grade = grading.LetterGrade(result.Percentage)
	if autoGraded {
		score := totals.Total
		submission.Score = &score
		submission.EvaluatedAt = &now
	}
	if publishNow {
		result.IsPublished = true
		result.PublishedAt = &now
	}

	err = s.atomic.InTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Submissions.Upsert(ctx, submission); err != nil {
			return err
		}
		return repos.Results.Upsert(ctx, &result)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_persist_failed")
		return dto.SubmitExamResponse{}, err
	}

	observability.ExamSubmissionsTotal().WithLabelValues("submitted").Inc()
	if publishNow {
		observability.ResultsPublishedTotal().WithLabelValues("auto").Inc()
		s.publishResult(ctx, result, "auto")
	}
	if rosterComplete && s.releaser != nil {
		// classmates who submitted earlier have results parked unpublished
		if _, err := s.releaser.FinalizeExam(ctx, examID, "auto"); err != nil {
			s.logger.Warn().Err(err).Str("exam_id", examID).Msg("early release after final submission failed")
		}
	}
	s.recordSubmission(ctx, *submission, autoGraded)

	response := dto.SubmitExamResponse{
		SubmissionID: submission.ID,
		Status:       submission.Status,
		AutoGraded:   autoGraded,
	}
	switch {
	case publishNow:
		r := dto.NewResultResponse(result)
		response.Result = &r
		response.Message = "exam graded"
	case autoGraded:
		response.Message = "exam graded, result releases when all students finish"
	default:
		response.Message = "submission received, awaiting evaluation"
	}

	return response, nil
}

func (s *submissionService) suspend(ctx context.Context, span trace.Span, exam models.Exam, submission *models.ExamSubmission, now time.Time) (dto.SubmitExamResponse, error) {
	submission.ExceededQuestionLimit = true
	zero := 0.0
	submission.Score = &zero

	result := models.Result{
		ID:               uuid.NewString(),
		StudentID:        submission.StudentID,
		ExamID:           exam.ID,
		Status:           models.ResultStatusSuspended,
		SuspensionReason: SuspensionReasonLimit,
		Grade:            grading.LetterGrade(0),
		IsPublished:      true,
		PublishedAt:      &now,
		ExamSubmissionID: submission.ID,
	}

	err := s.atomic.InTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Submissions.Upsert(ctx, submission); err != nil {
			return err
		}
		return repos.Results.Upsert(ctx, &result)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "suspension_persist_failed")
		return dto.SubmitExamResponse{}, err
	}

	span.SetAttributes(attribute.Bool("submission.suspended", true))
	observability.ExamSubmissionsTotal().WithLabelValues("suspended").Inc()
	s.publishResult(ctx, result, "suspension")

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    submission.StudentID,
			ActorRole:  "student",
			Action:     "submission.suspended",
			EntityType: "submission",
			EntityID:   submission.ID,
			Metadata: map[string]interface{}{
				"exam_id": exam.ID,
				"reason":  SuspensionReasonLimit,
			},
		})
	}

	r := dto.NewResultResponse(result)
	return dto.SubmitExamResponse{
		SubmissionID:          submission.ID,
		Status:                submission.Status,
		Suspended:             true,
		ExceededQuestionLimit: true,
		Message:               SuspensionReasonLimit,
		Result:                &r,
	}, nil
}

func (s *submissionService) loadExam(ctx context.Context, examID string) (models.Exam, error) {
	exam, err := s.exams.GetWithSets(ctx, examID)
	if err != nil {
		if isNotFound(err) {
			return models.Exam{}, ErrExamNotFound
		}
		return models.Exam{}, err
	}
	return exam, nil
}

// buildResolver decodes every cached set snapshot and determines the
// assigned and first-submitter set ids feeding the base-question fallback
// chain.
func (s *submissionService) buildResolver(ctx context.Context, exam models.Exam, studentID string) (*grading.Resolver, string, string, error) {
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

	assignedSetID := ""
	if mapping, err := s.exams.GetStudentMap(ctx, studentID, exam.ID); err != nil {
		return nil, "", "", err
	} else if mapping != nil {
		assignedSetID = mapping.ExamSetID
	}

	firstSubmitterSetID := ""
	submissions, err := s.submissions.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, "", "", err
	}
	for _, sub := range submissions {
		if sub.IsSubmitted() && sub.ExamSetID != nil && *sub.ExamSetID != "" {
			firstSubmitterSetID = *sub.ExamSetID
			break
		}
	}

	return grading.NewResolver(snapshots...), assignedSetID, firstSubmitterSetID, nil
}

// checkSectionTime rejects a phase submission arriving past its time limit
// plus grace. Limits only apply once the matching start stamp exists.
func (s *submissionService) checkSectionTime(exam models.Exam, submission *models.ExamSubmission, phase string, now time.Time) error {
	if submission == nil {
		return nil
	}

	within := func(started *time.Time, minutes int) bool {
		if started == nil || minutes <= 0 {
			return true
		}
		deadline := started.Add(time.Duration(minutes)*time.Minute + sectionGrace)
		return !now.After(deadline)
	}

	switch phase {
	case PhaseObjective:
		if !within(submission.ObjectiveStartedAt, exam.ObjectiveTime) {
			return ErrSectionTimeExpired
		}
	case PhaseCqSq:
		if !within(submission.CqSqStartedAt, exam.CqSqTime) {
			return ErrSectionTimeExpired
		}
	}

	if !within(submission.StartedAt, exam.Duration) {
		return ErrSectionTimeExpired
	}

	return nil
}

func (s *submissionService) stampPhase(submission *models.ExamSubmission, phase string, now time.Time) {
	switch phase {
	case PhaseObjective:
		submission.ObjectiveStatus = models.SubmissionStatusSubmitted
		submission.ObjectiveSubmittedAt = &now
		if submission.Status == "" {
			submission.Status = models.SubmissionStatusInProgress
		}
	case PhaseCqSq:
		submission.CqSqStatus = models.SubmissionStatusSubmitted
		submission.CqSqSubmittedAt = &now
	}
}

func (s *submissionService) recordSubmission(ctx context.Context, submission models.ExamSubmission, autoGraded bool) {
	if s.activity == nil {
		return
	}
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    submission.StudentID,
		ActorRole:  "student",
		Action:     "submission.received",
		EntityType: "submission",
		EntityID:   submission.ID,
		Metadata: map[string]interface{}{
			"exam_id":     submission.ExamID,
			"auto_graded": autoGraded,
		},
	})
}

func (s *submissionService) publishResult(ctx context.Context, result models.Result, trigger string) {
	if s.events == nil {
		return
	}
	if err := s.events.ResultPublished(ctx, ResultEvent{
		ExamID:    result.ExamID,
		StudentID: result.StudentID,
		ResultID:  result.ID,
		Status:    result.Status,
		Total:     result.Total,
		Trigger:   trigger,
	}); err != nil {
		s.logger.Warn().Err(err).Str("result_id", result.ID).Msg("failed to publish result event")
	}
}
