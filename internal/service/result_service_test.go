package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/digischool/exam-api/internal/models"
)

func newResultFixture(t *testing.T, exam models.Exam) (*memSubmissionRepo, *memResultRepo, *miniredis.Miniredis, ResultService) {
	t.Helper()

	examRepo := newMemExamRepo(exam)
	subRepo := newMemSubmissionRepo()
	resultRepo := newMemResultRepo()
	atomic := &fakeAtomic{exams: examRepo, submissions: subRepo, results: resultRepo}

	releaser := NewReleaseService(examRepo, subRepo, resultRepo, atomic, &recorderStub{}, &eventsStub{}, testLogger())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewResultService(examRepo, resultRepo, subRepo, releaser, client, 0, testLogger())

	return subRepo, resultRepo, mr, svc
}

func TestResultServicePublishedResult(t *testing.T) {
	exam := objectiveExam(t)
	_, resultRepo, _, svc := newResultFixture(t, exam)

	now := time.Now()
	require.NoError(t, resultRepo.Upsert(context.Background(), &models.Result{
		ID:          "res-1",
		StudentID:   "alpha",
		ExamID:      exam.ID,
		Total:       5,
		Percentage:  83.33,
		Grade:       "A+",
		Status:      models.ResultStatusNormal,
		IsPublished: true,
		PublishedAt: &now,
	}))

	result, err := svc.GetStudentResult(context.Background(), "alpha", exam.ID)
	require.NoError(t, err)
	require.Equal(t, "A+", result.Grade)
	require.InDelta(t, 5.0, result.Total, 0.001)
}

func TestResultServiceUnpublishedBeforeExamEnd(t *testing.T) {
	exam := mixedExam(t)
	_, resultRepo, _, svc := newResultFixture(t, exam)

	require.NoError(t, resultRepo.Upsert(context.Background(), &models.Result{
		ID:        "res-1",
		StudentID: "alpha",
		ExamID:    exam.ID,
		Status:    models.ResultStatusNormal,
	}))

	_, err := svc.GetStudentResult(context.Background(), "alpha", exam.ID)
	require.ErrorIs(t, err, ErrResultNotReady)
}

func TestResultServiceMissingResult(t *testing.T) {
	exam := objectiveExam(t)
	_, _, _, svc := newResultFixture(t, exam)

	_, err := svc.GetStudentResult(context.Background(), "nobody", exam.ID)
	require.ErrorIs(t, err, ErrResultNotFound)
}

func TestResultServiceLazyReleaseAfterExamEnd(t *testing.T) {
	exam := objectiveExam(t)
	exam.StartTime = time.Now().Add(-3 * time.Hour)
	exam.EndTime = time.Now().Add(-time.Hour)
	subRepo, _, _, svc := newResultFixture(t, exam)

	// graded rows never published, e.g. the scheduler was down at the deadline
	require.NoError(t, subRepo.Upsert(context.Background(), ptr(submittedRow("alpha", exam.ID, map[string]interface{}{
		"q1": "Red", "q2": "Green",
	}))))

	result, err := svc.GetStudentResult(context.Background(), "alpha", exam.ID)
	require.NoError(t, err)
	require.True(t, result.IsPublished)
	require.InDelta(t, 4.0, result.Total, 0.001)
}

func TestResultServiceSuspendedResultVisible(t *testing.T) {
	exam := objectiveExam(t)
	_, resultRepo, _, svc := newResultFixture(t, exam)

	now := time.Now()
	require.NoError(t, resultRepo.Upsert(context.Background(), &models.Result{
		ID:               "res-1",
		StudentID:        "alpha",
		ExamID:           exam.ID,
		Status:           models.ResultStatusSuspended,
		SuspensionReason: SuspensionReasonLimit,
		IsPublished:      true,
		PublishedAt:      &now,
	}))

	result, err := svc.GetStudentResult(context.Background(), "alpha", exam.ID)
	require.NoError(t, err)
	require.Equal(t, models.ResultStatusSuspended, result.Status)
	require.Equal(t, SuspensionReasonLimit, result.SuspensionReason)
}

func TestResultServiceStatistics(t *testing.T) {
	exam := objectiveExam(t)
	subRepo, resultRepo, mr, svc := newResultFixture(t, exam)

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, subRepo.Upsert(ctx, ptr(submittedRow("alpha", exam.ID, map[string]interface{}{"q1": "Red"}))))
	require.NoError(t, subRepo.Upsert(ctx, ptr(submittedRow("beta", exam.ID, map[string]interface{}{"q1": "Red"}))))
	require.NoError(t, subRepo.Upsert(ctx, ptr(submittedRow("gamma", exam.ID, map[string]interface{}{"q1": "Red"}))))

	for _, r := range []models.Result{
		{ID: "r1", StudentID: "alpha", ExamID: exam.ID, Total: 6, Percentage: 100, Status: models.ResultStatusNormal, IsPublished: true, PublishedAt: &now},
		{ID: "r2", StudentID: "beta", ExamID: exam.ID, Total: 1, Percentage: 16.67, Status: models.ResultStatusNormal, IsPublished: true, PublishedAt: &now},
		{ID: "r3", StudentID: "gamma", ExamID: exam.ID, Status: models.ResultStatusSuspended, IsPublished: true, PublishedAt: &now},
	} {
		result := r
		require.NoError(t, resultRepo.Upsert(ctx, &result))
	}

	stats, err := svc.Statistics(ctx, exam.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalSubmitted)
	require.Equal(t, 3, stats.TotalPublished)
	require.Equal(t, 1, stats.TotalSuspended)
	require.InDelta(t, 3.5, stats.AverageMarks, 0.001)
	require.InDelta(t, 6.0, stats.HighestMarks, 0.001)
	require.InDelta(t, 1.0, stats.LowestMarks, 0.001)
	require.InDelta(t, 50.0, stats.PassRate, 0.001)

	// served from cache: mutating the store must not change the payload
	require.NoError(t, resultRepo.Update(ctx, &models.Result{
		ID: "r2", StudentID: "beta", ExamID: exam.ID, Total: 6, Percentage: 100,
		Status: models.ResultStatusNormal, IsPublished: true, PublishedAt: &now,
	}))

	cached, err := svc.Statistics(ctx, exam.ID)
	require.NoError(t, err)
	require.InDelta(t, 3.5, cached.AverageMarks, 0.001)

	// expiry forces a recompute
	mr.FastForward(statisticsCacheTTL + time.Second)

	fresh, err := svc.Statistics(ctx, exam.ID)
	require.NoError(t, err)
	require.InDelta(t, 6.0, fresh.AverageMarks, 0.001)
}
