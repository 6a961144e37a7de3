package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles the stores participating in a transaction.
type Repositories struct {
	Exams       ExamRepository
	Submissions SubmissionRepository
	Results     ResultRepository
}

// Atomic executes a function with every repository bound to one database
// transaction. Submission intake uses it so the submission write and the
// result upsert for a (student, exam) pair commit or roll back together.
type Atomic interface {
	InTx(ctx context.Context, fn func(repos Repositories) error) error
}

type atomicRunner struct {
	db *gorm.DB
}

// NewAtomic constructs the transaction runner.
func NewAtomic(db *gorm.DB) Atomic {
	return &atomicRunner{db: db}
}

func (a *atomicRunner) InTx(ctx context.Context, fn func(repos Repositories) error) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Repositories{
			Exams:       NewExamRepository(tx),
			Submissions: NewSubmissionRepository(tx),
			Results:     NewResultRepository(tx),
		})
	})
}
