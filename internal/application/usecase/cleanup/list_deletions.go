package cleanup

import (
	"context"

	"github.com/khoahotran/stories-backend/internal/domain/deletion"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type ListDeletionsUseCase struct {
	ledger deletion.Ledger
	policy deletion.RetryPolicy
}

func NewListDeletionsUseCase(l deletion.Ledger, p deletion.RetryPolicy) *ListDeletionsUseCase {
	return &ListDeletionsUseCase{ledger: l, policy: p.WithDefaults()}
}

type ListDeletionsInput struct {
	StuckOnly bool
	Limit     int
	Offset    int
}

type ListDeletionsOutput struct {
	Deletions []*deletion.FailedDeletion
	Stuck     int64
	// MaxAttempts is the ceiling a row must reach to count as stuck.
	MaxAttempts int
}

// Execute lists ledger rows for operators, most recently updated first.
func (uc *ListDeletionsUseCase) Execute(ctx context.Context, input ListDeletionsInput) (*ListDeletionsOutput, error) {
	limit := input.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	rows, err := uc.ledger.List(ctx, deletion.ListFilter{
		StuckOnly:   input.StuckOnly,
		MaxAttempts: uc.policy.MaxAttempts,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, err
	}
	stuck, err := uc.ledger.CountStuck(ctx, uc.policy.MaxAttempts)
	if err != nil {
		return nil, err
	}
	return &ListDeletionsOutput{Deletions: rows, Stuck: stuck, MaxAttempts: uc.policy.MaxAttempts}, nil
}
