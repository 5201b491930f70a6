package flows

import (
	"context"

	"github.com/MrEthical07/staffauth/refresh"
)

// IssueFailureKind classifies issue flow failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureEncode
	IssueFailurePersist
)

// IssueResult carries either the issued pair or failure metadata.
type IssueResult struct {
	Failure IssueFailureKind
	Err     error
	Pair    Pair
	Record  refresh.Record
}

type IssueStore interface {
	Create(ctx context.Context, owner, value string) (refresh.Record, error)
}

// IssueDeps captures issue flow dependencies.
type IssueDeps struct {
	Mint  func(Subject) (Pair, error)
	Store IssueStore
}

// RunIssue mints a pair for subject and records the refresh token. If the
// record cannot be written no pair is returned.
func RunIssue(ctx context.Context, subject Subject, deps IssueDeps) IssueResult {
	pair, err := deps.Mint(subject)
	if err != nil {
		return IssueResult{Failure: IssueFailureEncode, Err: err}
	}

	rec, err := deps.Store.Create(ctx, subject.ID, pair.RefreshToken)
	if err != nil {
		return IssueResult{Failure: IssueFailurePersist, Err: err}
	}

	return IssueResult{
		Failure: IssueFailureNone,
		Pair:    pair,
		Record:  rec,
	}
}
