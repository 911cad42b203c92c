package domain

import "context"

// AnalysisStore archives analyses so repeated questions survive cache expiry.
type AnalysisStore interface {
	Save(ctx context.Context, rec AnalysisRecord) error
	Latest(ctx context.Context, question string) (AnalysisRecord, error)
}

// StatsSnapshotStore keeps a history of profile stats per address.
type StatsSnapshotStore interface {
	Insert(ctx context.Context, snap StatsSnapshot) error
	ListByAddress(ctx context.Context, address string, limit int) ([]StatsSnapshot, error)
}
