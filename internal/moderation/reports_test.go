package moderation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/backend/internal/models"
)

type mockReportStore struct {
	mock.Mock
}

func (m *mockReportStore) ListReports() ([]models.ReportRecord, error) {
	args := m.Called()
	if reports := args.Get(0); reports != nil {
		return reports.([]models.ReportRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReportStore) InsertReport(reporterID, reportedUserID, reason string) error {
	args := m.Called(reporterID, reportedUserID, reason)
	return args.Error(0)
}

func report(id, reporter, reported string) models.ReportRecord {
	return models.ReportRecord{ID: id, ReporterID: reporter, ReportedUserID: reported}
}

func TestAggregatorBlockThreshold(t *testing.T) {
	tests := []struct {
		reports int
		blocked bool
	}{
		{0, false},
		{1, false},
		{2, false},
		{3, true},
		{4, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d reports", tt.reports), func(t *testing.T) {
			aggregator := NewAggregator("alice", new(mockReportStore))
			for i := 0; i < tt.reports; i++ {
				aggregator.ApplyInsert(report(fmt.Sprintf("r-%d", i), "carol", "bob"))
			}

			require.Equal(t, tt.reports, aggregator.ReportCount("bob"))
			require.Equal(t, tt.blocked, aggregator.IsBlocked("bob"))
		})
	}
}

func TestAggregatorLoadSeedsState(t *testing.T) {
	store := new(mockReportStore)
	store.On("ListReports").Return([]models.ReportRecord{
		report("r-1", "alice", "bob"),
		report("r-2", "carol", "bob"),
		report("r-3", "carol", "dave"),
	}, nil)

	aggregator := NewAggregator("alice", store)
	aggregator.Load()

	require.Equal(t, 2, aggregator.ReportCount("bob"))
	require.Equal(t, 1, aggregator.ReportCount("dave"))
	require.True(t, aggregator.HasReported("bob"))
	require.False(t, aggregator.HasReported("dave"))
	store.AssertExpectations(t)
}

func TestAggregatorLoadErrorStartsEmpty(t *testing.T) {
	store := new(mockReportStore)
	store.On("ListReports").Return(nil, errors.New("fetch failed"))

	aggregator := NewAggregator("alice", store)
	aggregator.Load()

	require.Zero(t, aggregator.ReportCount("bob"))
	require.False(t, aggregator.IsBlocked("bob"))
}

func TestAggregatorCountsOnlyGrow(t *testing.T) {
	aggregator := NewAggregator("alice", new(mockReportStore))

	for i := 0; i < 3; i++ {
		aggregator.ApplyInsert(report(fmt.Sprintf("r-%d", i), "carol", "bob"))
	}
	require.True(t, aggregator.IsBlocked("bob"))

	// More reports never unblock
	aggregator.ApplyInsert(report("r-4", "dave", "bob"))
	require.True(t, aggregator.IsBlocked("bob"))
	require.Equal(t, 4, aggregator.ReportCount("bob"))
}

func TestAggregatorSubmitReport(t *testing.T) {
	store := new(mockReportStore)
	store.On("InsertReport", "alice", "bob", "spam").Return(nil)

	aggregator := NewAggregator("alice", store)
	require.NoError(t, aggregator.SubmitReport("bob", "spam"))

	// The local count only moves when the insert event comes back
	require.Zero(t, aggregator.ReportCount("bob"))
	store.AssertExpectations(t)
}

func TestAggregatorSubmitReportSelf(t *testing.T) {
	store := new(mockReportStore)
	aggregator := NewAggregator("alice", store)

	require.ErrorIs(t, aggregator.SubmitReport("alice", "spam"), models.ErrSelfReport)
	store.AssertNotCalled(t, "InsertReport", mock.Anything, mock.Anything, mock.Anything)
}

func TestAggregatorSubmitReportNoIdentity(t *testing.T) {
	aggregator := NewAggregator("", new(mockReportStore))

	require.ErrorIs(t, aggregator.SubmitReport("bob", "spam"), models.ErrNotAuthenticated)
}

func TestAggregatorSubmitReportRemoteFailure(t *testing.T) {
	store := new(mockReportStore)
	store.On("InsertReport", "alice", "bob", "spam").Return(errors.New("timeout"))

	aggregator := NewAggregator("alice", store)
	require.ErrorIs(t, aggregator.SubmitReport("bob", "spam"), models.ErrRemoteUnavailable)
}

func TestAggregatorStatus(t *testing.T) {
	aggregator := NewAggregator("alice", new(mockReportStore))
	aggregator.ApplyInsert(report("r-1", "alice", "bob"))
	aggregator.ApplyInsert(report("r-2", "carol", "bob"))
	aggregator.ApplyInsert(report("r-3", "dave", "bob"))

	status := aggregator.Status("bob")
	require.Equal(t, models.ModerationStatus{
		UserID:      "bob",
		ReportCount: 3,
		Blocked:     true,
		Reported:    true,
	}, status)

	require.Equal(t, models.ModerationStatus{UserID: "carol"}, aggregator.Status("carol"))
}
