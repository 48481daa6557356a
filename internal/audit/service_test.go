package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	events  []Event
	offsets []int
	limits  []int
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Event, error) {
	s.offsets = append(s.offsets, offset)
	s.limits = append(s.limits, limit)
	if offset >= len(s.events) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.events) {
		end = len(s.events)
	}
	return s.events[offset:end], nil
}

func (s *stubTimelineRepo) TimelineAll(ctx context.Context, filters TimelineFilters) ([]Event, error) {
	return s.events, nil
}

func seedEvents(n int) []Event {
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, Event{
			ID:       int64(n - i),
			Action:   "profile.approve",
			Entity:   "profile",
			EntityID: fmt.Sprintf("%d", n-i),
		})
	}
	return events
}

func TestTimelineDefaultPageSize(t *testing.T) {
	repo := &stubTimelineRepo{events: seedEvents(25)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 20)
	require.Equal(t, 1, res.Paging.Page)
	require.Equal(t, 20, res.Paging.PageSize)
	require.True(t, res.Paging.HasNext)
	require.Equal(t, 2, res.Paging.NextPage)
	require.Zero(t, res.Paging.PrevPage)

	// One extra row is fetched to detect the next page.
	require.Equal(t, []int{21}, repo.limits)
	require.Equal(t, []int{0}, repo.offsets)
}

func TestTimelinePageSizeClamped(t *testing.T) {
	repo := &stubTimelineRepo{events: seedEvents(80)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, res.Rows, 50)
	require.Equal(t, 50, res.Paging.PageSize)
	require.True(t, res.Paging.HasNext)
}

func TestTimelineLastPage(t *testing.T) {
	repo := &stubTimelineRepo{events: seedEvents(25)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2})
	require.NoError(t, err)
	require.Len(t, res.Rows, 5)
	require.False(t, res.Paging.HasNext)
	require.Zero(t, res.Paging.NextPage)
	require.Equal(t, 1, res.Paging.PrevPage)
	require.Equal(t, []int{20}, repo.offsets)
}

func TestTimelineEmptyWindow(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{Page: 9})
	require.NoError(t, err)
	require.Empty(t, res.Rows)
	require.False(t, res.Paging.HasNext)
}

func TestExportReturnsEverything(t *testing.T) {
	repo := &stubTimelineRepo{events: seedEvents(120)}
	svc := NewService(repo)

	events, err := svc.Export(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, events, 120)
}
