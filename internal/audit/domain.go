package audit

import "time"

// Event is one append-only audit record. Events are written after the
// underlying mutation commits and are never updated or deleted.
type Event struct {
	ID            int64
	ActorProfile  int64
	Action        string
	Entity        string
	EntityID      string
	ChangedFields []string
	Meta          map[string]any
	At            time.Time
}

// TimelineFilters narrows timeline queries.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    int64
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo describes the returned window.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result bundles timeline rows with paging information.
type Result struct {
	Rows   []Event
	Paging PagingInfo
}
