package pageviews

import (
	"context"
	"fmt"
	"time"

	"linblog/internal/timeframe"
)

// Pagination bounds for drill-down listings.
const (
	MaxPage         = 10000
	MaxPageSize     = 100
	DefaultPageSize = 25
)

// IPMatchMode selects how the IP filter compares against the stored address.
type IPMatchMode string

const (
	IPMatchContains IPMatchMode = "contains"
	IPMatchEquals   IPMatchMode = "equals"
)

// IPFilter matches the raw IP string.
type IPFilter struct {
	Mode  IPMatchMode
	Value string
}

// ViewEventFilter narrows a drill-down listing. PostID is required; every other
// field is optional and ignored when zero. Since and Until are inclusive.
type ViewEventFilter struct {
	PostID            uint
	Since             *time.Time
	Until             *time.Time
	DeviceType        DeviceType
	IP                *IPFilter
	UserAgentContains string
	RefererContains   string
}

// Validate reports malformed filters.
func (f ViewEventFilter) Validate() error {
	if f.PostID == 0 {
		return ErrPostIDRequired
	}
	if f.DeviceType != "" && !f.DeviceType.Valid() {
		return fmt.Errorf("%w: device type %q", ErrInvalidFilter, string(f.DeviceType))
	}
	if f.IP != nil {
		switch f.IP.Mode {
		case IPMatchContains, IPMatchEquals:
		default:
			return fmt.Errorf("%w: ip mode %q", ErrInvalidFilter, string(f.IP.Mode))
		}
	}
	return nil
}

// ViewEventPage is one page of a drill-down listing.
type ViewEventPage struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Events   []ViewEvent `json:"events"`
}

// QueryService serves filtered, paginated event listings. It is read-only.
type QueryService struct {
	store Store
}

// NewQueryService creates a QueryService over store.
func NewQueryService(store Store) *QueryService {
	return &QueryService{store: store}
}

// ClampPage forces page into [1, MaxPage] and pageSize into [1, MaxPageSize].
func ClampPage(page, pageSize int) (int, int) {
	return timeframe.ClampInt(page, 1, MaxPage), timeframe.ClampInt(pageSize, 1, MaxPageSize)
}

// ListPostViewEvents returns the requested page, newest first, with the total
// number of matching events before pagination.
func (q *QueryService) ListPostViewEvents(ctx context.Context, filter ViewEventFilter, page, pageSize int) (*ViewEventPage, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	page, pageSize = ClampPage(page, pageSize)
	offset := (page - 1) * pageSize

	events, total, err := q.store.ListFiltered(ctx, filter, pageSize, offset)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []ViewEvent{}
	}

	return &ViewEventPage{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Events:   events,
	}, nil
}
