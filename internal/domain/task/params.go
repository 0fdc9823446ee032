package task

import (
	"fmt"
	"strconv"

	"github.com/Strob0t/TaskForge/internal/domain"
)

// SortField identifies a column pending listings may sort on.
type SortField string

// SortOrder is the listing direction.
type SortOrder string

const (
	SortByEstimatedTime SortField = "estimated_time_minutes"
	SortBySubmittedAt   SortField = "submitted_at"

	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ListParams is a validated sort/limit spec for pending listings.
// Limit zero means no limit.
type ListParams struct {
	SortBy SortField
	Order  SortOrder
	Limit  int
}

// ParseListParams validates raw query values. Empty sortBy and order fall
// back to the defaults (estimated_time_minutes ascending), and the "time"
// alias maps to estimated_time_minutes. Limit values that do not parse as
// a positive integer are ignored rather than rejected.
func ParseListParams(sortBy, order, limit string) (ListParams, error) {
	p := ListParams{SortBy: SortByEstimatedTime, Order: OrderAsc}

	switch sortBy {
	case "", "time", string(SortByEstimatedTime):
	case string(SortBySubmittedAt):
		p.SortBy = SortBySubmittedAt
	default:
		return ListParams{}, fmt.Errorf("%w: Invalid sort_by parameter. Use 'time' or 'submitted_at'", domain.ErrValidation)
	}

	switch order {
	case "", string(OrderAsc):
	case string(OrderDesc):
		p.Order = OrderDesc
	default:
		return ListParams{}, fmt.Errorf("%w: Invalid order parameter. Use 'asc' or 'desc'", domain.ErrValidation)
	}

	if n, err := strconv.Atoi(limit); err == nil && n > 0 {
		p.Limit = n
	}

	return p, nil
}
