package views

import (
	"todosync/internal/utils"
)

// Filter is the active view predicate
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Filters lists the filters in display order
var Filters = []Filter{FilterAll, FilterActive, FilterCompleted}

// DeleteControl is the label of a row's delete control
const DeleteControl = "✖"

// Row is one display line of the list
type Row struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	DueDate   string `json:"dueDate,omitempty"`
	Completed bool   `json:"completed"`
}

// DueLabel returns the due date annotation, or "" when the row has none.
func (r Row) DueLabel() string {
	if r.DueDate == "" {
		return ""
	}
	return "Due: " + r.DueDate
}

// View is the projection of the cache through a filter
type View struct {
	Filter    Filter `json:"filter"`
	Rows      []Row  `json:"rows"`
	Remaining int    `json:"remaining"` // over the whole cache, not just Rows
	Total     int    `json:"total"`
}

// Summary returns the remaining-count line
func (v View) Summary() string {
	return RemainingLabel(v.Remaining)
}

// filterNames returns the filter names for error messages
func filterNames() []string {
	names := make([]string, len(Filters))
	for i, f := range Filters {
		names[i] = string(f)
	}
	return names
}

// ParseFilter parses a filter name. Empty input selects FilterAll.
func ParseFilter(name string) (Filter, error) {
	switch Filter(name) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive:
		return FilterActive, nil
	case FilterCompleted:
		return FilterCompleted, nil
	}
	return FilterAll, utils.ErrInvalidFilter(name, filterNames())
}

// Next returns the filter after f, wrapping around
func (f Filter) Next() Filter {
	for i, candidate := range Filters {
		if candidate == f {
			return Filters[(i+1)%len(Filters)]
		}
	}
	return FilterAll
}
