package views

import (
	"todosync/internal/cache"
)

// Match reports whether task satisfies the filter predicate.
// Unknown filters behave like FilterAll.
func (f Filter) Match(task cache.Task) bool {
	switch f {
	case FilterActive:
		return !task.Completed
	case FilterCompleted:
		return task.Completed
	default:
		return true
	}
}

// FilterTasks returns the tasks matching f, preserving order.
func FilterTasks(tasks []cache.Task, f Filter) []cache.Task {
	var result []cache.Task
	for _, task := range tasks {
		if f.Match(task) {
			result = append(result, task)
		}
	}
	return result
}

// CountRemaining counts tasks that are not completed
func CountRemaining(tasks []cache.Task) int {
	n := 0
	for _, task := range tasks {
		if !task.Completed {
			n++
		}
	}
	return n
}
