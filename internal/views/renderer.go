package views

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"todosync/internal/cache"
)

// Render projects tasks through f. Rows keep cache order; Remaining is
// computed over all tasks.
func Render(tasks []cache.Task, f Filter) View {
	filtered := FilterTasks(tasks, f)
	rows := make([]Row, len(filtered))
	for i, task := range filtered {
		rows[i] = Row{
			ID:        task.ID,
			Text:      task.Text,
			DueDate:   task.DueDate,
			Completed: task.Completed,
		}
	}
	return View{
		Filter:    f,
		Rows:      rows,
		Remaining: CountRemaining(tasks),
		Total:     len(tasks),
	}
}

// RemainingLabel formats the remaining-count summary
func RemainingLabel(n int) string {
	return fmt.Sprintf("Remaining tasks: %d", n)
}

// Writer outputs a rendered view
type Writer interface {
	Write(v View) error
}

// TextRenderer writes a view as plain text lines
type TextRenderer struct {
	writer io.Writer
}

// NewTextRenderer creates a plain text renderer
func NewTextRenderer(writer io.Writer) *TextRenderer {
	return &TextRenderer{writer: writer}
}

// Write renders the whole view; every call produces a complete listing.
func (r *TextRenderer) Write(v View) error {
	var b strings.Builder

	if len(v.Rows) == 0 {
		b.WriteString("No tasks\n")
	}

	idWidth := 1
	for _, row := range v.Rows {
		if w := len(fmt.Sprint(row.ID)); w > idWidth {
			idWidth = w
		}
	}

	for _, row := range v.Rows {
		b.WriteString(formatRow(row, idWidth))
		b.WriteString("\n")
	}

	b.WriteString(v.Summary())
	b.WriteString("\n")

	_, err := io.WriteString(r.writer, b.String())
	return err
}

// formatRow formats a single row: status, id, text, due annotation, delete control
func formatRow(row Row, idWidth int) string {
	status := "[ ]"
	if row.Completed {
		status = "[✓]"
	}
	line := fmt.Sprintf("%s %*d  %s", status, idWidth, row.ID, row.Text)
	if due := row.DueLabel(); due != "" {
		line += "  (" + due + ")"
	}
	return line + "  " + DeleteControl
}

// JSONRenderer writes a view as an indented JSON object
type JSONRenderer struct {
	writer io.Writer
}

// NewJSONRenderer creates a JSON renderer
func NewJSONRenderer(writer io.Writer) *JSONRenderer {
	return &JSONRenderer{writer: writer}
}

// Write encodes the view. Rows is always an array, never null.
func (r *JSONRenderer) Write(v View) error {
	if v.Rows == nil {
		v.Rows = []Row{}
	}
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
