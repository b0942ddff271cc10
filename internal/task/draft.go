package task

import (
	"fmt"
	"strings"
)

// Draft is the payload of an add intent. The engine fills in the id,
// status, creation time and owner.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	DueDate     Date     `json:"dueDate"`
}

// Validate checks the draft before any state is touched. An empty priority
// is allowed and means PriorityMedium.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalid)
	}
	if d.Priority != "" && !d.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, d.Priority)
	}
	return d.DueDate.Validate()
}

// Fields is a partial update. Nil pointers leave the field unchanged.
type Fields struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	DueDate     *Date     `json:"dueDate,omitempty"`
}

// Empty reports whether no field is set.
func (f Fields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.Status == nil &&
		f.Priority == nil && f.DueDate == nil
}

// Validate checks every set field.
func (f Fields) Validate() error {
	if f.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalid)
	}
	if f.Title != nil && strings.TrimSpace(*f.Title) == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalid)
	}
	if f.Status != nil && !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, *f.Status)
	}
	if f.Priority != nil && !f.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, *f.Priority)
	}
	if f.DueDate != nil {
		return f.DueDate.Validate()
	}
	return nil
}

// Apply returns t with every set field replaced. Titles are trimmed.
func (f Fields) Apply(t Task) Task {
	if f.Title != nil {
		t.Title = strings.TrimSpace(*f.Title)
	}
	if f.Description != nil {
		t.Description = *f.Description
	}
	if f.Status != nil {
		t.Status = *f.Status
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.DueDate != nil {
		t.DueDate = *f.DueDate
	}
	return t
}

// ReflectedIn reports whether every set field already has its target value in t.
func (f Fields) ReflectedIn(t Task) bool {
	return f.Apply(t) == t
}

// StatusFields returns a Fields value that only sets the status.
func StatusFields(s Status) Fields {
	return Fields{Status: &s}
}
