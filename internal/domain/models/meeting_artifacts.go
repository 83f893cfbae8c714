// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// Transcript is the formatted transcript text of a meeting. There is at most one per meeting.
type Transcript struct {
	MeetingUID string    `json:"meeting_uid"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary is the AI-generated summary of a meeting. There is at most one per meeting.
type Summary struct {
	MeetingUID string    `json:"meeting_uid"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// TaskPriority ranks extracted action items.
type TaskPriority string

// Task priorities.
const (
	TaskPriorityUrgent TaskPriority = "urgent"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

// NormalizeTaskPriority maps free-form priorities onto the known set, defaulting to medium.
func NormalizeTaskPriority(p string) TaskPriority {
	switch TaskPriority(p) {
	case TaskPriorityUrgent, TaskPriorityHigh, TaskPriorityMedium, TaskPriorityLow:
		return TaskPriority(p)
	}
	return TaskPriorityMedium
}

// Task is an action item extracted from a meeting transcript.
type Task struct {
	UID         string       `json:"uid"`
	MeetingUID  string       `json:"meeting_uid"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Assignee    *string      `json:"assignee,omitempty"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Completed   bool         `json:"completed"`
	ExternalID  *string      `json:"external_id,omitempty"`
	SyncedAt    *time.Time   `json:"synced_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// UpdateTaskRequest holds the user-editable task fields. Nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Assignee    *string    `json:"assignee,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
}

// Apply copies the set fields onto task.
func (r *UpdateTaskRequest) Apply(task *Task) error {
	if r.Title != nil {
		if *r.Title == "" {
			return fmt.Errorf("title cannot be empty")
		}
		task.Title = *r.Title
	}
	if r.Description != nil {
		task.Description = *r.Description
	}
	if r.Assignee != nil {
		task.Assignee = r.Assignee
	}
	if r.Priority != nil {
		p := TaskPriority(*r.Priority)
		if NormalizeTaskPriority(*r.Priority) != p {
			return fmt.Errorf("unsupported priority %q", *r.Priority)
		}
		task.Priority = p
	}
	if r.DueDate != nil {
		task.DueDate = r.DueDate
	}
	if r.Completed != nil {
		task.Completed = *r.Completed
	}
	return nil
}

// ExtractedTask is a task as returned by the AI analyzer, before persistence.
type ExtractedTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Assignee    *string    `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority"`
}

// AnalysisResult is the structured output of transcript analysis.
type AnalysisResult struct {
	Summary string          `json:"summary"`
	Tasks   []ExtractedTask `json:"tasks"`
}
