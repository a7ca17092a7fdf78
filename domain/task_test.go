package domain

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestTaskMarshalUsesCalendarDeadline(t *testing.T) {
	task := Task{ID: "t1", Title: "Title", Deadline: NewDate(2024, 9, 21), Status: StatusOpen}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	if !strings.Contains(string(payload), `"deadline":"2024-09-21"`) {
		t.Fatalf("expected calendar deadline, got %s", payload)
	}
	if strings.Contains(string(payload), "parentId") {
		t.Fatalf("expected empty parent to be omitted, got %s", payload)
	}
}

func TestTaskUnmarshalRejectsBadDeadline(t *testing.T) {
	var in NewTask
	if err := sonic.Unmarshal([]byte(`{"title":"x","deadline":"21.09.2024"}`), &in); err == nil {
		t.Fatalf("expected error for malformed deadline")
	}
	if err := sonic.Unmarshal([]byte(`{"title":"x","deadline":"2024-09-21"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.Deadline != NewDate(2024, 9, 21) {
		t.Fatalf("unexpected deadline: %v", in.Deadline)
	}
}

func TestNewTaskDefaultsToOpen(t *testing.T) {
	task := NewTask{Title: "  Wire harness  ", Deadline: NewDate(2024, 10, 1)}.Task("id1", "owner1")
	if task.Status != StatusOpen {
		t.Fatalf("expected open status, got %q", task.Status)
	}
	if task.Title != "Wire harness" {
		t.Fatalf("expected trimmed title, got %q", task.Title)
	}
	if task.OwnerID != "owner1" {
		t.Fatalf("expected owner to be stamped, got %q", task.OwnerID)
	}
}

func TestTaskValidate(t *testing.T) {
	valid := Task{ID: "t1", Title: "a", Deadline: NewDate(2024, 1, 1), Status: StatusOpen}
	tests := []struct {
		name  string
		task  Task
		field string
	}{
		{name: "empty title", task: func() Task { t := valid; t.Title = " "; return t }(), field: "title"},
		{name: "long title", task: func() Task { t := valid; t.Title = strings.Repeat("x", 151); return t }(), field: "title"},
		{name: "no deadline", task: func() Task { t := valid; t.Deadline = Date{}; return t }(), field: "deadline"},
		{name: "bad status", task: func() Task { t := valid; t.Status = "paused"; return t }(), field: "status"},
		{name: "self parent", task: func() Task { t := valid; t.ParentID = "t1"; return t }(), field: "parentId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			vErr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, vErr.Field)
			}
		})
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid task, got %v", err)
	}
}

func TestTaskUpdateApplyClearsReferences(t *testing.T) {
	task := Task{ID: "t1", Title: "a", ParentID: "p1", ExecutorID: "e1", Status: StatusOpen}
	upd := TaskUpdate{ParentID: Ptr(""), Status: Ptr(StatusInProgress)}

	got := upd.Apply(task)
	if got.ParentID != "" {
		t.Fatalf("expected parent cleared, got %q", got.ParentID)
	}
	if got.ExecutorID != "e1" {
		t.Fatalf("expected executor untouched, got %q", got.ExecutorID)
	}
	if got.Status != StatusInProgress {
		t.Fatalf("expected status updated, got %q", got.Status)
	}
	if task.ParentID != "p1" {
		t.Fatalf("apply must not mutate the original")
	}
}

func TestTaskOverdue(t *testing.T) {
	today := NewDate(2024, 9, 21)
	if !(Task{Deadline: NewDate(2024, 9, 20), Status: StatusOpen}).Overdue(today) {
		t.Fatalf("expected open task past deadline to be overdue")
	}
	if (Task{Deadline: NewDate(2024, 9, 20), Status: StatusDone}).Overdue(today) {
		t.Fatalf("done tasks are never overdue")
	}
	if (Task{Deadline: today, Status: StatusOpen}).Overdue(today) {
		t.Fatalf("a task due today is not overdue")
	}
}

func TestTaskFilterMatch(t *testing.T) {
	task := Task{Status: StatusInProgress, ExecutorID: "e1", ParentID: "p1"}
	if !(TaskFilter{}).Match(task) {
		t.Fatalf("zero filter must match")
	}
	if !(TaskFilter{Status: Ptr(StatusInProgress), ExecutorID: "e1"}).Match(task) {
		t.Fatalf("expected status+executor match")
	}
	if (TaskFilter{Status: Ptr(StatusOpen)}).Match(task) {
		t.Fatalf("expected status mismatch")
	}
	if (TaskFilter{ParentID: "p2"}).Match(task) {
		t.Fatalf("expected parent mismatch")
	}
}
