package provider

import (
	"context"
	"errors"
	"time"
)

// Task mirrors a single server-side item. ID is empty until the first
// successful create-push assigns the server id.
type Task struct {
	ID          string
	Title       string
	Description string
	Complete    bool
	Priority    int
	DueDate     *time.Time
	ListID      string
}

// TaskList mirrors a server-side project. The default (inbox) list is not
// removable.
type TaskList struct {
	ID        string
	Name      string
	Color     string // #rrggbb, lower-case hex
	Removable bool
}

// AccountInfo carries what a provider needs from a linked account: identity
// plus the resolved bearer credential.
type AccountInfo struct {
	UID         string
	Name        string
	Service     string
	AccessToken string
	TokenType   string
}

// Sentinel errors shared by all provider implementations.
var (
	// ErrUnknownService is returned by the factory for unrecognized service kinds.
	ErrUnknownService = errors.New("unknown service kind")

	// ErrNoDefaultList is returned when a task targets no list and the account
	// has no default (inbox) list.
	ErrNoDefaultList = errors.New("no default task list")

	// ErrTaskNotFound is returned when an operation addresses a task that is
	// not in the local mirror.
	ErrTaskNotFound = errors.New("task not found")

	// ErrListNotFound is returned when an operation addresses a list that is
	// not in the local mirror.
	ErrListNotFound = errors.New("task list not found")

	// ErrListNotRemovable is returned when removing the default (inbox) list.
	ErrListNotRemovable = errors.New("task list is not removable")

	// ErrReparentNotSupported is returned when an update would move a task to
	// a different list. Tasks update in place within their current list.
	ErrReparentNotSupported = errors.New("moving a task between lists is not supported")
)

// TaskProvider reconciles the local task/list mirror with one remote service.
// Mutations are pushed to the remote first; the local mirror changes only
// after the remote confirms the batch commit.
type TaskProvider interface {
	// Metadata for the host shell.
	ID() string
	Name() string
	Description() string
	Icon() string
	Enabled() bool

	// Import pulls all remote lists and their tasks, replacing the local
	// mirror. It designates the default list when one matches the service's
	// well-known inbox name.
	Import(ctx context.Context) error

	// TaskLists returns the mirrored lists in remote order.
	TaskLists() []TaskList

	// DefaultTaskList returns the default list, or ErrNoDefaultList.
	DefaultTaskList() (TaskList, error)

	// Tasks returns the mirrored tasks belonging to the given list.
	Tasks(listID string) []Task

	// CreateTask pushes a new task. On success the server-assigned id is
	// written back into task.ID. A task with no ListID targets the default
	// list.
	CreateTask(ctx context.Context, task *Task) error

	// UpdateTask pushes changed fields of an existing task, keyed by id.
	UpdateTask(ctx context.Context, task *Task) error

	// RemoveTask deletes the task remotely, then drops it from the mirror.
	RemoveTask(ctx context.Context, task *Task) error

	// CreateTaskList, UpdateTaskList and RemoveTaskList are the symmetric
	// operations at list granularity, under the same commit discipline.
	CreateTaskList(ctx context.Context, list *TaskList) error
	UpdateTaskList(ctx context.Context, list *TaskList) error
	RemoveTaskList(ctx context.Context, list *TaskList) error
}
