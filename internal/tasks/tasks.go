package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// State is the lifecycle state of a task or step.
type State string

const (
	Pending   State = "pending"
	Active    State = "active"
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

// TaskStatus has status about a task, and it's steps.
type TaskStatus struct {
	ID         string        `json:"id"`
	Task       string        `json:"task"`
	Status     string        `json:"status"`
	Details    string        `json:"details,omitempty"`
	Error      string        `json:"error,omitempty"`
	ActiveStep string        `json:"active_step,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Steps      []*StepStatus `json:"steps"`
}

// NewTaskStatus will generate a new task status struct
func NewTaskStatus(taskName string, state State) *TaskStatus {
	now := time.Now().UTC()

	return &TaskStatus{
		ID:        uuid.New().String(),
		Task:      taskName,
		Status:    string(state),
		StartedAt: now,
		UpdatedAt: now,
	}
}

func (r *TaskStatus) AsLogFields() []any {
	return []any{
		"id", r.ID,
		"task", r.Task,
		"status", r.Status,
		"details", r.Details,
		"error", r.Error,
	}
}

func (r *TaskStatus) Marshal() ([]byte, error) {
	respBytes, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal task status to json")
	}

	return respBytes, nil
}

// Task is a named, ordered list of steps.
type Task interface {
	// Name of the task
	Name() string
	// Steps is the multiple units of work that will accomplish this task
	Steps() []Step
}

type task struct {
	name  string
	steps []Step
}

// NewTask creates a task running steps in order.
func NewTask(name string, steps ...Step) Task {
	return &task{
		name:  name,
		steps: steps,
	}
}

func (j *task) Name() string {
	return j.name
}

func (j *task) Steps() []Step {
	return j.steps
}

// Publisher receives every task status update.
type Publisher interface {
	Publish(ctx context.Context, state State, status []byte)
}

// StepObserver is notified when a step finishes.
type StepObserver interface {
	ObserveStep(step string, state State, elapsed time.Duration)
}

// TaskRunner Will run the task by executing the individual steps in the task,
// and reports task status using the publisher.
type TaskRunner struct {
	publisher  Publisher
	observer   StepObserver
	task       Task
	taskStatus *TaskStatus
}

// NewTaskRunner creates a TaskRunner to run a specific Task. observer may be nil.
func NewTaskRunner(publisher Publisher, observer StepObserver, task Task) *TaskRunner {
	return &TaskRunner{
		publisher:  publisher,
		observer:   observer,
		task:       task,
		taskStatus: NewTaskStatus(task.Name(), Pending),
	}
}

// Status returns the current task status.
func (r *TaskRunner) Status() *TaskStatus {
	return r.taskStatus
}

func (r *TaskRunner) Run(ctx context.Context) (err error) {
	slog.Info("Running task", "task", r.task.Name(), "id", r.taskStatus.ID)

	r.initTaskLog()

	stepID := 0

	defer func() {
		if rec := recover(); rec != nil {
			err = r.handlePanic(ctx, stepID, rec)
		}
	}()

	r.publishTaskUpdate(ctx, Active, "Task started", nil)

	for i, step := range r.task.Steps() {
		stepID = i

		if err := ctx.Err(); err != nil {
			r.publishFailed(ctx, stepID, "Task cancelled", err)
			return err
		}

		r.publishStepUpdate(ctx, stepID, "Running step")

		start := time.Now()

		details, err := step.Run(ctx)
		if err != nil {
			r.observe(step, Failed, start)
			r.publishFailed(ctx, stepID, details, err)
			return err
		}

		r.observe(step, Succeeded, start)
		r.publishStepSuccess(ctx, stepID, details)
	}

	r.publishTaskSuccess(ctx)

	return nil
}

func (r *TaskRunner) observe(step Step, state State, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveStep(step.Name(), state, time.Since(start))
	}
}

func (r *TaskRunner) initTaskLog() {
	steps := r.task.Steps()
	r.taskStatus.Steps = make([]*StepStatus, len(steps))

	for i, step := range steps {
		r.taskStatus.Steps[i] = NewStepStatus(step.Name(), Pending, "", nil)
	}
}

func (r *TaskRunner) handlePanic(ctx context.Context, stepID int, rec any) error {
	msg := "Panic occurred while running task"
	slog.Error("!!panic occurred", "rec", rec, "stack", string(debug.Stack()))
	slog.Error(msg)
	err := errors.New("Task fatal error, check logs for details")

	if stepID < len(r.taskStatus.Steps) {
		r.taskStatus.Steps[stepID] = NewStepStatus(r.taskStatus.Steps[stepID].Step, Failed, msg, err)
	}

	r.publishTaskUpdate(ctx, Failed, msg, err)

	return err
}

func (r *TaskRunner) publishStepUpdate(ctx context.Context, stepID int, details string) {
	r.publish(ctx, stepID, Active, Active, details, nil)
}

func (r *TaskRunner) publishStepSuccess(ctx context.Context, stepID int, details string) {
	r.publish(ctx, stepID, Succeeded, Active, details, nil)
}

func (r *TaskRunner) publishFailed(ctx context.Context, stepID int, details string, err error) {
	slog.Error("Task failed", "task", r.task.Name(), "error", err)
	r.publish(ctx, stepID, Failed, Failed, details, err)
}

func (r *TaskRunner) publishTaskSuccess(ctx context.Context) {
	slog.Info("Task completed successfully", "task", r.task.Name())
	r.taskStatus.ActiveStep = ""
	r.publishTaskUpdate(ctx, Succeeded, "Task completed successfully", nil)
}

func (r *TaskRunner) publish(ctx context.Context, stepID int, stepState, taskState State, details string, err error) {
	step := r.task.Steps()[stepID]
	stepStatus := NewStepStatus(step.Name(), stepState, details, err)

	slog.With(stepStatus.AsLogFields()...).Info("Step update", "task", r.task.Name())

	r.taskStatus.Steps[stepID] = stepStatus
	r.taskStatus.ActiveStep = step.Name()

	var taskDetails string
	if err != nil {
		taskDetails = "Task failed at step " + step.Name()
	}

	r.publishTaskUpdate(ctx, taskState, taskDetails, err)
}

func (r *TaskRunner) publishTaskUpdate(ctx context.Context, state State, details string, err error) {
	r.taskStatus.Status = string(state)
	r.taskStatus.Details = details
	r.taskStatus.UpdatedAt = time.Now().UTC()

	if err != nil {
		r.taskStatus.Error = err.Error()
	}

	if r.publisher == nil {
		return
	}

	respBytes, err := r.taskStatus.Marshal()
	if err != nil {
		slog.Error("Failed to marshal task status", "error", err)
		return
	}

	r.publisher.Publish(ctx, state, respBytes)
}
