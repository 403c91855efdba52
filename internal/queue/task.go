package queue

type TaskType string

const TaskTypeResolveRecord TaskType = "resolve_record"

// Task is one unit of asynchronous work: run a resolution pass for a record.
// Attempt starts at 1 and is carried through requeues so the worker can stop
// retrying at the configured ceiling.
type Task struct {
	TaskType TaskType
	RecordID int64
	Attempt  int
	TraceID  *string
}
