package driver

import "time"

// Task messages. A task moves from pending to in progress to terminal
// (any other message); once terminal it is popped from the queue on the
// next tick.
const (
	MessagePending    = "pending"
	MessageInProgress = "in progress"
	MessageError      = "error"
)

// Operation identifies the semantic change a task carries
type Operation string

const (
	OpCreate    Operation = "create"
	OpUpdate    Operation = "update"
	OpDelete    Operation = "delete"
	OpDeleteAll Operation = "delete-all"
	OpUnknown   Operation = "unknown"
)

// Application is one rendered application definition to merge into the
// remote declaration.
type Application struct {
	Tenant     string
	Name       string
	Definition map[string]interface{}
	Metadata   *AppMetadata
}

// AppMetadata records which template and parameters produced an
// application, embedded in the declaration for later listing.
type AppMetadata struct {
	Template   string                 `json:"template"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// AppSummary is one deployed application reported by ListApplications
type AppSummary struct {
	Tenant      string                 `json:"tenant"`
	Application string                 `json:"application"`
	Template    string                 `json:"template,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// Task is the handle for one asynchronous operation against the remote
// service. ID is empty until the server assigns one, unless the task was
// queued behind others and received a local placeholder.
type Task struct {
	ID          string                 `json:"id"`
	Code        int                    `json:"code"`
	Message     string                 `json:"message"`
	Operation   Operation              `json:"operation"`
	Tenant      string                 `json:"tenant,omitempty"`
	Application string                 `json:"application,omitempty"`
	Name        string                 `json:"name,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Timestamp   string                 `json:"timestamp,omitempty"`
	Host        string                 `json:"host,omitempty"`

	createData []Application
	deleteData [][2]string // tenant/application pairs; nil means delete-all
}

// Terminal reports whether the task has reached a final state
func (t *Task) Terminal() bool {
	return t.Message != MessagePending && t.Message != MessageInProgress
}

func newTask(op Operation, host string) *Task {
	return &Task{
		Code:      202,
		Message:   MessagePending,
		Operation: op,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Host:      host,
	}
}
