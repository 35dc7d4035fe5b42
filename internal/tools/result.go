package tools

// Status is the outcome of a tool execution.
type Status string

// Execution statuses.
const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Kind classifies why an execution failed.
type Kind string

// Error kinds. KindNone is used for successful executions.
const (
	KindNone        Kind = "none"
	KindValidation  Kind = "validation"
	KindAccess      Kind = "access"
	KindExecution   Kind = "execution"
	KindUnknownTool Kind = "unknown_tool"
	KindAuth        Kind = "auth"
)

// Result is what a tool execution hands back to the conversation.
// Message is the exact text shown to the model or the user.
type Result struct {
	Status   Status `json:"status"`
	Message  string `json:"message"`
	EntityID int64  `json:"entity_id,omitempty"`
	Kind     Kind   `json:"kind"`
}

// OK reports whether the execution succeeded.
func (r Result) OK() bool { return r.Status == StatusOK }

func ok(id int64, msg string) Result {
	return Result{Status: StatusOK, Message: msg, EntityID: id, Kind: KindNone}
}

func fail(kind Kind, msg string) Result {
	return Result{Status: StatusError, Message: msg, Kind: kind}
}
