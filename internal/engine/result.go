package engine

// Status is the aggregate outcome of a provisioning operation.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusError          Status = "error"
)

// StepOutcome records one sub-step of a provisioning run.
type StepOutcome struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Result describes the outcome of creating or deleting a schema with its
// login, user, and grants. It is transient: logged and surfaced in API
// responses, never persisted.
type Result struct {
	Operation string `json:"operation"` // create, delete
	Schema    string `json:"schema"`
	Status    Status `json:"status"`

	// Pre-existence flags for the create path; for the delete path
	// SchemaExisted distinguishes "schema torn down" from "schema was
	// already gone, leftovers cleaned".
	SchemaExisted bool `json:"schema_existed"`
	LoginExisted  bool `json:"login_existed"`
	UserExisted   bool `json:"user_existed"`

	Granted []string `json:"granted,omitempty"`

	TablesDropped int      `json:"tables_dropped,omitempty"`
	DropFailures  []string `json:"drop_failures,omitempty"`

	Steps []StepOutcome `json:"steps"`
	Error string        `json:"error,omitempty"`
}

func newResult(operation, schema string) Result {
	return Result{Operation: operation, Schema: schema, Status: StatusSuccess}
}

// step appends a sub-step outcome, degrading the aggregate status to
// partial_success on the first failure.
func (r *Result) step(name string, ok bool, detail string) {
	r.Steps = append(r.Steps, StepOutcome{Name: name, OK: ok, Detail: detail})
	if !ok && r.Status == StatusSuccess {
		r.Status = StatusPartialSuccess
	}
}

// fail marks the result as a hard error on the named sub-step.
func (r *Result) fail(name string, err error) Result {
	r.Steps = append(r.Steps, StepOutcome{Name: name, OK: false, Detail: err.Error()})
	r.Status = StatusError
	r.Error = name + ": " + err.Error()
	return *r
}

func invalidNameResult(operation, schema string) Result {
	return Result{
		Operation: operation,
		Schema:    schema,
		Status:    StatusError,
		Error:     ErrInvalidSchemaName.Error(),
		Steps:     []StepOutcome{{Name: "validate_name", OK: false, Detail: ErrInvalidSchemaName.Error()}},
	}
}
