package provision

import (
	"github.com/google/uuid"

	"github.com/homegrid/homegrid/internal/engine"
	"github.com/homegrid/homegrid/internal/tables"
)

// StatusFailed marks a pipeline run aborted by the schema-creation stage,
// the only stage whose failure rolls anything back.
const StatusFailed engine.Status = "failed"

// Stage names the furthest point a pipeline run reached.
type Stage string

const (
	StageRegistered   Stage = "registered"
	StageSchemaReady  Stage = "schema_ready"
	StageTablesReady  Stage = "tables_ready"
	StageDataReady    Stage = "data_ready"
	StageStorageReady Stage = "storage_ready"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// SetupReport aggregates one provisioning run: per-stage booleans for a
// quick read, detailed sub-reports for diagnosis.
type SetupReport struct {
	RunID  string        `json:"run_id"`
	Status engine.Status `json:"status"`
	Stage  Stage         `json:"stage"`

	HomeRegistered bool `json:"home_registered"`
	SchemaCreated  bool `json:"schema_created"`
	TablesCreated  bool `json:"tables_created"`
	DataSeeded     bool `json:"data_seeded"`
	StorageReady   bool `json:"storage_ready"`

	SchemaResult *engine.Result `json:"schema_result,omitempty"`
	TablesReport *tables.Report `json:"tables_report,omitempty"`
	SeedReport   *tables.Report `json:"seed_report,omitempty"`

	Error string `json:"error,omitempty"`
}

func newSetupReport() *SetupReport {
	return &SetupReport{RunID: uuid.NewString(), Status: engine.StatusSuccess}
}

// finalize computes the aggregate status of a run that got past the
// rollback gate: all stages clean is success, anything less is partial.
func (r *SetupReport) finalize() {
	r.Stage = StageComplete
	if r.HomeRegistered && r.SchemaCreated && r.TablesCreated && r.DataSeeded && r.StorageReady {
		r.Status = engine.StatusSuccess
		return
	}
	r.Status = engine.StatusPartialSuccess
}

func (r *SetupReport) failed(err error) {
	r.Stage = StageFailed
	r.Status = StatusFailed
	r.Error = err.Error()
}
