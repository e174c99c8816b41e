package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAOPReconcile reconciles an AOP against its active budgets.
	TaskAOPReconcile = "aop:reconcile"
)

// ReconcilePayload selects the AOP to reconcile. A zero AOPID means the active AOP.
type ReconcilePayload struct {
	AOPID int64 `json:"aop_id,omitempty"`
}

// NewReconcileTask constructs an Asynq task for TaskAOPReconcile.
func NewReconcileTask(aopID int64) (*asynq.Task, error) {
	data, err := json.Marshal(ReconcilePayload{AOPID: aopID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAOPReconcile, data), nil
}
