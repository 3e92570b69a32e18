package domain

import "time"

// TriggerReason records why an intervention was attempted
type TriggerReason string

const (
	// TriggerThreshold means consecutive failures crossed the recovery threshold
	TriggerThreshold TriggerReason = "threshold-exceeded"
	// TriggerPredictive means the trend analyzer acted before an outage
	TriggerPredictive TriggerReason = "predictive"
	// TriggerCorrelated means the correlated-failure analyzer selected the action
	TriggerCorrelated TriggerReason = "correlated"
)

// InterventionAction identifies what remediation was taken
type InterventionAction string

const (
	ActionRestoreCommand    InterventionAction = "restore_command"
	ActionBackupRestore     InterventionAction = "backup_restore"
	ActionSoftRestart       InterventionAction = "soft_restart"
	ActionMaintenance       InterventionAction = "proactive_maintenance"
	ActionDependencyChain   InterventionAction = "restart_dependency_chain"
	ActionRecoveryProcedure InterventionAction = "recovery_procedure"
	ActionNone              InterventionAction = "none"
)

// RecoveryIntervention is the immutable audit record of one remediation
// attempt. It is produced by the orchestrator and never mutated afterwards.
type RecoveryIntervention struct {
	ID        string             `json:"id"`
	Service   string             `json:"service"`
	Timestamp time.Time          `json:"timestamp"`
	Trigger   TriggerReason      `json:"trigger"`
	Action    InterventionAction `json:"action"`
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	Duration  time.Duration      `json:"duration_ns"`
}
