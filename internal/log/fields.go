package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
	FieldSuccess   = "success"

	FieldUserID        = "user_id"
	FieldAccountID     = "account_id"
	FieldBudgetID      = "budget_id"
	FieldGoalID        = "goal_id"
	FieldTransactionID = "transaction_id"
	FieldMonth         = "month"
	FieldGranularity   = "granularity"
	FieldBatchSize     = "batch_size"
	FieldRuleMatches   = "rule_matches"
	FieldAIMatches     = "ai_matches"
	FieldCoveragePct   = "coverage_pct"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentBudget     = "budget"
	ComponentSnapshot   = "snapshot"
	ComponentGoal       = "goal"
	ComponentCategorize = "categorize"
	ComponentStore      = "store"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
	ComponentAI         = "ai"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpResolve  = "resolve"
	OpRollup   = "rollup"
	OpSnapshot = "snapshot"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
