package log

// Attribute keys shared by every component.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldReferer     = "referer"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldReason      = "reason"
	FieldUserID      = "user_id"
	FieldBudgetID    = "budget_id"
	FieldBudgetLabel = "budget_label"
	FieldCategory    = "category"
	FieldAmount      = "amount"
	FieldRemaining   = "remaining"
	FieldBitID       = "bit_id"
	FieldLevel       = "quiz_level" // "level" is taken by slog
	FieldPoints      = "points"
	FieldEventType   = "event_type"
	FieldEventID     = "event_id"
	FieldLedgerRef   = "ledger_ref"
)

const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentBudget      = "budget"
	ComponentLearning    = "learning"
	ComponentProgression = "progression"
	ComponentGenerator   = "generator"
	ComponentLedger      = "ledger"
	ComponentAuth        = "auth"
	ComponentEvents      = "events"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentCache       = "cache"
	ComponentSecurity    = "security"
	ComponentRateLimit   = "rate_limit"
	ComponentTrace       = "trace"
	ComponentBackend     = "backend"
)

const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpSpend    = "spend"
	OpAnswer   = "answer"
	OpGenerate = "generate"
	OpReward   = "reward"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpAppend   = "append"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields collects attributes with chained setters and flattens them
// into slog key/value pairs.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) set(key string, value any) LogFields {
	f[key] = value
	return f
}

func (f LogFields) WithComponent(component string) LogFields { return f.set(FieldComponent, component) }
func (f LogFields) WithRequestID(id string) LogFields        { return f.set(FieldRequestID, id) }
func (f LogFields) WithClientIP(ip string) LogFields         { return f.set(FieldClientIP, ip) }
func (f LogFields) WithOperation(op string) LogFields        { return f.set(FieldOperation, op) }
func (f LogFields) WithReason(reason string) LogFields       { return f.set(FieldReason, reason) }
func (f LogFields) WithPoints(points int) LogFields          { return f.set(FieldPoints, points) }

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithUser skips anonymous callers.
func (f LogFields) WithUser(userID string) LogFields {
	if userID != "" {
		f[FieldUserID] = userID
	}
	return f
}

func (f LogFields) WithBudget(id, label string) LogFields {
	f[FieldBudgetID] = id
	if label != "" {
		f[FieldBudgetLabel] = label
	}
	return f
}

func (f LogFields) WithSpending(category, amount, remaining string) LogFields {
	f[FieldCategory] = category
	f[FieldAmount] = amount
	f[FieldRemaining] = remaining
	return f
}

// WithBit records the bit and, when set, the quiz level.
func (f LogFields) WithBit(bitID, level string) LogFields {
	f[FieldBitID] = bitID
	if level != "" {
		f[FieldLevel] = level
	}
	return f
}

func (f LogFields) WithEvent(eventType, eventID string) LogFields {
	f[FieldEventType] = eventType
	f[FieldEventID] = eventID
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
