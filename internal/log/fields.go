package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldReportID   = "report_id"
	FieldItemID     = "item_id"
	FieldItemName   = "item_name"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldReportType = "report_type"
	FieldTarget     = "target"
	FieldMethodTag  = "notify_method"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSheets       = "sheets"
	ComponentAuth         = "auth"
	ComponentReport       = "report"
	ComponentReconciler   = "reconciler"
	ComponentVerification = "verification"
	ComponentNotify       = "notify"
	ComponentAIProxy      = "ai_proxy"
	ComponentRateLimit    = "rate_limit"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpReconcile = "reconcile"
	OpAggregate = "aggregate"
	OpSync      = "sync"
	OpLogin     = "login"
	OpRegister  = "register"
	OpSendCode  = "send_code"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
