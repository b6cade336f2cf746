package errors

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryValidation represents caller-facing input errors.
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"

	// CategoryPersistence represents durable store errors.
	CategoryPersistence ErrorCategory = "persistence"

	// CategoryScheduling represents platform timer errors.
	CategoryScheduling ErrorCategory = "scheduling"

	// CategoryAudio and CategoryNotification represent alert surface errors.
	CategoryAudio        ErrorCategory = "audio"
	CategoryNotification ErrorCategory = "notification"

	// CategoryDaemon and CategoryInternal represent runtime and infrastructure errors.
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Merge combines another context into this one, the argument winning on conflicts.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	for k, v := range other {
		c[k] = v
	}
	return c
}
