package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
// This keeps error creation consistent and discoverable throughout the codebase.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	message  string
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		message:  message,
		cause:    err,
		context:  make(ErrorContext),
	}
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	return b.WithSeverity(SeverityWarning)
}

// Build constructs the ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// ValidationError creates a builder for caller input errors.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message)
}

// NotFoundError creates a builder for missing-record errors.
func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message)
}

// PersistenceError creates a builder for durable store errors.
func PersistenceError(message string) *ErrorBuilder {
	return NewError(CategoryPersistence, message)
}

// SchedulingError creates a builder for platform timer errors.
func SchedulingError(message string) *ErrorBuilder {
	return NewError(CategoryScheduling, message)
}

// AudioError creates a builder for sound surface errors.
func AudioError(message string) *ErrorBuilder {
	return NewError(CategoryAudio, message)
}

// DaemonError creates a builder for service runtime errors.
func DaemonError(message string) *ErrorBuilder {
	return NewError(CategoryDaemon, message)
}

// InternalError creates a builder for unexpected internal errors.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message)
}
