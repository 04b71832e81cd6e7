package toolerr

// ErrorClass categorizes errors by their nature so callers can decide whether
// to retry, degrade, or abort.
type ErrorClass string

const (
	// ErrorClassInfrastructure indicates environment or setup issues
	// Examples: binary missing, permissions denied
	ErrorClassInfrastructure ErrorClass = "infrastructure"

	// ErrorClassSemantic indicates input or configuration issues
	// Examples: unsupported input kind, parse errors, bad templates
	ErrorClassSemantic ErrorClass = "semantic"

	// ErrorClassTransient indicates temporary failures that may resolve
	// Examples: network timeouts, rate limits
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates non-recoverable failures
	ErrorClassPermanent ErrorClass = "permanent"
)

// DefaultClassForCode returns the default error class for a given error code.
func DefaultClassForCode(code string) ErrorClass {
	switch code {
	case ErrCodeBinaryNotFound:
		return ErrorClassInfrastructure
	case ErrCodeConfiguration, ErrCodeInvalidInput, ErrCodeParseError:
		return ErrorClassSemantic
	case ErrCodeTimeout, ErrCodeNetworkError, ErrCodeEnrichment:
		return ErrorClassTransient
	case ErrCodeExecutionFailed, ErrCodeNotification:
		return ErrorClassPermanent
	default:
		return ErrorClassTransient
	}
}
