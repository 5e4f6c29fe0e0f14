package forecast

import "fmt"

// ConfigError reports an engine configuration that cannot satisfy a
// request. It is raised before any generation call is made and is never
// retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid forecaster configuration: " + e.Reason
}

// InsufficientSamplesError is returned when FailOnInvalid is set and the
// retry budget ran out before the requested number of valid forecasts was
// collected.
type InsufficientSamplesError struct {
	Requested int
	Got       int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("failed to get %d valid forecasts, got %d", e.Requested, e.Got)
}
