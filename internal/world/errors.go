package world

import "fmt"

// ConfigurationError reports an invalid composition of apps, such as two
// apps registering the same name.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// ToolOperationError is a domain failure inside a tool operation. It is
// returned to the agent as tool-result data, not as a transport failure.
type ToolOperationError struct {
	Tool string
	Err  error
}

func (e *ToolOperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolOperationError) Unwrap() error {
	return e.Err
}
