package planexec

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema aliases the jsonschema-go representation so callers building
// ToolContract values don't need a separate import.
type Schema = jsonschema.Schema

// MissingParametersError is returned when a tool call is missing one of
// its contract's required parameters; the tool is never invoked.
type MissingParametersError struct {
	Tool    string
	Missing []string
}

func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("planexec: tool %q missing required parameters: %v", e.Tool, e.Missing)
}

// SchemaValidationError wraps a jsonschema-go validation failure.
type SchemaValidationError struct {
	Tool string
	Err  error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("planexec: tool %q failed schema validation: %v", e.Tool, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// validateStep enforces a contract's required-parameter set, then (if the
// contract declares a schema) validates the resolved parameters against it.
func validateStep(contract ToolContract, params map[string]any) error {
	var missing []string
	for _, name := range contract.RequiredParams {
		v, ok := params[name]
		if !ok || isEmptyValue(v) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingParametersError{Tool: contract.Tool, Missing: missing}
	}

	if contract.Schema == nil {
		return nil
	}
	resolved, err := contract.Schema.Resolve(nil)
	if err != nil {
		return &SchemaValidationError{Tool: contract.Tool, Err: err}
	}
	if err := resolved.Validate(params); err != nil {
		return &SchemaValidationError{Tool: contract.Tool, Err: err}
	}
	return nil
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
