package task

// ContextProfile selects which optional text fields of an instance are
// surfaced to the model. The benchmark's task families differ only in which
// fields they populate, so a flag set replaces a type hierarchy here.
type ContextProfile struct {
	Background  bool `json:"background" yaml:"background"`
	Constraints bool `json:"constraints" yaml:"constraints"`
	Scenario    bool `json:"scenario" yaml:"scenario"`
}

// FullContext enables every contextual field.
func FullContext() ContextProfile {
	return ContextProfile{Background: true, Constraints: true, Scenario: true}
}

// NoContext disables every contextual field.
func NoContext() ContextProfile { return ContextProfile{} }
