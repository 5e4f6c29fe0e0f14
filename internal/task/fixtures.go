package task

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fixtureFile is the on-disk shape of a task fixture: a list of instances.
type fixtureFile struct {
	Tasks []*Instance `yaml:"tasks"`
}

// LoadInstances reads task instances from a YAML fixture file and validates
// each one. The file holds a top-level "tasks" list.
func LoadInstances(path string) ([]*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task fixture: %w", err)
	}

	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse task fixture %s: %w", path, err)
	}
	if len(f.Tasks) == 0 {
		return nil, fmt.Errorf("task fixture %s contains no tasks", path)
	}

	for _, inst := range f.Tasks {
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", path, err)
		}
	}
	return f.Tasks, nil
}
