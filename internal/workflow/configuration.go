package workflow

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	configurationLoadErrorTemplateConstant  = "failed to load workflow configuration: %w"
	configurationParseErrorTemplateConstant = "failed to parse workflow configuration: %w"
	configurationPathRequiredMessage        = "workflow configuration path must be provided"
	configurationEmptyStepsMessageConstant  = "workflow configuration must define at least one step"
	configurationTaskMissingTemplate        = "workflow step %d missing task name"
	unsupportedTaskMessageConstant          = "unsupported workflow task"
	unsupportedTaskTemplateConstant         = "%w: %q"
)

// TaskType identifies a supported workflow task.
type TaskType string

// Supported workflow tasks.
const (
	TaskTypeLinkSubmodules TaskType = TaskType("link-submodules")
	TaskTypeChangeRemote   TaskType = TaskType("change-remote")
	TaskTypeSwitchBranch   TaskType = TaskType("switch-branch")
)

// ErrUnsupportedTask indicates a task name outside the catalogue.
var ErrUnsupportedTask = errors.New(unsupportedTaskMessageConstant)

var taskTitles = map[TaskType]string{
	TaskTypeLinkSubmodules: "Link submodules to a common feature branch",
	TaskTypeChangeRemote:   "Change project and submodule remotes",
	TaskTypeSwitchBranch:   "Switch projects and submodules to a branch",
}

// TaskTypes lists the catalogue in presentation order.
func TaskTypes() []TaskType {
	return []TaskType{TaskTypeLinkSubmodules, TaskTypeChangeRemote, TaskTypeSwitchBranch}
}

// Title returns the human readable task description.
func (taskType TaskType) Title() string {
	if title, known := taskTitles[taskType]; known {
		return title
	}
	return string(taskType)
}

// ParseTaskType normalizes and validates a task name.
func ParseTaskType(raw string) (TaskType, error) {
	candidate := TaskType(strings.ToLower(strings.TrimSpace(raw)))
	if !lo.Contains(TaskTypes(), candidate) {
		return "", fmt.Errorf(unsupportedTaskTemplateConstant, ErrUnsupportedTask, raw)
	}
	return candidate, nil
}

// Configuration describes an ordered task sequence.
type Configuration struct {
	Steps []StepConfiguration `mapstructure:"steps" yaml:"steps" json:"steps"`
}

// StepConfiguration associates a task with declarative options.
type StepConfiguration struct {
	Task    TaskType       `mapstructure:"task" yaml:"task" json:"task"`
	Options map[string]any `mapstructure:"with" yaml:"with,omitempty" json:"with,omitempty"`
}

// LoadConfiguration reads a task sequence from a YAML or JSON file. The steps may sit at the top level or under a
// workflow key.
func LoadConfiguration(filePath string) (Configuration, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return Configuration{}, errors.New(configurationPathRequiredMessage)
	}

	contentBytes, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return Configuration{}, fmt.Errorf(configurationLoadErrorTemplateConstant, readError)
	}
	return ParseConfiguration(contentBytes)
}

// ParseConfiguration decodes and validates a task sequence document.
func ParseConfiguration(contentBytes []byte) (Configuration, error) {
	var document struct {
		Steps    []StepConfiguration `yaml:"steps"`
		Workflow Configuration       `yaml:"workflow"`
	}
	if unmarshalError := yaml.Unmarshal(contentBytes, &document); unmarshalError != nil {
		return Configuration{}, fmt.Errorf(configurationParseErrorTemplateConstant, unmarshalError)
	}

	configuration := Configuration{Steps: document.Steps}
	if len(configuration.Steps) == 0 {
		configuration = document.Workflow
	}
	if validationError := configuration.Validate(); validationError != nil {
		return Configuration{}, validationError
	}
	return configuration.normalized(), nil
}

// Validate requires at least one step and a known task for every step.
func (configuration Configuration) Validate() error {
	if len(configuration.Steps) == 0 {
		return errors.New(configurationEmptyStepsMessageConstant)
	}
	for stepIndex, step := range configuration.Steps {
		if len(strings.TrimSpace(string(step.Task))) == 0 {
			return fmt.Errorf(configurationTaskMissingTemplate, stepIndex+1)
		}
		if _, parseError := ParseTaskType(string(step.Task)); parseError != nil {
			return parseError
		}
	}
	return nil
}

func (configuration Configuration) normalized() Configuration {
	steps := make([]StepConfiguration, 0, len(configuration.Steps))
	for _, step := range configuration.Steps {
		taskType, _ := ParseTaskType(string(step.Task))
		steps = append(steps, StepConfiguration{Task: taskType, Options: step.Options})
	}
	return Configuration{Steps: steps}
}
