package pullrequests

import (
	"fmt"
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	// DefaultTitleTemplate is used when no title template is configured.
	DefaultTitleTemplate = "{{task_prefix}}Update submodules for {{project}}"
	// DefaultDescriptionTemplate is used when no description template is configured.
	DefaultDescriptionTemplate = "{{commit_message}}"

	templateStartTagConstant      = "{{"
	templateEndTagConstant        = "}}"
	templateErrorTemplateConstant = "parse pull request template %q: %w"
	taskPrefixTemplateConstant    = "%s "

	PlaceholderProject       = "project"
	PlaceholderTaskID        = "task_id"
	PlaceholderTaskPrefix    = "task_prefix"
	PlaceholderSourceBranch  = "source_branch"
	PlaceholderTargetBranch  = "target_branch"
	PlaceholderSubmodules    = "submodules"
	PlaceholderCommitMessage = "commit_message"
)

// TemplateValues feed the title and description placeholders.
type TemplateValues struct {
	Project       string
	TaskID        string
	SourceBranch  string
	TargetBranch  string
	Submodules    []string
	CommitMessage string
}

// Render substitutes {{placeholder}} tags. Unknown placeholders render empty.
func Render(template string, values TemplateValues) (string, error) {
	parsed, parseError := fasttemplate.NewTemplate(template, templateStartTagConstant, templateEndTagConstant)
	if parseError != nil {
		return "", fmt.Errorf(templateErrorTemplateConstant, template, parseError)
	}

	substitutions := values.substitutions()
	return parsed.ExecuteFuncString(func(writer io.Writer, tag string) (int, error) {
		return io.WriteString(writer, substitutions[strings.TrimSpace(tag)])
	}), nil
}

// RenderRequestText renders title and description, falling back to the default templates for empty ones.
func RenderRequestText(titleTemplate string, descriptionTemplate string, values TemplateValues) (string, string, error) {
	if len(strings.TrimSpace(titleTemplate)) == 0 {
		titleTemplate = DefaultTitleTemplate
	}
	if len(strings.TrimSpace(descriptionTemplate)) == 0 {
		descriptionTemplate = DefaultDescriptionTemplate
	}
	title, titleError := Render(titleTemplate, values)
	if titleError != nil {
		return "", "", titleError
	}
	description, descriptionError := Render(descriptionTemplate, values)
	if descriptionError != nil {
		return "", "", descriptionError
	}
	return strings.TrimSpace(title), description, nil
}

func (values TemplateValues) substitutions() map[string]string {
	taskPrefix := ""
	taskID := strings.TrimSpace(values.TaskID)
	if len(taskID) > 0 {
		taskPrefix = fmt.Sprintf(taskPrefixTemplateConstant, taskID)
	}
	return map[string]string{
		PlaceholderProject:       values.Project,
		PlaceholderTaskID:        taskID,
		PlaceholderTaskPrefix:    taskPrefix,
		PlaceholderSourceBranch:  values.SourceBranch,
		PlaceholderTargetBranch:  values.TargetBranch,
		PlaceholderSubmodules:    strings.Join(values.Submodules, ", "),
		PlaceholderCommitMessage: values.CommitMessage,
	}
}
