package template

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationIssue is one structured entry from a failed schema validation
type ValidationIssue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// InvalidTemplateDocumentError reports template source that does not
// satisfy the template-document meta-schema.
type InvalidTemplateDocumentError struct {
	Issues []ValidationIssue
}

func (e *InvalidTemplateDocumentError) Error() string {
	return fmt.Sprintf("invalid template document: %s", joinIssues(e.Issues))
}

// ViewValidationError reports a rendering view that does not satisfy the
// template's synthesized view schema. The issue list is user-presentable.
type ViewValidationError struct {
	Issues []ValidationIssue
}

func (e *ViewValidationError) Error() string {
	return fmt.Sprintf("view validation failed: %s", joinIssues(e.Issues))
}

func joinIssues(issues []ValidationIssue) string {
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = fmt.Sprintf("%s: %s", issue.Location, issue.Message)
	}
	return strings.Join(parts, "; ")
}

// collectIssues flattens a compiled-schema validation error into the
// structured issue list surfaced to callers.
func collectIssues(err *jsonschema.ValidationError) []ValidationIssue {
	var issues []ValidationIssue
	var walk func(ve *jsonschema.ValidationError)
	walk = func(ve *jsonschema.ValidationError) {
		if len(ve.Causes) == 0 {
			location := ve.InstanceLocation
			if location == "" {
				location = "#"
			}
			issues = append(issues, ValidationIssue{Location: location, Message: ve.Message})
			return
		}
		for _, cause := range ve.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}
