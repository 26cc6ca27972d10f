package workflow

import (
	"fmt"
	"strings"
)

// Issue code constants classify each ValidationIssue by its category. Codes
// are stable strings so callers can switch on them.
const (
	// IssueUnknownKind is reported when a step list is supplied for a kind
	// outside the built-in set.
	IssueUnknownKind = "UNKNOWN_KIND"

	// IssueNoSteps is reported when a kind's step list is empty.
	IssueNoSteps = "NO_STEPS"

	// IssueEmptyLabel is reported when a step has an empty Label.
	IssueEmptyLabel = "EMPTY_LABEL"

	// IssueDuplicateLabel is reported when two steps of one kind share a
	// Label; progress output would be ambiguous.
	IssueDuplicateLabel = "DUPLICATE_LABEL"

	// IssueEmptyDescription is a warning: the step runs but shows no detail.
	IssueEmptyDescription = "EMPTY_DESCRIPTION"
)

// ValidationIssue describes a single problem found in a step list. Step is
// -1 for kind-level issues.
type ValidationIssue struct {
	Code    string
	Kind    Kind
	Step    int
	Message string
}

// ValidationResult holds the outcome of validating step lists. Errors are
// fatal; warnings are informational.
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// IsValid reports whether there are no errors. Warnings alone do not make a
// step list invalid.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// String returns a multi-line human-readable summary of all issues:
//
//	Errors (N):
//	  [CODE] remediation step 2: message
//	Warnings (N):
//	  [CODE] suppression: message
func (r *ValidationResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d):\n", len(r.Errors))
	for _, issue := range r.Errors {
		writeIssue(&b, issue)
	}
	fmt.Fprintf(&b, "Warnings (%d):\n", len(r.Warnings))
	for _, issue := range r.Warnings {
		writeIssue(&b, issue)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, issue ValidationIssue) {
	if issue.Step >= 0 {
		fmt.Fprintf(b, "  [%s] %s step %d: %s\n", issue.Code, issue.Kind, issue.Step, issue.Message)
		return
	}
	fmt.Fprintf(b, "  [%s] %s: %s\n", issue.Code, issue.Kind, issue.Message)
}

// ValidateSteps checks one kind's step list. It always returns a non-nil
// result.
func ValidateSteps(kind Kind, steps []StepDefinition) *ValidationResult {
	result := &ValidationResult{}
	if BuiltinSteps(kind) == nil {
		result.Errors = append(result.Errors, ValidationIssue{
			Code:    IssueUnknownKind,
			Kind:    kind,
			Step:    -1,
			Message: fmt.Sprintf("kind %q is not one of %v", kind, BuiltinKinds()),
		})
	}
	if len(steps) == 0 {
		result.Errors = append(result.Errors, ValidationIssue{
			Code:    IssueNoSteps,
			Kind:    kind,
			Step:    -1,
			Message: "step list is empty",
		})
		return result
	}

	seen := make(map[string]int, len(steps))
	for i, s := range steps {
		label := strings.TrimSpace(s.Label)
		if label == "" {
			result.Errors = append(result.Errors, ValidationIssue{
				Code:    IssueEmptyLabel,
				Kind:    kind,
				Step:    i,
				Message: "label is empty",
			})
			continue
		}
		if first, dup := seen[label]; dup {
			result.Errors = append(result.Errors, ValidationIssue{
				Code:    IssueDuplicateLabel,
				Kind:    kind,
				Step:    i,
				Message: fmt.Sprintf("label %q already used by step %d", label, first),
			})
		} else {
			seen[label] = i
		}
		if strings.TrimSpace(s.Description) == "" {
			result.Warnings = append(result.Warnings, ValidationIssue{
				Code:    IssueEmptyDescription,
				Kind:    kind,
				Step:    i,
				Message: "description is empty",
			})
		}
	}
	return result
}

// ValidateOverrides validates every step list in overrides and merges the
// issues into one result, ordered by kind name.
func ValidateOverrides(overrides map[Kind][]StepDefinition) *ValidationResult {
	merged := &ValidationResult{}
	kinds := make([]Kind, 0, len(overrides))
	for k := range overrides {
		kinds = append(kinds, k)
	}
	sortKinds(kinds)
	for _, k := range kinds {
		r := ValidateSteps(k, overrides[k])
		merged.Errors = append(merged.Errors, r.Errors...)
		merged.Warnings = append(merged.Warnings, r.Warnings...)
	}
	return merged
}
