package shared

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Violation describes a single failed constraint on a loaded document.
type Violation struct {
	Target string // dotted field path, e.g. "Config.API.Root"
	Issue  string // human-readable description of the failed constraint
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of v and returns every failed constraint.
//
// An empty slice means the value is valid. Constraints are declared as
// `validate:"..."` tags on the struct fields, which keeps the schema next to
// the data shape without tying validation to any load path.
func Validate(v any) []Violation {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		// non-validation error, e.g. v is not a struct; surface as one violation
		return []Violation{{Target: fmt.Sprintf("%T", v), Issue: err.Error()}}
	}

	violations := make([]Violation, 0, len(errs))
	for _, fe := range errs {
		violations = append(violations, Violation{
			Target: fe.Namespace(),
			Issue:  describeConstraint(fe),
		})
	}

	return violations
}

func describeConstraint(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "contains":
		return fmt.Sprintf("must contain %q", fe.Param())
	case "dive":
		return "has invalid entries"
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}
