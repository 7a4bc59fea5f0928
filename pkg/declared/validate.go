package declared

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/resources"
)

// validate is shared; validator.Validate caches struct metadata and is
// safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every declared query. Missing tracking ids are not an
// error here: such queries are skipped, with a warning, when pushed.
func Validate(queries []resources.Query) error {
	var errs []error
	for i, q := range queries {
		errs = append(errs, structErrors(fmt.Sprintf("queries[%d]", i), q)...)
	}
	return errors.Join(errs...)
}

// ValidateUsers checks a users file.
func ValidateUsers(users []resources.User) error {
	var errs []error
	for i, u := range users {
		errs = append(errs, structErrors(fmt.Sprintf("users[%d]", i), u)...)
	}
	return errors.Join(errs...)
}

func structErrors(prefix string, v any) []error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{errors.WrapValidation(prefix, err)}
	}
	out := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &errors.ValidationError{
			Field:   prefix + fieldPath(fe.Namespace()),
			Value:   fe.Value(),
			Message: message(fe),
		})
	}
	return out
}

// fieldPath drops the struct name validator puts first in a namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return "." + rest
	}
	return ""
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be an email address"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed " + fe.Tag() + " check"
	}
}
