package custom_errors

import (
	"errors"
	"fmt"
)

// ValidationError collects every configuration problem found while applying
// options, so callers see all of them at once instead of the first.
type ValidationError struct {
	Errors []error `json:"errors"`
}

func (c *ValidationError) Add(err error) {
	c.Errors = append(c.Errors, err)
}

func (c *ValidationError) HasError() bool {
	return len(c.Errors) > 0
}

func (c *ValidationError) Error() string {
	if len(c.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", errors.Join(c.Errors...))
}

func (c *ValidationError) Unwrap() []error {
	return c.Errors
}
