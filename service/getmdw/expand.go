package getmdw

import (
	"fmt"
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

// TemplateError is returned when a resource template can't be parsed or expanded,
// it signals a route configuration problem rather than an upstream failure
type TemplateError struct {
	Template string
	Err      error
}

// Error implements the error interface for TemplateError
func (e *TemplateError) Error() string {
	return fmt.Sprintf("invalid resource template %q: %s", e.Template, e.Err)
}

// Unwrap returns the underlying parse or expansion error
func (e *TemplateError) Unwrap() error {
	return e.Err
}

// Expand expands the RFC 6570 resource template with params, variables missing
// from params expand to nothing. A non empty rawQuery is appended using `?`
// unless the expanded template already carries a query, in which case `&` is used.
func Expand(template string, params map[string]string, rawQuery string) (string, error) {
	tmpl, err := uritemplate.New(template)
	if err != nil {
		return "", &TemplateError{Template: template, Err: err}
	}

	values := uritemplate.Values{}
	for name, value := range params {
		values.Set(name, uritemplate.String(value))
	}

	expanded, err := tmpl.Expand(values)
	if err != nil {
		return "", &TemplateError{Template: template, Err: err}
	}

	if rawQuery == "" {
		return expanded, nil
	}

	if strings.Contains(expanded, "?") {
		return expanded + "&" + rawQuery, nil
	}

	return expanded + "?" + rawQuery, nil
}

// ExpandAll expands every template in order, failing on the first
// template that can't be expanded so no upstream call is ever made
// for a partially valid route
func ExpandAll(templates []string, params map[string]string, rawQuery string) ([]string, error) {
	expanded := make([]string, 0, len(templates))

	for _, template := range templates {
		resource, err := Expand(template, params, rawQuery)
		if err != nil {
			return nil, err
		}
		expanded = append(expanded, resource)
	}

	return expanded, nil
}
