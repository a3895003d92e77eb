package menu

import "fmt"

// ParseError reports corpus input that could not be decoded.
type ParseError struct {
	Format Format
	cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("menu: parse %s: %v", e.Format, e.cause)
}

func (e *ParseError) Unwrap() error { return e.cause }

// ValidationError reports a record missing a required field.
type ValidationError struct {
	Field string
	Name  string
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("menu: item missing %s", e.Field)
	}
	return fmt.Sprintf("menu: item %q missing %s", e.Name, e.Field)
}
