package extension

import (
	"errors"
	"fmt"
)

// ErrNotElement is returned when a widget is constructed without an element.
var ErrNotElement = errors.New("a valid DOM element was not provided")

// OptionTypeError reports an option whose resolved value does not match its
// declared type pattern.
type OptionTypeError struct {
	Widget   string
	Option   string
	Actual   string
	Expected string
}

func (e *OptionTypeError) Error() string {
	return fmt.Sprintf("%s: Option %q provided %q but expected %q", e.Widget, e.Option, e.Actual, e.Expected)
}
