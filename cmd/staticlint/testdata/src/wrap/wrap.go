package wrap

import (
	"errors"
	"fmt"
)

var errNotFound = errors.New("not found")

type codeError struct{}

func (*codeError) Error() string { return "bad code" }

func build(code string, n int) []error {
	return []error{
		fmt.Errorf("lookup %s: %v", code, errNotFound), // want "error passed to fmt.Errorf without %w"
		fmt.Errorf("lookup %s: %s", code, &codeError{}), // want "error passed to fmt.Errorf without %w"
		fmt.Errorf("lookup %s: %w", code, errNotFound),
		fmt.Errorf("%w: %q", errNotFound, code),
		fmt.Errorf("attempts %d exhausted", n),
		fmt.Errorf("no args"),
	}
}
