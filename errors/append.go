package errors

import (
	"fmt"
	"strings"
)

// Append clubs together all provided errors. Nil values are ignored. If
// there is no error to return, nil is returned. If only one error is not nil,
// it is returned unchanged.
//
// Returned error Is any of the appended errors.
func Append(errs ...error) error {
	var flat []error
	for _, e := range errs {
		if isNilErr(e) {
			continue
		}
		if m, ok := e.(*multiErr); ok {
			flat = append(flat, m.errs...)
		} else {
			flat = append(flat, e)
		}
	}

	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return &multiErr{errs: flat}
	}
}

// multiErr is a collection of errors. Its behaviour is consistent with a
// fail-fast approach: the code and the cause are those of the first error.
type multiErr struct {
	errs []error
}

func (e *multiErr) Error() string {
	points := make([]string, len(e.errs))
	for i, err := range e.errs {
		points[i] = fmt.Sprintf("* %s", err)
	}
	return fmt.Sprintf("%d errors occurred:\n\t%s\n", len(e.errs), strings.Join(points, "\n\t"))
}

// Unpack implements unpacker interface.
func (e *multiErr) Unpack() []error {
	return e.errs
}

// Cause returns the first error from the collection.
func (e *multiErr) Cause() error {
	return e.errs[0]
}
