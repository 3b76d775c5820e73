package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Field attaches a field name and a description to err. It returns nil for
// a nil err, so it can be applied to the result of any validation.
//
// Field names follow the Go names of the message, with the element index
// for repeated fields: BasisPoints.2
func Field(fieldName string, err error, description string, args ...interface{}) error {
	if isNilErr(err) {
		return nil
	}
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}
	if len(args) != 0 {
		description = fmt.Sprintf(description, args...)
	}
	return &fieldError{parent: err, field: fieldName, desc: description}
}

// AppendField adds the error of one field to errorsOrNil.
func AppendField(errorsOrNil error, fieldName string, fieldErrOrNil error) error {
	return Append(errorsOrNil, Field(fieldName, fieldErrOrNil, ""))
}

type fieldError struct {
	parent error
	field  string
	desc   string
}

func (err *fieldError) Error() string {
	msg := fmt.Sprintf("field %q", err.field)
	if err.desc != "" {
		msg += ": " + err.desc
	}
	return msg + ": " + err.parent.Error()
}

func (err *fieldError) Cause() error { return err.parent }

func (err *fieldError) Field() string { return err.field }

// FieldErrors collects every error attached to fieldName, looking through
// wrapped errors and appended groups.
func FieldErrors(err error, fieldName string) []error {
	var found []error
	for !isNilErr(err) {
		if f, ok := err.(fielder); ok && f.Field() == fieldName {
			return append(found, err)
		}
		if group, ok := err.(unpacker); ok {
			for _, e := range group.Unpack() {
				found = append(found, FieldErrors(e, fieldName)...)
			}
			return found
		}
		c, ok := err.(causer)
		if !ok {
			break
		}
		err = c.Cause()
	}
	return found
}

type fielder interface {
	Field() string
}
