// Package assert holds the assertions used by package tests. They
// understand registered errors and field errors, and stop the test on the
// first failure.
package assert

import (
	"reflect"
	"testing"

	"github.com/iov-one/flowtree/errors"
	testify "github.com/stretchr/testify/assert"
)

// Tester is the part of testing.TB the assertions rely on.
type Tester interface {
	Helper()
	Fatal(...interface{})
	Fatalf(string, ...interface{})
}

// Nil fails unless value is nil or a nil pointer, slice, map, channel or
// function. Errors are printed with %+v to include their stack.
func Nil(t Tester, value interface{}) {
	t.Helper()
	if !isNil(value) {
		t.Fatalf("want a nil value, got %+v", value)
	}
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice, reflect.UnsafePointer:
		return v.IsNil()
	default:
		return false
	}
}

// Equal compares with testify equality, so two byte slices holding the
// same bytes are equal.
func Equal(t Tester, want, got interface{}) {
	t.Helper()
	if !testify.ObjectsAreEqual(want, got) {
		t.Fatalf("values not equal\nwant %T %v\n got %T %v", want, want, got, got)
	}
}

// Panics fails unless fn panics.
func Panics(t Tester, fn func()) {
	t.Helper()
	if !didPanic(fn) {
		t.Fatal("panic expected")
	}
}

func didPanic(fn func()) (panicked bool) {
	defer func() {
		panicked = recover() != nil
	}()
	fn()
	return false
}

// FieldError expects err to hold exactly one error for fieldName, of the
// kind want. A nil want expects no error for that field.
func FieldError(t testing.TB, err error, fieldName string, want *errors.Error) {
	t.Helper()
	found := errors.FieldErrors(err, fieldName)

	if want == nil {
		if len(found) != 0 {
			logAll(t, found)
			t.Fatalf("want no error for %q, got %d", fieldName, len(found))
		}
		return
	}

	switch len(found) {
	case 0:
		t.Fatalf("no error found for %q", fieldName)
	case 1:
		if !want.Is(found[0]) {
			t.Fatalf("want %q for %q, got %q", want, fieldName, found[0])
		}
	default:
		logAll(t, found)
		t.Errorf("want one error for %q, got %d", fieldName, len(found))
	}
}

func logAll(t testing.TB, errs []error) {
	for i, e := range errs {
		t.Logf("\terror %d: %q", i+1, e)
	}
}

// IsErr fails unless got is want or was wrapped from it.
func IsErr(t Tester, want, got error) {
	t.Helper()
	if want == got {
		return
	}
	if kind, ok := want.(interface{ Is(error) bool }); ok && kind.Is(got) {
		return
	}
	t.Fatalf("want %q, got %+v", want, got)
}
