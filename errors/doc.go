/*
Package errors implements the error model used by every flowtree extension.

Root errors are declared once with Register and carry a unique code. Every
error returned at runtime should wrap one of them, so that callers can
categorize a failure with ErrXyz.Is(err) no matter how many times it was
wrapped on its way up.

	if err := bucket.One(db, key, &node); err != nil {
		return errors.Wrap(err, "cannot load node")
	}

Extensions that need their own failure categories register them in their
own errors.go file, using a code range that does not collide with this
package (1-99 are reserved here).

A stack trace is attached at the first wrap. Use fmt verbs to inspect it:

	%s is just the error message
	%+v is the full stack trace
	%v appends a compressed [filename:line] where the error was created
*/
package errors
