package diag

import (
	"fmt"

	"golang.org/x/xerrors"
)

// wrappedError is the error value returned by Err. It carries a Kind so
// callers further up the stack can recover it with KindOf without string
// matching on the message, and formats with %+v like any xerrors value.
type wrappedError struct {
	kind  Kind
	ref   GateRef
	msg   string
	cause error
}

func (e *wrappedError) Error() string {
	if e.ref.String() != "" {
		return fmt.Sprintf("%s: %s: %s", e.ref, e.kind, e.msg)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *wrappedError) Unwrap() error {
	return e.cause
}

func (e *wrappedError) FormatError(p xerrors.Printer) error {
	p.Print(e.Error())
	return e.cause
}

func (e *wrappedError) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

// Wrap attaches kind/ref context to an underlying error produced by a
// TypeBackend or Converter (a BackendError, per spec.md section 7).
func Wrap(kind Kind, ref GateRef, cause error, format string, args ...interface{}) error {
	return &wrappedError{kind: kind, ref: ref, msg: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf recovers the Kind from an error produced by Err or Wrap, or
// returns (BackendError, false) if err was not produced by this package.
func KindOf(err error) (Kind, bool) {
	var we *wrappedError
	if xerrors.As(err, &we) {
		return we.kind, true
	}
	return BackendError, false
}

// RefOf recovers the GateRef from an error produced by Err or Wrap.
func RefOf(err error) (GateRef, bool) {
	var we *wrappedError
	if xerrors.As(err, &we) {
		return we.ref, true
	}
	return GateRef{}, false
}
