package metric

import "errors"

// ErrPrecondition marks a caller error caught before any store I/O: a
// missing required numeric property, wrong type, or missing component
// configuration. It is surfaced synchronously.
var ErrPrecondition = errors.New("metric: precondition failed")

// ErrInternal marks a failure originating from the datastore: a
// top-level batch error, or a per-command error whose result the caller
// needed (the second phase of an absolute-value update). It is always
// surfaced as this opaque sentinel — the underlying cause is logged, not
// returned.
var ErrInternal = errors.New("metric: internal error")
