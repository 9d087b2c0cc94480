// Package proxyerr defines the error kinds used across the proxy so the
// error log and the supervisor can tell fatal startup failures apart from
// per-connection failures without string matching.
package proxyerr

import "errors"

// Sentinel error kinds. Per-connection errors are wrapped with fmt.Errorf
// ("%w: ...") around one of these so errors.Is still classifies them after
// additional context is added.
var (
	// ErrConfig marks a fatal startup error (e.g. the blacklist file is
	// missing). The supervisor exits non-zero on this error.
	ErrConfig = errors.New("config error")

	// ErrBadRequest marks a malformed HTTP preamble from the client.
	ErrBadRequest = errors.New("bad request")

	// ErrOriginUnreachable marks a failed TCP dial to the origin host.
	ErrOriginUnreachable = errors.New("origin unreachable")

	// ErrTransfer marks a mid-stream I/O failure on either leg of a pipe.
	ErrTransfer = errors.New("transfer error")

	// ErrRegistryInconsistency marks a duplicate-key registration, which
	// indicates an accept-loop bug (two handlers sharing one source
	// (ip, port) pair).
	ErrRegistryInconsistency = errors.New("registry inconsistency")
)
