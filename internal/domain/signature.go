package domain

import "strings"

// ErrorSignature is a normalized failure class extracted from probe errors.
// Signatures drive correlated-failure analysis: services whose last errors
// share a signature are treated as one root cause.
type ErrorSignature string

const (
	SigConnectionRefused ErrorSignature = "connection-refused"
	SigTimeout           ErrorSignature = "timeout"
	SigOutOfMemory       ErrorSignature = "out-of-memory"
	SigDiskFull          ErrorSignature = "disk-full"
	SigPermissionDenied  ErrorSignature = "permission-denied"
	SigNotFound          ErrorSignature = "not-found"
	SigUnavailable       ErrorSignature = "unavailable"
	SigDatabaseError     ErrorSignature = "database-error"
)

// signaturePatterns maps lowercase substrings to signatures. Order matters:
// the first match wins, so more specific patterns come first.
var signaturePatterns = []struct {
	substr string
	sig    ErrorSignature
}{
	{"connection refused", SigConnectionRefused},
	{"connect: refused", SigConnectionRefused},
	{"out of memory", SigOutOfMemory},
	{"oom", SigOutOfMemory},
	{"cannot allocate memory", SigOutOfMemory},
	{"no space left", SigDiskFull},
	{"disk full", SigDiskFull},
	{"permission denied", SigPermissionDenied},
	{"operation not permitted", SigPermissionDenied},
	{"no such file", SigNotFound},
	{"not found", SigNotFound},
	{"unknown host", SigNotFound},
	{"database", SigDatabaseError},
	{"sql", SigDatabaseError},
	{"unavailable", SigUnavailable},
	{"timeout", SigTimeout},
	{"timed out", SigTimeout},
	{"deadline exceeded", SigTimeout},
}

// ExtractSignatures returns every signature matched by the error text,
// deduplicated, in pattern order. An unrecognized error yields nil.
func ExtractSignatures(errText string) []ErrorSignature {
	if errText == "" {
		return nil
	}
	lower := strings.ToLower(errText)

	var sigs []ErrorSignature
	seen := make(map[ErrorSignature]bool)
	for _, p := range signaturePatterns {
		if seen[p.sig] {
			continue
		}
		if strings.Contains(lower, p.substr) {
			sigs = append(sigs, p.sig)
			seen[p.sig] = true
		}
	}
	return sigs
}

// DependencySignature reports whether the signature suggests a dependency
// problem (something this service talks to is down or missing).
func DependencySignature(sig ErrorSignature) bool {
	switch sig {
	case SigConnectionRefused, SigNotFound, SigUnavailable:
		return true
	}
	return false
}

// ResourceSignature reports whether the signature suggests a systemic
// resourcing problem best handled by a remediation procedure.
func ResourceSignature(sig ErrorSignature) bool {
	switch sig {
	case SigOutOfMemory, SigDiskFull, SigDatabaseError:
		return true
	}
	return false
}
