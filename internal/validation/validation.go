// Package validation implements the integrity-tier dispatcher described
// in spec §4.6, §4.11 and §7: how strictly a Reader treats signature and
// checksum failures.
package validation

import (
	"os"
)

// Tier names an integrity validation policy.
type Tier string

const (
	// Strict requires both signature and checksums to pass; any mismatch
	// is a hard error.
	Strict Tier = "strict"
	// Standard attempts both checks, logs and continues on mismatch, and
	// reports signature_valid=false if verification failed. The default.
	Standard Tier = "standard"
	// Relaxed skips signature verification and attempts checksums,
	// continuing regardless of outcome.
	Relaxed Tier = "relaxed"
	// Minimal skips both signature and checksum verification.
	Minimal Tier = "minimal"
	// None skips all verification; Result.Valid is unconditionally true.
	// Callers must log a prominent warning when using this tier.
	None Tier = "none"
)

// EnvVar is the process-wide override read fresh on every Resolve call,
// per spec §9 "Global state": a tier is an explicit config value, not a
// cached process-global, so policy can change between calls in tests.
const EnvVar = "FLAVOR_VALIDATION"

// Resolve picks a validation tier. An explicit non-empty tier wins;
// otherwise FLAVOR_VALIDATION is read (read fresh, never cached);
// otherwise Standard is the default.
func Resolve(explicit Tier) Tier {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(EnvVar); v != "" {
		return Tier(v)
	}
	return Standard
}

// RequiresSignature reports whether the tier requires signature
// verification to be attempted at all.
func (t Tier) RequiresSignature() bool {
	return t == Strict || t == Standard
}

// RequiresChecksums reports whether the tier requires checksum
// verification to be attempted at all.
func (t Tier) RequiresChecksums() bool {
	return t == Strict || t == Standard || t == Relaxed
}

// FatalOnMismatch reports whether a failed check under this tier should
// abort the operation rather than degrade and continue.
func (t Tier) FatalOnMismatch() bool {
	return t == Strict
}

// Result is the outcome of a full integrity check (spec §4.6
// verify_integrity).
type Result struct {
	Valid          bool
	SignatureValid bool
	TamperDetected bool
}

// Outcome folds raw signature/checksum verification results through the
// tier's policy into a Result, implementing the taxonomy of spec §7: a
// mismatch is only fatal (Valid=false) under Strict. Standard degrades
// SignatureValid and reports TamperDetected but does not block
// extraction; Relaxed checks only checksums and reports TamperDetected
// on a checksum mismatch; Minimal and None never report tamper since
// they check nothing.
func (t Tier) Outcome(signatureOK, checksumsOK bool) Result {
	if t == None {
		return Result{Valid: true, SignatureValid: true}
	}

	sigChecked := t.RequiresSignature()
	checksumsChecked := t.RequiresChecksums()

	sigMismatch := sigChecked && !signatureOK
	checksumMismatch := checksumsChecked && !checksumsOK
	mismatch := sigMismatch || checksumMismatch

	result := Result{
		Valid:          true,
		SignatureValid: !sigChecked || signatureOK,
		TamperDetected: mismatch,
	}
	if t.FatalOnMismatch() && mismatch {
		result.Valid = false
	}
	return result
}
