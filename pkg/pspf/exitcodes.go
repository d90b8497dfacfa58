package pspf

// Launcher-level exit codes (spec §6.5). Normal completion propagates
// the payload's own exit code; these are used only for launcher
// failures before or around the exec.
const (
	ExitGeneric         = 1
	ExitPELoaderRefused = 126
	ExitPayloadNotFound = 127
	ExitInterrupted     = 130
)
