package pspfmt

// Operation codes for the packed op chain (spec §3.5). These are
// byte-exact wire-format constants and must not be renumbered.
const (
	OpNone  uint8 = 0x00
	OpTar   uint8 = 0x01
	OpGzip  uint8 = 0x10
	OpBzip2 uint8 = 0x11
	OpXZ    uint8 = 0x12
	OpZstd  uint8 = 0x13
)

var opNames = map[uint8]string{
	OpNone:  "NONE",
	OpTar:   "TAR",
	OpGzip:  "GZIP",
	OpBzip2: "BZIP2",
	OpXZ:    "XZ",
	OpZstd:  "ZSTD",
}

// OpName returns the human-readable name of an op code, or "UNKNOWN".
func OpName(op uint8) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
