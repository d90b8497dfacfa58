package envlayer

import (
	"os/exec"
	"runtime"
	"strings"
)

// NormalizeOS maps a raw OS name to the PSPF platform vocabulary
// (spec §4.9).
func NormalizeOS(goos string) string {
	switch strings.ToLower(goos) {
	case "darwin":
		return "darwin"
	case "linux":
		return "linux"
	case "windows":
		return "windows"
	default:
		return strings.ToLower(goos)
	}
}

// NormalizeArch maps a raw architecture name to the PSPF architecture
// vocabulary (spec §4.9).
func NormalizeArch(arch string) string {
	switch strings.ToLower(arch) {
	case "x86_64", "amd64":
		return "amd64"
	case "aarch64", "arm64":
		return "arm64"
	case "i686", "i586", "i486":
		return "x86"
	case "i386":
		return "i386"
	default:
		return strings.ToLower(arch)
	}
}

// PlatformLayer returns the always-last, un-overridable FLAVOR_* vars
// of spec §4.9/§6.4. OS version and CPU type are best-effort.
func PlatformLayer() map[string]string {
	osName := NormalizeOS(runtime.GOOS)
	archName := NormalizeArch(runtime.GOARCH)

	layer := map[string]string{
		"FLAVOR_OS":       osName,
		"FLAVOR_ARCH":     archName,
		"FLAVOR_PLATFORM": osName + "_" + archName,
	}

	if v := osVersion(); v != "" {
		layer["FLAVOR_OS_VERSION"] = v
	}
	if c := cpuType(); c != "" {
		layer["FLAVOR_CPU_TYPE"] = c
	}
	return layer
}

// osVersion is best-effort; failures are silently swallowed per spec's
// "best-effort" qualifier on FLAVOR_OS_VERSION.
func osVersion() string {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("sw_vers", "-productVersion").Output()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(out))
	case "linux":
		out, err := exec.Command("uname", "-r").Output()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(out))
	default:
		return ""
	}
}

func cpuType() string {
	out, err := exec.Command("uname", "-m").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// PayloadVars are the variables always exported to the payload process
// (spec §6.4), beyond the platform layer.
func PayloadVars(workenv, commandName, originalCommand string) map[string]string {
	return map[string]string{
		"FLAVOR_WORKENV":          workenv,
		"FLAVOR_COMMAND_NAME":     commandName,
		"FLAVOR_ORIGINAL_COMMAND": originalCommand,
	}
}
