// Command pspf-builder assembles a PSPF/2025 package from a JSON build
// manifest: it resolves keys, reads slot sources, runs the op pipeline,
// applies PE surgery to the launcher, and writes the sealed package
// (spec §4.10). The command-line surface itself is an external
// collaborator per spec §1 — this is the ambient exercise of the
// library, not a format-defining component.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/provide-io/pspf2025/internal/seal"
	"github.com/provide-io/pspf2025/internal/tarball"
	"github.com/provide-io/pspf2025/pkg/logging"
	"github.com/provide-io/pspf2025/pkg/manifest"
	"github.com/provide-io/pspf2025/pkg/pspf"
)

const version = "2025.1.0"

var (
	manifestPath     string
	outputPath       string
	launcherPath     string
	privateKeyPath   string
	publicKeyPath    string
	keySeed          string
	logLevel         string
	deterministic    bool
	compressionLevel int
	noColor          bool
	rootCmd          *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:     "pspf-builder",
		Short:   "Build sealed PSPF/2025 packages from a manifest",
		Version: version,
		RunE:    build,
	}

	rootCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to manifest.json (required)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path for the built package (required)")
	rootCmd.Flags().StringVar(&launcherPath, "launcher-bin", "", "Path to the native launcher binary")
	rootCmd.Flags().StringVar(&privateKeyPath, "private-key", "", "Path to an Ed25519 private key (PEM, PKCS8)")
	rootCmd.Flags().StringVar(&publicKeyPath, "public-key", "", "Path to an Ed25519 public key (PEM, PKIX)")
	rootCmd.Flags().StringVar(&keySeed, "key-seed", "", "Seed string for deterministic key generation")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&deterministic, "deterministic", false, "Produce byte-identical output across builds with identical inputs")
	rootCmd.Flags().IntVar(&compressionLevel, "compression-level", 6, "Compression level forwarded to level-aware codecs (1-9)")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored diagnostic output")

	_ = rootCmd.MarkFlagRequired("manifest")
	_ = rootCmd.MarkFlagRequired("output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func build(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}
	effectiveLogLevel := logLevel
	if effectiveLogLevel == "" {
		effectiveLogLevel = logging.GetLogLevel()
	}
	logger := logging.NewLogger("pspf-builder", effectiveLogLevel, os.Stderr)
	compLevel := normalizeCompressionLevel(compressionLevel)

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	meta := pspf.Metadata{
		Format: "PSPF/2025",
		Package: pspf.PackageInfo{
			Name:        m.Package.Name,
			Version:     m.Package.Version,
			Description: m.Package.Description,
		},
		Build: buildInfo(deterministic),
		Execution: pspf.ExecutionInfo{
			Command:     m.Execution.Command,
			PrimarySlot: m.Execution.PrimarySlot,
			Environment: m.Execution.Environment,
		},
	}
	if m.CacheValidation != nil {
		meta.CacheValidation = &pspf.CacheValidationMeta{
			CheckFile:       m.CacheValidation.CheckFile,
			ExpectedContent: m.CacheValidation.ExpectedContent,
		}
	}
	if len(m.SetupCommands) > 0 {
		meta.SetupCommands = make([]pspf.SetupCommandMeta, len(m.SetupCommands))
		for i, sc := range m.SetupCommands {
			meta.SetupCommands[i] = pspf.SetupCommandMeta{
				Type: sc.Type, Path: sc.Path, Content: sc.Content, Command: sc.Command, Pattern: sc.Pattern,
			}
		}
	}
	if m.Runtime != nil {
		meta.Runtime = &pspf.RuntimeMeta{Env: &pspf.EnvSpec{
			Pass: m.Runtime.Pass, Unset: m.Runtime.Unset, Map: m.Runtime.Map, Set: m.Runtime.Set, Isolated: m.Runtime.Isolated,
		}}
	}

	w := pspf.NewWriter(meta).
		WithLogger(logger).
		WithCompressionLevel(compLevel).
		WithDeterministic(deterministic).
		WithKeys(keyConfig())

	if launcherPath != "" {
		launcher, err := os.ReadFile(launcherPath)
		if err != nil {
			return fmt.Errorf("reading launcher binary: %w", err)
		}
		w = w.WithLauncher(launcher)
	}

	for i, slot := range m.Slots {
		ops, err := manifest.ParseOperations(slot.Operations)
		if err != nil {
			return fmt.Errorf("slot %d (%s): %w", i, slot.ID, err)
		}
		data, err := readSlotSource(slot.Source, deterministic)
		if err != nil {
			return fmt.Errorf("slot %d (%s): %w", i, slot.ID, err)
		}
		w = w.AddSlot(pspf.SlotInput{
			Meta: pspf.SlotMeta{
				ID:          slot.ID,
				Operations:  slot.Operations,
				Purpose:     slot.Purpose,
				Lifecycle:   slot.Lifecycle,
				Target:      slot.Target,
				Permissions: slot.Permissions,
			},
			Data: data,
			Ops:  ops,
		})
		logger.Info("staged slot", "index", i, "id", slot.ID, "bytes", len(data), "operations", slot.Operations)
	}

	if err := w.Build(outputPath); err != nil {
		return fmt.Errorf("building package: %w", err)
	}

	fmt.Println(color.GreenString("built"), outputPath)
	return nil
}

// readSlotSource reads a slot's source material. A directory source is
// bundled into a deterministic tar stream first (spec §3.5 "TAR: source
// is a tar stream"); a file source is read verbatim.
func readSlotSource(source string, deterministic bool) ([]byte, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("reading source %s: %w", source, err)
	}
	if info.IsDir() {
		return tarball.BuildDirTar(source, deterministic)
	}
	return os.ReadFile(source)
}

func keyConfig() seal.KeyConfig {
	return seal.KeyConfig{
		Seed:           keySeed,
		PrivateKeyPath: privateKeyPath,
		PublicKeyPath:  publicKeyPath,
	}
}

// buildInfo fills the deterministic-build-sensitive metadata fields; a
// deterministic build zeros the timestamp and host per spec §3.4.
func buildInfo(deterministic bool) pspf.BuildInfo {
	if deterministic {
		return pspf.BuildInfo{Builder: "pspf-builder/" + version}
	}
	host, _ := os.Hostname()
	ts := time.Now().UTC().Format(time.RFC3339)
	if epoch := os.Getenv("SOURCE_DATE_EPOCH"); epoch != "" {
		if secs, err := parseEpoch(epoch); err == nil {
			ts = time.Unix(secs, 0).UTC().Format(time.RFC3339)
		}
	}
	return pspf.BuildInfo{Builder: "pspf-builder/" + version, Timestamp: ts, Host: host}
}

func parseEpoch(s string) (int64, error) {
	var secs int64
	_, err := fmt.Sscanf(s, "%d", &secs)
	return secs, err
}

// normalizeCompressionLevel clamps an out-of-range flag value to the
// default rather than failing the build over it.
func normalizeCompressionLevel(level int) int {
	if level < 1 || level > 9 {
		return 6
	}
	return level
}
