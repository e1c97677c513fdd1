package cli

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	versionShort bool
	versionJSON  bool
)

// shellProbeTimeout bounds `<shell> --version`.
const shellProbeTimeout = 2 * time.Second

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the bashkernel build and the version of the shell it drives
(shell.path from the config, bash by default).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(w, version)
			return nil
		}

		// A broken config still gets a version report, against the default shell.
		cfg, _, err := config.LoadOrDefault(cfgFile)
		if err != nil {
			cfg = config.DefaultConfig()
		}
		info := buildVersionInfo(cfg.Shell.Path)
		if versionJSON {
			return WriteJSONSuccess(w, info)
		}
		writeVersionInfo(w, info)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version number")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output in JSON format")
}

// VersionInfo describes the build and the shell behind the kernel.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
	ShellPath string `json:"shell_path"`
	Shell     string `json:"shell"`
}

func buildVersionInfo(shellPath string) VersionInfo {
	return VersionInfo{
		Version:   formatVersion(version),
		Commit:    commit,
		BuildDate: date,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		ShellPath: shellPath,
		Shell:     shellVersion(shellPath),
	}
}

func writeVersionInfo(w io.Writer, info VersionInfo) {
	fmt.Fprintf(w, "bashkernel %s (%s, built %s)\n", info.Version, info.Commit, info.BuildDate)
	fmt.Fprintf(w, "shell: %s\n", info.Shell)
	fmt.Fprintf(w, "go: %s %s\n", info.Go, info.Platform)
}

// shellVersion returns the first line of `<path> --version`, or a note
// saying why there is none.
func shellVersion(path string) string {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return path + " (not found)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), shellProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, resolved, "--version").Output()
	if err != nil {
		return resolved + " (version unavailable)"
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if first == "" {
		return resolved
	}
	return strings.TrimSpace(first)
}

// formatVersion ensures version has a 'v' prefix for display
func formatVersion(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

// SetVersionInfo sets the version information (called from main).
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
