package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/kernel"
	"github.com/rileyhilliard/bashkernel/internal/output"
	"github.com/rileyhilliard/bashkernel/internal/ui"
	"github.com/rileyhilliard/bashkernel/pkg/sshutil"
	"github.com/spf13/cobra"
)

var (
	hostsCSV  bool
	hostsJSON bool
)

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List host aliases from the SSH config file",
	Long: `List the concrete Host entries in the SSH config file (ssh.config_file,
default ~/.ssh/config). Wildcard patterns are skipped.

Any alias listed here can be passed to the connect verb.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if hostsJSON {
			entries, err := sshutil.ParseSSHConfigFile(cfg.SSH.ConfigFile)
			if err != nil {
				return WriteJSONFromError(os.Stdout, err)
			}
			return WriteJSONSuccess(os.Stdout, entries)
		}
		return listHosts(os.Stdout, cfg.SSH.ConfigFile, hostsCSV)
	},
}

func init() {
	hostsCmd.Flags().BoolVar(&hostsCSV, "csv", false, "print comma-separated values instead of a table")
	hostsCmd.Flags().BoolVar(&hostsJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(hostsCmd)
}

func listHosts(w io.Writer, configFile string, csv bool) error {
	entries, err := sshutil.ParseSSHConfigFile(configFile)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Could not parse "+configFile,
			"Check the file with: ssh -G <alias>")
	}

	rows := kernel.HostRows(entries)
	if csv {
		fmt.Fprintln(w, output.Table(rows).String())
		return nil
	}
	if len(rows) == 1 {
		fmt.Fprintln(w, ui.MutedStyle().Render("No host aliases found in "+configFile))
		return nil
	}
	fmt.Fprintln(w, ui.RenderTable(rows))
	return nil
}
