// Package cli is the imaged command tree: the daemon and its HTTP client.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"imaged/internal/client"
)

// Options are the persistent flags shared by every subcommand.
type Options struct {
	ConfigPath string
	Server     string
	LogLevel   string

	Stdout io.Writer
	Stderr io.Writer
}

func defaultOptions() *Options {
	server := client.DefaultServer
	if v := os.Getenv("IMAGED_SERVER"); v != "" {
		server = v
	}
	return &Options{Server: server, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	opts := defaultOptions()
	root := buildRootCmdWith(opts)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(opts.Stderr, "error:", err)
		return 1
	}
	return 0
}

func buildRootCmdWith(opts *Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "imaged",
		Short:         "Image-generation model daemon with a single active slot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", "", "Path to config file (.yaml|.yml|.json|.toml)")
	pf.StringVar(&opts.Server, "server", opts.Server, "API base URL for client commands (defaults IMAGED_SERVER)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug|info|warn|error")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(clientCommands(opts)...)
	return root
}

func newClient(opts *Options) (*client.Client, error) {
	return client.New(opts.Server)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
