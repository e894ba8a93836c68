// Command kernelctl boots the IPC/scheduler kernel and either serves its
// introspection endpoint or drives a scripted set of syscalls against it,
// grounded on the teacher's daemon.go startup sequencing and cobra root
// command layout.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Kihui/minix/internal/klog"
)

var logLevel string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kernelctl",
		Short: "Run and inspect the minix-style IPC kernel",
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSimulateCmd())

	return cmd
}

func newLogger() *klog.Logger {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	return klog.New(level)
}

// parseSetFlags turns repeated --set key=value flags into the loose map
// config.WithOverrides decodes via mapstructure.
func parseSetFlags(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: expected key=value", pair)
		}
		out[key] = value
	}

	return out, nil
}
