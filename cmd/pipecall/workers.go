package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pipecall/registry"
)

var watchWorkers bool

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List children registered under the configured service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Registry.Endpoints) == 0 {
			return errors.New("workers needs registry.endpoints; the in-memory registry is per process")
		}
		reg, closeReg, err := openRegistry()
		if err != nil {
			return err
		}
		defer closeReg()

		if watchWorkers {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return streamWorkers(ctx, cmd.OutOrStdout(), reg, cfg.Registry.Service)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		instances, err := reg.Discover(ctx, cfg.Registry.Service)
		if err != nil {
			return err
		}
		return printWorkers(cmd.OutOrStdout(), instances)
	},
}

func init() {
	workersCmd.Flags().BoolVarP(&watchWorkers, "watch", "w", false, "keep running and print the list after every change")
}

// streamWorkers prints the current list, then a fresh one after every
// registry change, until ctx is done.
func streamWorkers(ctx context.Context, out io.Writer, reg registry.Registry, service string) error {
	updates := reg.Watch(ctx, service)

	instances, err := reg.Discover(ctx, service)
	if err != nil {
		return err
	}
	if err := printWorkers(out, instances); err != nil {
		return err
	}

	for list := range updates {
		fmt.Fprintf(out, "\n-- %s --\n", time.Now().Format(time.RFC3339))
		if err := printWorkers(out, list); err != nil {
			return err
		}
	}
	return nil
}

func printWorkers(out io.Writer, instances []registry.Instance) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPID\tEXECUTABLE\tSTARTED")
	for _, in := range instances {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", in.ID, in.PID, in.Executable, in.StartedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
