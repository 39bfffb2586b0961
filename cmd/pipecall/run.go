package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pipecall/client"
	"pipecall/demo"
	"pipecall/loadbalance"
	"pipecall/process"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Spawn the configured workers and run the demo calls against them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg, closeReg, err := openRegistry()
		if err != nil {
			return err
		}
		defer closeReg()

		pool, err := client.SpawnPool(ctx, cfg.Child.Workers, childConfig(),
			&loadbalance.RoundRobinBalancer{}, logger,
			process.WithRegistry(reg, cfg.Registry.TTL),
			process.WithLimits(cfg.Limits.Protocol()),
		)
		if err != nil {
			return err
		}
		defer func() {
			if err := pool.Close(); err != nil {
				logger.Warn("worker shutdown", zap.Error(err))
			}
		}()
		logger.Info("workers ready", zap.Int("count", pool.Len()), zap.String("service", cfg.Registry.Service))

		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go pool.Watch(watchCtx, reg, cfg.Registry.Service)

		c, err := demo.NewClient(pool)
		if err != nil {
			return err
		}
		return runDemo(ctx, cmd.OutOrStdout(), c)
	},
}

// childConfig re-executes this binary in child mode unless another
// executable is configured.
func childConfig() process.Config {
	pc := process.Config{
		Path:    cfg.Child.Path,
		Service: cfg.Registry.Service,
	}
	if pc.Path == "" {
		pc.Args = []string{"child"}
		if configPath != "" {
			pc.Args = append(pc.Args, "--config", configPath)
		}
	}
	pc.Args = append(pc.Args, cfg.Child.Args...)
	return pc
}

func runDemo(ctx context.Context, out io.Writer, c *demo.Client) error {
	steps := []struct {
		name string
		call func() (any, error)
	}{
		{"Add(5, 3)", func() (any, error) { return c.Add(5, 3) }},
		{`Concatenate(["Hello" "World" "!"])`, func() (any, error) {
			return c.Concatenate([]string{"Hello", "World", "!"})
		}},
		{`ProcessObject(1, "Test")`, func() (any, error) {
			o, err := c.ProcessObject(1, "Test")
			return fmt.Sprintf("{Id:%d Name:%s}", o.ID, deref(o.Name)), err
		}},
		{"ProcessNullArray(null)", func() (any, error) { return c.ProcessNullArray(nil) }},
		{"ProcessNullArray([])", func() (any, error) { return c.ProcessNullArray([]string{}) }},
		{"ProcessNullString(null)", func() (any, error) {
			s, err := c.ProcessNullString(nil)
			return deref(s), err
		}},
		{`ProcessStruct({42 "Hello" 3.14})`, func() (any, error) {
			s, err := c.ProcessStruct(demo.TestStruct{IntValue: 42, StringValue: demo.Ref("Hello"), FloatValue: 3.14})
			return fmt.Sprintf("{IntValue:%d StringValue:%s FloatValue:%g}", s.IntValue, deref(s.StringValue), s.FloatValue), err
		}},
		{"ProcessDouble(1.5)", func() (any, error) { return c.ProcessDouble(1.5) }},
		{"ProcessDecimal(1.5)", func() (any, error) { return c.ProcessDecimal(1.5) }},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := step.call()
		if err != nil {
			fmt.Fprintf(out, "%-40s error: %v\n", step.name, err)
			continue
		}
		fmt.Fprintf(out, "%-40s %v\n", step.name, v)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return "<null>"
	}
	return *s
}
