package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pipecall/demo"
	"pipecall/middleware"
	"pipecall/process"
	"pipecall/transport"
)

var childCmd = &cobra.Command{
	Use:    "child [args...] <in-fd> <out-fd>",
	Short:  "Serve Demo on inherited descriptors (started by run)",
	Hidden: true,
	Args:   cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.With(zap.String("role", "child"), zap.Int("pid", os.Getpid()))

		ch, err := process.Attach(args[len(args)-2:],
			transport.WithLimits(cfg.Limits.Protocol()),
			transport.WithLogger(log),
		)
		if err != nil {
			return err
		}

		mws := []middleware.Middleware{middleware.Logging(log)}
		if cfg.Host.RateLimit > 0 {
			mws = append(mws, middleware.RateLimit(cfg.Host.RateLimit, cfg.Host.Burst))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		log.Debug("serving", zap.String("service", demo.ServiceName))
		return demo.Serve(ctx, ch, demo.Impl{}, log, mws...)
	},
}
