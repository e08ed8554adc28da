package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gridpointer/display"
	"gridpointer/fault"
	"gridpointer/input"
	"gridpointer/logger"
	"gridpointer/server"
	"gridpointer/sink"
)

type runOptions struct {
	AdminAddr  string
	UinputPath string
	Devices    []string
	Grab       bool
}

func addRun(topLevel *cobra.Command) {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pointer daemon (evdev input, uinput output).",
		Example: `
gridpointer run
gridpointer run --device /dev/input/event3 --admin-addr 127.0.0.1:7070
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, o)
		},
	}

	cmd.Flags().StringVar(&o.AdminAddr, "admin-addr", "", "Loopback address for the admin/status server (disabled when empty).")
	cmd.Flags().StringVar(&o.UinputPath, "uinput", sink.DefaultUinputPath, "uinput control device.")
	cmd.Flags().StringSliceVarP(&o.Devices, "device", "d", nil, "Input device path (repeatable); overrides the config file.")
	cmd.Flags().BoolVar(&o.Grab, "grab", false, "Grab input devices exclusively (EVIOCGRAB).")

	topLevel.AddCommand(cmd)
}

// devicePaths 命令行 > 配置 > 自动探测
func devicePaths(flagPaths, configured []string) []string {
	if len(flagPaths) > 0 {
		return flagPaths
	}
	if len(configured) > 0 {
		return configured
	}
	found := input.AutoDetect(input.Discover())
	logger.Log.Infof("no devices configured, auto-detected %v", found)
	return found
}

func runDaemon(ctx context.Context, o *runOptions) error {
	cfg, path, err := global.loadConfig()
	if err != nil {
		return fault.Fatal("config", err)
	}
	if err := global.initLogger(cfg, false); err != nil {
		return fault.Fatal("logger", err)
	}
	defer logger.Sync()
	logger.Log.Infof("config %s: grid %dx%d, dash %d, tween %dms", path, cfg.Grid.Cols, cfg.Grid.Rows, cfg.Movement.DashCells, cfg.Movement.TweenMS)

	e, err := newEngine(ctx, cfg, path)
	if err != nil {
		return err
	}

	monitor := display.ResolveSystem(cfg.Display.TargetMonitor, cfg.FallbackSize())
	if monitor.Reason != "" {
		logger.Log.Warnf("display: %s, using configured %.0fx%.0f", monitor.Reason, monitor.Size.Width, monitor.Size.Height)
	} else {
		logger.Log.Infof("display %s: %.0fx%.0f", monitor.Source, monitor.Size.Width, monitor.Size.Height)
	}

	out, err := sink.OpenUinput(o.UinputPath, "gridpointer virtual pointer")
	if err != nil {
		return fault.Fatal("uinput", err)
	}

	paths := devicePaths(o.Devices, cfg.DevicePaths())
	devices := input.OpenAll(paths, cfg.Input.Grab || o.Grab, nil, e.reporter)
	if len(devices) == 0 {
		_ = out.Close()
		return fault.Fatal("input", fmt.Errorf("no input device could be opened (tried %v)", paths))
	}

	if o.AdminAddr != "" {
		if err := server.CheckLoopback(o.AdminAddr); err != nil {
			_ = out.Close()
			return fault.Fatal("admin", err)
		}
	}
	e.attach(out, "uinput", devices, monitor, o.AdminAddr)
	return e.run(ctx)
}
