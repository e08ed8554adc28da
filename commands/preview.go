package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"gridpointer/display"
	"gridpointer/fault"
	"gridpointer/grid"
	"gridpointer/input"
	"gridpointer/logger"
	"gridpointer/server"
	"gridpointer/sink"
)

type previewOptions struct {
	AdminAddr   string
	WithDevices bool
}

func addPreview(topLevel *cobra.Command) {
	o := &previewOptions{}
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Run the motion engine against a terminal grid instead of the real pointer.",
		Example: `
gridpointer preview
gridpointer preview --with-devices --log-file /tmp/gridpointer.log
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPreview(ctx, o)
		},
	}

	cmd.Flags().StringVar(&o.AdminAddr, "admin-addr", "", "Loopback address for the admin/status server (disabled when empty).")
	cmd.Flags().BoolVar(&o.WithDevices, "with-devices", false, "Also read the configured evdev devices.")

	topLevel.AddCommand(cmd)
}

func runPreview(ctx context.Context, o *previewOptions) error {
	cfg, path, err := global.loadConfig()
	if err != nil {
		return fault.Fatal("config", err)
	}
	// 终端被 TUI 占用，日志只写文件
	if err := global.initLogger(cfg, true); err != nil {
		return fault.Fatal("logger", err)
	}
	defer logger.Sync()

	e, err := newEngine(ctx, cfg, path)
	if err != nil {
		return err
	}

	keys := input.NewVirtualDevice("terminal", 256)
	devices := []input.Device{keys}
	if o.WithDevices {
		devices = append(devices, input.OpenAll(devicePaths(nil, cfg.DevicePaths()), cfg.Input.Grab, nil, e.reporter)...)
	}
	if o.AdminAddr != "" {
		if err := server.CheckLoopback(o.AdminAddr); err != nil {
			return fault.Fatal("admin", err)
		}
	}

	monitor := display.ResolveSystem(cfg.Display.TargetMonitor, cfg.FallbackSize())
	start := grid.CellToScreen(cfg.StartCell(), cfg.Grid.Cols, cfg.Grid.Rows, monitor.Size)
	out := sink.NewPreview(start)
	e.attach(out, "preview", devices, monitor, o.AdminAddr)

	layout := func() sink.Layout {
		c := e.store.Current()
		return sink.Layout{Cols: c.Grid.Cols, Rows: c.Grid.Rows, Monitor: e.daemon.Status().Monitor}
	}
	status := func() string { return e.daemon.Status().State }
	prog := tea.NewProgram(sink.NewPreviewModel(out, keys, layout, status), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- e.run(ctx)
		prog.Send(sink.StopMsg{})
	}()

	_, perr := prog.Run()
	cancel()
	if err := <-done; err != nil {
		return err
	}
	return perr
}
