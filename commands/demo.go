package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"gridpointer/config"
	"gridpointer/daemon"
	"gridpointer/display"
	"gridpointer/fault"
	"gridpointer/grid"
	"gridpointer/input"
	"gridpointer/logger"
	"gridpointer/sink"
)

// demoStep 一步脚本：按下 Key（Dash 时同时按住 Shift）
type demoStep struct {
	Label string
	Key   uint16
	Dash  bool
}

// scenario 内置演示场景
type scenario struct {
	Name     string
	Cols     int
	Rows     int
	Dash     int
	TweenMS  int
	Start    *grid.Cell
	Steps    []demoStep
	Describe string
}

var scenarios = map[string]scenario{
	"grid": {
		Name: "grid", Cols: 10, Rows: 6, Dash: 3, TweenMS: 500,
		Start:    &grid.Cell{Col: 0, Row: 0},
		Describe: "single steps and dashes across a 10x6 grid",
		Steps: []demoStep{
			{Label: "right", Key: input.KeyRight},
			{Label: "right", Key: input.KeyRight},
			{Label: "down", Key: input.KeyDown},
			{Label: "dash right", Key: input.KeyRight, Dash: true},
			{Label: "dash down", Key: input.KeyDown, Dash: true},
			{Label: "left", Key: input.KeyLeft},
			{Label: "up", Key: input.KeyUp},
			{Label: "click", Key: input.KeySpace},
		},
	},
	"dash": {
		Name: "dash", Cols: 20, Rows: 12, Dash: 7, TweenMS: 300,
		Describe: "dashes in every direction from the centre of a 20x12 grid",
		Steps: []demoStep{
			{Label: "dash right", Key: input.KeyRight, Dash: true},
			{Label: "dash down", Key: input.KeyDown, Dash: true},
			{Label: "dash left", Key: input.KeyLeft, Dash: true},
			{Label: "dash up", Key: input.KeyUp, Dash: true},
		},
	},
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for n := range scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// config 场景对应的配置快照
func (s scenario) config() *config.Config {
	cfg := config.Default()
	cfg.Grid.Cols, cfg.Grid.Rows = s.Cols, s.Rows
	cfg.Movement.DashCells = s.Dash
	cfg.Movement.TweenMS = s.TweenMS
	if s.Start != nil {
		cfg.Grid.StartCol, cfg.Grid.StartRow = s.Start.Col, s.Start.Row
	}
	cfg.Source = "<demo " + s.Name + ">"
	return cfg
}

type demoOptions struct {
	Uinput bool
}

func addDemo(topLevel *cobra.Command) {
	o := &demoOptions{}
	cmd := &cobra.Command{
		Use:       "demo [" + strings.Join(scenarioNames(), "|") + "]",
		Short:     "Play a scripted movement scenario.",
		ValidArgs: scenarioNames(),
		Args:      cobra.MaximumNArgs(1),
		Example: `
gridpointer demo grid
gridpointer demo dash --uinput
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "grid"
			if len(args) == 1 {
				name = args[0]
			}
			s, ok := scenarios[name]
			if !ok {
				return fmt.Errorf("unknown scenario %q, want one of %v", name, scenarioNames())
			}
			cmd.SilenceUsage = true
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDemo(ctx, s, o)
		},
	}

	cmd.Flags().BoolVar(&o.Uinput, "uinput", false, "Drive the real pointer through uinput instead of recording.")

	topLevel.AddCommand(cmd)
}

func runDemo(ctx context.Context, s scenario, o *demoOptions) error {
	cfg := s.config()
	if err := global.initLogger(cfg, false); err != nil {
		return fault.Fatal("logger", err)
	}
	defer logger.Sync()

	e, err := newEngine(ctx, cfg, "")
	if err != nil {
		return err
	}
	monitor := display.ResolveSystem(cfg.Display.TargetMonitor, cfg.FallbackSize())

	var out sink.Sink
	rec := sink.NewRecorder()
	out = rec
	if o.Uinput {
		u, err := sink.OpenUinput(sink.DefaultUinputPath, "gridpointer demo pointer")
		if err != nil {
			return fault.Fatal("uinput", err)
		}
		out = u
	}

	keys := input.NewVirtualDevice("demo", 64)
	e.attach(out, "demo", []input.Device{keys}, monitor, "")

	events := make(chan daemon.Event, 64)
	e.daemon.Subscribe(func(ev daemon.Event) {
		select {
		case events <- ev:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- e.run(ctx) }()

	_, _ = fmt.Fprintf(color.Output, "%s %s (%s)\n", color.New(color.Bold).Sprint("scenario"), s.Name, s.Describe)
	rows := playScript(ctx, e.daemon, keys, events, s.Steps, cfg.TweenDuration())
	keys.Tap(input.KeyEsc)
	if err := <-done; err != nil {
		return err
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	bold := color.New(color.Bold)
	tbl.AddRow(bold.Sprint("step"), bold.Sprint("action"), bold.Sprint("cell"), bold.Sprint("pointer"))
	for i, r := range rows {
		tbl.AddRow(i+1, r.label, r.cell, fmt.Sprintf("%.1f,%.1f", r.emitted.X, r.emitted.Y))
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(color.Output, tbl)
	if !o.Uinput {
		total := rec.Total()
		_, _ = fmt.Fprintf(color.Output, "recorded %d commands, net motion %.1f,%.1f, clicks %v\n", len(rec.Commands()), total.X, total.Y, rec.Clicks())
	}
	return nil
}

type demoRow struct {
	label   string
	cell    grid.Cell
	emitted grid.Point
}

// playScript 逐步按键；每一步等到补间结束（被边界挡住的移动不会产生补间，超时后继续）
func playScript(ctx context.Context, d *daemon.Daemon, keys *input.VirtualDevice, events <-chan daemon.Event, steps []demoStep, tween time.Duration) []demoRow {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	rows := make([]demoRow, 0, len(steps))
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		if step.Dash {
			keys.Chord(input.KeyLeftShift, step.Key)
		} else {
			keys.Tap(step.Key)
		}

		want := daemon.EventTweenEnd
		if step.Key == input.KeySpace {
			want = daemon.EventClick
		}
		ok := waitEvent(ctx, events, want, tween+300*time.Millisecond)
		st := d.Status()
		mark := green.Sprint("ok")
		if !ok {
			mark = yellow.Sprint("blocked")
		}
		_, _ = fmt.Fprintf(color.Output, "  %-10s %-7s %s\n", step.Label, mark, st.Position)
		rows = append(rows, demoRow{label: step.Label, cell: st.Position, emitted: st.Emitted})
	}
	return rows
}

func waitEvent(ctx context.Context, events <-chan daemon.Event, want daemon.EventType, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return false
		case ev := <-events:
			if ev.Type == want {
				return true
			}
		}
	}
}
