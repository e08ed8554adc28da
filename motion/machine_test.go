package motion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpointer/config"
	"gridpointer/grid"
	"gridpointer/input"
)

var monitor = grid.Size{Width: 1920, Height: 1080}

func newTestMachine(t *testing.T, start grid.Cell) (*Machine, *config.Config) {
	t.Helper()
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	return New(start, cfg, monitor), cfg
}

func move(d grid.Direction) input.Intent { return input.Move{Direction: d} }
func dash(d grid.Direction) input.Intent { return input.Move{Direction: d, Dash: true} }

// settle 以固定帧间隔推进直到回到 Idle，返回期间发送的位移总和
func settle(t *testing.T, m *Machine, cfg *config.Config, dt time.Duration) grid.Point {
	t.Helper()
	var sum grid.Point
	for i := 0; i < 100000; i++ {
		if _, idle := m.State().(Idle); idle {
			return sum
		}
		res := m.Step(cfg, dt, nil)
		sum = sum.Add(res.Delta)
	}
	t.Fatal("tween never completed")
	return sum
}

func TestMachine_SingleMoveClamped(t *testing.T) {
	cases := []struct {
		start grid.Cell
		dir   grid.Direction
		want  grid.Cell
	}{
		{grid.Cell{Col: 10, Row: 6}, grid.DirUp, grid.Cell{Col: 10, Row: 5}},
		{grid.Cell{Col: 10, Row: 6}, grid.DirDown, grid.Cell{Col: 10, Row: 7}},
		{grid.Cell{Col: 10, Row: 6}, grid.DirLeft, grid.Cell{Col: 9, Row: 6}},
		{grid.Cell{Col: 10, Row: 6}, grid.DirRight, grid.Cell{Col: 11, Row: 6}},
		{grid.Cell{Col: 19, Row: 11}, grid.DirRight, grid.Cell{Col: 19, Row: 11}},
		{grid.Cell{Col: 19, Row: 11}, grid.DirDown, grid.Cell{Col: 19, Row: 11}},
		{grid.Cell{Col: 0, Row: 0}, grid.DirUp, grid.Cell{Col: 0, Row: 0}},
	}
	for _, tc := range cases {
		m, cfg := newTestMachine(t, tc.start)
		res := m.Step(cfg, 0, []input.Intent{move(tc.dir)})
		assert.Equal(t, 1, res.Accepted)
		settle(t, m, cfg, 5*time.Millisecond)
		assert.Equal(t, Idle{Position: tc.want}, m.State(), "%s from %s", tc.dir, tc.start)
	}
}

func TestMachine_BlockedMoveStaysIdle(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 0, Row: 0})
	before := m.Emitted()

	res := m.Step(cfg, 0, []input.Intent{move(grid.DirLeft)})
	assert.Nil(t, res.Started)
	assert.True(t, res.Delta.IsZero())
	assert.Equal(t, Idle{Position: grid.Cell{}}, m.State())
	assert.Equal(t, before, m.Emitted())
}

func TestMachine_DashUsesDashCells(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 10, Row: 5})
	res := m.Step(cfg, 0, []input.Intent{dash(grid.DirRight)})
	require.NotNil(t, res.Started)
	assert.Equal(t, grid.Cell{Col: 15, Row: 5}, res.Started.To)
	assert.True(t, res.Started.Dash)

	// 冲刺同样受边界约束
	m, cfg = newTestMachine(t, grid.Cell{Col: 17, Row: 2})
	res = m.Step(cfg, 0, []input.Intent{dash(grid.DirRight)})
	require.NotNil(t, res.Started)
	assert.Equal(t, grid.Cell{Col: 19, Row: 2}, res.Started.To)

	m, cfg = newTestMachine(t, grid.Cell{Col: 3, Row: 2})
	res = m.Step(cfg, 0, []input.Intent{dash(grid.DirUp)})
	require.NotNil(t, res.Started)
	assert.Equal(t, grid.Cell{Col: 3, Row: 0}, res.Started.To)
}

func TestMachine_TweenFollowsEaseCurve(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 10, Row: 6})
	start := m.Emitted()

	res := m.Step(cfg, 0, []input.Intent{move(grid.DirUp)})
	require.NotNil(t, res.Started)
	assert.Equal(t, 150*time.Millisecond, res.Started.Duration)
	assert.True(t, res.Delta.IsZero(), "new tween is not advanced in the tick that starts it")

	tw := m.State().(Tweening)
	assert.Equal(t, time.Duration(0), tw.Elapsed)

	res = m.Step(cfg, 75*time.Millisecond, nil)
	// 行高 90px，ease(0.5)=0.875
	assert.InDelta(t, 0, res.Delta.X, 1e-9)
	assert.InDelta(t, -90*0.875, res.Delta.Y, 1e-9)
	assert.InDelta(t, start.Y-90*0.875, m.Emitted().Y, 1e-9)

	res = m.Step(cfg, 75*time.Millisecond, nil)
	require.NotNil(t, res.Finished)
	assert.InDelta(t, -90*0.125, res.Delta.Y, 1e-9)
	assert.Equal(t, Idle{Position: grid.Cell{Col: 10, Row: 5}}, m.State())
}

func TestMachine_TerminalFrameExact(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 1, Row: 1})
	cfg.Grid.Cols, cfg.Grid.Rows = 7, 13 // 非整除的格子尺寸
	start := m.Emitted()

	m.Step(cfg, 0, []input.Intent{dash(grid.DirDown)})
	target := grid.CellToScreen(grid.Cell{Col: 1, Row: 6}, 7, 13, monitor)

	// 抖动的帧间隔
	jitter := []time.Duration{2778 * time.Microsecond, 3100 * time.Microsecond, 1900 * time.Microsecond, 2500 * time.Microsecond}
	var sum grid.Point
	for i := 0; ; i++ {
		res := m.Step(cfg, jitter[i%len(jitter)], nil)
		sum = sum.Add(res.Delta)
		if res.Finished != nil {
			break
		}
		require.Less(t, i, 1000)
	}
	assert.Equal(t, target, m.Emitted(), "emitted position must equal the target exactly")
	assert.InDelta(t, target.X-start.X, sum.X, 1e-9)
	assert.InDelta(t, target.Y-start.Y, sum.Y, 1e-9)
}

func TestMachine_DeltasNeverReverse(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 2, Row: 2})
	m.Step(cfg, 0, []input.Intent{dash(grid.DirRight)})
	for {
		res := m.Step(cfg, 2778*time.Microsecond, nil)
		assert.GreaterOrEqual(t, res.Delta.X, 0.0)
		assert.Equal(t, 0.0, res.Delta.Y)
		if res.Finished != nil {
			break
		}
	}
}

func TestMachine_IntentDroppedDuringTween(t *testing.T) {
	run := func(noise bool) (*Machine, int) {
		m, cfg := newTestMachine(t, grid.Cell{Col: 4, Row: 4})
		m.Step(cfg, 0, []input.Intent{move(grid.DirRight)})
		dropped := 0
		for {
			var in []input.Intent
			if noise {
				in = []input.Intent{move(grid.DirDown), dash(grid.DirLeft), input.Analog{DX: 1, Magnitude: 1}}
			}
			res := m.Step(cfg, 10*time.Millisecond, in)
			dropped += res.Dropped
			assert.Nil(t, res.Started)
			if res.Finished != nil {
				break
			}
		}
		return m, dropped
	}

	quiet, _ := run(false)
	noisy, dropped := run(true)
	assert.Equal(t, quiet.State(), noisy.State())
	assert.Equal(t, quiet.Emitted(), noisy.Emitted())
	assert.Equal(t, Idle{Position: grid.Cell{Col: 5, Row: 4}}, noisy.State())
	assert.Equal(t, 15*3, dropped)
}

func TestMachine_OneIntentPerTick(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 4, Row: 4})
	res := m.Step(cfg, 0, []input.Intent{move(grid.DirUp), move(grid.DirLeft), dash(grid.DirDown)})
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 2, res.Dropped)
	require.NotNil(t, res.Started)
	assert.Equal(t, grid.Cell{Col: 4, Row: 3}, res.Started.To)

	// 被丢弃的意图不会在下一帧重新出现
	settle(t, m, cfg, 50*time.Millisecond)
	assert.Equal(t, Idle{Position: grid.Cell{Col: 4, Row: 3}}, m.State())
}

func TestMachine_HotReloadMidTween(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 10, Row: 6})
	m.Step(cfg, 0, []input.Intent{move(grid.DirRight)})

	reloaded := cfg.Clone()
	reloaded.Movement.TweenMS = 30
	reloaded.Grid.Cols, reloaded.Grid.Rows = 40, 24

	res := m.Step(reloaded, 100*time.Millisecond, nil)
	assert.Nil(t, res.Finished, "in-flight tween keeps its captured duration")
	tw := m.State().(Tweening)
	assert.Equal(t, 150*time.Millisecond, tw.Duration)
	assert.Equal(t, grid.Cell{Col: 11, Row: 6}, tw.To)

	res = m.Step(reloaded, 50*time.Millisecond, nil)
	require.NotNil(t, res.Finished)
	assert.Equal(t, grid.CellToScreen(grid.Cell{Col: 11, Row: 6}, 20, 12, monitor), m.Emitted())

	// 下一次过渡使用新值，且从当前指针位置出发而不跳变
	res = m.Step(reloaded, 0, []input.Intent{move(grid.DirRight)})
	require.NotNil(t, res.Started)
	assert.Equal(t, 30*time.Millisecond, res.Started.Duration)
	assert.Equal(t, grid.Cell{Col: 12, Row: 6}, res.Started.To)
	assert.True(t, res.Delta.IsZero())

	res = m.Step(reloaded, 30*time.Millisecond, nil)
	require.NotNil(t, res.Finished)
	assert.Equal(t, grid.CellToScreen(grid.Cell{Col: 12, Row: 6}, 40, 24, monitor), m.Emitted())
}

func TestMachine_ShrunkGridClampsIdlePosition(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 18, Row: 10})
	smaller := cfg.Clone()
	smaller.Grid.Cols, smaller.Grid.Rows = 5, 5

	res := m.Step(smaller, 0, []input.Intent{move(grid.DirLeft)})
	require.NotNil(t, res.Started)
	assert.Equal(t, grid.Cell{Col: 4, Row: 4}, res.Started.From)
	assert.Equal(t, grid.Cell{Col: 3, Row: 4}, res.Started.To)
}

func TestMachine_ShrunkGridClampsIdleWithoutMovement(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 18, Row: 10})
	before := m.Emitted()
	smaller := cfg.Clone()
	smaller.Grid.Cols, smaller.Grid.Rows = 5, 5

	res := m.Step(smaller, 2778*time.Microsecond, nil)
	assert.Equal(t, Idle{Position: grid.Cell{Col: 4, Row: 4}}, m.State())
	assert.True(t, res.Delta.IsZero())
	assert.Equal(t, before, m.Emitted())
}

func TestMachine_TweenEndingOutsideShrunkGridIsClamped(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 10, Row: 6})
	m.Step(cfg, 0, []input.Intent{dash(grid.DirRight)})
	require.Equal(t, grid.Cell{Col: 15, Row: 6}, m.Position())

	smaller := cfg.Clone()
	smaller.Grid.Cols, smaller.Grid.Rows = 8, 8
	res := m.Step(smaller, time.Second, nil)
	require.NotNil(t, res.Finished)
	assert.Equal(t, grid.Cell{Col: 15, Row: 6}, res.Finished.To)
	assert.Equal(t, Idle{Position: grid.Cell{Col: 7, Row: 6}}, m.State())
}

func TestMachine_EndToEndScenario(t *testing.T) {
	cfg := config.Default()
	cfg.Grid.Cols, cfg.Grid.Rows = 20, 12
	cfg.Movement.DashCells, cfg.Movement.TweenMS = 5, 150
	m := New(cfg.StartCell(), cfg, monitor)
	require.Equal(t, Idle{Position: grid.Cell{Col: 10, Row: 6}}, m.State())

	res := m.Step(cfg, 0, []input.Intent{move(grid.DirUp)})
	require.NotNil(t, res.Started)
	assert.Equal(t, Transition{From: grid.Cell{Col: 10, Row: 6}, To: grid.Cell{Col: 10, Row: 5}, Duration: 150 * time.Millisecond}, *res.Started)
	elapsed := time.Duration(0)
	for {
		res = m.Step(cfg, 2778*time.Microsecond, nil)
		elapsed += 2778 * time.Microsecond
		if res.Finished != nil {
			break
		}
	}
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond+2778*time.Microsecond)
	assert.Equal(t, Idle{Position: grid.Cell{Col: 10, Row: 5}}, m.State())

	res = m.Step(cfg, 0, []input.Intent{dash(grid.DirRight)})
	require.NotNil(t, res.Started)
	assert.Equal(t, grid.Cell{Col: 15, Row: 5}, res.Started.To)
	settle(t, m, cfg, 2778*time.Microsecond)
	assert.Equal(t, Idle{Position: grid.Cell{Col: 15, Row: 5}}, m.State())

	for i := 0; i < 4; i++ {
		m.Step(cfg, 0, []input.Intent{dash(grid.DirLeft)})
		settle(t, m, cfg, 2778*time.Microsecond)
	}
	assert.Equal(t, Idle{Position: grid.Cell{Col: 0, Row: 5}}, m.State())

	for i := 0; i < 3; i++ {
		res = m.Step(cfg, 2778*time.Microsecond, []input.Intent{move(grid.DirLeft)})
		assert.Nil(t, res.Started)
		assert.Equal(t, Idle{Position: grid.Cell{Col: 0, Row: 5}}, m.State())
	}
	assert.Equal(t, grid.CellToScreen(grid.Cell{Col: 0, Row: 5}, 20, 12, monitor), m.Emitted())
}

func TestMachine_AnalogStartsShortTween(t *testing.T) {
	m, cfg := newTestMachine(t, grid.Cell{Col: 10, Row: 6})

	res := m.Step(cfg, 0, []input.Intent{input.Analog{DX: 0.05, DY: 0.05, Magnitude: 0.07}})
	assert.Equal(t, 1, res.Ignored)
	assert.Nil(t, res.Started)

	res = m.Step(cfg, 0, []input.Intent{input.Analog{DX: 1, DY: 0, Magnitude: 1}})
	require.NotNil(t, res.Started)
	assert.True(t, res.Started.Analog)
	assert.Equal(t, grid.Cell{Col: 13, Row: 6}, res.Started.To)
	assert.Equal(t, 60*time.Millisecond, res.Started.Duration)

	res = m.Step(cfg, 60*time.Millisecond, nil)
	require.NotNil(t, res.Finished)
	assert.Equal(t, Idle{Position: grid.Cell{Col: 13, Row: 6}}, m.State())
}

func TestAnalogOffset(t *testing.T) {
	cases := []struct {
		in     input.Analog
		cells  int
		dc, dr int
	}{
		{input.Analog{DX: 1, DY: 0, Magnitude: 1}, 3, 3, 0},
		{input.Analog{DX: -0.2, DY: 0, Magnitude: 0.2}, 3, -1, 0},
		{input.Analog{DX: 0, DY: 0.5, Magnitude: 0.5}, 3, 0, 2},
		{input.Analog{DX: 0.7071, DY: -0.7071, Magnitude: 1}, 3, 2, -2},
		{input.Analog{DX: 0.3, DY: 0.3, Magnitude: 0.42}, 1, 1, 1},
		{input.Analog{}, 3, 0, 0},
	}
	for _, tc := range cases {
		dc, dr := AnalogOffset(tc.in, tc.cells)
		assert.Equal(t, tc.dc, dc, "%v", tc.in)
		assert.Equal(t, tc.dr, dr, "%v", tc.in)
	}
}

func BenchmarkMachine_Step(b *testing.B) {
	cfg := config.Default()
	m := New(cfg.StartCell(), cfg, monitor)
	dirs := []grid.Direction{grid.DirRight, grid.DirDown, grid.DirLeft, grid.DirUp}
	intents := make([]input.Intent, 1)
	dt := 2778 * time.Microsecond

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, idle := m.State().(Idle); idle {
			intents[0] = input.Move{Direction: dirs[i%len(dirs)]}
			m.Step(cfg, dt, intents)
			continue
		}
		m.Step(cfg, dt, nil)
	}
}

func BenchmarkMachine_StepDropsDuringTween(b *testing.B) {
	cfg := config.Default()
	cfg.Movement.TweenMS = 1 << 30
	m := New(cfg.StartCell(), cfg, monitor)
	m.Step(cfg, 0, []input.Intent{move(grid.DirRight)})
	intents := []input.Intent{move(grid.DirUp), input.Analog{DX: 1, Magnitude: 1}, input.Click{}}
	dt := 2778 * time.Microsecond

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Step(cfg, dt, intents)
	}
}
