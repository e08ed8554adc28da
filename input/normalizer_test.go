package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpointer/grid"
)

func fixedDeadZone(v float64) func() float64 { return func() float64 { return v } }

func press(code uint16) Sample   { return Sample{Type: EvKey, Code: code, Value: ValuePress} }
func release(code uint16) Sample { return Sample{Type: EvKey, Code: code, Value: ValueRelease} }
func repeat(code uint16) Sample  { return Sample{Type: EvKey, Code: code, Value: ValueRepeat} }
func syn() Sample                { return Sample{Type: EvSyn, Code: SynReport} }
func abs(code uint16, v int32) Sample {
	return Sample{Type: EvAbs, Code: code, Value: v}
}

func TestNormalizer_ArrowKeys(t *testing.T) {
	n := NewNormalizer(fixedDeadZone(0.15), nil)
	cases := map[uint16]grid.Direction{
		KeyUp: grid.DirUp, KeyDown: grid.DirDown, KeyLeft: grid.DirLeft, KeyRight: grid.DirRight,
	}
	for code, dir := range cases {
		assert.Equal(t, []Intent{Move{Direction: dir}}, n.Feed(press(code)))
		assert.Empty(t, n.Feed(release(code)), "release emits nothing")
	}
}

func TestNormalizer_ShiftDash(t *testing.T) {
	n := NewNormalizer(fixedDeadZone(0.15), nil)
	assert.Empty(t, n.Feed(press(KeyLeftShift)))
	assert.Equal(t, []Intent{Move{Direction: grid.DirRight, Dash: true}}, n.Feed(press(KeyRight)))
	n.Feed(release(KeyRight))
	n.Feed(release(KeyLeftShift))
	assert.Equal(t, []Intent{Move{Direction: grid.DirRight}}, n.Feed(press(KeyRight)))

	n.Feed(press(KeyRightShift))
	assert.Equal(t, []Intent{Move{Direction: grid.DirUp, Dash: true}}, n.Feed(press(KeyUp)))
}

func TestNormalizer_RepeatIgnored(t *testing.T) {
	n := NewNormalizer(fixedDeadZone(0.15), nil)
	require.Len(t, n.Feed(press(KeyDown)), 1)
	assert.Empty(t, n.Feed(repeat(KeyDown)))
	assert.Empty(t, n.Feed(repeat(KeyDown)))
}

func TestNormalizer_ClickAndQuit(t *testing.T) {
	n := NewNormalizer(fixedDeadZone(0.15), nil)
	assert.Equal(t, []Intent{Click{Button: ButtonLeft}}, n.Feed(press(KeySpace)))
	assert.Equal(t, []Intent{Quit{}}, n.Feed(press(KeyEsc)))
	assert.Equal(t, []Intent{Click{Button: ButtonLeft}}, n.Feed(press(BtnSouth)))
	assert.Equal(t, []Intent{Click{Button: ButtonRight}}, n.Feed(press(BtnEast)))
	assert.Equal(t, []Intent{Quit{}}, n.Feed(press(BtnStart)))
	assert.Empty(t, n.Feed(press(KeyA)))
}

func TestNormalizer_GamepadDpadAndHat(t *testing.T) {
	n := NewNormalizer(fixedDeadZone(0.15), nil)
	assert.Equal(t, []Intent{Move{Direction: grid.DirLeft}}, n.Feed(press(BtnDpadLeft)))

	n.Feed(press(BtnTR))
	assert.Equal(t, []Intent{Move{Direction: grid.DirDown, Dash: true}}, n.Feed(abs(AbsHat0Y, 1)))
	assert.Empty(t, n.Feed(abs(AbsHat0Y, 1)), "unchanged hat value")
	assert.Empty(t, n.Feed(abs(AbsHat0Y, 0)), "hat centered")
	n.Feed(release(BtnTR))
	assert.Equal(t, []Intent{Move{Direction: grid.DirRight}}, n.Feed(abs(AbsHat0X, 1)))
	assert.Equal(t, []Intent{Move{Direction: grid.DirLeft}}, n.Feed(abs(AbsHat0X, -1)))
}

func TestNormalizer_AnalogNormalizedOnSync(t *testing.T) {
	ranges := func(code uint16) (AxisInfo, bool) { return AxisInfo{Min: 0, Max: 200}, true }
	n := NewNormalizer(fixedDeadZone(0.15), ranges)

	assert.Empty(t, n.Feed(abs(AbsX, 200)))
	assert.Empty(t, n.Feed(abs(AbsY, 100)))
	out := n.Feed(syn())
	require.Len(t, out, 1)
	a := out[0].(Analog)
	assert.InDelta(t, 1.0, a.DX, 1e-9)
	assert.InDelta(t, 0.0, a.DY, 1e-9)
	assert.InDelta(t, 1.0, a.Magnitude, 1e-9)

	// 无新轴值的 SYN 不重复产生意图
	assert.Empty(t, n.Feed(syn()))
}

func TestNormalizer_AnalogMagnitudeClamped(t *testing.T) {
	n := NewNormalizer(fixedDeadZone(0.15), nil)
	n.Feed(abs(AbsX, 32767))
	n.Feed(abs(AbsY, -32768))
	out := n.Feed(syn())
	require.Len(t, out, 1)
	a := out[0].(Analog)
	assert.InDelta(t, 1.0, a.Magnitude, 1e-9)
	assert.InDelta(t, -1.0, a.DY, 1e-9)
}

func TestNormalizer_DeadZoneSuppresses(t *testing.T) {
	dz := 0.15
	n := NewNormalizer(func() float64 { return dz }, nil)

	// 约 0.1 的偏移低于死区
	n.Feed(abs(AbsX, 3277))
	n.Feed(abs(AbsY, 0))
	assert.Empty(t, n.Feed(syn()))
	_, ok := n.Analog()
	assert.False(t, ok)

	// 热更新死区后同样的偏移生效
	dz = 0.05
	n.Feed(abs(AbsX, 3277))
	out := n.Feed(syn())
	require.Len(t, out, 1)
	assert.InDelta(t, 0.1, out[0].(Analog).Magnitude, 0.01)
}

func TestNormalizer_SynDroppedResetsModifiers(t *testing.T) {
	n := NewNormalizer(fixedDeadZone(0.15), nil)
	n.Feed(press(KeyLeftShift))
	n.Feed(Sample{Type: EvSyn, Code: SynDropped})
	assert.Equal(t, []Intent{Move{Direction: grid.DirLeft}}, n.Feed(press(KeyLeft)))
}
