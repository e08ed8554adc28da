package input

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpointer/fault"
	"gridpointer/grid"
)

type staticSettings struct {
	deadZone float64
	repeat   time.Duration
}

func (s staticSettings) DeadZone() float64           { return s.deadZone }
func (s staticSettings) AnalogRepeat() time.Duration { return s.repeat }

type intentSink struct {
	mu  sync.Mutex
	got []Intent
}

func (s *intentSink) Offer(in Intent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, in)
	return true
}

func (s *intentSink) snapshot() []Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Intent(nil), s.got...)
}

func TestOpenAll_SkipsUnavailable(t *testing.T) {
	reporter := fault.NewReporter(8)
	open := func(path string, grab bool) (Device, error) {
		if path == "/dev/input/missing" {
			return nil, errors.New("no such file or directory")
		}
		return NewVirtualDevice(path, 4), nil
	}

	devs := OpenAll([]string{"/dev/input/missing", "/dev/input/event1"}, false, open, reporter)
	require.Len(t, devs, 1)
	assert.Equal(t, "/dev/input/event1", devs[0].Path())
	assert.EqualValues(t, 1, reporter.Count(fault.KindDeviceUnavailable))

	rep := <-reporter.C()
	assert.ErrorIs(t, rep.Err, fault.ErrDeviceUnavailable)
}

func TestAutoDetect_FirstOfEachClass(t *testing.T) {
	infos := []DeviceInfo{
		{Path: "/dev/input/event0", Class: ClassOther},
		{Path: "/dev/input/event1", Class: ClassKeyboard, Err: errors.New("permission denied")},
		{Path: "/dev/input/event2", Class: ClassKeyboard},
		{Path: "/dev/input/event3", Class: ClassKeyboard},
		{Path: "/dev/input/event4", Class: ClassGamepad},
	}
	assert.Equal(t, []string{"/dev/input/event2", "/dev/input/event4"}, AutoDetect(infos))
	assert.Empty(t, AutoDetect(nil))
}

func TestManager_PumpsIntentsAndSurvivesLostDevice(t *testing.T) {
	keyboard := NewVirtualDevice("kbd", 16)
	pad := NewVirtualDevice("pad", 16)
	sink := &intentSink{}
	reporter := fault.NewReporter(8)

	m := &Manager{
		Devices:  []Device{keyboard, pad},
		Offer:    sink.Offer,
		Settings: staticSettings{deadZone: 0.15, repeat: time.Hour},
		Reporter: reporter,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { m.Run(ctx); close(done) }()

	// 手柄断开：只上报，不影响键盘
	require.NoError(t, pad.Close())
	require.Eventually(t, func() bool { return reporter.Count(fault.KindDeviceUnavailable) == 1 },
		time.Second, 5*time.Millisecond)

	require.True(t, keyboard.Chord(KeyLeftShift, KeyDown))
	require.True(t, keyboard.Tap(KeySpace))
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Intent{Move{Direction: grid.DirDown, Dash: true}, Click{Button: ButtonLeft}}, sink.snapshot())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
}

func TestManager_RepeatsHeldStick(t *testing.T) {
	stick := NewVirtualDevice("stick", 16)
	sink := &intentSink{}
	m := &Manager{
		Devices:  []Device{stick},
		Offer:    sink.Offer,
		Settings: staticSettings{deadZone: 0.15, repeat: 10 * time.Millisecond},
		Reporter: fault.NewReporter(8),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.True(t, stick.Stick(32767, 0))
	require.Eventually(t, func() bool { return len(sink.snapshot()) >= 3 }, time.Second, 5*time.Millisecond)
	for _, in := range sink.snapshot() {
		a, ok := in.(Analog)
		require.True(t, ok)
		assert.InDelta(t, 1.0, a.DX, 1e-3)
	}
}
