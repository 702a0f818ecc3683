package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/torosent/lanebench/internal/lane"
	"github.com/torosent/lanebench/internal/message"
	"github.com/torosent/lanebench/internal/sink"
)

// scriptedWorker stands in for a lane. Every envelope is passed to react,
// which returns whether to stop and the error to stop with.
type scriptedWorker struct {
	opt   lane.Options
	react func(opt lane.Options, env message.Envelope) (bool, error)
}

func (w *scriptedWorker) Run(context.Context) error {
	for env := range w.opt.Inbox {
		if stop, err := w.react(w.opt, env); stop {
			return err
		}
	}
	return lane.ErrInboxClosed
}

// spawnWith replaces the lanes whose id is listed in bad; the rest are real lanes.
func spawnWith(bad map[string]func(lane.Options, message.Envelope) (bool, error)) func(lane.Options) worker {
	return func(opt lane.Options) worker {
		if react, ok := bad[opt.ID]; ok {
			return &scriptedWorker{opt: opt, react: react}
		}
		return lane.New(opt)
	}
}

func mustFinish(t *testing.T, d *Dispatcher) (Result, error) {
	t.Helper()
	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := d.Run(context.Background())
		done <- outcome{res, err}
	}()
	select {
	case o := <-done:
		return o.res, o.err
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return; dispatcher deadlocked")
		return Result{}, nil
	}
}

func crashOnFirst(opt lane.Options, env message.Envelope) (bool, error) {
	return true, errors.New("lane crashed")
}

func TestLockstepLaneCrashAborts(t *testing.T) {
	var oplog bytes.Buffer
	out := sink.NewMemory()
	d := New(Options{
		Lanes: 3,
		Steps: 100,
		Sink:  out,
		OpLog: &oplog,
		spawn: spawnWith(map[string]func(lane.Options, message.Envelope) (bool, error){"ch2": crashOnFirst}),
	})

	res, err := mustFinish(t, d)
	if !errors.Is(err, ErrLaneGone) {
		t.Fatalf("expected ErrLaneGone, got %v", err)
	}
	if !strings.Contains(err.Error(), "lane crashed") {
		t.Errorf("joined error should carry the lane's own error, got %v", err)
	}
	if res.Records != 0 {
		t.Errorf("expected no records, got %d", res.Records)
	}
	// Surviving lanes still receive Terminate and finish.
	for _, id := range []string{"ch1", "ch3"} {
		if !strings.Contains(oplog.String(), id+": Done!") {
			t.Errorf("%s did not finish: %q", id, oplog.String())
		}
	}
	if out.Flushes() != 1 {
		t.Errorf("expected one flush, got %d", out.Flushes())
	}
}

func TestSharedLaneCrashAborts(t *testing.T) {
	d := New(Options{
		Lanes:    3,
		Steps:    100,
		Strategy: StrategyShared,
		Sink:     sink.NewMemory(),
		OpLog:    &bytes.Buffer{},
		spawn:    spawnWith(map[string]func(lane.Options, message.Envelope) (bool, error){"ch1": crashOnFirst}),
	})

	_, err := mustFinish(t, d)
	if !errors.Is(err, ErrLaneGone) {
		t.Fatalf("expected ErrLaneGone, got %v", err)
	}
}

// skipStamp answers Requests without stamping the request history.
func skipStamp(opt lane.Options, env message.Envelope) (bool, error) {
	switch e := env.(type) {
	case message.RequestEnvelope:
		opt.Outbox <- message.ResponseEnvelope{Message: e.Message}
	case message.HeartBeatEnvelope:
		opt.Outbox <- e
	case message.TerminateEnvelope:
		return true, nil
	}
	return false, nil
}

func TestIncompleteHistoryIsProtocolViolation(t *testing.T) {
	out := sink.NewMemory()
	d := New(Options{
		Lanes: 3,
		Steps: 9,
		Sink:  out,
		OpLog: &bytes.Buffer{},
		spawn: spawnWith(map[string]func(lane.Options, message.Envelope) (bool, error){"ch2": skipStamp}),
	})

	res, err := mustFinish(t, d)
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
	// Step 0 (ch1) succeeds, step 1 (ch2) is rejected.
	if res.Records != 1 || len(out.Lines()) != 1 {
		t.Fatalf("expected 1 record before violation, got %d", res.Records)
	}
}

// echoWrongStep replies to heartbeats with a stale step number.
func echoWrongStep(opt lane.Options, env message.Envelope) (bool, error) {
	switch e := env.(type) {
	case message.RequestEnvelope:
		e.Message.Stamp(message.Request, opt.ID+": OK")
		opt.Outbox <- message.ResponseEnvelope{Message: e.Message}
	case message.HeartBeatEnvelope:
		opt.Outbox <- message.HeartBeatEnvelope{Step: e.Step + 7}
	case message.TerminateEnvelope:
		return true, nil
	}
	return false, nil
}

func TestUnexpectedHeartBeatLeavesEchoesQueued(t *testing.T) {
	// ch1 breaks the protocol on step 1 while ch2 and ch3 echoes are still
	// unread; shutdown must drain them and join every lane.
	d := New(Options{
		Lanes:     3,
		Steps:     9,
		InboxSize: 1,
		Sink:      sink.NewMemory(),
		OpLog:     &bytes.Buffer{},
		spawn:     spawnWith(map[string]func(lane.Options, message.Envelope) (bool, error){"ch1": echoWrongStep}),
	})

	_, err := mustFinish(t, d)
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
}

func TestTerminateSentOncePerLane(t *testing.T) {
	counts := make(chan string, 16)
	countTerminate := func(opt lane.Options, env message.Envelope) (bool, error) {
		switch e := env.(type) {
		case message.RequestEnvelope:
			e.Message.Stamp(message.Request, opt.ID+": OK")
			opt.Outbox <- message.ResponseEnvelope{Message: e.Message}
		case message.HeartBeatEnvelope:
			opt.Outbox <- e
		case message.TerminateEnvelope:
			counts <- opt.ID
			// Keep consuming; a second Terminate would be counted too.
		}
		return false, nil
	}
	r := newRun(New(Options{
		Lanes: 2,
		Steps: 3,
		Sink:  sink.NewMemory(),
		OpLog: &bytes.Buffer{},
		spawn: spawnWith(map[string]func(lane.Options, message.Envelope) (bool, error){"ch1": countTerminate, "ch2": countTerminate}),
	}))
	r.startLanes(context.Background(), []string{"ch1", "ch2"})
	r.terminate()
	r.terminate()
	for i := range r.inboxes {
		close(r.inboxes[i])
	}
	r.strategy.drain()
	<-r.joined

	close(counts)
	seen := map[string]int{}
	for id := range counts {
		seen[id]++
	}
	if seen["ch1"] != 1 || seen["ch2"] != 1 {
		t.Fatalf("expected one Terminate per lane, got %v", seen)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	opt := Options{NotifyEvery: -1}
	opt.normalize()
	if opt.Lanes != DefaultLanes || opt.InboxSize != DefaultInboxSize || opt.Strategy != StrategyLockstep {
		t.Fatalf("unexpected defaults: %+v", opt)
	}
	if opt.NotifyEvery != 0 {
		t.Errorf("lockstep default notify cadence = %d, want 0", opt.NotifyEvery)
	}
	if opt.Collector == nil || opt.Logger == nil || opt.OpLog == nil || opt.RunID == "" {
		t.Error("normalize left a required dependency nil")
	}

	shared := Options{Strategy: StrategyShared, NotifyEvery: -1}
	shared.normalize()
	if shared.NotifyEvery != DefaultNotifyEvery {
		t.Errorf("shared default notify cadence = %d, want %d", shared.NotifyEvery, DefaultNotifyEvery)
	}

	off := Options{Strategy: StrategyShared}
	off.normalize()
	if off.NotifyEvery != 0 {
		t.Errorf("explicit 0 should disable notifications, got %d", off.NotifyEvery)
	}
}
