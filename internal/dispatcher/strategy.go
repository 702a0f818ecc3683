package dispatcher

import (
	"fmt"

	"github.com/torosent/lanebench/internal/message"
)

// collection is the per-strategy half of a step: fan work out, fan the
// response back in, and drain leftovers after Terminate.
type collection interface {
	dispatchStep(step uint64, target int, msg *message.Message) error
	collectStep(step uint64, target int) (*message.Message, error)
	drain()
}

// lockstep sends a Request to the target lane and a HeartBeat to every other
// lane, then reads exactly one reply from each lane's outbound channel in lane
// order.
type lockstep struct {
	r *run
}

func (s *lockstep) dispatchStep(step uint64, target int, msg *message.Message) error {
	for i := range s.r.inboxes {
		if i != target {
			if err := s.r.send(i, step, message.HeartBeatEnvelope{Step: step}); err != nil {
				return err
			}
			continue
		}
		if err := s.r.send(i, step, message.RequestEnvelope{Message: msg}); err != nil {
			return err
		}
		if s.r.notifyDue(step) {
			if err := s.r.send(i, step, message.NotifyEnvelope{Text: notifyText(step)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *lockstep) collectStep(step uint64, target int) (*message.Message, error) {
	var got *message.Message
	for i := range s.r.outboxes {
		msg, err := s.await(i, step, target)
		if err != nil {
			return nil, err
		}
		if i == target {
			got = msg
		}
	}
	return got, nil
}

// await reads lane i's outbound channel until it yields the reply for step.
func (s *lockstep) await(i int, step uint64, target int) (*message.Message, error) {
	for {
		env, ok := <-s.r.outboxes[i]
		if !ok {
			return nil, s.r.laneGone(i, step)
		}
		switch e := env.(type) {
		case message.NotifyEnvelope:
			s.r.notify(e.Text)
		case message.HeartBeatEnvelope:
			if i == target || e.Step != step {
				return nil, s.r.violation(step, i, fmt.Sprintf("unexpected heartbeat %d", e.Step))
			}
			s.r.heartbeat(i)
			return nil, nil
		case message.ResponseEnvelope:
			if i != target || e.Message == nil || e.Message.Identifier != step {
				return nil, s.r.violation(step, i, "unexpected response")
			}
			return e.Message, nil
		default:
			return nil, s.r.violation(step, i, fmt.Sprintf("unexpected %s envelope", env.Kind()))
		}
	}
}

func (s *lockstep) drain() {
	for _, out := range s.r.outboxes {
		for env := range out {
			s.r.discard(env)
		}
	}
}

// shared sends only the Request (plus the periodic Notify) and reads the single
// outbound channel every lane writes to.
type shared struct {
	r *run
	// pending holds a Response read early while a send was blocked.
	pending *message.Message
}

func (s *shared) dispatchStep(step uint64, target int, msg *message.Message) error {
	if err := s.send(target, step, message.RequestEnvelope{Message: msg}); err != nil {
		return err
	}
	if s.r.notifyDue(step) {
		return s.send(target, step, message.NotifyEnvelope{Text: notifyText(step)})
	}
	return nil
}

// send delivers env to lane i while still reading the shared outbound channel.
// A lane blocked on a full outbox cannot empty its inbox, so the dispatcher
// must keep consuming while it waits for inbox space.
func (s *shared) send(i int, step uint64, env message.Envelope) error {
	out := s.r.outboxes[0]
	for {
		select {
		case s.r.inboxes[i] <- env:
			return nil
		case <-s.r.done[i]:
			return s.r.laneGone(i, step)
		case got, ok := <-out:
			if !ok {
				return s.r.laneGone(i, step)
			}
			if err := s.accept(step, i, got); err != nil {
				return err
			}
		}
	}
}

// accept handles an envelope read during send: Notify is logged and the
// Response for step is held for collectStep.
func (s *shared) accept(step uint64, target int, env message.Envelope) error {
	switch e := env.(type) {
	case message.NotifyEnvelope:
		s.r.notify(e.Text)
		return nil
	case message.ResponseEnvelope:
		if s.pending != nil || e.Message == nil || e.Message.Identifier != step {
			return s.r.violation(step, target, "unexpected response")
		}
		s.pending = e.Message
		return nil
	default:
		return s.r.violation(step, target, fmt.Sprintf("unexpected %s envelope", env.Kind()))
	}
}

func (s *shared) collectStep(step uint64, target int) (*message.Message, error) {
	if msg := s.pending; msg != nil {
		s.pending = nil
		return msg, nil
	}
	out := s.r.outboxes[0]
	for {
		select {
		case env, ok := <-out:
			if !ok {
				return nil, s.r.laneGone(target, step)
			}
			switch e := env.(type) {
			case message.NotifyEnvelope:
				s.r.notify(e.Text)
			case message.ResponseEnvelope:
				if e.Message == nil || e.Message.Identifier != step {
					return nil, s.r.violation(step, target, "unexpected response")
				}
				return e.Message, nil
			default:
				return nil, s.r.violation(step, target, fmt.Sprintf("unexpected %s envelope", env.Kind()))
			}
		case i := <-s.r.exited:
			return nil, s.r.laneGone(i, step)
		}
	}
}

func (s *shared) drain() {
	for env := range s.r.outboxes[0] {
		s.r.discard(env)
	}
}
