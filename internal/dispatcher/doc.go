// Package dispatcher drives a fixed pool of worker lanes through a numbered
// sequence of steps and writes one record per step to a sink.
//
// Every step creates a [message.Message], sends it as a Request to lane
// step mod Lanes, collects the lane's Response, stamps the dispatcher's half
// of the history and appends the rendered record to the [Sink]:
//
//	d := dispatcher.New(dispatcher.Options{
//		Lanes: 3,
//		Steps: 600_000,
//		Sink:  fileSink,
//	})
//	res, err := d.Run(ctx)
//
// # Strategies
//
// [StrategyLockstep] (the default) gives each lane a dedicated outbound
// channel. Idle lanes receive a HeartBeat on every step and the dispatcher
// reads one reply from every lane in lane order, so records reach the sink in
// step order.
//
// [StrategyShared] funnels all lanes into a single outbound channel and sends
// no heartbeats. Instead the target lane receives a Notify every
// [DefaultNotifyEvery] steps, which it forwards with its id as a prefix.
//
// Notify text never reaches the sink; it is written to Options.OpLog.
//
// # Shutdown
//
// Run sends Terminate once to every live lane, flushes the sink, drains the
// outbound channels and joins the lane goroutines on every exit path:
// completion, a failed lane ([ErrLaneGone]), a broken protocol
// ([ErrProtocolViolation]), a sink error or a cancelled context.
package dispatcher
