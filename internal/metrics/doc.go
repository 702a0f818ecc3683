// Package metrics collects step-level metrics for a lanebench run.
//
// The central [Collector] is fed by the dispatcher goroutine and read
// concurrently by the progress reporter, the dashboard and the final report:
//
//	collector := metrics.NewCollector()
//	collector.Plan([]string{"ch1", "ch2", "ch3"}, 600_000)
//	collector.Start()
//
//	collector.RecordStep(lane, roundTrip)
//	collector.RecordHeartBeat(lane)
//
//	stats := collector.Stats(elapsed)
//
// # Latency
//
// A step's latency is the round trip from sending its Request to collecting
// its Response, including heartbeat echoes gathered from idle lanes in the
// lock-step strategy. Percentiles come from an HDR histogram with microsecond
// resolution.
//
// # Time-Series Data
//
// [Collector.Snapshot] appends a [DataPoint]; [Collector.SampleEvery] does so on
// a ticker. [Collector.History] feeds the dashboard sparkline and the HTML report.
package metrics
