// Package message defines the work item and the control envelopes exchanged
// between the dispatcher and its worker lanes.
//
// A [Message] carries an identifier equal to the dispatch step and a
// provenance history keyed by [HistoryKind]. Envelopes form a closed set:
//
//	switch env := e.(type) {
//	case message.RequestEnvelope:
//	case message.ResponseEnvelope:
//	case message.TerminateEnvelope:
//	case message.HeartBeatEnvelope:
//	case message.NotifyEnvelope:
//	default:
//		// unreachable unless the variant set changes
//	}
//
// Completed messages are rendered to sink records with [Render].
package message
