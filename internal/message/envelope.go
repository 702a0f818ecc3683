package message

// Kind identifies an Envelope variant.
type Kind string

const (
	KindRequest   Kind = "request"
	KindResponse  Kind = "response"
	KindTerminate Kind = "terminate"
	KindHeartBeat Kind = "heartbeat"
	KindNotify    Kind = "notify"
)

// Envelope is the value carried on every lane channel. The variant set is
// closed: only the types in this file implement it.
type Envelope interface {
	Kind() Kind
	envelope()
}

// RequestEnvelope carries work from the dispatcher to a lane.
type RequestEnvelope struct {
	Message *Message
}

// ResponseEnvelope carries completed work from a lane back to the dispatcher.
type ResponseEnvelope struct {
	Message *Message
}

// TerminateEnvelope tells a lane to stop. It is sent once per lane, last.
type TerminateEnvelope struct{}

// HeartBeatEnvelope probes an idle lane; the lane echoes it unchanged.
type HeartBeatEnvelope struct {
	Step uint64
}

// NotifyEnvelope is informational text destined for the operational log.
type NotifyEnvelope struct {
	Text string
}

func (RequestEnvelope) Kind() Kind   { return KindRequest }
func (ResponseEnvelope) Kind() Kind  { return KindResponse }
func (TerminateEnvelope) Kind() Kind { return KindTerminate }
func (HeartBeatEnvelope) Kind() Kind { return KindHeartBeat }
func (NotifyEnvelope) Kind() Kind    { return KindNotify }

func (RequestEnvelope) envelope()   {}
func (ResponseEnvelope) envelope()  {}
func (TerminateEnvelope) envelope() {}
func (HeartBeatEnvelope) envelope() {}
func (NotifyEnvelope) envelope()    {}
