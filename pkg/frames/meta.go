package frames

// Meta keys shared across transports, providers and the session engine.
const (
	MetaStreamID      = "stream_id"
	MetaCallSID       = "call_sid"
	MetaTraceID       = "trace_id"
	MetaSource        = "source"
	MetaReason        = "reason"
	MetaIsFinal       = "is_final"
	MetaEncoding      = "encoding"
	MetaSampleRate    = "sample_rate"
	MetaChannels      = "channels"
	MetaFromNumber    = "from_number"
	MetaAgentID       = "agent_id"
	MetaUserID        = "user_id"
	MetaMarkName      = "mark_name"
	MetaCallEndReason = "call_end_reason"
)

// System frame names emitted by transports.
const (
	SystemCallStart = "call_start"
	SystemCallEnd   = "call_end"
)
