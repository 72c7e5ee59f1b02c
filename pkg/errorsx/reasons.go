package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Session creation / registry contract.
	ReasonConfigMissing    ReasonCode = "config_missing"
	ReasonSessionDuplicate ReasonCode = "session_duplicate"
	ReasonSessionNotFound  ReasonCode = "session_not_found"
	ReasonSessionDraining  ReasonCode = "session_draining"

	// Recognition stream.
	ReasonSTTConnect ReasonCode = "stt_connect"
	ReasonSTTSend    ReasonCode = "stt_send"
	ReasonSTTStream  ReasonCode = "stt_stream"
	ReasonSTTRetry   ReasonCode = "stt_retry"

	// Reply generation and synthesis.
	ReasonLLMGenerate   ReasonCode = "llm_generate"
	ReasonTTSSynthesize ReasonCode = "tts_synthesize"
	ReasonTTSRateLimit  ReasonCode = "tts_rate_limit"

	// Codec pipeline.
	ReasonCodecDetect    ReasonCode = "codec_detect"
	ReasonCodecEncode    ReasonCode = "codec_encode"
	ReasonCodecTranscode ReasonCode = "codec_transcode"

	// Transport.
	ReasonTransportSend             ReasonCode = "transport_send"
	ReasonTransportClosed           ReasonCode = "transport_closed"
	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
)
