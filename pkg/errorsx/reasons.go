package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonRoutingSetup    ReasonCode = "routing_setup"
	ReasonRoutingRestore  ReasonCode = "routing_restore"
	ReasonRoutingNotReady ReasonCode = "routing_not_ready"

	ReasonDial       ReasonCode = "dial"
	ReasonAnswer     ReasonCode = "answer"
	ReasonHangup     ReasonCode = "hangup"
	ReasonDriverPoll ReasonCode = "driver_poll"

	ReasonCapture        ReasonCode = "capture"
	ReasonTranscribe     ReasonCode = "transcribe"
	ReasonSynthesize     ReasonCode = "synthesize"
	ReasonPlayback       ReasonCode = "playback"
	ReasonSTTRateLimit   ReasonCode = "stt_rate_limit"
	ReasonTTSRateLimit   ReasonCode = "tts_rate_limit"
	ReasonSTTCircuitOpen ReasonCode = "stt_circuit_open"

	ReasonCallActive ReasonCode = "call_active"
	ReasonRespond    ReasonCode = "respond"
)
