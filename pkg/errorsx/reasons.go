package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonRealtimeConnect  ReasonCode = "realtime_connect"
	ReasonRealtimeSend     ReasonCode = "realtime_send"
	ReasonRealtimeProtocol ReasonCode = "realtime_protocol"

	ReasonTelephonyProtocol ReasonCode = "telephony_protocol"
	ReasonTransportSend     ReasonCode = "transport_send"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"

	ReasonCodecFrame ReasonCode = "codec_frame"

	ReasonExtractionGenerate ReasonCode = "extraction_generate"
	ReasonExtractionParse    ReasonCode = "extraction_parse"

	ReasonStorageWrite ReasonCode = "storage_write"
	ReasonStorageRead  ReasonCode = "storage_read"
)
