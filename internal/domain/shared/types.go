package shared

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// DLQReason labels why a feed message was parked on the dead letter topic
type DLQReason string

const (
	DLQReasonUnmarshalFailed DLQReason = "UNMARSHAL_FAILED"
	DLQReasonRejected        DLQReason = "REJECTED"
)
