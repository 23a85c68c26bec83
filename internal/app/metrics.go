package app

// Counter and timer names reported through ports.Metrics.
const (
	MetricQueued       = "sms_queued_total"
	MetricQueueFailed  = "sms_queue_failed_total"
	MetricSent         = "sms_sent_total"
	MetricFailed       = "sms_failed_total"
	MetricExpired      = "sms_expired_total"
	MetricSendDuration = "sms_send_duration"

	MetricProcessingSuccess  = "sms_processing_success_total"
	MetricProcessingFailure  = "sms_processing_failure_total"
	MetricProcessingError    = "sms_processing_error_total"
	MetricDecodeFailed       = "sms_envelope_decode_failed_total"
	MetricCallbackSuccess    = "callback_success_total"
	MetricCallbackFailure    = "callback_failure_total"
	MetricCallbackDuration   = "sms_callback_duration"
	MetricProcessingDuration = "sms_processing_duration"
)
