package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	TopicInbound    = "send.notification"
	TopicEnriched   = "enriched_notifications"
	TopicDeadLetter = "failed_notifications"
)

const (
	RuleKeyPrefix = "rule:"

	RuleValidation     = "validationRule"
	RuleEnrichment     = "enrichmentRule"
	RuleTransformation = "transformationRule"
	RuleRouting        = "routingRule"
)

// EnrichmentField is the event key the enrichment stage writes its
// computed value under.
const EnrichmentField = "enrichedEmail"

const (
	NotificationIndex = "notifications"
)

const (
	NotificationTypeEmail = "email"
	NotificationTypeSMS   = "sms"

	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

const (
	// DefaultSearchWindow bounds unpaginated searches, matching the
	// index's own from+size ceiling.
	DefaultSearchWindow = 10000

	DefaultSortField = "timestamp"
)

const (
	ShutdownTimeout = 5 * time.Second
)
