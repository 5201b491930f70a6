package staffauth

import (
	"context"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/staffauth/internal/audit"
	internalmetrics "github.com/MrEthical07/staffauth/internal/metrics"
)

// Identity is a resolved staff member.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Staff    bool   `json:"staff"`
}

// Credential is one signed token and its lifetime in whole seconds.
type Credential struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// CredentialPair is the result of Issue, Login and Rotate.
type CredentialPair struct {
	Access  Credential `json:"access"`
	Refresh Credential `json:"refresh"`
}

// RefreshEntry is a refresh record as exposed by RefreshChain. The token
// value itself is never returned.
type RefreshEntry struct {
	ID        string `json:"id"`
	Revoked   bool   `json:"revoked"`
	CreatedAt int64  `json:"created_at"`
}

// UserDirectory resolves staff identities.
//
// LookupIdentity must return an error wrapping ErrIdentityNotFound when id no
// longer exists; any other error is treated as a backend outage.
// VerifyPassword must return an error wrapping ErrInvalidLogin for unknown
// usernames and wrong passwords alike.
type UserDirectory interface {
	LookupIdentity(ctx context.Context, id string) (Identity, error)
	VerifyPassword(ctx context.Context, username, password string) (Identity, error)
}

// AuditEvent is the structured record passed to an AuditSink.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events to an in-process channel.
type ChannelSink = internalaudit.ChannelSink

// ZapSink writes audit events as structured log lines.
type ZapSink = internalaudit.ZapSink

// KafkaSink publishes audit events to a Kafka topic.
type KafkaSink = internalaudit.KafkaSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewZapSink(l *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(l)
}

// NewKafkaSink returns a sink writing to topic on brokers. The engine closes
// it on Close.
func NewKafkaSink(brokers []string, topic string, l *zap.Logger) *KafkaSink {
	return internalaudit.NewKafkaSink(internalaudit.NewKafkaWriter(brokers, topic), topic, l)
}

// MetricID identifies one engine counter or histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricIssueSuccess         = MetricID(internalmetrics.MetricIssueSuccess)
	MetricIssueFailure         = MetricID(internalmetrics.MetricIssueFailure)
	MetricLoginSuccess         = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure         = MetricID(internalmetrics.MetricLoginFailure)
	MetricStaffRejected        = MetricID(internalmetrics.MetricStaffRejected)
	MetricRefreshSuccess       = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure       = MetricID(internalmetrics.MetricRefreshFailure)
	MetricRefreshReuseDetected = MetricID(internalmetrics.MetricRefreshReuseDetected)
	MetricRefreshWrongType     = MetricID(internalmetrics.MetricRefreshWrongType)
	MetricRefreshExpired       = MetricID(internalmetrics.MetricRefreshExpired)
	MetricAccessAdmitted       = MetricID(internalmetrics.MetricAccessAdmitted)
	MetricAccessRejected       = MetricID(internalmetrics.MetricAccessRejected)
	MetricAccessExpired        = MetricID(internalmetrics.MetricAccessExpired)
	MetricLogoutAll            = MetricID(internalmetrics.MetricLogoutAll)
	MetricStorageError         = MetricID(internalmetrics.MetricStorageError)
	MetricAuthenticateLatency  = MetricID(internalmetrics.MetricAuthenticateLatency)
	MetricRotateLatency        = MetricID(internalmetrics.MetricRotateLatency)
)

// MetricsSnapshot is a point-in-time copy of the engine's metrics.
type MetricsSnapshot = internalmetrics.Snapshot
