package messpass

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/messpass/internal/audit"
)

type (
	AuditEvent     = audit.Event
	AuditSink      = audit.Sink
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	LogSink        = audit.LogSink
)

// Audit event types.
const (
	AuditSignIn         = "auth.sign_in"
	AuditSignOut        = "auth.sign_out"
	AuditSignUp         = "auth.sign_up"
	AuditSessionChanged = "auth.user_changed"
	AuditStoreReady     = "store.ready"
	AuditStoreError     = "store.error"
	AuditStoreStale     = "store.stale"
	AuditActionFailed   = "store.action_failed"
	AuditGuardRedirect  = "guard.redirect"
	AuditBackendOffline = "backend.offline"
	AuditBackendOnline  = "backend.online"
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewLogSink(log logrus.FieldLogger) *LogSink {
	return audit.NewLogSink(log)
}
