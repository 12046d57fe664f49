package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	// Set output format
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	// Set output destination
	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithFields creates a new logger entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithField creates a new logger entry with a single field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithError creates a new logger entry with an error field
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// WithLab creates a new logger entry with laboratory ID field
func (l *Logger) WithLab(labID string) *logrus.Entry {
	return l.Logger.WithField("laboratory_id", labID)
}

// WithProposal creates a new logger entry with proposal ID field
func (l *Logger) WithProposal(proposalID string) *logrus.Entry {
	return l.Logger.WithField("proposal_id", proposalID)
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// Audit logs audit events with structured format
func (l *Logger) Audit(userID, action, resource string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":    true,
		"user_id":  userID,
		"action":   action,
		"resource": resource,
		"success":  success,
		"details":  details,
	})

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}

// StateTransition logs lifecycle state changes
func (l *Logger) StateTransition(labID string, from, to int, trigger string) {
	l.Logger.WithFields(logrus.Fields{
		"laboratory_id": labID,
		"from_state":    from,
		"to_state":      to,
		"trigger":       trigger,
	}).Info("Laboratory state transition")
}

// Notification logs notification dispatch outcomes; delivery failures
// stop here and are never propagated to callers.
func (l *Logger) Notification(to, subject string, err error) {
	entry := l.Logger.WithFields(logrus.Fields{
		"notification": true,
		"to":           to,
		"subject":      subject,
	})

	if err != nil {
		entry.WithError(err).Warn("Notification delivery failed")
	} else {
		entry.Info("Notification sent")
	}
}
