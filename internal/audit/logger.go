package audit

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Target    string    `json:"target,omitempty"` // challenge or session id
	Details   string    `json:"details,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Sink receives audit events. Implementations must not block the caller for long
// and never fail it.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// ZerologSink writes each event as a raw JSON field on its own logger.
type ZerologSink struct {
	logger  zerolog.Logger
	service string
}

// NewZerologSink creates a sink writing to w.
func NewZerologSink(w io.Writer, service string) *ZerologSink {
	return &ZerologSink{
		logger:  zerolog.New(w).With().Timestamp().Logger(),
		service: service,
	}
}

// Record implements Sink.
func (s *ZerologSink) Record(_ context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if event.Service == "" {
		event.Service = s.service
	}

	entry, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal audit event to JSON")

		return
	}

	s.logger.Log().RawJSON("audit_event", entry).Msg("")
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// Failure fills Error from err when set.
func (e Event) Failure(err error) Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}

	return e
}

var (
	_ Sink = (*ZerologSink)(nil)
	_ Sink = Nop{}
)
