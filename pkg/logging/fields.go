package logging

import "log/slog"

// Domain identifiers

func Ticket(id string) slog.Attr {
	return slog.String("ticket_id", id)
}

func Tenant(appKey string) slog.Attr {
	return slog.String("app_key", appKey)
}

func Participant(id string) slog.Attr {
	return slog.String("participant_id", id)
}

func Conn(id string) slog.Attr {
	return slog.String("conn_id", id)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

func SpanID(id string) slog.Attr {
	return slog.String("span_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
