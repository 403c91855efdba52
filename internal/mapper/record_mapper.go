package mapper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anchorline.app/resolver/internal/model"
)

// CanonicalRecord is the normalized ingest shape extracted from a raw source
// payload. It carries only what the acquisition side knows; ids, short ids
// and resolution status are assigned downstream.
type CanonicalRecord struct {
	SenderAddress string
	SenderName    *string
	Subject       string
	Body          string
	SourceKind    model.SourceKind
	OccurredAt    time.Time
}

type RecordMapper interface {
	Map(ctx context.Context, payload map[string]any) (*CanonicalRecord, error)
}

// PayloadRecordMapper normalizes loosely-shaped record exports. Mail gateways
// and transcription services disagree on field names ("from" vs "sender",
// "text" vs "body"), so it tries each known alias in order. The admin API
// stays strict; this exists for tooling fed with whatever a collaborator
// produced.
type PayloadRecordMapper struct{}

func NewPayloadRecordMapper() *PayloadRecordMapper {
	return &PayloadRecordMapper{}
}

func (m *PayloadRecordMapper) Map(ctx context.Context, payload map[string]any) (*CanonicalRecord, error) {
	sender := firstString(payload, "sender_address", "sender", "from", "from_address", "speaker_email")
	if sender == "" {
		return nil, fmt.Errorf("payload has no sender address")
	}

	subject := firstString(payload, "subject", "title", "topic")
	body := firstString(payload, "body", "text", "content", "body_plain", "transcript")
	if subject == "" && body == "" {
		return nil, fmt.Errorf("payload has no subject or body")
	}

	sourceKind, err := m.mapSourceKind(payload)
	if err != nil {
		return nil, err
	}

	occurredAt, err := parseTimestamp(payload, "occurred_at", "timestamp", "date", "recorded_at")
	if err != nil {
		return nil, err
	}

	rec := &CanonicalRecord{
		SenderAddress: sender,
		Subject:       subject,
		Body:          body,
		SourceKind:    sourceKind,
		OccurredAt:    occurredAt,
	}
	if name := firstString(payload, "sender_name", "from_name", "speaker", "display_name"); name != "" {
		rec.SenderName = &name
	}
	return rec, nil
}

func (m *PayloadRecordMapper) mapSourceKind(payload map[string]any) (model.SourceKind, error) {
	raw := firstString(payload, "source_kind", "kind", "type")
	switch strings.ToLower(raw) {
	case "correspondence", "email", "mail", "message":
		return model.SourceKindCorrespondence, nil
	case "transcript", "meeting_transcript", "meeting", "call", "recording":
		return model.SourceKindTranscript, nil
	case "":
		// No explicit kind: a payload whose content came under "transcript"
		// is a transcript, everything else defaults to correspondence.
		if firstString(payload, "transcript") != "" {
			return model.SourceKindTranscript, nil
		}
		return model.SourceKindCorrespondence, nil
	}
	return "", fmt.Errorf("unknown source kind %q", raw)
}

// firstString returns the first non-empty string value among the given keys,
// trimmed.
func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key]; ok {
			if s, ok := v.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// parseTimestamp accepts RFC 3339 strings or unix-second numbers under any of
// the given keys. A missing timestamp maps to the zero time; callers decide
// the default.
func parseTimestamp(payload map[string]any, keys ...string) (time.Time, error) {
	for _, key := range keys {
		v, ok := payload[key]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if t = strings.TrimSpace(t); t == "" {
				continue
			}
			parsed, err := time.Parse(time.RFC3339, t)
			if err != nil {
				return time.Time{}, fmt.Errorf("unparsable timestamp %q in %q", t, key)
			}
			return parsed, nil
		case float64:
			return time.Unix(int64(t), 0).UTC(), nil
		}
	}
	return time.Time{}, nil
}
