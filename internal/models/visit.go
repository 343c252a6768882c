package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventTypeVisit marks a plain pageview record, subject to daily dedup.
// Any other event type is recorded unconditionally.
const EventTypeVisit = "visit"

// redactPrefixLen is how many characters of a client address survive redaction.
const redactPrefixLen = 6

// Visit is one stored beacon: either a daily-deduplicated pageview or a
// discrete event (conversion, click, scroll, ...). Metadata is open-schema;
// clients can send arbitrary keys.
type Visit struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IP        string             `bson:"ip" json:"ip"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	// VisitDate is the UTC YYYY-MM-DD dedup key. Only set on visit records.
	VisitDate string `bson:"visitDate,omitempty" json:"visit_date,omitempty"`
	Site      string `bson:"site" json:"site"`
	Page      string `bson:"page" json:"page"`
	Referrer  string `bson:"referrer" json:"referrer"`
	EventType string `bson:"eventType" json:"event_type"`
	Metadata  bson.M `bson:"metadata" json:"metadata"`

	// Conversation fields, attached after the fact via /save_messages.
	Messages              []bson.M   `bson:"messages,omitempty" json:"messages,omitempty"`
	ConversationMeta      bson.M     `bson:"conversationMeta,omitempty" json:"conversation_meta,omitempty"`
	ConversationUpdatedAt *time.Time `bson:"conversationUpdatedAt,omitempty" json:"conversation_updated_at,omitempty"`
}

// Redacted returns a copy safe to expose on read endpoints: the raw client
// address is never returned.
func (v Visit) Redacted() Visit {
	v.IP = RedactIP(v.IP)
	return v
}

// TrackRequest is the /track beacon body. All fields are optional; Normalize
// fills the defaults.
type TrackRequest struct {
	Site      string                 `json:"site"`
	Page      string                 `json:"page"`
	Referrer  string                 `json:"referrer"`
	EventType string                 `json:"event_type"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Normalize applies the documented defaults for absent fields.
func (r *TrackRequest) Normalize() {
	if r.Site == "" {
		r.Site = "unknown"
	}
	if r.Page == "" {
		r.Page = "/"
	}
	if r.Referrer == "" {
		r.Referrer = "direct"
	}
	if r.EventType == "" {
		r.EventType = EventTypeVisit
	}
	if r.Metadata == nil {
		r.Metadata = map[string]interface{}{}
	}
}

// TrackResponse reports the outcome of one beacon. Unique means "a new record
// was created by this call", not global uniqueness.
type TrackResponse struct {
	Tracked   bool   `json:"tracked"`
	Unique    bool   `json:"unique"`
	Total     int64  `json:"total"`
	SessionID string `json:"session_id,omitempty"`
}

// SaveMessagesRequest attaches a conversation transcript to an existing record
// by its identifier. The identifier acts as the capability; there is no auth.
type SaveMessagesRequest struct {
	SessionID string                 `json:"session_id"`
	Messages  []bson.M               `json:"messages"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// CalendarDate renders the UTC calendar day used as the dedup key.
// Lexicographic order on the result matches chronological order.
func CalendarDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// RedactIP truncates a client address to a fixed prefix plus an ellipsis
// marker. The full address never leaves the server on a read path.
func RedactIP(ip string) string {
	if len(ip) > redactPrefixLen {
		ip = ip[:redactPrefixLen]
	}
	return ip + "..."
}
