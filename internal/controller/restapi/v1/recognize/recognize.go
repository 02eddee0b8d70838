// Package recognize classifies inbound webhook calls. Classification is an
// explicit ordered chain of strategies — first match wins — so precedence is
// testable in isolation instead of buried in handler conditionals.
package recognize

import (
	"encoding/json"
	"mime"
	"net/url"
	"strings"
)

// Header names consulted by the chain.
const (
	HeaderSource        = "X-Webhook-Source"
	HeaderEvent         = "X-Webhook-Event"
	HeaderHotmartHottok = "X-Hotmart-Hottok"
)

// Input is the subset of the request the chain inspects.
type Input struct {
	Header func(key string) string
	Body   []byte
}

// Recognizer declares whether it can classify a request and what source and
// event it implies.
type Recognizer interface {
	Recognize(in Input) (source, event string, ok bool)
}

// Chain runs recognizers in order and returns the first match. An
// unrecognized request still gets a classification — "unknown"/"unknown" —
// so it can be queued and settled as unroutable by the worker instead of
// silently discarded at the edge.
type Chain struct {
	recognizers []Recognizer
}

func NewChain(recognizers ...Recognizer) *Chain {
	return &Chain{recognizers: recognizers}
}

// Default is the production precedence: explicit headers beat provider
// signatures beat payload-shape heuristics.
func Default() *Chain {
	return NewChain(
		ExplicitHeader{},
		HotmartSignature{},
		PayloadShape{},
	)
}

func (c *Chain) Classify(in Input) (source, event string) {
	for _, r := range c.recognizers {
		if s, e, ok := r.Recognize(in); ok {
			return s, e
		}
	}

	return "unknown", "unknown"
}

// ExplicitHeader recognizes requests that self-identify via the custom
// source header; the event comes from the event header or the payload.
type ExplicitHeader struct{}

func (ExplicitHeader) Recognize(in Input) (string, string, bool) {
	source := in.Header(HeaderSource)
	if source == "" {
		return "", "", false
	}

	event := canonicalEvent(in.Header(HeaderEvent))
	if event == "" {
		event = eventFromPayload(in.Body)
	}

	return strings.ToLower(source), event, true
}

// HotmartSignature recognizes the payment provider by its signature header.
type HotmartSignature struct{}

func (HotmartSignature) Recognize(in Input) (string, string, bool) {
	if in.Header(HeaderHotmartHottok) == "" {
		return "", "", false
	}

	return "hotmart", eventFromPayload(in.Body), true
}

// PayloadShape is the last-resort heuristic over the body's structure.
type PayloadShape struct{}

func (PayloadShape) Recognize(in Input) (string, string, bool) {
	var probe struct {
		Event string `json:"event"`
		Data  struct {
			Buyer   json.RawMessage `json:"buyer"`
			Product json.RawMessage `json:"product"`
		} `json:"data"`
		MessageID string `json:"message_id"`
		Status    string `json:"status"`
		Slug      string `json:"slug"`
	}

	if err := json.Unmarshal(in.Body, &probe); err != nil {
		return "", "", false
	}

	switch {
	case probe.Data.Buyer != nil || probe.Data.Product != nil:
		return "hotmart", eventFromPayload(in.Body), true
	case probe.MessageID != "":
		return "messaging", "message.status", true
	case probe.Slug != "":
		return "cms", "content.updated", true
	}

	return "", "", false
}

// eventFromPayload pulls the producer-defined event name from the "event" or
// "action" field and canonicalizes it. Hotmart ships PURCHASE_APPROVED while
// routes are registered as purchase.approved, so the name is lowercased and
// underscores become dots.
func eventFromPayload(body []byte) string {
	var probe struct {
		Event  string `json:"event"`
		Action string `json:"action"`
	}

	if err := json.Unmarshal(body, &probe); err != nil {
		return "unknown"
	}

	if probe.Event != "" {
		return canonicalEvent(probe.Event)
	}
	if probe.Action != "" {
		return canonicalEvent(probe.Action)
	}

	return "unknown"
}

func canonicalEvent(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", ".")
}

// NormalizeBody turns any accepted content type into a JSON payload object:
// JSON passes through, form-encoded bodies become an object, and anything
// else is best-effort parsed as JSON with a raw-wrapper fallback.
func NormalizeBody(contentType string, body []byte) json.RawMessage {
	mediaType := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}

	switch mediaType {
	case "application/json":
		if json.Valid(body) {
			return json.RawMessage(body)
		}
	case "application/x-www-form-urlencoded":
		if values, err := url.ParseQuery(string(body)); err == nil {
			obj := make(map[string]string, len(values))
			for k := range values {
				obj[k] = values.Get(k)
			}
			if b, err := json.Marshal(obj); err == nil {
				return b
			}
		}
	default:
		if json.Valid(body) {
			return json.RawMessage(body)
		}
	}

	wrapped, _ := json.Marshal(map[string]string{"raw": string(body)})

	return wrapped
}
