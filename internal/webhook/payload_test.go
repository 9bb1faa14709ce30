package webhook

import (
	"encoding/json"
	"testing"

	"instarelay/internal/domain"
)

func decodePayload(t *testing.T, body string) *Payload {
	t.Helper()
	var p Payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("test payload does not decode: %v", err)
	}
	return &p
}

func TestClassify_NewMessage(t *testing.T) {
	p := decodePayload(t, `{"entry":[{"messaging":[{"sender":{"id":"s1"},"message":{"mid":"m1","text":"hello"}}]}]}`)
	msg, err := Classify(p)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != domain.EventNewMessage {
		t.Fatalf("expected new_message, got %s", msg.Kind)
	}
	if msg.ID != "m1" || msg.SenderID != "s1" || msg.Text != "hello" {
		t.Errorf("fields lost: %+v", msg)
	}
}

func TestClassify_EmptyPayload(t *testing.T) {
	cases := []string{
		`{}`,
		`{"entry":[]}`,
		`{"entry":[{"messaging":[]}]}`,
		`{"entry":[{"messaging":[{"sender":{"id":"s1"}}]}]}`, // no message object
	}
	for _, body := range cases {
		msg, err := Classify(decodePayload(t, body))
		if err != nil {
			t.Errorf("%s: unexpected error %v", body, err)
			continue
		}
		if msg.Kind != domain.EventUnrecognized {
			t.Errorf("%s: expected unrecognized, got %s", body, msg.Kind)
		}
	}
}

func TestClassify_ReadReceipt(t *testing.T) {
	p := decodePayload(t, `{"entry":[{"messaging":[{"sender":{"id":"s1"},"message":{"read":{"watermark":123}}}]}]}`)
	msg, err := Classify(p)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != domain.EventReadReceipt {
		t.Errorf("expected read_receipt, got %s", msg.Kind)
	}
}

func TestClassify_ReadWinsOverDeleted(t *testing.T) {
	// Order matters: a read marker short-circuits later predicates.
	p := decodePayload(t, `{"entry":[{"messaging":[{"sender":{"id":"s1"},"message":{"mid":"m1","read":{},"is_deleted":true}}]}]}`)
	msg, err := Classify(p)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != domain.EventReadReceipt {
		t.Errorf("expected read_receipt, got %s", msg.Kind)
	}
}

func TestClassify_Retraction(t *testing.T) {
	p := decodePayload(t, `{"entry":[{"messaging":[{"sender":{"id":"s1"},"message":{"mid":"m1","is_deleted":true}}]}]}`)
	msg, err := Classify(p)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != domain.EventRetraction {
		t.Fatalf("expected retraction, got %s", msg.Kind)
	}
	if msg.ID != "m1" || msg.SenderID != "s1" {
		t.Errorf("fields lost: %+v", msg)
	}
}

func TestClassify_RetractionWinsOverEcho(t *testing.T) {
	p := decodePayload(t, `{"entry":[{"messaging":[{"sender":{"id":"s1"},"message":{"mid":"m1","is_deleted":true,"is_echo":true}}]}]}`)
	msg, err := Classify(p)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != domain.EventRetraction {
		t.Errorf("expected retraction, got %s", msg.Kind)
	}
}

func TestClassify_Echo(t *testing.T) {
	p := decodePayload(t, `{"entry":[{"messaging":[{"sender":{"id":"s1"},"message":{"mid":"m1","text":"hi","is_echo":true}}]}]}`)
	msg, err := Classify(p)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != domain.EventEcho {
		t.Errorf("expected echo, got %s", msg.Kind)
	}
}

func TestClassify_MissingMid(t *testing.T) {
	p := decodePayload(t, `{"entry":[{"messaging":[{"sender":{"id":"s1"},"message":{"text":"hello"}}]}]}`)
	if _, err := Classify(p); err == nil {
		t.Error("expected error for message without mid")
	}
}

func TestClassify_MissingSender(t *testing.T) {
	p := decodePayload(t, `{"entry":[{"messaging":[{"message":{"mid":"m1","text":"hello"}}]}]}`)
	if _, err := Classify(p); err == nil {
		t.Error("expected error for message without sender")
	}

	p = decodePayload(t, `{"entry":[{"messaging":[{"message":{"mid":"m1","is_deleted":true}}]}]}`)
	if _, err := Classify(p); err == nil {
		t.Error("expected error for retraction without sender")
	}
}
