package decode

import "testing"

type herePayload struct {
	ConversationID string `json:"conversationId"`
	Status         string `json:"status"`
	Seq            int64  `json:"seq"`
}

func TestDecodeMapJSONTagsAndNumbers(t *testing.T) {
	// encoding/json hands every number over as float64
	m := map[string]any{
		"conversationId": "c1",
		"status":         "away",
		"seq":            float64(42),
	}
	p, err := DecodeMap[herePayload](m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ConversationID != "c1" || p.Status != "away" || p.Seq != 42 {
		t.Fatalf("payload: %+v", p)
	}
}

func TestDecodeMapNil(t *testing.T) {
	if _, err := DecodeMap[herePayload](nil); err == nil {
		t.Fatalf("nil map accepted")
	}
}

func TestDecodeRaw(t *testing.T) {
	p, err := DecodeRaw[herePayload]([]byte(`{"conversationId":"c9","seq":"7"}`))
	if err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	if p.ConversationID != "c9" || p.Seq != 7 {
		t.Fatalf("payload: %+v", p)
	}
}
