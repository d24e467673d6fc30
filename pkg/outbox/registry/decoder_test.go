package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventUserCreated, 2, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	output, err := reg.Decode(enums.EventUserCreated, 2, json.RawMessage(`{"name":"ada"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["name"] != "ada" {
		t.Fatalf("unexpected output %+v", output)
	}
	if _, err := reg.Decode(enums.EventUserCreated, 1, json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected unregistered version to fail")
	}
}

func TestDefaultDecoders(t *testing.T) {
	reg := DefaultDecoders()
	postID := uuid.New()
	out, err := reg.Decode(enums.EventPostLiked, 1, json.RawMessage(`{"postId":"`+postID.String()+`"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	liked, ok := out.(*payloads.PostLikedEvent)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if liked.PostID != postID {
		t.Fatalf("unexpected post id %s", liked.PostID)
	}
	if _, err := reg.Decode(enums.EventPostLiked, 1, json.RawMessage(`[]`)); err == nil {
		t.Fatal("expected shape mismatch to fail")
	}
}
