package kafka

import (
	"testing"

	"github.com/DRSN-tech/thrift-backend/internal/usecase"
)

func TestNewMessage(t *testing.T) {
	msg := newMessage(usecase.NewWriteRawMessageReq("u1", usecase.EventListingLiked, []byte(`{}`)))

	if string(msg.Key) != "u1" || string(msg.Value) != `{}` {
		t.Errorf("message = %+v", msg)
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != eventTypeHeader || string(msg.Headers[0].Value) != "listing.liked" {
		t.Errorf("headers = %+v", msg.Headers)
	}

	bare := newMessage(&usecase.WriteRawMessageReq{Key: "u2"})
	if len(bare.Headers) != 0 {
		t.Errorf("headers without event type = %+v", bare.Headers)
	}
}
