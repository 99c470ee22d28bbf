package signaling

import (
	"context"
	"errors"
	"testing"

	"github.com/wavesend/wavesend/pkg/protocol"
)

func TestAPIClient_SessionRoundTrip(t *testing.T) {
	srv, _ := newRelayServer(t)
	api := NewAPIClient(srv.URL)
	ctx := context.Background()

	created, err := api.CreateSession(ctx, "photo.jpg", 2048, "image/jpeg")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created.Code) != 6 {
		t.Fatalf("code %q, want 6 digits", created.Code)
	}

	view, err := api.GetSession(ctx, created.Code)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.FileName != "photo.jpg" || view.FileSize != 2048 {
		t.Fatalf("view = %+v", view)
	}

	offer := "offer-sdp"
	if err := api.UpdateSession(ctx, created.Code, protocol.UpdateSessionRequest{SenderOffer: &offer}); err != nil {
		t.Fatalf("update: %v", err)
	}
	view, err = api.GetSession(ctx, created.Code)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if view.SenderOffer != "offer-sdp" {
		t.Fatalf("senderOffer = %q", view.SenderOffer)
	}

	if err := api.DeleteSession(ctx, created.Code); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := api.GetSession(ctx, created.Code); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("get after delete = %v, want ErrSessionNotFound", err)
	}
}

func TestAPIClient_NotFound(t *testing.T) {
	srv, _ := newRelayServer(t)
	api := NewAPIClient(srv.URL)

	if _, err := api.GetSession(context.Background(), "999999"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestAPIClient_DeleteAbsentSucceeds(t *testing.T) {
	srv, _ := newRelayServer(t)
	api := NewAPIClient(srv.URL)

	if err := api.DeleteSession(context.Background(), "999999"); err != nil {
		t.Fatalf("delete absent session: %v", err)
	}
}

func TestNewAPIClient_NormalizesURL(t *testing.T) {
	c := NewAPIClient("localhost:8080/")
	if c.baseURL != "http://localhost:8080" {
		t.Fatalf("baseURL = %q", c.baseURL)
	}
}
