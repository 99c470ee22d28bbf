package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wavesend/wavesend/internal/logging"
	"github.com/wavesend/wavesend/internal/peers"
	"github.com/wavesend/wavesend/internal/session"
	"github.com/wavesend/wavesend/pkg/protocol"
)

func newTestServer(t *testing.T, store *session.Store, opts Options) *httptest.Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	srv := httptest.NewServer(New(store, peers.NewHub(), opts))
	t.Cleanup(srv.Close)
	return srv
}

func createSession(t *testing.T, srv *httptest.Server) protocol.CreateSessionResponse {
	t.Helper()
	body, _ := json.Marshal(protocol.CreateSessionRequest{
		FileName: "doc.txt",
		FileSize: 100,
		FileType: "text/plain",
	})
	resp, err := http.Post(srv.URL+"/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", resp.StatusCode)
	}
	var created protocol.CreateSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return created
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func getView(t *testing.T, srv *httptest.Server, code string) (protocol.SessionView, int) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/sessions/" + code)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	defer resp.Body.Close()
	var view protocol.SessionView
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
			t.Fatalf("decode view: %v", err)
		}
	}
	return view, resp.StatusCode
}

func TestServer_CreateSession(t *testing.T) {
	srv := newTestServer(t, session.NewStore(30*time.Minute), Options{})

	created := createSession(t, srv)
	if len(created.Code) != 6 {
		t.Errorf("code = %q, want 6 digits", created.Code)
	}
	if time.Until(created.ExpireAt) <= 0 {
		t.Errorf("expireAt %v is not in the future", created.ExpireAt)
	}

	view, status := getView(t, srv, created.Code)
	if status != http.StatusOK {
		t.Fatalf("get status = %d, want 200", status)
	}
	if view.FileName != "doc.txt" || view.FileSize != 100 || view.FileType != "text/plain" {
		t.Errorf("view = %+v, file metadata mismatch", view)
	}
}

func TestServer_CreateSession_BadRequest(t *testing.T) {
	srv := newTestServer(t, session.NewStore(30*time.Minute), Options{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{nope"},
		{"missing file name", `{"fileSize":10}`},
		{"negative size", `{"fileName":"a.txt","fileSize":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/sessions", "application/json", bytes.NewReader([]byte(tt.body)))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestServer_GetSession_NotFound(t *testing.T) {
	srv := newTestServer(t, session.NewStore(30*time.Minute), Options{})

	_, status := getView(t, srv, "000000")
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestServer_GetSession_Expired(t *testing.T) {
	now := time.Now()
	clock := now
	var mu sync.Mutex
	store := session.NewStoreWithNow(time.Minute, func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	})
	srv := newTestServer(t, store, Options{})

	created := createSession(t, srv)
	mu.Lock()
	clock = now.Add(2 * time.Minute)
	mu.Unlock()

	// First hit after expiry reports 410 and evicts; the next reports 404.
	if _, status := getView(t, srv, created.Code); status != http.StatusGone {
		t.Errorf("first status = %d, want 410", status)
	}
	if _, status := getView(t, srv, created.Code); status != http.StatusNotFound {
		t.Errorf("second status = %d, want 404", status)
	}
}

func TestServer_UpdateSession(t *testing.T) {
	srv := newTestServer(t, session.NewStore(30*time.Minute), Options{})
	created := createSession(t, srv)
	url := srv.URL + "/sessions/" + created.Code

	offer := "v=0 offer"
	resp := doJSON(t, http.MethodPatch, url, protocol.UpdateSessionRequest{SenderOffer: &offer})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", resp.StatusCode)
	}

	cand := "candidate:1"
	for i := 0; i < 3; i++ {
		resp := doJSON(t, http.MethodPatch, url, protocol.UpdateSessionRequest{SenderIceCandidate: &cand})
		resp.Body.Close()
	}

	view, _ := getView(t, srv, created.Code)
	if view.SenderOffer != offer {
		t.Errorf("senderOffer = %q, want %q", view.SenderOffer, offer)
	}
	if len(view.SenderIceCandidates) != 3 {
		t.Errorf("senderIceCandidates = %d entries, want 3", len(view.SenderIceCandidates))
	}
}

func TestServer_UpdateSession_ConcurrentCandidates(t *testing.T) {
	srv := newTestServer(t, session.NewStore(30*time.Minute), Options{})
	created := createSession(t, srv)
	url := srv.URL + "/sessions/" + created.Code

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cand := fmt.Sprintf("candidate:%d", i)
			resp := doJSON(t, http.MethodPatch, url, protocol.UpdateSessionRequest{ReceiverIceCandidate: &cand})
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	view, _ := getView(t, srv, created.Code)
	if len(view.ReceiverIceCandidates) != n {
		t.Errorf("receiverIceCandidates = %d entries, want %d", len(view.ReceiverIceCandidates), n)
	}
}

func TestServer_DeleteSession(t *testing.T) {
	srv := newTestServer(t, session.NewStore(30*time.Minute), Options{})
	created := createSession(t, srv)
	url := srv.URL + "/sessions/" + created.Code

	resp := doJSON(t, http.MethodDelete, url, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}
	if _, status := getView(t, srv, created.Code); status != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", status)
	}

	// Deleting again still succeeds.
	resp = doJSON(t, http.MethodDelete, url, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("second delete status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_MaxSessions(t *testing.T) {
	srv := newTestServer(t, session.NewStore(30*time.Minute), Options{MaxSessions: 2})

	createSession(t, srv)
	createSession(t, srv)

	body, _ := json.Marshal(protocol.CreateSessionRequest{FileName: "c.txt", FileSize: 1})
	resp, err := http.Post(srv.URL+"/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestServer_CreateRateLimit(t *testing.T) {
	srv := newTestServer(t, session.NewStore(30*time.Minute), Options{
		SessionCreatesPerMin: 1,
		SessionCreatesBurst:  1,
	})

	createSession(t, srv)

	body, _ := json.Marshal(protocol.CreateSessionRequest{FileName: "b.txt", FileSize: 1})
	resp, err := http.Post(srv.URL+"/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, session.NewStore(30*time.Minute), Options{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body["ok"] {
		t.Error("health body missing ok=true")
	}
}
