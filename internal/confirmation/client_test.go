package confirmation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

func TestClient_SendPostsJSON(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotBody        string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	status, err := client.Send(context.Background(), []byte(`{"orderNumber":"00000100"}`))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if gotMethod != http.MethodPost || gotContentType != "application/json" {
		t.Fatalf("unexpected request: method=%s content-type=%s", gotMethod, gotContentType)
	}
	if gotBody != `{"orderNumber":"00000100"}` {
		t.Fatalf("unexpected body: %s", gotBody)
	}
}

func TestClient_SendReturnsNon200Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL)
	status, err := client.Send(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if status != http.StatusCreated {
		t.Fatalf("expected status to be passed through, got %d", status)
	}
}

func TestClient_SendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, _ := NewClient(url)
	_, err := client.Send(context.Background(), []byte(`{}`))
	if !errors.Is(err, domain.ErrConfirmationTransport) {
		t.Fatalf("expected ErrConfirmationTransport, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client, _ := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := client.Send(context.Background(), []byte(`{}`))
	if !errors.Is(err, domain.ErrConfirmationTransport) {
		t.Fatalf("expected transport error on timeout, got %v", err)
	}
}

func TestNewClient_RequiresURL(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatal("expected error for empty url")
	}
}
