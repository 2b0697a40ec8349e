package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vitaremind/internal/domain"
)

func TestGatewaySendLaunchesSession(t *testing.T) {
	t.Setenv(EnvTextToken, "sekrit-token")

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := newGatewaySender(GatewayConfig{SessionURL: srv.URL, Timeout: 5 * time.Second}, EnvTextToken, "messageBody")
	p := Payload{Channel: domain.ChannelText, Destination: "+15554443333", Message: "This is a reminder to take Magnesium, 2.5 mg"}
	if err := g.send(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	if got["token"] != "sekrit-token" {
		t.Errorf("token = %q", got["token"])
	}
	if got["phoneNumber"] != "+15554443333" {
		t.Errorf("phoneNumber = %q", got["phoneNumber"])
	}
	if got["messageBody"] != p.Message {
		t.Errorf("messageBody = %q", got["messageBody"])
	}
}

func TestGatewayVoiceUsesMsgParam(t *testing.T) {
	t.Setenv(EnvVoiceToken, "voice-token")

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	g := newGatewaySender(GatewayConfig{SessionURL: srv.URL, Timeout: 5 * time.Second}, EnvVoiceToken, "msg")
	p := Payload{Channel: domain.ChannelVoice, Destination: "+15554443333", Message: "Hello, this is a reminder"}
	if err := g.send(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if got["msg"] != p.Message {
		t.Errorf("msg = %q", got["msg"])
	}
	if _, leaked := got["messageBody"]; leaked {
		t.Error("voice launch must not carry the SMS parameter")
	}
}

func TestGatewaySendRequiresToken(t *testing.T) {
	t.Setenv(EnvTextToken, "")

	g := newGatewaySender(GatewayConfig{SessionURL: "http://127.0.0.1:0", Timeout: time.Second}, EnvTextToken, "messageBody")
	err := g.send(context.Background(), Payload{Channel: domain.ChannelText, Destination: "+1555", Message: "hi"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestGatewaySendRejectedSession(t *testing.T) {
	t.Setenv(EnvTextToken, "sekrit-token")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusForbidden)
	}))
	defer srv.Close()

	g := newGatewaySender(GatewayConfig{SessionURL: srv.URL, Timeout: 5 * time.Second}, EnvTextToken, "messageBody")
	err := g.send(context.Background(), Payload{Channel: domain.ChannelText, Destination: "+1555", Message: "hi"})
	if err == nil {
		t.Fatal("expected error for rejected session")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error should carry the gateway status: %v", err)
	}
	if !strings.Contains(err.Error(), "invalid token") {
		t.Errorf("error should carry the gateway body snippet: %v", err)
	}
}
