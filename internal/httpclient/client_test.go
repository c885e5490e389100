package httpclient

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tlsConfig := &tls.Config{InsecureSkipVerify: true}
	client := New(tlsConfig, 5*time.Second)

	if client.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 for streaming", client.Timeout)
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want *http.Transport", client.Transport)
	}
	if transport.TLSClientConfig != tlsConfig {
		t.Error("TLSClientConfig not propagated")
	}
	if transport.ResponseHeaderTimeout != 5*time.Second {
		t.Errorf("ResponseHeaderTimeout = %v, want 5s", transport.ResponseHeaderTimeout)
	}
	if !transport.DisableCompression {
		t.Error("DisableCompression = false, want true")
	}
}

func TestStreamsFromTLSServer(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept-Encoding"); got != "" {
			t.Errorf("Accept-Encoding = %q, want none", got)
		}
		io.WriteString(w, "{\"limit\":{\"track\":1}}\r\n")
	}))
	defer server.Close()

	client := New(&tls.Config{InsecureSkipVerify: true}, time.Second)
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(body) != "{\"limit\":{\"track\":1}}\r\n" {
		t.Errorf("body = %q", body)
	}
}
