// Package httpclient builds the client used to hold long-lived streaming connections.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// New creates a client for streaming feeds. There is no overall request timeout,
// because a healthy stream never ends; connectTimeout bounds dialing, the TLS
// handshake and waiting for response headers.
func New(tlsConfig *tls.Config, connectTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		TLSClientConfig:        tlsConfig,
		TLSHandshakeTimeout:    connectTimeout,
		ResponseHeaderTimeout:  connectTimeout,
		ExpectContinueTimeout:  1 * time.Second,
		IdleConnTimeout:        60 * time.Second,
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		MaxResponseHeaderBytes: 1 << 20, // 1 MiB
		// compressed streams are negotiated and decoded by the feed reader
		DisableCompression: true,
	}

	return &http.Client{
		Transport: transport,
	}
}
