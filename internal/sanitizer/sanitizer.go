// Package sanitizer dumps streaming requests and responses for debug logging with
// credentials replaced by a short digest.
package sanitizer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httputil"
	"sort"
	"strings"
)

// sensitive names header fields whose values are always redacted. Any header
// whose name contains one of markers is redacted too.
var (
	sensitive = map[string]bool{
		"Authorization":       true,
		"Proxy-Authorization": true,
		"Cookie":              true,
		"Set-Cookie":          true,
	}
	markers = []string{"token", "secret", "key", "password"}
)

// Secrets collects the values of credential-bearing headers.
func Secrets(h http.Header) []string {
	var secrets []string
	for name, values := range h {
		if !isSensitive(name) {
			continue
		}
		for _, v := range values {
			secrets = append(secrets, v)
			// "Bearer xyz": the credential alone may show up elsewhere
			if _, credential, ok := strings.Cut(v, " "); ok {
				secrets = append(secrets, credential)
			}
		}
	}
	return secrets
}

func isSensitive(name string) bool {
	canonical := http.CanonicalHeaderKey(name)
	if sensitive[canonical] {
		return true
	}
	lower := strings.ToLower(name)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// DumpRequest dumps the request line and headers of an outgoing request with
// secrets redacted. The body is never read.
func DumpRequest(req *http.Request, secrets []string) ([]byte, error) {
	dump, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		return nil, fmt.Errorf("failed to dump request: %w", err)
	}
	return Redact(dump, secrets), nil
}

// DumpResponse dumps the status line and headers of a response with secrets
// redacted. The body is left untouched for the caller to stream.
func DumpResponse(resp *http.Response, secrets []string) ([]byte, error) {
	dump, err := httputil.DumpResponse(resp, false)
	if err != nil {
		return nil, fmt.Errorf("failed to dump response: %w", err)
	}
	return Redact(dump, secrets), nil
}

// Redact replaces every occurrence of a secret in data with [S256:hash].
// Longer secrets win over shorter ones sharing a prefix.
func Redact(data []byte, secrets []string) []byte {
	if len(secrets) == 0 || len(data) == 0 {
		return data
	}

	targets := buildTargets(secrets)
	if len(targets) == 0 {
		return data
	}

	var out []byte
	for index := 0; index < len(data); {
		target := matchAt(data[index:], targets)
		if target == nil {
			if out != nil {
				out = append(out, data[index])
			}
			index++
			continue
		}

		if out == nil {
			out = make([]byte, 0, len(data))
			out = append(out, data[:index]...)
		}
		out = append(out, target.replacement...)
		index += len(target.needle)
	}

	if out != nil {
		return out
	}
	return data
}

type target struct {
	needle      []byte
	replacement []byte
}

func matchAt(remaining []byte, targets []target) *target {
	for i := range targets {
		if bytes.HasPrefix(remaining, targets[i].needle) {
			return &targets[i]
		}
	}
	return nil
}

func buildTargets(secrets []string) []target {
	unique := make(map[string]struct{}, len(secrets))
	for _, s := range secrets {
		if s != "" {
			unique[s] = struct{}{}
		}
	}

	targets := make([]target, 0, len(unique))
	for s := range unique {
		targets = append(targets, target{
			needle:      []byte(s),
			replacement: digest(s),
		})
	}

	sort.Slice(targets, func(i, j int) bool {
		if len(targets[i].needle) != len(targets[j].needle) {
			return len(targets[i].needle) > len(targets[j].needle)
		}
		return bytes.Compare(targets[i].needle, targets[j].needle) < 0
	})
	return targets
}

func digest(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte("[S256:" + hex.EncodeToString(sum[:8]) + "]")
}
