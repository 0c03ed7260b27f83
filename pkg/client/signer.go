package client

import (
	"errors"
	"net/http"
)

// RequestSigner attaches credentials to an outgoing request. It is called
// once per attempt so signatures with nonces stay unique.
type RequestSigner interface {
	Sign(req *http.Request) error
}

// SignerFunc adapts a function to RequestSigner.
type SignerFunc func(req *http.Request) error

// Sign calls f(req).
func (f SignerFunc) Sign(req *http.Request) error {
	return f(req)
}

// HeaderSigner sets a static credential header, e.g. an API key.
type HeaderSigner struct {
	Header string
	Value  string
}

// Sign implements RequestSigner.
func (s HeaderSigner) Sign(req *http.Request) error {
	if s.Header == "" || s.Value == "" {
		return errors.New("credential header or value is empty")
	}
	req.Header.Set(s.Header, s.Value)
	return nil
}
