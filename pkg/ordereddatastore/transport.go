package ordereddatastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/roblox-open-cloud/datastores/internal/httpx"
	"github.com/roblox-open-cloud/datastores/internal/opencloudapi"
)

// Request is a single call issued by an OrderedDataStore.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Transport delivers requests and returns the response body.
//
// A non-success HTTP status must be reported as a *RequestError. Any other
// error is treated as a failure of the transport itself.
type Transport interface {
	Do(ctx context.Context, req *Request) ([]byte, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) ([]byte, error)

// Do calls f(ctx, req).
func (f TransportFunc) Do(ctx context.Context, req *Request) ([]byte, error) {
	return f(ctx, req)
}

// NewHTTPTransport wraps an httpx.Client. The client is expected to carry the
// API key header.
func NewHTTPTransport(client *httpx.Client) Transport {
	return &httpTransport{client: client}
}

type httpTransport struct {
	client *httpx.Client
}

func (t *httpTransport) Do(ctx context.Context, req *Request) ([]byte, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("ordereddatastore: http transport not configured")
	}

	hreq := &httpx.Request{
		Method: req.Method,
		Path:   req.Path,
		Query:  req.Query,
		Header: req.Header,
	}
	if req.Body != nil {
		body := req.Body
		hreq.Body = bytes.NewReader(body)
		hreq.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	resp, err := t.client.Do(ctx, hreq)
	if err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			return nil, requestErrorFromHTTP(httpErr)
		}
		return nil, err
	}
	return httpx.ReadAllAndClose(resp.Body)
}

func requestErrorFromHTTP(e *httpx.HTTPError) *RequestError {
	code, message := opencloudapi.ExtractError(e.Body)
	return &RequestError{
		StatusCode: e.StatusCode,
		Status:     e.StatusText(),
		Code:       code,
		Message:    message,
	}
}
