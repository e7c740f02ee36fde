package mock

import (
	"context"
	"fmt"
	"net/http"

	"github.com/roblox-open-cloud/datastores/internal/opencloudapi"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore"
)

// NewTransport returns an ordereddatastore.Transport served by m, so stores
// can run without a network. Error statuses become *ordereddatastore.RequestError
// exactly as over HTTP.
func NewTransport(m *Mock) ordereddatastore.Transport {
	return ordereddatastore.TransportFunc(func(ctx context.Context, req *ordereddatastore.Request) ([]byte, error) {
		if m == nil {
			return nil, fmt.Errorf("mock ordered data store: transport has no store")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		status, body := m.Handle(ctx, req.Method, req.Path, req.Query, req.Body)
		if status >= http.StatusBadRequest {
			code, message := opencloudapi.ExtractError(body)
			return nil, &ordereddatastore.RequestError{
				StatusCode: status,
				Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
				Code:       code,
				Message:    message,
			}
		}
		return body, nil
	})
}
