package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/roblox-open-cloud/datastores/internal/opencloudapi"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore"
)

const routePrefix = "/ordered-data-stores/v1/universes/"

// listBody omits entries on an empty page, which ends pagination.
type listBody struct {
	Entries       []opencloudapi.EntryPayload `json:"entries,omitempty"`
	NextPageToken string                      `json:"nextPageToken"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// route is a parsed entries URL.
type route struct {
	key Key
	id  string
	// entry is set when the path names a single entry.
	entry bool
}

func parseRoute(path string) (route, error) {
	rest, ok := strings.CutPrefix(path, routePrefix)
	if !ok {
		return route{}, errors.New("unknown resource")
	}
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	if len(parts) != 6 && len(parts) != 7 {
		return route{}, errors.New("unknown resource")
	}
	if parts[1] != "orderedDataStores" || parts[3] != "scopes" || parts[5] != "entries" {
		return route{}, errors.New("unknown resource")
	}

	universe, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return route{}, fmt.Errorf("invalid universe id %q", parts[0])
	}
	unescaped := make([]string, len(parts))
	for i, p := range parts {
		u, err := url.PathUnescape(p)
		if err != nil {
			return route{}, fmt.Errorf("invalid path segment %q", p)
		}
		unescaped[i] = u
	}

	r := route{key: Key{UniverseID: universe, Store: unescaped[2], Scope: unescaped[4]}}
	if len(parts) == 7 {
		r.id = unescaped[6]
		r.entry = true
	}
	return r, nil
}

func (r route) entryPath(id string) string {
	return fmt.Sprintf("universes/%d/orderedDataStores/%s/scopes/%s/entries/%s",
		r.key.UniverseID, url.PathEscape(r.key.Store), url.PathEscape(r.key.Scope), url.PathEscape(id))
}

// Handle serves one request against the Open Cloud entries URL layout and
// returns the status code and JSON body. path is the escaped URL path.
func (m *Mock) Handle(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte) {
	r, err := parseRoute(path)
	if err != nil {
		return errorResponse(http.StatusNotFound, "NOT_FOUND", err.Error())
	}

	status, resp := m.dispatch(ctx, r, method, query, body)
	m.logger.Debug("mock request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status))
	return status, resp
}

func (m *Mock) dispatch(ctx context.Context, r route, method string, query url.Values, body []byte) (int, []byte) {
	switch {
	case !r.entry && method == http.MethodGet:
		return m.handleList(ctx, r, query)
	case !r.entry && method == http.MethodPost:
		value, err := decodeValue(body)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		}
		e, err := m.Create(ctx, r.key, query.Get("id"), value)
		return entryResponse(r, e, err)
	case r.entry && method == http.MethodGet:
		e, err := m.Get(ctx, r.key, r.id)
		return entryResponse(r, e, err)
	case r.entry && method == http.MethodPatch:
		value, err := decodeValue(body)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		}
		allowMissing, _ := strconv.ParseBool(query.Get("allow_missing"))
		e, err := m.Update(ctx, r.key, r.id, value, allowMissing)
		return entryResponse(r, e, err)
	case r.entry && method == http.MethodDelete:
		if err := m.Delete(ctx, r.key, r.id); err != nil {
			return failure(err)
		}
		return http.StatusOK, []byte("{}")
	default:
		return errorResponse(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", method+" is not supported here")
	}
}

func (m *Mock) handleList(ctx context.Context, r route, query url.Values) (int, []byte) {
	opts := ListOptions{
		Filter:    query.Get("filter"),
		PageToken: query.Get("page_token"),
	}
	if raw := query.Get("max_page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "INVALID_ARGUMENT", "max_page_size must be an integer")
		}
		opts.MaxPageSize = n
	}
	switch order := query.Get("order_by"); order {
	case "":
	case ordereddatastore.OrderDescending:
		opts.Descending = true
	default:
		return errorResponse(http.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("unsupported order_by %q", order))
	}

	page, err := m.List(ctx, r.key, opts)
	if err != nil {
		return failure(err)
	}

	payload := listBody{NextPageToken: page.NextPageToken}
	for _, e := range page.Entries {
		payload.Entries = append(payload.Entries, toPayload(r, e))
	}
	return jsonResponse(http.StatusOK, payload)
}

func toPayload(r route, e Entry) opencloudapi.EntryPayload {
	value, _ := json.Marshal(opencloudapi.FormatValue(e.Value))
	return opencloudapi.EntryPayload{
		Path:  r.entryPath(e.ID),
		ID:    e.ID,
		Value: value,
	}
}

func entryResponse(r route, e Entry, err error) (int, []byte) {
	if err != nil {
		return failure(err)
	}
	return jsonResponse(http.StatusOK, toPayload(r, e))
}

// decodeValue reads {"value": n}. The value may be a JSON number or a string
// holding an integer.
func decodeValue(body []byte) (int64, error) {
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &req); err != nil {
		return 0, fmt.Errorf("invalid request body: %v", err)
	}
	raw := bytes.TrimSpace(req.Value)
	if len(raw) == 0 {
		return 0, errors.New("value is required")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("invalid value: %v", err)
		}
	}
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value %s is not a 64-bit integer", text)
	}
	return v, nil
}

func failure(err error) (int, []byte) {
	switch {
	case errors.Is(err, ErrNotFound):
		return errorResponse(http.StatusNotFound, "NOT_FOUND", "entry not found")
	case errors.Is(err, ErrAlreadyExists):
		return errorResponse(http.StatusConflict, "ALREADY_EXISTS", "entry already exists")
	case errors.Is(err, ErrInvalidArgument):
		return errorResponse(http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errorResponse(http.StatusGatewayTimeout, "DEADLINE_EXCEEDED", err.Error())
	default:
		return errorResponse(http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func errorResponse(status int, code, message string) (int, []byte) {
	return jsonResponse(status, errorBody{Code: code, Message: message})
}

func jsonResponse(status int, v any) (int, []byte) {
	data, err := json.Marshal(v)
	if err != nil {
		return http.StatusInternalServerError, []byte(`{"code":"INTERNAL","message":"encode response"}`)
	}
	return status, data
}
