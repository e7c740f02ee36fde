package ordereddatastore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"

	"pgregory.net/rapid"

	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore"
)

// pagedTransport serves a fixed sequence of pages and counts list calls.
type pagedTransport struct {
	pages    [][]int64
	// omitLast keeps a token on the final page, so the scan ends on a
	// response without entries.
	omitLast bool
	calls    int
	tokens   []string
}

func (p *pagedTransport) Do(_ context.Context, req *ordereddatastore.Request) ([]byte, error) {
	token := req.Query.Get("page_token")
	p.tokens = append(p.tokens, token)
	p.calls++

	idx := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("bad token %q", token)
		}
		idx = n
	}
	if idx >= len(p.pages) {
		return []byte(`{}`), nil
	}

	type wire struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	}
	entries := make([]wire, 0, len(p.pages[idx]))
	for i, v := range p.pages[idx] {
		entries = append(entries, wire{ID: fmt.Sprintf("p%d-%d", idx, i), Value: strconv.FormatInt(v, 10)})
	}
	next := ""
	if idx+1 < len(p.pages) || p.omitLast {
		next = strconv.Itoa(idx + 1)
	}
	return json.Marshal(map[string]any{"entries": entries, "nextPageToken": next})
}

func TestPaginationTerminatesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pages := rapid.SliceOfN(rapid.SliceOfN(rapid.Int64(), 0, 5), 1, 6).Draw(t, "pages")
		omitLast := rapid.Bool().Draw(t, "omitLast")
		tr := &pagedTransport{pages: pages, omitLast: omitLast}

		store, err := ordereddatastore.New(tr, 1, "scores", "", nil)
		if err != nil {
			t.Fatalf("new: %v", err)
		}

		ctx := context.Background()
		var seen []int64
		for i := 0; !store.IsFinished(); i++ {
			if i > len(pages)+1 {
				t.Fatalf("pagination did not terminate after %d calls", i)
			}
			if _, err := store.FetchNextPage(ctx); err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if !store.IsFinished() || store.NextPageToken() == "" {
				for _, e := range store.Data() {
					seen = append(seen, e.Value())
				}
			}
		}

		wantCalls := len(pages)
		if omitLast {
			wantCalls++
		}
		if tr.calls != wantCalls {
			t.Fatalf("calls = %d, want %d", tr.calls, wantCalls)
		}
		if tr.tokens[0] != "" {
			t.Fatalf("first page token = %q, want empty", tr.tokens[0])
		}

		var want []int64
		for _, p := range pages {
			want = append(want, p...)
		}
		if len(seen) != len(want) {
			t.Fatalf("saw %d values, want %d", len(seen), len(want))
		}
		for i := range want {
			if seen[i] != want[i] {
				t.Fatalf("value %d = %d, want %d", i, seen[i], want[i])
			}
		}

		// Further calls are no-ops.
		before := tr.calls
		if _, err := store.FetchNextPage(ctx); err != nil {
			t.Fatalf("fetch after finish: %v", err)
		}
		if tr.calls != before {
			t.Fatalf("fetch after finish issued a request")
		}
	})
}
