package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/veriledger/veriledger/internal/chain"
	"github.com/veriledger/veriledger/internal/ledger/handler"
	"github.com/veriledger/veriledger/pkg/client"
)

var ctx = context.Background()

// newTestServer spins up the real service boundary over a memory store.
func newTestServer(t *testing.T, authSecret []byte) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := chain.NewService(chain.NewMemoryStore(), zap.NewNop())
	h := handler.NewLedgerHandler(svc, zap.NewNop())
	if authSecret != nil {
		h.SetAuthMiddleware(handler.RequireBearer(authSecret))
	}
	v1 := r.Group("/api/v1")
	h.Register(v1)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestAppendEvent_roundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	c := client.MustNew(srv.URL)

	e, err := c.AppendEvent(ctx, "t1", client.AppendEventRequest{
		EventType: "document.signed",
		EventData: json.RawMessage(`{"doc": "d-1"}`),
		UserID:    "u-7",
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.PreviousHash != strings.Repeat("0", 64) {
		t.Errorf("previous hash = %q, want genesis", e.PreviousHash)
	}
	if len(e.ChainHash) != 64 {
		t.Errorf("chain hash length = %d, want 64", len(e.ChainHash))
	}
	if e.UserID != "u-7" {
		t.Errorf("user id = %q, want u-7", e.UserID)
	}
}

func TestVerify(t *testing.T) {
	srv := newTestServer(t, nil)
	c := client.MustNew(srv.URL)

	for i := 0; i < 3; i++ {
		if _, err := c.AppendEvent(ctx, "t2", client.AppendEventRequest{
			EventType: "step",
			EventData: json.RawMessage(`{"i": ` + string(rune('0'+i)) + `}`),
		}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := c.Verify(ctx, "t2")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid || res.TotalEvents != 3 {
		t.Errorf("verify = %+v, want valid with 3 events", res)
	}
}

func TestListEvents_filters(t *testing.T) {
	srv := newTestServer(t, nil)
	c := client.MustNew(srv.URL)

	for _, typ := range []string{"a", "b", "a"} {
		if _, err := c.AppendEvent(ctx, "t3", client.AppendEventRequest{
			EventType: typ,
			EventData: json.RawMessage(`{"t": "` + typ + `"}`),
		}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := c.ListEvents(ctx, "t3", client.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3", len(all))
	}

	filtered, err := c.ListEvents(ctx, "t3", client.ListOptions{EventType: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Errorf("got %d events of type a, want 2", len(filtered))
	}
}

func TestExport_ndjson(t *testing.T) {
	srv := newTestServer(t, nil)
	c := client.MustNew(srv.URL)

	for i := 0; i < 2; i++ {
		if _, err := c.AppendEvent(ctx, "t4", client.AppendEventRequest{
			EventType: "x",
			EventData: json.RawMessage(`{"i": ` + string(rune('0'+i)) + `}`),
		}); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := c.Export(ctx, "t4", &buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Errorf("got %d NDJSON lines, want 2", len(lines))
	}
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t, nil)
	c := client.MustNew(srv.URL)

	e, err := c.AppendEvent(ctx, "t5", client.AppendEventRequest{
		EventType: "x",
		EventData: json.RawMessage(`{"a": 1}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	sum, err := c.Summary(ctx, "t5")
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalEvents != 1 || sum.Tip != e.ChainHash {
		t.Errorf("summary = %+v, want 1 event with tip %q", sum, e.ChainHash)
	}
}

func TestAppendEvent_serverErrorSurfaced(t *testing.T) {
	srv := newTestServer(t, nil)
	c := client.MustNew(srv.URL)

	_, err := c.AppendEvent(ctx, "t6", client.AppendEventRequest{
		EventData: json.RawMessage(`{"a": 1}`), // missing event_type
	})
	if err == nil {
		t.Fatal("expected error for invalid request")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error %q does not mention the status code", err)
	}
}

func TestBearerToken_attached(t *testing.T) {
	secret := []byte("sdk-secret")
	srv := newTestServer(t, secret)

	// Without a token the append is rejected.
	plain := client.MustNew(srv.URL)
	if _, err := plain.AppendEvent(ctx, "t7", client.AppendEventRequest{
		EventType: "x",
		EventData: json.RawMessage(`{"a": 1}`),
	}); err == nil {
		t.Fatal("expected 401 without token")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}

	authed := client.MustNew(srv.URL, client.WithBearerToken(signed))
	if _, err := authed.AppendEvent(ctx, "t7", client.AppendEventRequest{
		EventType: "x",
		EventData: json.RawMessage(`{"a": 1}`),
	}); err != nil {
		t.Errorf("authed append failed: %v", err)
	}
}
