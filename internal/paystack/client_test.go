package paystack

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/naira-wallet/wallet_service/internal/logging"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", SecretKey: "sk_test", WebhookSecret: "whsec", CallbackURL: "https://app.test/cb", Timeout: 2 * time.Second}, logging.Discard())
}

func TestInitializeSendsAuthAndParsesReference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			t.Errorf("missing bearer secret")
		}
		var body initializeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Email != "ada@example.com" || body.Amount != 5_000 || body.CallbackURL != "https://app.test/cb" || body.Metadata["transactionId"] != "t-1" {
			t.Errorf("unexpected body %+v", body)
		}
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"ps_ref","authorization_url":"https://checkout.test/x","access_code":"ac"}}`))
	})

	out, err := client.Initialize(context.Background(), "ada@example.com", 5_000, map[string]any{"transactionId": "t-1"})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if out.Reference != "ps_ref" || out.AuthorizationURL != "https://checkout.test/x" {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestInitializeNon2xxIsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	})
	if _, err := client.Initialize(context.Background(), "a@b.c", 100, nil); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestVerifyMapsStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transaction/verify/paid":
			_, _ = w.Write([]byte(`{"status":true,"data":{"status":"success","reference":"paid","amount":5000,"currency":"NGN","paid_at":"2024-03-01T10:00:00Z","customer":{"email":"ada@example.com"}}}`))
		case "/transaction/verify/abandoned":
			_, _ = w.Write([]byte(`{"status":true,"data":{"status":"abandoned","reference":"abandoned","amount":5000}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	paid := client.Verify(ctx, "paid")
	if !paid.Succeeded || paid.Amount != 5_000 || paid.CustomerEmail != "ada@example.com" || paid.PaidAt == nil {
		t.Fatalf("unexpected verification %+v", paid)
	}
	if client.Verify(ctx, "abandoned").Succeeded {
		t.Fatal("abandoned payment reported as succeeded")
	}
	if client.Verify(ctx, "missing").Succeeded {
		t.Fatal("404 reported as succeeded")
	}
}

func TestVerifyTransportFailureIsNotAnError(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, logging.Discard())
	if v := client.Verify(context.Background(), "ref"); v.Succeeded || v.Reference != "ref" {
		t.Fatalf("unexpected verification %+v", v)
	}
}

func TestWebhookSignature(t *testing.T) {
	raw := []byte(`{"event":"charge.success","data":{"reference":"r"}}`)
	sig := hex.EncodeToString(Sign("whsec", raw))

	client := NewClient(Config{WebhookSecret: "whsec"}, logging.Discard())
	if !client.VerifyWebhookSignature(raw, sig) {
		t.Fatal("valid signature rejected")
	}
	if client.VerifyWebhookSignature(append(raw, ' '), sig) {
		t.Fatal("signature accepted for altered payload")
	}
	if client.VerifyWebhookSignature(raw, "zz") {
		t.Fatal("non-hex signature accepted")
	}
	unconfigured := NewClient(Config{}, logging.Discard())
	if unconfigured.VerifyWebhookSignature(raw, sig) {
		t.Fatal("empty secret must verify nothing")
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"charge.success","data":{"reference":"r-1","amount":700,"customer":{"email":"x@y.z"}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Event != EventChargeSuccess || ev.Data.Reference != "r-1" || ev.Data.Amount != 700 || ev.Data.Customer.Email != "x@y.z" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
