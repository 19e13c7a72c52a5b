package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/walson-a/atlasbot/internal/knowledge"
	"github.com/walson-a/atlasbot/internal/mailer"
)

// fakeSender captures the outbound email instead of calling the provider.
type fakeSender struct {
	sendErr  error
	sent     []mailer.Email
	returnID string
}

func (f *fakeSender) Send(_ context.Context, email mailer.Email) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, email)
	return f.returnID, nil
}

func newContactTestServer(t *testing.T, sender MailSender, rate RatePolicy) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:      discardLogger(),
		Store:       knowledge.NewStore("unused", discardLogger()),
		Assistant:   &fakeAssistant{},
		Mailer:      sender,
		ContactRate: rate,
		MailFrom:    "AtlasBot <noreply@walson.dev>",
		MailTo:      "walson@walson.dev",
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func postContact(t *testing.T, srv *Server, body string, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	r.RemoteAddr = remoteAddr
	srv.Handler().ServeHTTP(w, r)
	return w
}

func validContactBody() string {
	return `{
		"name": "Jane Recruiter",
		"email": "jane@example.com",
		"subject": "Opportunité d'alternance",
		"message": "Bonjour, votre profil correspond à une offre dans notre équipe."
	}`
}

func TestContactSend_Success(t *testing.T) {
	sender := &fakeSender{returnID: "em_123"}
	srv := newContactTestServer(t, sender, RatePolicy{Limit: 3, Window: 10 * time.Minute})

	w := postContact(t, srv, validContactBody(), "10.2.0.1:1234")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d\nbody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Error("success = false, want true")
	}
	if resp.ID != "em_123" {
		t.Errorf("id = %q, want %q", resp.ID, "em_123")
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent emails = %d, want 1", len(sender.sent))
	}
	email := sender.sent[0]
	if email.From != "AtlasBot <noreply@walson.dev>" {
		t.Errorf("from = %q, want configured sender", email.From)
	}
	if email.To != "walson@walson.dev" {
		t.Errorf("to = %q, want configured recipient", email.To)
	}
	if email.ReplyTo != "jane@example.com" {
		t.Errorf("reply_to = %q, want the visitor's address", email.ReplyTo)
	}
	if !strings.Contains(email.Subject, "Opportunité d'alternance") || !strings.Contains(email.Subject, "Jane Recruiter") {
		t.Errorf("subject = %q, want subject and sender name", email.Subject)
	}
	if !strings.Contains(email.HTML, "votre profil correspond") {
		t.Error("html body missing the message")
	}
}

func TestContactSend_EscapesHTML(t *testing.T) {
	sender := &fakeSender{returnID: "em_1"}
	srv := newContactTestServer(t, sender, RatePolicy{Limit: 3, Window: 10 * time.Minute})

	body := `{
		"name": "Eve",
		"email": "eve@example.com",
		"subject": "Hello",
		"message": "<script>alert('xss')</script> plus du texte normal"
	}`
	if w := postContact(t, srv, body, "10.2.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	html := sender.sent[0].HTML
	if strings.Contains(html, "<script>") {
		t.Error("html body contains unescaped script tag")
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Error("html body missing escaped message")
	}
}

func TestContactSend_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			"malformed json",
			`{nope`,
			"corps de requête invalide",
		},
		{
			"name too short",
			`{"name":"J","email":"j@example.com","subject":"Bonjour","message":"Un message suffisamment long."}`,
			"Le nom doit faire au moins 2 caractères",
		},
		{
			"bad email",
			`{"name":"Jane","email":"not-an-email","subject":"Bonjour","message":"Un message suffisamment long."}`,
			"Format d'email invalide",
		},
		{
			"subject missing",
			`{"name":"Jane","email":"j@example.com","message":"Un message suffisamment long."}`,
			"Le sujet est requis",
		},
		{
			"message too short",
			`{"name":"Jane","email":"j@example.com","subject":"Bonjour","message":"court"}`,
			"Le message doit faire au moins 10 caractères",
		},
		{
			"honeypot filled",
			`{"name":"Jane","email":"j@example.com","subject":"Bonjour","message":"Un message suffisamment long.","_honeypot":"gotcha"}`,
			"Bot detected",
		},
	}

	sender := &fakeSender{returnID: "em_1"}
	srv := newContactTestServer(t, sender, RatePolicy{Limit: 100, Window: 10 * time.Minute})

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postContact(t, srv, tt.body, fmt.Sprintf("10.3.0.%d:1234", i))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d\nbody: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
			var resp map[string]string
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp["error"] != tt.wantMsg {
				t.Errorf("error = %q, want %q", resp["error"], tt.wantMsg)
			}
		})
	}

	if len(sender.sent) != 0 {
		t.Errorf("sent emails = %d, want 0 for invalid submissions", len(sender.sent))
	}
}

func TestContactSend_RateLimited(t *testing.T) {
	sender := &fakeSender{returnID: "em_1"}
	srv := newContactTestServer(t, sender, RatePolicy{Limit: 3, Window: 10 * time.Minute})

	for i := range 3 {
		if w := postContact(t, srv, validContactBody(), "10.2.0.3:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	w := postContact(t, srv, validContactBody(), "10.2.0.3:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if want := "Trop de messages envoyés. Veuillez patienter 10 minutes."; resp["error"] != want {
		t.Errorf("error = %q, want %q", resp["error"], want)
	}
	if len(sender.sent) != 3 {
		t.Errorf("sent emails = %d, want 3 (limited request must not send)", len(sender.sent))
	}
}

func TestContactSend_MailFailure(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("provider timeout")}
	srv := newContactTestServer(t, sender, RatePolicy{Limit: 3, Window: 10 * time.Minute})

	w := postContact(t, srv, validContactBody(), "10.2.0.4:1234")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] != "Failed to send email" {
		t.Errorf("error = %q, want generic send failure", resp["error"])
	}
}

func TestContactSend_MisconfiguredMailer(t *testing.T) {
	sender := &fakeSender{sendErr: fmt.Errorf("sending email: %w", mailer.ErrMissingAPIKey)}
	srv := newContactTestServer(t, sender, RatePolicy{Limit: 3, Window: 10 * time.Minute})

	w := postContact(t, srv, validContactBody(), "10.2.0.5:1234")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] != "Server configuration error" {
		t.Errorf("error = %q, want configuration error message", resp["error"])
	}
}

func TestContactSend_DisabledWithoutMailer(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    discardLogger(),
		Store:     knowledge.NewStore("unused", discardLogger()),
		Assistant: &fakeAssistant{},
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	w := postContact(t, srv, validContactBody(), "10.2.0.6:1234")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d when no mailer is configured", w.Code, http.StatusNotFound)
	}
}
