package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/walson-a/atlasbot/internal/mailer"
)

// MailSender is the delivery surface the contact handler depends on.
// Satisfied by *mailer.Client.
type MailSender interface {
	Send(ctx context.Context, email mailer.Email) (string, error)
}

// contactRequest is the inbound POST /api/contact body. The honeypot field
// is rendered invisibly by the form; bots fill it, humans never do.
type contactRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Subject  string `json:"subject" validate:"required,min=2,max=100"`
	Message  string `json:"message" validate:"required,min=10,max=2000"`
	Honeypot string `json:"_honeypot" validate:"max=0"`
}

// contactHandler validates contact-form submissions and forwards them to
// the mail provider.
type contactHandler struct {
	sender     MailSender
	limiter    *limiter
	rate       RatePolicy
	from       string
	to         string
	trustProxy bool
	validate   *validator.Validate
	logger     *slog.Logger
}

func newContactHandler(sender MailSender, l *limiter, rate RatePolicy, from, to string, trustProxy bool, logger *slog.Logger) *contactHandler {
	return &contactHandler{
		sender:     sender,
		limiter:    l,
		rate:       rate,
		from:       from,
		to:         to,
		trustProxy: trustProxy,
		validate:   validator.New(),
		logger:     logger,
	}
}

// validationMessages maps (field, tag) to a user-facing French message,
// mirroring the form's client-side hints.
var validationMessages = map[string]string{
	"Name.required":    "Le nom est requis",
	"Name.min":         "Le nom doit faire au moins 2 caractères",
	"Name.max":         "Le nom est trop long",
	"Email.required":   "L'email est requis",
	"Email.email":      "Format d'email invalide",
	"Subject.required": "Le sujet est requis",
	"Subject.min":      "Le sujet doit faire au moins 2 caractères",
	"Subject.max":      "Le sujet est trop long",
	"Message.required": "Le message est requis",
	"Message.min":      "Le message doit faire au moins 10 caractères",
	"Message.max":      "Le message est trop long",
	"Honeypot.max":     "Bot detected",
}

// send handles POST /api/contact.
func (h *contactHandler) send(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, h.trustProxy)
	if res := h.limiter.check(bucketContact, ip, h.rate.Limit, h.rate.Window); !res.Allowed {
		writeError(w, http.StatusTooManyRequests,
			"Trop de messages envoyés. Veuillez patienter 10 minutes.", h.logger)
		return
	}

	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corps de requête invalide", h.logger)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, firstValidationMessage(err), h.logger)
		return
	}

	id, err := h.sender.Send(r.Context(), mailer.Email{
		From:    h.from,
		To:      h.to,
		ReplyTo: req.Email,
		Subject: fmt.Sprintf("[Portfolio] %s - from %s", req.Subject, req.Name),
		HTML:    renderContactEmail(req),
	})
	if err != nil {
		if errors.Is(err, mailer.ErrMissingAPIKey) {
			h.logger.Error("contact form misconfigured", "error", err)
			writeError(w, http.StatusInternalServerError, "Server configuration error", h.logger)
			return
		}
		h.logger.Warn("mail delivery failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send email", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id}, h.logger)
}

// firstValidationMessage returns the user-facing message of the first
// failed validation rule.
func firstValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if msg, ok := validationMessages[fe.Field()+"."+fe.Tag()]; ok {
			return msg
		}
	}
	return "Formulaire invalide"
}

// renderContactEmail builds the notification body. User input is escaped;
// the mail is for the site owner, not for re-display to visitors.
func renderContactEmail(req contactRequest) string {
	return fmt.Sprintf(`<h2>Nouveau message depuis le portfolio</h2>
<p><strong>Nom:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Sujet:</strong> %s</p>
<p><strong>Reçu le:</strong> %s</p>
<hr>
<p style="white-space: pre-wrap;">%s</p>`,
		html.EscapeString(req.Name),
		html.EscapeString(req.Email),
		html.EscapeString(req.Subject),
		time.Now().UTC().Format(time.RFC3339),
		html.EscapeString(req.Message))
}
