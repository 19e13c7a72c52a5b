package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/walson-a/atlasbot/internal/knowledge"
	"github.com/walson-a/atlasbot/internal/openrouter"
)

// Assistant is the provider surface the chat handler depends on.
// Satisfied by *openrouter.Client; tests substitute fakes.
type Assistant interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Complete(ctx context.Context, messages []openrouter.Message) (string, error)
}

// RetrievalPolicy bounds how many knowledge chunks a chat request pulls in
// and how relevant they must be.
type RetrievalPolicy struct {
	TopK     int
	MinScore float64
}

// RatePolicy is one fixed-window rate-limit setting.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

// chatHandler orchestrates one chat request: rate limit, retrieval,
// prompt assembly and the retried completion call. It holds no per-request
// state; the limiter and store cache are the only shared resources.
type chatHandler struct {
	store      *knowledge.Store
	assistant  Assistant
	limiter    *limiter
	retrieval  RetrievalPolicy
	rate       RatePolicy
	trustProxy bool
	logger     *slog.Logger
	now        func() time.Time
}

// chatMessage is one conversation turn in the public API shape.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the inbound POST /api/chat body. The last message must be
// the current user turn.
type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

// chatResponse is the outbound reply, for both success and the fixed
// degraded messages.
type chatResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// send handles POST /api/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Rate limit before any work, so abusive clients cost nothing.
	ip := clientIP(r, h.trustProxy)
	if res := h.limiter.check(bucketChat, ip, h.rate.Limit, h.rate.Window); !res.Allowed {
		h.reply(w, http.StatusTooManyRequests, msgCooldown)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corps de requête invalide", h.logger)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "la conversation ne peut pas être vide", h.logger)
		return
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" || last.Content == "" {
		writeError(w, http.StatusBadRequest, "le dernier message doit venir de l'utilisateur", h.logger)
		return
	}

	// Load the knowledge base. An absent store is soft degradation, not
	// an error: the widget shows a maintenance notice with a 200.
	items, err := h.store.Load()
	if err != nil {
		h.logger.Error("vector store unreadable", "error", err)
		h.reply(w, http.StatusInternalServerError, msgTechnical)
		return
	}
	if len(items) == 0 {
		h.reply(w, http.StatusOK, msgMaintenance)
		return
	}

	queryEmbedding, err := h.assistant.Embed(ctx, last.Content)
	if err != nil {
		h.logChatFailure("embedding query failed", err, r)
		h.reply(w, http.StatusInternalServerError, msgTechnical)
		return
	}

	scored := knowledge.Retrieve(queryEmbedding, items, h.retrieval.TopK, h.retrieval.MinScore)
	chunks := make([]string, 0, len(scored))
	for _, s := range scored {
		chunks = append(chunks, s.Content)
	}
	h.logger.Debug("context retrieved",
		"chunks", len(chunks),
		"request_id", requestIDFromContext(ctx))

	systemPrompt := buildSystemPrompt(buildContext(knowledge.GlobalSummaryContent(items), chunks))

	messages := make([]openrouter.Message, 0, len(req.Messages)+1)
	messages = append(messages, openrouter.Message{Role: "system", Content: systemPrompt})
	for _, m := range req.Messages {
		messages = append(messages, openrouter.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := h.assistant.Complete(ctx, messages)
	if err != nil {
		h.logChatFailure("completion failed", err, r)
		h.reply(w, http.StatusInternalServerError, msgTechnical)
		return
	}

	h.reply(w, http.StatusOK, reply)
}

// reply writes an assistant-role message. Degraded outcomes use the same
// shape as successes so the widget renders them as ordinary messages.
func (h *chatHandler) reply(w http.ResponseWriter, status int, content string) {
	writeJSON(w, status, chatResponse{
		Role:      "assistant",
		Content:   content,
		Timestamp: h.now().UTC(),
	}, h.logger)
}

// logChatFailure records the server-side detail of a failed chat step.
// Configuration problems are logged loudly; transient provider exhaustion
// is expected under upstream outages.
func (h *chatHandler) logChatFailure(msg string, err error, r *http.Request) {
	level := slog.LevelWarn
	if errors.Is(err, openrouter.ErrMissingAPIKey) {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, msg,
		"error", err,
		"request_id", requestIDFromContext(r.Context()))
}
