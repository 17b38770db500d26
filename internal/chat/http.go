package chat

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HTTPHandler exposes the durable missed-message fallback path for clients
// whose transport channel is unavailable.
type HTTPHandler struct {
	log    *slog.Logger
	router *Router
}

// NewHTTPHandler constructs the aux REST surface over the router.
func NewHTTPHandler(log *slog.Logger, router *Router) *HTTPHandler {
	return &HTTPHandler{log: log, router: router}
}

// Register mounts the missed-message endpoints on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /missed-messages/{userID}", h.handleMissedMessages)
	mux.HandleFunc("POST /mark-missed-messages-read/{userID}", h.handleMarkRead)
}

type missedMessagesResponse struct {
	UserID             string           `json:"userId"`
	MissedMessageCount int              `json:"missedMessageCount"`
	ConversationCounts map[string]int   `json:"conversationCounts"`
	Summaries          []missedSummary  `json:"summaries"`
}

type missedSummary struct {
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName,omitempty"`
	ConversationID string    `json:"conversationId"`
	MessageCount   int       `json:"messageCount"`
	LatestMessage  string    `json:"latestMessage"`
	LatestAt       time.Time `json:"latestAt"`
}

type markReadResponse struct {
	UserID     string `json:"userId"`
	MarkedRead int64  `json:"markedRead"`
}

func (h *HTTPHandler) handleMissedMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := ValidateUserID("userId", r.PathValue("userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	summaries, counts, err := h.router.MissedState(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if counts == nil {
		counts = map[string]int{}
	}

	out := missedMessagesResponse{
		UserID:             userID,
		MissedMessageCount: total,
		ConversationCounts: counts,
		Summaries:          make([]missedSummary, 0, len(summaries)),
	}
	for _, s := range summaries {
		out.Summaries = append(out.Summaries, missedSummary{
			SenderID:       s.SenderID,
			SenderName:     s.SenderName,
			ConversationID: s.ConversationID,
			MessageCount:   s.Count,
			LatestMessage:  s.Latest,
			LatestAt:       s.LatestAt,
		})
	}

	h.writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := ValidateUserID("userId", r.PathValue("userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	affected, err := h.router.Acknowledge(r.Context(), userID, time.Now().UTC())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, markReadResponse{UserID: userID, MarkedRead: affected})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("http.write.fail", "err", err)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := ErrorCode(err)

	status := http.StatusInternalServerError
	switch code {
	case CodeValidation:
		status = http.StatusBadRequest
	case CodeAuthorization:
		status = http.StatusForbidden
	case CodeNotFound:
		status = http.StatusNotFound
	case CodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"details": err.Error(),
	})
}
