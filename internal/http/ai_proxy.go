package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// AIProxy relays chat requests to the AI microservice and streams the
// response back verbatim. It carries no decision logic of its own.
type AIProxy struct {
	baseURL       string
	client        *http.Client
	healthTimeout time.Duration
}

func NewAIProxy(baseURL string, healthTimeout time.Duration) *AIProxy {
	return &AIProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			// No overall timeout: chat responses stream for as long as the
			// model talks. Cancellation rides the request context.
		},
		healthTimeout: healthTimeout,
	}
}

type chatRequest struct {
	Message string `json:"message"`
	History []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history"`
	UserID int64 `json:"user_id"`
}

// handleChat forwards the chat body upstream with the verified user id
// injected, then relays the text/event-stream response. Upstream failures
// become a terminal SSE error event rather than a broken connection.
func (p *AIProxy) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	// The client never chooses its own identity.
	req.UserID = UserID(r.Context())

	body, err := json.Marshal(req)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	upstream.Header.Set("Content-Type", "application/json")
	upstream.Header.Set("Accept", "text/event-stream")

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	resp, err := p.client.Do(upstream)
	if err != nil {
		slog.ErrorContext(r.Context(), "AI service unreachable", "error", err)
		p.writeSSEError(w, "assistant unavailable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.ErrorContext(r.Context(), "AI service error", "status", resp.StatusCode)
		p.writeSSEError(w, fmt.Sprintf("assistant error (status %d)", resp.StatusCode))
		return
	}

	p.relay(w, r, resp.Body)
}

// relay copies the upstream stream to the client, flushing after each chunk
// so events arrive as they are produced.
func (p *AIProxy) relay(w http.ResponseWriter, r *http.Request, src io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF && r.Context().Err() == nil {
				slog.ErrorContext(r.Context(), "AI stream interrupted", "error", err)
				p.writeSSEError(w, "stream interrupted")
			}
			return
		}
	}
}

func (p *AIProxy) writeSSEError(w http.ResponseWriter, msg string) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", msg)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// handleHealth probes the upstream /health endpoint with a short timeout and
// reports the result without ever failing itself.
func (p *AIProxy) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), p.healthTimeout)
	defer cancel()

	status := "offline"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err == nil {
		if resp, err := p.client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				status = "ok"
			}
			resp.Body.Close()
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
