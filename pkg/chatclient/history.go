package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strconv"
	"time"

	"campus_chat_service/pkg/wire"
)

// HistoryClient fetches persisted room history over the REST surface.
type HistoryClient struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewHistoryClient baseURL is the HTTP root, e.g. http://localhost:8084.
func NewHistoryClient(baseURL, token string) *HistoryClient {
	return &HistoryClient{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchMessages returns up to limit recent messages for a room, oldest
// first. limit <= 0 takes the server default.
func (h *HistoryClient) FetchMessages(ctx context.Context, room string, limit int) ([]wire.Message, error) {
	u, err := neturl.Parse(h.baseURL + "/api/chat/messages")
	if err != nil {
		return nil, fmt.Errorf("chatclient: bad base url %q: %w", h.baseURL, err)
	}
	q := u.Query()
	q.Set("room", room)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrAuthRejected
	default:
		return nil, fmt.Errorf("chatclient: history fetch failed: %s", resp.Status)
	}

	var body struct {
		Data []wire.Message `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("chatclient: bad history payload: %w", err)
	}
	return body.Data, nil
}
