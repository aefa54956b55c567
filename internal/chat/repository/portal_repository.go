package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hiresphere/internal/chat/domain"
)

// PortalAPI is the REST collaborator surface the sync core consumes. Room
// and message persistence live behind it; the core never stores anything.
type PortalAPI interface {
	FetchRooms(ctx context.Context) ([]domain.Room, error)
	FetchHistory(ctx context.Context, roomID int64) ([]domain.ChatMessage, error)
	// MarkRoomRead is fire-and-forget from the core's perspective.
	MarkRoomRead(ctx context.Context, roomID int64) error
}

// PortalClient is the HTTP implementation of PortalAPI.
type PortalClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewPortalClient create PortalClient
func NewPortalClient(baseURL, authToken string, timeout time.Duration) *PortalClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PortalClient{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchRooms loads the full room list for the current user.
func (c *PortalClient) FetchRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := c.get(ctx, "/chat/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// FetchHistory loads the full message history of one room.
func (c *PortalClient) FetchHistory(ctx context.Context, roomID int64) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	if err := c.get(ctx, fmt.Sprintf("/chat/rooms/%d/history", roomID), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRoomRead tells the portal the room has been read by the current user.
func (c *PortalClient) MarkRoomRead(ctx context.Context, roomID int64) error {
	return c.post(ctx, fmt.Sprintf("/chat/rooms/%d/read", roomID))
}

func (c *PortalClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *PortalClient) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	return nil
}
