// Package history talks to the backend REST API: paginated room history and
// the room list.
package history

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
	"github.com/aebaduq/arabsocial-chat/internal/wire"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

// Page is one history page in chronological order.
type Page struct {
	Messages []domain.Message
	Meta     wire.PageMeta
}

// HasMore reports whether older pages remain.
func (p Page) HasMore() bool {
	return p.Meta.Page < p.Meta.LastPage
}

// FetchError is returned for any failed REST call. StatusCode is zero when
// the request never got a response.
type FetchError struct {
	Op         string
	RoomID     string
	Page       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.RoomID != "" {
		fmt.Fprintf(&b, " room %s", e.RoomID)
	}
	if e.Page > 0 {
		fmt.Fprintf(&b, " page %d", e.Page)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, tokens TokenSource, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.Named("history"),
	}
}

// FetchPage returns one page of a room's persisted messages, oldest first.
// The server lists newest first; the order is reversed here.
func (c *Client) FetchPage(ctx context.Context, roomID string, page, pageSize int) (Page, error) {
	if roomID == "" {
		return Page{}, domain.ErrEmptyRoomID
	}
	if page < 1 || pageSize <= 0 {
		return Page{}, fmt.Errorf("%w: page=%d size=%d", domain.ErrInvalidPage, page, pageSize)
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))
	path := "/chats/" + url.PathEscape(roomID) + "/messages?" + q.Encode()

	var resp wire.HistoryResponse
	if err := c.get(ctx, path, &resp); err != nil {
		err.Op = "fetch history"
		err.RoomID = roomID
		err.Page = page
		c.logger.Warn("history fetch failed", zap.String("room", roomID), zap.Int("page", page), zap.Error(err))
		return Page{}, err
	}

	msgs := make([]domain.Message, 0, len(resp.Data))
	for i := len(resp.Data) - 1; i >= 0; i-- {
		msgs = append(msgs, resp.Data[i].Message(domain.OriginHistory, roomID))
	}
	if resp.Meta.Page == 0 {
		resp.Meta.Page = page
	}

	c.logger.Debug("history page fetched",
		zap.String("room", roomID),
		zap.Int("page", resp.Meta.Page),
		zap.Int("last_page", resp.Meta.LastPage),
		zap.Int("count", len(msgs)),
	)
	return Page{Messages: msgs, Meta: resp.Meta}, nil
}

// ListRooms returns the user's chat rooms.
func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var resp wire.RoomsResponse
	if err := c.get(ctx, "/chats", &resp); err != nil {
		err.Op = "list rooms"
		return nil, err
	}
	rooms := make([]domain.Room, len(resp.Data))
	for i, r := range resp.Data {
		rooms[i] = r.Room()
	}
	return rooms, nil
}

func (c *Client) get(ctx context.Context, path string, out any) *FetchError {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 400 {
		var errResp wire.ErrorResponse
		json.Unmarshal(body, &errResp)
		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", msg)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
