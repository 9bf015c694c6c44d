// Package forum implements the client for the remote forum service: the
// authentication-token lifecycle (validate, login, persist) and the
// discovery and submission endpoints used by a sweep.
//
// All requests pass through a shared rate limiter so a sweep never bursts
// against the service. Transport failures never panic; the session probe
// and login report plain booleans, and the listing and submission methods
// return wrapped errors for the caller to scope.
package forum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wkchan/forum-reply-bot/internal/config"
	"github.com/wkchan/forum-reply-bot/internal/domain"
)

// ErrAuthFailed is returned by EnsureSession when both the session probe
// and a fresh login fail. It is fatal for the run.
var ErrAuthFailed = errors.New("forum: authentication failed")

// ErrPageNotFound is returned when the configured page display name does
// not appear in the page listing.
var ErrPageNotFound = errors.New("forum: page not found")

// VirtualRoomGUID identifies the service's synthetic "recent posts" room.
// It is not returned by the room listing but is accepted by the
// conversation listing endpoint.
const VirtualRoomGUID = "00000000-0000-0000-0000-000000000000"

// credTokenKey is the credential-store key holding the bearer token.
const credTokenKey = "auth_token"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

// Credentials is the durable key/value holder for the session token.
type Credentials interface {
	Get(key, def string) string
	Set(key, value string) error
}

// Client talks to the forum's query and command services on behalf of one
// account. It is not safe for concurrent use; a sweep is single-threaded.
type Client struct {
	// HTTPClient may be replaced before first use (tests, custom timeouts).
	HTTPClient *http.Client
	// Limiter paces all outgoing requests.
	Limiter *rate.Limiter
	// VirtualRoomTitle names the synthetic room prepended to every room
	// listing. Empty disables the synthetic room.
	VirtualRoomTitle string

	cfg   config.ForumConfig
	creds Credentials
	token string
	log   zerolog.Logger
}

// NewClient builds a Client for cfg, loading any previously persisted
// session token from creds.
func NewClient(cfg config.ForumConfig, creds Credentials, lg zerolog.Logger) *Client {
	return &Client{
		HTTPClient:       &http.Client{Timeout: 30 * time.Second},
		Limiter:          rate.NewLimiter(rate.Every(time.Second), 1),
		VirtualRoomTitle: "Recent Subjects",
		cfg:              cfg,
		creds:            creds,
		token:            creds.Get(credTokenKey, ""),
		log:              lg.With().Str("component", "forum").Logger(),
	}
}

// Token exposes the current bearer token, primarily for tests.
func (c *Client) Token() string { return c.token }

// do paces, decorates, and sends a request. The Authorization header is
// attached whenever a token is held.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if err := c.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if c.cfg.Origin != "" {
		req.Header.Set("Origin", c.cfg.Origin)
		req.Header.Set("Referer", c.cfg.Origin+"/")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.HTTPClient.Do(req)
}

// postJSON sends a JSON body to a command-service endpoint and decodes a
// 2xx response into out (when out is non-nil).
func (c *Client) postJSON(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.CommandURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: unexpected status %d", endpoint, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ValidateSession probes the service with the held token. Only a 2xx
// answer counts as a valid session; any transport error or other status is
// an invalid session, never a crash.
func (c *Client) ValidateSession(ctx context.Context) bool {
	if c.token == "" {
		return false
	}
	probe := fmt.Sprintf("%s/PageService/AllowedToNavigateToPage?pageGuid=%s",
		c.cfg.QueryURL, url.QueryEscape(c.cfg.ProbePageGUID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe, nil)
	if err != nil {
		return false
	}
	resp, err := c.do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("session probe failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Info().Int("status", resp.StatusCode).Msg("session invalid")
		return false
	}
	return true
}

// Login submits the account credentials. The raw response body is the new
// bearer token; it replaces the previous token in memory and in the
// credential store, and is applied to all subsequent requests. Any failure
// (transport, non-2xx, empty body) reports false and leaves the previous
// token untouched.
func (c *Client) Login(ctx context.Context) bool {
	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)
	form.Set("change", "undefined")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.CommandURL+"/AuthorizationService/ParticipantLogin",
		strings.NewReader(form.Encode()))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("login request failed")
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error().Int("status", resp.StatusCode).Err(err).Msg("login rejected")
		return false
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		c.log.Error().Msg("login returned empty token")
		return false
	}

	c.token = token
	if err := c.creds.Set(credTokenKey, token); err != nil {
		// The session still works in memory; the next run will just log in again.
		c.log.Warn().Err(err).Msg("could not persist refreshed token")
	}
	c.log.Info().Msg("login successful, token refreshed")
	return true
}

// EnsureSession establishes a usable session: probe first, log in only if
// the probe fails, and give up with ErrAuthFailed if the login also fails.
// No retries happen within a run.
func (c *Client) EnsureSession(ctx context.Context) error {
	if c.ValidateSession(ctx) {
		return nil
	}
	if c.Login(ctx) {
		return nil
	}
	return ErrAuthFailed
}

// LookupPage resolves a community page by display name with a linear scan
// over the page listing. First match wins; no match is ErrPageNotFound.
func (c *Client) LookupPage(ctx context.Context, name string) (domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.QueryURL+"/PageService/ListPageConsumer", nil)
	if err != nil {
		return domain.Page{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return domain.Page{}, fmt.Errorf("list pages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Page{}, fmt.Errorf("list pages: unexpected status %d", resp.StatusCode)
	}
	var pages pageListResponse
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return domain.Page{}, fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages.List {
		if p.Name == name {
			return domain.Page{GUID: p.Guid, Name: p.Name}, nil
		}
	}
	return domain.Page{}, fmt.Errorf("%w: %q", ErrPageNotFound, name)
}

// ListRooms returns the visible rooms of a page. When VirtualRoomTitle is
// set, the service's synthetic recent-posts room is prepended since the
// listing endpoint never reports it.
func (c *Client) ListRooms(ctx context.Context, pageGUID string) ([]domain.Room, error) {
	var res roomListResponse
	if err := c.postJSON(ctx, "/ForumService/GetForumRooms", roomListRequest{Guid: pageGUID}, &res); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	var rooms []domain.Room
	if c.VirtualRoomTitle != "" {
		rooms = append(rooms, domain.Room{GUID: VirtualRoomGUID, Title: c.VirtualRoomTitle})
	}
	for _, r := range res.Rooms {
		if !r.IsVisible {
			continue
		}
		rooms = append(rooms, domain.Room{GUID: r.Guid, Title: r.Name, TopicCount: r.ConversationsCount})
	}
	return rooms, nil
}

// ListConversations returns up to limit of the newest conversations in a
// room, mapped to domain values. Content falls back from Message to Title;
// the author label takes the first non-empty of the three name fields the
// service may populate.
func (c *Client) ListConversations(ctx context.Context, pageGUID, roomGUID string, limit int) ([]domain.Conversation, error) {
	in := conversationListRequest{
		PageGuid:   pageGUID,
		RoomGuid:   roomGUID,
		PageNumber: 1,
		Limit:      limit,
	}
	var res conversationListResponse
	if err := c.postJSON(ctx, "/ForumService/GetConversationsInRoom", in, &res); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]domain.Conversation, 0, len(res.Items))
	for _, it := range res.Items {
		content := it.Message
		if content == "" {
			content = it.Title
		}
		out = append(out, domain.Conversation{
			GUID:     it.Guid,
			RoomGUID: it.RoomGuid,
			Title:    it.Title,
			Content:  content,
			Author:   firstNonEmpty(it.Username, it.ParticipantDisplayName, it.CreatedByName),
			IsLiked:  it.IsLiked,
			PostedAt: it.DatePosted,
		})
	}
	return out, nil
}

// ReplyAndLike posts message as a reply to postGUID in roomGUID, then likes
// the freshly created reply. The reply payload travels as a JSON-encoded
// multipart form field named "request"; the response body is the new
// conversation GUID as a quoted string.
func (c *Client) ReplyAndLike(ctx context.Context, roomGUID, postGUID, message string) error {
	inner := replyRequest{
		Room:              roomGUID,
		Guid:              postGUID,
		ParentMessageGuid: postGUID,
		Message:           message,
		Type:              4,
		Stimuli:           []string{},
		Attachments:       []string{},
	}
	encoded, err := json.Marshal(inner)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("request", string(encoded)); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.CommandURL+"/ConversationService/ReplyToConversation", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("reply: unexpected status %d", resp.StatusCode)
	}

	replyGUID := strings.Trim(strings.TrimSpace(string(body)), `"`)
	if replyGUID == "" {
		return errors.New("reply: empty conversation guid in response")
	}
	c.log.Debug().Str("reply_guid", replyGUID).Msg("reply accepted")

	if err := c.postJSON(ctx, "/ConversationService/LikeConversation", likeRequest{ConversationGuid: replyGUID}, nil); err != nil {
		return fmt.Errorf("like: %w", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
