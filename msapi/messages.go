package msapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gravitational/trace"
	"github.com/tidwall/gjson"

	"github.com/covalent-labs/teams-relay/lib"
)

// createdDateTimeField is the message field used for time filtering
const createdDateTimeField = "createdDateTime"

// Target selects the conversation to read: either a channel within a team,
// or a direct chat. Exactly one of the two variants must be populated.
type Target struct {
	TeamID    string
	ChannelID string
	ChatID    string
}

// Check validates that exactly one target variant is populated.
func (t Target) Check() error {
	if t.ChatID != "" && (t.TeamID != "" || t.ChannelID != "") {
		return trace.BadParameter("cannot specify both chat_id and team_id/channel_id")
	}
	if t.ChatID == "" && (t.TeamID == "" || t.ChannelID == "") {
		return trace.BadParameter("must provide either chat_id or both team_id and channel_id")
	}
	return nil
}

func (t Target) path() string {
	if t.ChatID != "" {
		return "chats/" + url.PathEscape(t.ChatID) + "/messages"
	}
	return "teams/" + url.PathEscape(t.TeamID) + "/channels/" + url.PathEscape(t.ChannelID) + "/messages"
}

// Message is an opaque message record returned by the Graph API. The client
// does not interpret its content beyond the creation timestamp.
type Message = json.RawMessage

// FetchResult is the aggregate of all the pages of a message listing,
// preserving the order in which pages and in-page messages were received.
type FetchResult struct {
	Count    int       `json:"count"`
	Messages []Message `json:"messages"`
}

// messagePage represents a single page of a Graph API message listing
type messagePage struct {
	Value    []Message `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

// GetMessages fetches all messages of the target conversation, draining the
// pagination. When since is non-nil, messages created before it are filtered
// out client-side; messages with a missing or unreadable creation timestamp
// are kept.
func (c *Client) GetMessages(ctx context.Context, target Target, since *time.Time) (FetchResult, error) {
	if err := target.Check(); err != nil {
		return FetchResult{}, trace.Wrap(err)
	}
	return c.drain(ctx, c.baseURL+"/"+target.path(), since)
}

// GetMessageReplies fetches all replies to a channel message, draining the
// pagination.
func (c *Client) GetMessageReplies(ctx context.Context, teamID, channelID, messageID string) (FetchResult, error) {
	if teamID == "" || channelID == "" || messageID == "" {
		return FetchResult{}, trace.BadParameter("team_id, channel_id and message_id are all required")
	}
	next := c.baseURL + "/teams/" + url.PathEscape(teamID) +
		"/channels/" + url.PathEscape(channelID) +
		"/messages/" + url.PathEscape(messageID) + "/replies"
	return c.drain(ctx, next, nil)
}

// drain walks the pagination sequentially starting from next. The whole
// operation fails atomically: a partial aggregate is never returned.
func (c *Client) drain(ctx context.Context, next string, since *time.Time) (FetchResult, error) {
	bearer, err := c.token.Bearer(ctx)
	if err != nil {
		return FetchResult{}, trace.Wrap(err, "failed to authenticate")
	}

	var messages []Message
	var pages int

	for next != "" {
		if c.maxPages > 0 && pages >= c.maxPages {
			return FetchResult{}, trace.LimitExceeded("pagination exceeded the limit of %v pages", c.maxPages)
		}

		page, err := c.getPage(ctx, next, bearer)
		if err != nil {
			return FetchResult{}, trace.Wrap(err)
		}

		for _, msg := range page.Value {
			if since != nil && !createdSince(msg, *since) {
				continue
			}
			messages = append(messages, msg)
		}

		next = page.NextLink
		pages++
	}

	return FetchResult{Count: len(messages), Messages: messages}, nil
}

func (c *Client) getPage(ctx context.Context, pageURL, bearer string) (*messagePage, error) {
	var page messagePage

	resp, err := c.client.NewRequest().
		SetContext(ctx).
		SetAuthToken(bearer).
		SetResult(&page).
		Get(pageURL)
	if err != nil {
		if lib.IsDeadline(err) || lib.IsCanceled(err) {
			return nil, trace.Wrap(err, "Microsoft Graph API did not respond in time")
		}
		return nil, trace.ConnectionProblem(err, "network error while contacting Microsoft Graph API")
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return nil, &UnauthorizedError{Detail: "invalid or expired token"}
	case resp.StatusCode() == http.StatusForbidden:
		return nil, trace.AccessDenied(
			"insufficient permissions to access messages, required: Channel.ReadBasic.All and ChannelMessage.Read.All for channels, Chat.Read.All for chats")
	case resp.StatusCode() == http.StatusNotFound:
		return nil, trace.NotFound("team, channel, or chat does not exist")
	case !resp.IsSuccess():
		return nil, &APIError{Status: resp.StatusCode(), Detail: errorDetail(resp.Body())}
	}

	return &page, nil
}

// createdSince reports whether the message was created at or after the
// boundary. Messages with a missing or unparseable createdDateTime are
// considered in scope rather than silently dropped.
func createdSince(msg Message, since time.Time) bool {
	created := gjson.GetBytes(msg, createdDateTimeField)
	if !created.Exists() || created.Type != gjson.String {
		return true
	}
	createdAt, err := time.Parse(time.RFC3339, created.String())
	if err != nil {
		return true
	}
	return !createdAt.Before(since)
}
