package gmail

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/kusius/letterbox/internal/provider"
)

const userID = "me"

// Client implements provider.MailProvider against the Gmail REST API.
// Token refresh on 401 is handled inside the oauth2 token source, which
// serializes the refresh so concurrent requests share a single re-auth.
type Client struct {
	tokenStore *TokenStore
	service    *gmailapi.Service
}

// New creates a Gmail client that loads its OAuth token from the keyring.
func New(tokenStore *TokenStore) *Client {
	return &Client{tokenStore: tokenStore}
}

// Authenticate runs the OAuth2 flow, saves the token, and initializes the
// Gmail service.
func (c *Client) Authenticate(ctx context.Context) error {
	token, err := authenticate(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate gmail: %w", err)
	}
	if err := c.tokenStore.SaveToken(token); err != nil {
		return fmt.Errorf("failed to save gmail token: %w", err)
	}
	return c.buildService(ctx, token)
}

func (c *Client) buildService(ctx context.Context, token *oauth2.Token) error {
	src := oauth2.ReuseTokenSource(token, oauthConfig.TokenSource(ctx, token))
	srv, err := gmailapi.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return fmt.Errorf("failed to create gmail service: %w", err)
	}
	c.service = srv
	return nil
}

// ensureService lazily initializes the Gmail service from the stored token.
func (c *Client) ensureService(ctx context.Context) error {
	if c.service != nil {
		return nil
	}
	token, err := c.tokenStore.LoadToken()
	if err != nil {
		return fmt.Errorf("failed to load gmail token: %w", err)
	}
	return c.buildService(ctx, token)
}

// ListMessageRefs returns one page of message refs for the mailbox.
func (c *Client) ListMessageRefs(ctx context.Context, opts provider.ListOptions) ([]provider.MessageRef, string, error) {
	if err := c.ensureService(ctx); err != nil {
		return nil, "", err
	}

	call := c.service.Users.Messages.List(userID)
	if len(opts.LabelIDs) > 0 {
		call = call.LabelIds(opts.LabelIDs...)
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list gmail messages: %w", err)
	}

	refs := make([]provider.MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		refs = append(refs, provider.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, resp.NextPageToken, nil
}

// GetMessage fetches a single message with its full payload tree.
func (c *Client) GetMessage(ctx context.Context, id string) (*provider.Message, error) {
	if err := c.ensureService(ctx); err != nil {
		return nil, err
	}

	msg, err := c.service.Users.Messages.Get(userID, id).
		Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get gmail message %s: %w", id, err)
	}
	return mapMessage(msg), nil
}

// HistorySince returns one page of history records after the cursor.
func (c *Client) HistorySince(ctx context.Context, cursor uint64, pageToken string) (*provider.HistoryPage, error) {
	if err := c.ensureService(ctx); err != nil {
		return nil, err
	}

	call := c.service.Users.History.List(userID).StartHistoryId(cursor)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list gmail history since %d: %w", cursor, err)
	}
	return mapHistoryPage(resp), nil
}

// ModifyLabels adds and removes labels on a message.
func (c *Client) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	if err := c.ensureService(ctx); err != nil {
		return err
	}

	req := &gmailapi.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	if _, err := c.service.Users.Messages.Modify(userID, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to modify labels on message %s: %w", id, err)
	}
	return nil
}

// TrashMessage moves a message to trash.
func (c *Client) TrashMessage(ctx context.Context, id string) error {
	if err := c.ensureService(ctx); err != nil {
		return err
	}

	if _, err := c.service.Users.Messages.Trash(userID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to trash gmail message %s: %w", id, err)
	}
	return nil
}

// GetAttachment fetches the body of an attachment part.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) (*provider.MessagePartBody, error) {
	if err := c.ensureService(ctx); err != nil {
		return nil, err
	}

	body, err := c.service.Users.Messages.Attachments.Get(userID, messageID, attachmentID).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s of message %s: %w", attachmentID, messageID, err)
	}
	return &provider.MessagePartBody{
		AttachmentID: body.AttachmentId,
		Size:         body.Size,
		Data:         body.Data,
	}, nil
}

// Compile-time interface compliance check.
var _ provider.MailProvider = (*Client)(nil)
