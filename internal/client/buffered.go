// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"log"
	"time"

	"github.com/privgpt-studio/privgpt-tui/internal/api"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
)

// =============================================================================
// BUFFERED CLIENT
// =============================================================================

// BufferedClient runs single request/response exchanges. It is the path
// for messages with attachments, which the streaming endpoint does not
// carry. There is no cancellation; the whole reply arrives at once.
type BufferedClient struct {
	api        *api.Client
	conv       *model.Conversation
	reconciler Reconciler

	// OnTyping mirrors StreamClient.OnTyping. Optional.
	OnTyping func(active bool)
}

// NewBufferedClient creates a buffered client writing into conv.
func NewBufferedClient(apiClient *api.Client, conv *model.Conversation, reconciler Reconciler) *BufferedClient {
	return &BufferedClient{
		api:        apiClient,
		conv:       conv,
		reconciler: reconciler,
	}
}

// Result describes a settled buffered exchange.
type Result struct {
	MessageID string
	SessionID string
	Latency   time.Duration
}

// Send performs one buffered exchange. On success exactly one assistant
// message is appended; on failure the transcript gains only the user
// message and the typing indicator is cleared.
func (c *BufferedClient) Send(ctx context.Context, req Request, attachment *model.FileRef) (*Result, error) {
	userMsg := model.NewUserMessage(req.Text)
	userMsg.Attachment = attachment
	c.conv.Append(userMsg)

	c.notifyTyping(true)

	startedUnderDraft := req.SessionID == model.DraftSessionID || req.SessionID == ""

	resp, err := c.api.Chat(ctx, api.ChatRequest{
		Message:    req.Text,
		ModelType:  req.Model.Type,
		ModelName:  req.Model.Name,
		SessionID:  req.SessionID,
		MentionIDs: req.MentionIDs,
	}, attachment)

	c.notifyTyping(false)
	if err != nil {
		return nil, err
	}

	assistant := model.NewMessage(model.RoleAssistant, resp.Response)
	assistant.Timestamp = api.ParseEventTime(resp.Timestamp)
	c.conv.Append(assistant)

	if startedUnderDraft && resp.SessionID != "" && resp.SessionID != model.DraftSessionID {
		if err := c.reconciler.Reconcile(ctx, resp.SessionID); err != nil {
			log.Printf("session reconcile failed: %v", err)
		}
	}

	return &Result{
		MessageID: assistant.ID,
		SessionID: resp.SessionID,
		Latency:   time.Duration(resp.Latency) * time.Millisecond,
	}, nil
}

func (c *BufferedClient) notifyTyping(active bool) {
	if c.OnTyping != nil {
		c.OnTyping(active)
	}
}
