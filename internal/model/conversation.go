// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"time"
)

// MaxMessages is the maximum number of messages to keep in the transcript.
// When exceeded, old messages are pruned to prevent unbounded memory growth.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the append-ordered message log for the active session.
//
// The streaming client mutates it from the transport goroutine while the UI
// reads it from the render loop, so all access goes through the mutex.
// Messages are appended in order; existing messages are only ever modified
// through SetContent and SetTimestamp, which address a message by its ID.
type Conversation struct {
	mu       sync.Mutex
	messages []*Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		messages: make([]*Message, 0),
	}
}

// NewConversationWithWelcome creates a conversation seeded with a fresh
// greeting message.
func NewConversationWithWelcome() *Conversation {
	c := NewConversation()
	c.Append(NewWelcomeMessage())
	return c
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the end of the log.
func (c *Conversation) Append(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	c.pruneLocked()
}

// AppendUserMessage creates and appends a user message, returning its ID.
func (c *Conversation) AppendUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	c.Append(msg)
	return msg
}

// AppendAssistantMessage creates and appends a streaming assistant message,
// returning its ID so the stream can address it for content updates.
func (c *Conversation) AppendAssistantMessage() *Message {
	msg := NewAssistantMessage()
	c.Append(msg)
	return msg
}

// SetContent replaces the content of the message with the given ID.
// Returns false if no such message exists.
func (c *Conversation) SetContent(id, content string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := c.findLocked(id)
	if msg == nil {
		return false
	}
	msg.Content = content
	return true
}

// SetTimestamp replaces the timestamp of the message with the given ID.
// Returns false if no such message exists.
func (c *Conversation) SetTimestamp(id string, ts time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := c.findLocked(id)
	if msg == nil {
		return false
	}
	msg.Timestamp = ts
	return true
}

// FinishStreaming clears the streaming flag on the message with the given ID.
func (c *Conversation) FinishStreaming(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := c.findLocked(id)
	if msg == nil {
		return false
	}
	msg.IsStreaming = false
	return true
}

// Get returns a copy of the message with the given ID, or nil.
func (c *Conversation) Get(id string) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := c.findLocked(id)
	if msg == nil {
		return nil
	}
	cp := *msg
	return &cp
}

// Last returns a copy of the most recent message, or nil if empty.
func (c *Conversation) Last() *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	cp := *c.messages[len(c.messages)-1]
	return &cp
}

// Snapshot returns a copy of the message log for rendering or export.
// The returned messages are copies; mutating them does not affect the log.
func (c *Conversation) Snapshot() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Message, len(c.messages))
	for i, msg := range c.messages {
		cp := *msg
		out[i] = &cp
	}
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Reset replaces the whole log with the given messages. Used when switching
// sessions or clearing the chat.
func (c *Conversation) Reset(messages []*Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = make([]*Message, len(messages))
	copy(c.messages, messages)
}

// =============================================================================
// INTERNAL
// =============================================================================

// findLocked returns the message with the given ID. Caller holds c.mu.
func (c *Conversation) findLocked(id string) *Message {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			return c.messages[i]
		}
	}
	return nil
}

// pruneLocked drops the oldest messages past MaxMessages. Caller holds c.mu.
func (c *Conversation) pruneLocked() {
	if len(c.messages) <= MaxMessages {
		return
	}
	drop := len(c.messages) - MaxMessages
	c.messages = append(c.messages[:0:0], c.messages[drop:]...)
}
