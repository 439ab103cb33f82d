// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"github.com/google/uuid"

	"github.com/privgpt-studio/privgpt-tui/internal/api"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
)

// The backend stores assistant turns under the role "bot".
const wireRoleBot = "bot"

// SessionFromDoc maps one remote session document onto a sidebar entry.
// This is the only place the wire field names are interpreted.
func SessionFromDoc(doc api.SessionDoc) *model.ChatSession {
	s := &model.ChatSession{
		ID:        doc.ID,
		Name:      doc.Name,
		CreatedAt: api.ParseEventTime(doc.CreatedAt),
	}
	if s.Name == "" {
		s.Name = model.DraftSessionName
	}
	if n := len(doc.Messages); n > 0 {
		last := model.Message{Content: doc.Messages[n-1].Content}
		s.LastMessage = last.Preview(60)
	}
	return s
}

// MessagesFromDocs maps a stored transcript onto domain messages. Loaded
// transcripts always start with a fresh greeting, timestamped like the
// first stored message so the transcript reads in order.
func MessagesFromDocs(docs []api.MessageDoc) []*model.Message {
	out := make([]*model.Message, 0, len(docs)+1)

	welcome := model.NewWelcomeMessage()
	if len(docs) > 0 {
		welcome.Timestamp = api.ParseEventTime(docs[0].Timestamp)
	}
	out = append(out, welcome)

	for _, doc := range docs {
		role := model.RoleUser
		if doc.Role == wireRoleBot {
			role = model.RoleAssistant
		}
		msg := &model.Message{
			ID:        "msg_" + uuid.NewString(),
			Role:      role,
			Content:   doc.Content,
			Timestamp: api.ParseEventTime(doc.Timestamp),
		}
		if doc.UploadedFile != nil {
			msg.Attachment = &model.FileRef{
				Name:     doc.UploadedFile.Name,
				Size:     doc.UploadedFile.Size,
				MimeType: doc.UploadedFile.Type,
			}
		}
		out = append(out, msg)
	}
	return out
}
