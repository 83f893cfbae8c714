// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
)

func TestNatsMessage(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		hasReply bool
	}{
		{name: "published", hasReply: false},
		{name: "requested", reply: "_INBOX.abc", hasReply: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewNatsMessage(&nats.Msg{
				Subject: models.RecallWebhookBotErrorSubject,
				Reply:   tt.reply,
				Data:    []byte("payload"),
			})

			assert.Equal(t, models.RecallWebhookBotErrorSubject, msg.Subject())
			assert.Equal(t, []byte("payload"), msg.Data())
			assert.Equal(t, tt.hasReply, msg.HasReply())
		})
	}
}
