// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
)

// NatsMessage adapts a *nats.Msg to [domain.Message].
type NatsMessage struct {
	msg *nats.Msg
}

var _ domain.Message = (*NatsMessage)(nil)

// NewNatsMessage wraps msg.
func NewNatsMessage(msg *nats.Msg) *NatsMessage {
	return &NatsMessage{msg: msg}
}

// Subject implements [domain.Message].
func (m *NatsMessage) Subject() string {
	return m.msg.Subject
}

// Data implements [domain.Message].
func (m *NatsMessage) Data() []byte {
	return m.msg.Data
}

// Respond implements [domain.Message].
func (m *NatsMessage) Respond(data []byte) error {
	return m.msg.Respond(data)
}

// HasReply implements [domain.Message].
func (m *NatsMessage) HasReply() bool {
	return m.msg.Reply != ""
}
