// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var natsKeyChars = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

func TestKeyBuilder_EntityKey(t *testing.T) {
	kb := NewKeyBuilder("")

	tests := []struct {
		name       string
		entityType string
		uid        string
		want       string
	}{
		{name: "meeting key", entityType: KeyPrefixMeeting, uid: "def-456", want: "meeting/def-456"},
		{name: "task key", entityType: KeyPrefixTask, uid: "abc_123", want: "task/abc_123"},
		{name: "unsafe uid is hashed", entityType: KeyPrefixEvent, uid: "evt@google.com", want: "event/" + HashKey("evt@google.com")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kb.EntityKey(tt.entityType, tt.uid)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, natsKeyChars, got)
		})
	}
}

func TestKeyBuilder_Prefix(t *testing.T) {
	kb := NewKeyBuilder("tenant")

	assert.Equal(t, "tenant/meeting/m1", kb.EntityKey(KeyPrefixMeeting, "m1"))
	assert.Equal(t, "tenant/meeting/", kb.EntityPrefix(KeyPrefixMeeting))
	assert.Equal(t, "tenant/a/b", kb.CompoundKey("a", "b"))
}

func TestKeyBuilder_IndexKey(t *testing.T) {
	kb := NewKeyBuilder("")

	key := kb.IndexKey(KeyPrefixIndexMeeting, "meeting-1", "task-9")
	assert.Equal(t, "index/meeting/meeting-1/task-9", key)
	assert.Equal(t, "index/meeting/meeting-1/", kb.IndexPrefix(KeyPrefixIndexMeeting, "meeting-1"))
	assert.True(t, matchesPattern(key, kb.IndexPrefix(KeyPrefixIndexMeeting, "meeting-1")))
	assert.False(t, matchesPattern(key, kb.IndexPrefix(KeyPrefixIndexMeeting, "meeting-10")))
}

func TestKeyBuilder_LookupKey(t *testing.T) {
	kb := NewKeyBuilder("")

	assert.Equal(t, "lookup/bot/7a1c-44", kb.LookupKey(KeyPrefixLookupBot, "7a1c-44"))
	assert.Regexp(t, natsKeyChars, kb.LookupKey(KeyPrefixLookupConnection, "user|google|a b@example.com"))
}

func TestHashKey(t *testing.T) {
	a := HashKey("conn-1", "event-1")
	assert.Equal(t, a, HashKey("conn-1", "event-1"), "stable for equal input")
	assert.NotEqual(t, a, HashKey("conn-1", "event-2"))
	assert.NotEqual(t, HashKey("ab", "c"), HashKey("a", "bc"), "parts are delimited")
	assert.Regexp(t, `^[1-9A-HJ-NP-Za-km-z]+$`, a)
}
