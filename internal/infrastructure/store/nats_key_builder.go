// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/akamensky/base58"
)

// Common key prefixes
const (
	// Entity prefixes
	KeyPrefixMeeting    = "meeting"
	KeyPrefixTranscript = "transcript"
	KeyPrefixSummary    = "summary"
	KeyPrefixTask       = "task"
	KeyPrefixConnection = "connection"
	KeyPrefixEvent      = "event"

	// Index prefixes
	KeyPrefixIndex        = "index"
	KeyPrefixIndexMeeting = "meeting"
	KeyPrefixIndexUser    = "user"

	// Lookup prefixes
	KeyPrefixLookup           = "lookup"
	KeyPrefixLookupBot        = "bot"
	KeyPrefixLookupConnection = "connection"
)

// safeKeyToken matches values that can be used verbatim inside a NATS KV key.
var safeKeyToken = regexp.MustCompile(`^[-_=a-zA-Z0-9]+$`)

// KeyBuilder provides utilities for building consistent NATS KV keys
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
	}
}

// EntityKey builds a key for an entity (e.g., "meeting/uid-123")
func (kb *KeyBuilder) EntityKey(entityType, uid string) string {
	return kb.applyPrefix(fmt.Sprintf("%s/%s", entityType, kb.Token(uid)))
}

// EntityPrefix is the key prefix shared by every entity of a type.
func (kb *KeyBuilder) EntityPrefix(entityType string) string {
	return kb.applyPrefix(entityType + "/")
}

// IndexKey builds a key for an index (e.g., "index/meeting/meeting-uid/task-uid")
func (kb *KeyBuilder) IndexKey(indexType, indexValue, entityUID string) string {
	return kb.applyPrefix(fmt.Sprintf("%s/%s/%s/%s", KeyPrefixIndex, indexType, kb.Token(indexValue), kb.Token(entityUID)))
}

// IndexPrefix is the key prefix of every index entry for one index value.
func (kb *KeyBuilder) IndexPrefix(indexType, indexValue string) string {
	return kb.applyPrefix(fmt.Sprintf("%s/%s/%s/", KeyPrefixIndex, indexType, kb.Token(indexValue)))
}

// LookupKey builds a key whose value is the UID of the entity it resolves to
// (e.g., "lookup/bot/bot-id").
func (kb *KeyBuilder) LookupKey(lookupType, value string) string {
	return kb.applyPrefix(fmt.Sprintf("%s/%s/%s", KeyPrefixLookup, lookupType, kb.Token(value)))
}

// CompoundKey builds a compound key from multiple parts
func (kb *KeyBuilder) CompoundKey(parts ...string) string {
	return kb.applyPrefix(strings.Join(parts, "/"))
}

// Token returns value when it is a valid key token, and its hash otherwise.
func (kb *KeyBuilder) Token(value string) string {
	if safeKeyToken.MatchString(value) {
		return value
	}
	return HashKey(value)
}

// applyPrefix adds the builder's prefix if one is set
func (kb *KeyBuilder) applyPrefix(key string) string {
	if kb.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s/%s", kb.prefix, key)
}

// HashKey derives a stable key token from arbitrary parts. The result is the
// base58 encoding of the SHA-256 of the NUL-joined parts, so it only holds
// characters NATS accepts in keys.
func HashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return base58.Encode(sum[:])
}
