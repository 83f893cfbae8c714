// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NATS Key-Value store bucket names
const (
	KVStoreNameMeetings            = "recorder-meetings"
	KVStoreNameTranscripts         = "recorder-transcripts"
	KVStoreNameSummaries           = "recorder-summaries"
	KVStoreNameTasks               = "recorder-tasks"
	KVStoreNameCalendarConnections = "recorder-calendar-connections"
	KVStoreNameCalendarEvents      = "recorder-calendar-events"
)

// AllKVStoreNames lists every bucket the recorder needs at startup.
var AllKVStoreNames = []string{
	KVStoreNameMeetings,
	KVStoreNameTranscripts,
	KVStoreNameSummaries,
	KVStoreNameTasks,
	KVStoreNameCalendarConnections,
	KVStoreNameCalendarEvents,
}

// tracerName is the instrumentation name for the store package.
const tracerName = "github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/store"

// wrongLastSequence is the server error text for a failed conditional write.
const wrongLastSequence = "wrong last sequence"

// INatsKeyValue is the subset of jetstream.KeyValue used by the repositories.
type INatsKeyValue interface {
	ListKeys(context.Context, ...jetstream.WatchOpt) (jetstream.KeyLister, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(context.Context, string, []byte) (uint64, error)
	Update(context.Context, string, []byte, uint64) (uint64, error)
	Delete(context.Context, string, ...jetstream.KVDeleteOpt) error
}

// NatsBaseRepository provides common NATS KV operations that can be reused across all repositories
type NatsBaseRepository[T any] struct {
	kvStore    INatsKeyValue
	entityName string // Used in error messages (e.g., "meeting", "task")
}

// NewNatsBaseRepository creates a new base repository for NATS KV operations
func NewNatsBaseRepository[T any](kvStore INatsKeyValue, entityName string) *NatsBaseRepository[T] {
	return &NatsBaseRepository[T]{
		kvStore:    kvStore,
		entityName: entityName,
	}
}

// IsReady checks if the repository is ready for use
func (r *NatsBaseRepository[T]) IsReady() bool {
	return r.kvStore != nil
}

func (r *NatsBaseRepository[T]) startSpan(ctx context.Context, operation, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system", "nats"),
		attribute.String("db.operation", operation),
		attribute.String("db.nats.entity", r.entityName),
	)
	if key != "" {
		attrs = append(attrs, attribute.String("db.nats.key", key))
	}
	return otel.Tracer(tracerName).Start(ctx, "nats.kv."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func recordSpanError(span trace.Span, err error, status string) error {
	span.RecordError(err)
	if status == "" {
		status = err.Error()
	}
	span.SetStatus(codes.Error, status)
	return err
}

func (r *NatsBaseRepository[T]) unavailable() error {
	return domain.NewUnavailableError(fmt.Sprintf("%s repository is not available", r.entityName))
}

// mapWriteError converts a KV write failure into a domain error.
func (r *NatsBaseRepository[T]) mapWriteError(ctx context.Context, span trace.Span, op, key string, err error) error {
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return recordSpanError(span, domain.NewNotFoundError(fmt.Sprintf("%s not found", r.entityName), err), "not found")
	}
	if strings.Contains(err.Error(), wrongLastSequence) {
		return recordSpanError(span, domain.NewConflictError(fmt.Sprintf("%s has been modified", r.entityName), err), "conflict")
	}
	slog.ErrorContext(ctx, fmt.Sprintf("error during %s of %s in NATS KV", op, r.entityName),
		logging.ErrKey, err, "key", key)
	return recordSpanError(span, domain.NewInternalError(fmt.Sprintf("failed to %s %s in store", op, r.entityName), err), "")
}

// GetRaw retrieves a raw entry from NATS KV store
func (r *NatsBaseRepository[T]) GetRaw(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	ctx, span := r.startSpan(ctx, "get", key)
	defer span.End()

	if !r.IsReady() {
		return nil, recordSpanError(span, r.unavailable(), "")
	}

	entry, err := r.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, recordSpanError(span, domain.NewNotFoundError(
				fmt.Sprintf("%s with key '%s' not found", r.entityName, key), err), "not found")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error getting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return nil, recordSpanError(span, domain.NewInternalError(
			fmt.Sprintf("failed to retrieve %s from store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return entry, nil
}

// Get retrieves and unmarshals an entity from NATS KV store
func (r *NatsBaseRepository[T]) Get(ctx context.Context, key string) (*T, error) {
	entity, _, err := r.GetWithRevision(ctx, key)
	return entity, err
}

// GetWithRevision retrieves an entity with its revision from NATS KV store
func (r *NatsBaseRepository[T]) GetWithRevision(ctx context.Context, key string) (*T, uint64, error) {
	entry, err := r.GetRaw(ctx, key)
	if err != nil {
		return nil, 0, err
	}

	entity, err := r.Unmarshal(ctx, entry)
	if err != nil {
		return nil, 0, domain.NewInternalError(
			fmt.Sprintf("failed to unmarshal %s data", r.entityName), err)
	}

	return entity, entry.Revision(), nil
}

// Unmarshal unmarshals a NATS KV entry into the entity type
func (r *NatsBaseRepository[T]) Unmarshal(ctx context.Context, entry jetstream.KeyValueEntry) (*T, error) {
	var entity T
	if err := json.Unmarshal(entry.Value(), &entity); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error unmarshaling %s", r.entityName),
			logging.ErrKey, err, "key", entry.Key())
		return nil, err
	}
	return &entity, nil
}

// Marshal marshals an entity to JSON bytes
func (r *NatsBaseRepository[T]) Marshal(ctx context.Context, entity *T) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error marshaling %s", r.entityName),
			logging.ErrKey, err)
		return nil, err
	}
	return data, nil
}

// Exists checks if an entity exists in the store
func (r *NatsBaseRepository[T]) Exists(ctx context.Context, key string) (bool, error) {
	_, err := r.GetRaw(ctx, key)
	if err != nil {
		if domain.IsErrorType(err, domain.ErrorTypeNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create writes an entity unconditionally. Callers use it for keys they own,
// such as freshly generated UIDs.
func (r *NatsBaseRepository[T]) Create(ctx context.Context, key string, entity *T) error {
	ctx, span := r.startSpan(ctx, "put", key)
	defer span.End()

	if !r.IsReady() {
		return recordSpanError(span, r.unavailable(), "")
	}

	data, err := r.Marshal(ctx, entity)
	if err != nil {
		return recordSpanError(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	if _, err := r.kvStore.Put(ctx, key, data); err != nil {
		return r.mapWriteError(ctx, span, "create", key, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// CreateIfAbsent writes the entity only when the key has never been written. It
// reports false, without error, when the key already holds a value.
func (r *NatsBaseRepository[T]) CreateIfAbsent(ctx context.Context, key string, entity *T) (bool, error) {
	ctx, span := r.startSpan(ctx, "create", key)
	defer span.End()

	if !r.IsReady() {
		return false, recordSpanError(span, r.unavailable(), "")
	}

	data, err := r.Marshal(ctx, entity)
	if err != nil {
		return false, recordSpanError(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	if _, err := r.kvStore.Update(ctx, key, data, 0); err != nil {
		if strings.Contains(err.Error(), wrongLastSequence) {
			span.SetAttributes(attribute.Bool("db.nats.already_exists", true))
			span.SetStatus(codes.Ok, "")
			return false, nil
		}
		return false, r.mapWriteError(ctx, span, "create", key, err)
	}

	span.SetStatus(codes.Ok, "")
	return true, nil
}

// Update updates an existing entity in the store with optimistic concurrency control
func (r *NatsBaseRepository[T]) Update(ctx context.Context, key string, entity *T, revision uint64) error {
	ctx, span := r.startSpan(ctx, "update", key, attribute.Int64("db.nats.revision", int64(revision)))
	defer span.End()

	if !r.IsReady() {
		return recordSpanError(span, r.unavailable(), "")
	}

	data, err := r.Marshal(ctx, entity)
	if err != nil {
		return recordSpanError(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	if _, err := r.kvStore.Update(ctx, key, data, revision); err != nil {
		return r.mapWriteError(ctx, span, "update", key, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Delete removes an entity from the store with optimistic concurrency control
func (r *NatsBaseRepository[T]) Delete(ctx context.Context, key string, revision uint64) error {
	ctx, span := r.startSpan(ctx, "delete", key, attribute.Int64("db.nats.revision", int64(revision)))
	defer span.End()

	if !r.IsReady() {
		return recordSpanError(span, r.unavailable(), "")
	}

	if err := r.kvStore.Delete(ctx, key, jetstream.LastRevision(revision)); err != nil {
		return r.mapWriteError(ctx, span, "delete", key, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// DeleteWithoutRevision removes an entity from the store without revision checking
func (r *NatsBaseRepository[T]) DeleteWithoutRevision(ctx context.Context, key string) error {
	ctx, span := r.startSpan(ctx, "delete", key)
	defer span.End()

	if !r.IsReady() {
		return recordSpanError(span, r.unavailable(), "")
	}

	if err := r.kvStore.Delete(ctx, key); err != nil {
		return r.mapWriteError(ctx, span, "delete", key, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListKeys lists all keys in the bucket
func (r *NatsBaseRepository[T]) ListKeys(ctx context.Context) ([]string, error) {
	ctx, span := r.startSpan(ctx, "list_keys", "")
	defer span.End()

	if !r.IsReady() {
		return nil, recordSpanError(span, r.unavailable(), "")
	}

	lister, err := r.kvStore.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			span.SetStatus(codes.Ok, "")
			return nil, nil
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error listing %s keys from NATS KV", r.entityName),
			logging.ErrKey, err)
		return nil, recordSpanError(span, domain.NewInternalError(
			fmt.Sprintf("failed to list %s keys from store", r.entityName), err), "")
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}

	span.SetAttributes(attribute.Int("db.nats.keys_count", len(keys)))
	span.SetStatus(codes.Ok, "")
	return keys, nil
}

// ListEntities lists all entities whose key matches keyPattern
func (r *NatsBaseRepository[T]) ListEntities(ctx context.Context, keyPattern string) ([]*T, error) {
	keys, err := r.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	var entities []*T
	for _, key := range keys {
		if keyPattern != "" && !matchesPattern(key, keyPattern) {
			continue
		}

		entity, err := r.Get(ctx, key)
		if err != nil {
			// Log error but continue with other entities
			slog.WarnContext(ctx, fmt.Sprintf("failed to get %s, skipping", r.entityName),
				"key", key, logging.ErrKey, err)
			continue
		}

		entities = append(entities, entity)
	}

	return entities, nil
}

// ListEntitiesWhere lists the entities under keyPattern that satisfy keep.
func (r *NatsBaseRepository[T]) ListEntitiesWhere(ctx context.Context, keyPattern string, keep func(*T) bool) ([]*T, error) {
	all, err := r.ListEntities(ctx, keyPattern)
	if err != nil {
		return nil, err
	}

	var matched []*T
	for _, entity := range all {
		if keep(entity) {
			matched = append(matched, entity)
		}
	}
	return matched, nil
}

// matchesPattern matches keys by prefix; "*" and "" match everything.
func matchesPattern(key, pattern string) bool {
	if pattern == "*" || pattern == "" {
		return true
	}
	return strings.HasPrefix(key, pattern)
}

// PutIndex creates an index entry in the store (stores empty value, key is used for indexing)
func (r *NatsBaseRepository[T]) PutIndex(ctx context.Context, indexKey string) error {
	if !r.IsReady() {
		return r.unavailable()
	}

	if _, err := r.kvStore.Put(ctx, indexKey, []byte{}); err != nil {
		slog.ErrorContext(ctx, "error creating index",
			logging.ErrKey, err, "index_key", indexKey)
		return domain.NewInternalError("failed to create index", err)
	}

	return nil
}

// DeleteIndex removes an index entry from the store
func (r *NatsBaseRepository[T]) DeleteIndex(ctx context.Context, indexKey string) error {
	if !r.IsReady() {
		return r.unavailable()
	}

	if err := r.kvStore.Delete(ctx, indexKey); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		slog.WarnContext(ctx, "error deleting index",
			logging.ErrKey, err, "index_key", indexKey)
		return domain.NewInternalError("failed to delete index", err)
	}

	return nil
}

// PutLookup points lookupKey at an entity UID, replacing any previous target.
func (r *NatsBaseRepository[T]) PutLookup(ctx context.Context, lookupKey, target string) error {
	if !r.IsReady() {
		return r.unavailable()
	}

	if _, err := r.kvStore.Put(ctx, lookupKey, []byte(target)); err != nil {
		slog.ErrorContext(ctx, "error writing lookup",
			logging.ErrKey, err, "lookup_key", lookupKey)
		return domain.NewInternalError("failed to write lookup", err)
	}
	return nil
}

// GetLookup returns the entity UID stored under lookupKey. A missing or
// released lookup is reported as not found.
func (r *NatsBaseRepository[T]) GetLookup(ctx context.Context, lookupKey string) (string, error) {
	entry, err := r.GetRaw(ctx, lookupKey)
	if err != nil {
		return "", err
	}
	if len(entry.Value()) == 0 {
		return "", domain.NewNotFoundError(fmt.Sprintf("%s lookup '%s' not found", r.entityName, lookupKey))
	}
	return string(entry.Value()), nil
}

// ClaimLookup atomically binds lookupKey to target. It fails with a conflict
// error when another target holds the key. Released keys can be claimed again.
func (r *NatsBaseRepository[T]) ClaimLookup(ctx context.Context, lookupKey, target string) error {
	ctx, span := r.startSpan(ctx, "claim", lookupKey)
	defer span.End()

	var revision uint64
	entry, err := r.GetRaw(ctx, lookupKey)
	switch {
	case err == nil:
		if len(entry.Value()) > 0 && string(entry.Value()) != target {
			return recordSpanError(span, domain.NewConflictError(
				fmt.Sprintf("%s already exists", r.entityName)), "conflict")
		}
		revision = entry.Revision()
	case domain.IsErrorType(err, domain.ErrorTypeNotFound):
		revision = 0
	default:
		return recordSpanError(span, err, "")
	}

	if _, err := r.kvStore.Update(ctx, lookupKey, []byte(target), revision); err != nil {
		if strings.Contains(err.Error(), wrongLastSequence) {
			return recordSpanError(span, domain.NewConflictError(
				fmt.Sprintf("%s already exists", r.entityName), err), "conflict")
		}
		return r.mapWriteError(ctx, span, "claim", lookupKey, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ReleaseLookup empties lookupKey so that it can be claimed again.
func (r *NatsBaseRepository[T]) ReleaseLookup(ctx context.Context, lookupKey string) error {
	return r.PutLookup(ctx, lookupKey, "")
}
