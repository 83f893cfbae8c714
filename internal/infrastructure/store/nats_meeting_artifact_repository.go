// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
)

// NatsTranscriptRepository implements domain.TranscriptRepository using NATS KV store
type NatsTranscriptRepository struct {
	*NatsBaseRepository[models.Transcript]
	keyBuilder *KeyBuilder
}

// NewNatsTranscriptRepository creates a new transcript repository
func NewNatsTranscriptRepository(kvStore INatsKeyValue) *NatsTranscriptRepository {
	return &NatsTranscriptRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Transcript](kvStore, "transcript"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

// CreateTranscriptIfAbsent stores the transcript unless the meeting already has one
func (r *NatsTranscriptRepository) CreateTranscriptIfAbsent(ctx context.Context, transcript *models.Transcript) (bool, error) {
	return r.CreateIfAbsent(ctx, r.keyBuilder.EntityKey(KeyPrefixTranscript, transcript.MeetingUID), transcript)
}

// GetTranscript retrieves the transcript of a meeting
func (r *NatsTranscriptRepository) GetTranscript(ctx context.Context, meetingUID string) (*models.Transcript, error) {
	return r.Get(ctx, r.keyBuilder.EntityKey(KeyPrefixTranscript, meetingUID))
}

// DeleteTranscript removes the transcript of a meeting
func (r *NatsTranscriptRepository) DeleteTranscript(ctx context.Context, meetingUID string) error {
	return r.DeleteWithoutRevision(ctx, r.keyBuilder.EntityKey(KeyPrefixTranscript, meetingUID))
}

// NatsSummaryRepository implements domain.SummaryRepository using NATS KV store
type NatsSummaryRepository struct {
	*NatsBaseRepository[models.Summary]
	keyBuilder *KeyBuilder
}

// NewNatsSummaryRepository creates a new summary repository
func NewNatsSummaryRepository(kvStore INatsKeyValue) *NatsSummaryRepository {
	return &NatsSummaryRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Summary](kvStore, "summary"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

// CreateSummaryIfAbsent stores the summary unless the meeting already has one
func (r *NatsSummaryRepository) CreateSummaryIfAbsent(ctx context.Context, summary *models.Summary) (bool, error) {
	return r.CreateIfAbsent(ctx, r.keyBuilder.EntityKey(KeyPrefixSummary, summary.MeetingUID), summary)
}

// GetSummary retrieves the summary of a meeting
func (r *NatsSummaryRepository) GetSummary(ctx context.Context, meetingUID string) (*models.Summary, error) {
	return r.Get(ctx, r.keyBuilder.EntityKey(KeyPrefixSummary, meetingUID))
}

// DeleteSummary removes the summary of a meeting
func (r *NatsSummaryRepository) DeleteSummary(ctx context.Context, meetingUID string) error {
	return r.DeleteWithoutRevision(ctx, r.keyBuilder.EntityKey(KeyPrefixSummary, meetingUID))
}
