// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import "time"

// Scheduler job names and default intervals
const (
	JobAutoJoin       = "auto-join"
	JobCalendarSync   = "calendar-sync"
	JobRetentionSweep = "retention-sweep"

	DefaultAutoJoinInterval       = time.Minute
	DefaultCalendarSyncInterval   = 15 * time.Minute
	DefaultRetentionSweepInterval = 24 * time.Hour
)

const (
	// CalendarSyncHoursAhead is how far ahead calendar providers are read.
	CalendarSyncHoursAhead = 48

	// AutoJoinWindow is the width of the start-time window matched on each scan.
	AutoJoinWindow = time.Minute

	// MaxTransitionAttempts bounds the re-read and retry loop of a conditional update.
	MaxTransitionAttempts = 3

	// RecallProviderName names the recording provider in errors and metrics.
	RecallProviderName = "recall"
)
