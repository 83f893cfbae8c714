// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
)

// urlPattern matches HTTP and HTTPS URLs up to whitespace, angle brackets or quotes.
var urlPattern = regexp.MustCompile(`(?i)https?://[^\s<>"]+`)

// EntryPointVideo is the conference entry point type carrying a join link.
const EntryPointVideo = "video"

// platformHosts lists, in scan priority order, the hosts that identify each
// conferencing platform in free text.
var platformHosts = []struct {
	platform models.Platform
	hosts    []string
}{
	{platform: models.PlatformZoom, hosts: []string{"zoom.us"}},
	{platform: models.PlatformTeams, hosts: []string{"teams.microsoft.com", "teams.live.com"}},
	{platform: models.PlatformMeet, hosts: []string{"meet.google.com"}},
	{platform: models.PlatformWebex, hosts: []string{"webex.com"}},
}

// ExtractURLs returns the distinct HTTP/HTTPS URLs of text in order of appearance.
func ExtractURLs(text string) []string {
	if text == "" {
		return []string{}
	}

	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	urls := make([]string, 0, len(matches))

	for _, u := range matches {
		u = cleanTrailingPunctuation(u)
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}

	return urls
}

// cleanTrailingPunctuation strips sentence punctuation captured after a URL.
func cleanTrailingPunctuation(u string) string {
	return strings.TrimRight(u, ".,!?;:)]}")
}

// ExtractDomain returns the hostname of a URL, or the input when it has none.
func ExtractDomain(urlString string) string {
	parsed, err := url.Parse(urlString)
	if err != nil {
		return urlString
	}
	if parsed.Hostname() != "" {
		return parsed.Hostname()
	}
	return urlString
}

// DetectPlatform classifies a join link by its host.
func DetectPlatform(meetingURL string) models.Platform {
	host := strings.ToLower(ExtractDomain(meetingURL))
	for _, candidate := range platformHosts {
		if hostMatches(host, candidate.hosts) {
			return candidate.platform
		}
	}
	return models.PlatformOther
}

// ExtractMeetingURL finds the join link of a calendar event. The native hangout link
// wins, then the first video entry point, then the first URL in the description or
// location whose host names a known platform (zoom, teams, meet, webex, in that order).
// It returns an empty url when the event has no join link.
func ExtractMeetingURL(event models.ProviderEvent) (string, models.Platform) {
	if event.HangoutLink != "" {
		return event.HangoutLink, models.PlatformMeet
	}

	for _, entry := range event.EntryPoints {
		if entry.EntryPointType == EntryPointVideo && entry.URI != "" {
			return entry.URI, DetectPlatform(entry.URI)
		}
	}

	urls := ExtractURLs(event.Description + " " + event.Location)
	for _, candidate := range platformHosts {
		for _, u := range urls {
			if hostMatches(strings.ToLower(ExtractDomain(u)), candidate.hosts) {
				return u, candidate.platform
			}
		}
	}

	return "", ""
}

func hostMatches(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
