// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package calendar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/teambition/rrule-go"
)

// maxFeedBytes bounds the size of a downloaded iCalendar feed.
const maxFeedBytes = 10 << 20

// ICS date-time layouts
const (
	icsDateTimeUTC   = "20060102T150405Z"
	icsDateTimeLocal = "20060102T150405"
	icsDate          = "20060102"
)

// ICSConfig holds the settings of the iCalendar feed provider.
type ICSConfig struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// ICSProvider reads events from a subscribed iCalendar (RFC 5545) feed and expands
// recurring events locally.
type ICSProvider struct {
	httpClient *http.Client
	now        func() time.Time
}

var _ domain.CalendarProvider = (*ICSProvider)(nil)

// NewICSProvider creates an iCalendar feed provider.
func NewICSProvider(cfg ICSConfig) *ICSProvider {
	return &ICSProvider{
		httpClient: newHTTPClient(cfg.HTTPClient, cfg.Timeout),
		now:        time.Now,
	}
}

// Name implements domain.CalendarProvider.
func (p *ICSProvider) Name() string {
	return models.CalendarProviderICS
}

// RefreshAccessToken is not supported; feeds are addressed by a secret URL.
func (p *ICSProvider) RefreshAccessToken(ctx context.Context, connection *models.CalendarConnection) (*models.TokenRefresh, error) {
	return nil, domain.NewValidationError("ics connections do not use access tokens")
}

// ListUpcomingEvents downloads the feed and returns the occurrences starting within
// hoursAhead, ordered by start time.
func (p *ICSProvider) ListUpcomingEvents(ctx context.Context, connection *models.CalendarConnection, hoursAhead int) ([]models.ProviderEvent, error) {
	if connection.FeedURL == "" {
		return nil, domain.NewValidationError("ics connection has no feed url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, connection.FeedURL, nil)
	if err != nil {
		return nil, domain.NewValidationError("invalid feed url", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewProviderUnavailableError(models.CalendarProviderICS, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, domain.NewProviderUnavailableError(models.CalendarProviderICS,
			fmt.Errorf("feed returned status %d", resp.StatusCode))
	}

	components, err := parseICS(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ics feed: %w", err)
	}

	from := p.now()
	to := from.Add(time.Duration(hoursAhead) * time.Hour)

	// Instances moved or edited individually replace the generated occurrence.
	overrides := make(map[string]bool)
	for _, c := range components {
		if id := c.overrideID(); id != "" {
			overrides[id] = true
		}
	}

	var events []models.ProviderEvent
	for _, c := range components {
		occurrences, err := c.expand(from, to, overrides)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable ics event",
				"connection_uid", connection.UID,
				"event_uid", c.uid,
				logging.ErrKey, err)
			continue
		}
		events = append(events, occurrences...)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

// icsProperty is one content line: NAME;PARAM=VALUE:value
type icsProperty struct {
	name   string
	params map[string]string
	value  string
}

// vevent is the raw form of one VEVENT component.
type vevent struct {
	uid         string
	summary     string
	description string
	location    string
	url         string
	status      string
	start       *icsProperty
	end         *icsProperty
	duration    string
	rrule       string
	exdates     []*icsProperty
	recurrence  *icsProperty
}

// parseICS unfolds the feed and collects its VEVENT components.
func parseICS(r io.Reader) ([]*vevent, error) {
	lines, err := unfold(r)
	if err != nil {
		return nil, err
	}

	var (
		events  []*vevent
		current *vevent
		depth   int // nesting inside the current VEVENT (VALARM etc.)
	)

	for _, line := range lines {
		prop, ok := parseProperty(line)
		if !ok {
			continue
		}

		switch {
		case prop.name == "BEGIN" && strings.EqualFold(prop.value, "VEVENT"):
			current = &vevent{}
			depth = 0
			continue
		case prop.name == "BEGIN" && current != nil:
			depth++
			continue
		case prop.name == "END" && current != nil && depth > 0:
			depth--
			continue
		case prop.name == "END" && strings.EqualFold(prop.value, "VEVENT"):
			if current != nil {
				events = append(events, current)
			}
			current = nil
			continue
		}

		if current == nil || depth > 0 {
			continue
		}
		current.set(prop)
	}

	return events, nil
}

func (e *vevent) set(prop *icsProperty) {
	switch prop.name {
	case "UID":
		e.uid = prop.value
	case "SUMMARY":
		e.summary = unescapeText(prop.value)
	case "DESCRIPTION":
		e.description = unescapeText(prop.value)
	case "LOCATION":
		e.location = unescapeText(prop.value)
	case "URL":
		e.url = prop.value
	case "STATUS":
		e.status = strings.ToUpper(prop.value)
	case "DTSTART":
		e.start = prop
	case "DTEND":
		e.end = prop
	case "DURATION":
		e.duration = prop.value
	case "RRULE":
		e.rrule = prop.value
	case "EXDATE":
		e.exdates = append(e.exdates, prop)
	case "RECURRENCE-ID":
		e.recurrence = prop
	}
}

// overrideID is the occurrence id replaced by this component, or empty for a
// master or single event.
func (e *vevent) overrideID() string {
	if e.recurrence == nil {
		return ""
	}
	rid, err := parseICSTime(e.recurrence)
	if err != nil {
		return ""
	}
	return e.uid + "_" + rid.UTC().Format(icsDateTimeUTC)
}

// expand returns the occurrences of the event starting in [from, to), leaving out
// the generated occurrences named in overrides.
func (e *vevent) expand(from, to time.Time, overrides map[string]bool) ([]models.ProviderEvent, error) {
	if e.status == "CANCELLED" {
		return nil, nil
	}
	if e.start == nil {
		return nil, fmt.Errorf("missing DTSTART")
	}

	start, err := parseICSTime(e.start)
	if err != nil {
		return nil, fmt.Errorf("DTSTART: %w", err)
	}

	length, err := e.length(start)
	if err != nil {
		return nil, err
	}

	if e.rrule == "" || e.recurrence != nil {
		if start.Before(from) || !start.Before(to) {
			return nil, nil
		}
		return []models.ProviderEvent{e.occurrence(e.uid, start, length)}, nil
	}

	option, err := rrule.StrToROptionInLocation(e.rrule, start.Location())
	if err != nil {
		return nil, fmt.Errorf("RRULE: %w", err)
	}
	option.Dtstart = start
	rule, err := rrule.NewRRule(*option)
	if err != nil {
		return nil, fmt.Errorf("RRULE: %w", err)
	}

	set := &rrule.Set{}
	set.RRule(rule)
	for _, ex := range e.exdates {
		for _, value := range strings.Split(ex.value, ",") {
			exdate, err := parseICSTime(&icsProperty{name: ex.name, params: ex.params, value: value})
			if err != nil {
				continue
			}
			set.ExDate(exdate)
		}
	}

	starts := set.Between(from, to, true)
	occurrences := make([]models.ProviderEvent, 0, len(starts))
	for _, s := range starts {
		if !s.Before(to) {
			continue
		}
		id := e.uid + "_" + s.UTC().Format(icsDateTimeUTC)
		if overrides[id] {
			continue
		}
		occurrences = append(occurrences, e.occurrence(id, s, length))
	}
	return occurrences, nil
}

func (e *vevent) length(start time.Time) (time.Duration, error) {
	switch {
	case e.end != nil:
		end, err := parseICSTime(e.end)
		if err != nil {
			return 0, fmt.Errorf("DTEND: %w", err)
		}
		return end.Sub(start), nil
	case e.duration != "":
		return parseICSDuration(e.duration)
	default:
		return 0, nil
	}
}

func (e *vevent) occurrence(id string, start time.Time, length time.Duration) models.ProviderEvent {
	title := e.summary
	if title == "" {
		title = "No title"
	}
	location := e.location
	if e.url != "" {
		location = strings.TrimSpace(location + " " + e.url)
	}
	if oid := e.overrideID(); oid != "" {
		id = oid
	}
	return models.ProviderEvent{
		ID:          id,
		Title:       title,
		Description: e.description,
		Location:    location,
		Start:       start.UTC(),
		End:         start.Add(length).UTC(),
	}
}

// unfold joins RFC 5545 folded lines (continuations start with a space or tab).
func unfold(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFeedBytes)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	return lines, nil
}

// parseProperty splits a content line. Colons inside quoted parameter values do
// not end the name part.
func parseProperty(line string) (*icsProperty, bool) {
	inQuotes := false
	split := -1
	for i, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
		}
		if r == ':' && !inQuotes {
			split = i
			break
		}
	}
	if split <= 0 {
		return nil, false
	}

	head := strings.Split(line[:split], ";")
	prop := &icsProperty{
		name:   strings.ToUpper(head[0]),
		params: make(map[string]string, len(head)-1),
		value:  line[split+1:],
	}
	for _, p := range head[1:] {
		if k, v, ok := strings.Cut(p, "="); ok {
			prop.params[strings.ToUpper(k)] = strings.Trim(v, `"`)
		}
	}
	return prop, true
}

// parseICSTime reads DATE and DATE-TIME values, honoring TZID. Floating times are
// read as UTC.
func parseICSTime(prop *icsProperty) (time.Time, error) {
	value := strings.TrimSpace(prop.value)

	if prop.params["VALUE"] == "DATE" || len(value) == len(icsDate) {
		return time.ParseInLocation(icsDate, value, time.UTC)
	}
	if strings.HasSuffix(value, "Z") {
		return time.Parse(icsDateTimeUTC, value)
	}

	loc := time.UTC
	if tzid := prop.params["TZID"]; tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	return time.ParseInLocation(icsDateTimeLocal, value, loc)
}

// parseICSDuration reads the dur-value of RFC 5545 (e.g. PT1H30M, P1D, -PT15M).
func parseICSDuration(value string) (time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(value))
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	s = s[1:]

	var (
		total  time.Duration
		number int
		digits bool
		inTime bool
	)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			number = number*10 + int(r-'0')
			digits = true
			continue
		case r == 'T':
			inTime = true
			continue
		}
		if !digits {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		unit := time.Duration(number)
		switch {
		case r == 'W':
			total += unit * 7 * 24 * time.Hour
		case r == 'D':
			total += unit * 24 * time.Hour
		case r == 'H' && inTime:
			total += unit * time.Hour
		case r == 'M' && inTime:
			total += unit * time.Minute
		case r == 'S' && inTime:
			total += unit * time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		number, digits = 0, false
	}
	if digits {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return sign * total, nil
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(value string) string {
	return textUnescaper.Replace(value)
}
