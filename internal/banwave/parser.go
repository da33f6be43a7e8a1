package banwave

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/neverhome/neverhome-bot/internal/model"
)

// Parser turns raw CSV text into validated ban entries plus row-level error
// messages. Two formats are accepted:
//
//  1. Header-delimited (detected when the first line mentions username,
//     nickname, name or reason, case-insensitively): columns are matched by
//     normalized header name, with username > nickname > name precedence for
//     the nickname field. Row numbers start at 2.
//
//  2. Positional: column 1 username, column 2 reason, column 3 duration
//     (optional), column 4 exclude_alt_accounts (optional). Row numbers
//     start at 1.
//
// A row with a missing username or reason is reported and skipped. An
// unparsable duration is reported AND the row is kept with a permanent
// duration. Parsing is a pure transform: same text, same output.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

var headerTokens = []string{"username", "nickname", "name", "reason"}

var truthyTokens = map[string]bool{
	"true": true,
	"1":    true,
	"yes":  true,
	"y":    true,
}

// Parse returns the entries and errors in source order.
func (p *Parser) Parse(raw string) ([]model.BanEntry, []string) {
	entries := []model.BanEntry{}
	parseErrors := []string{}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return entries, append(parseErrors, "CSV file is empty")
	}

	firstLine, _, _ := strings.Cut(trimmed, "\n")
	firstLine = strings.ToLower(firstLine)

	hasHeaders := false
	for _, token := range headerTokens {
		if strings.Contains(firstLine, token) {
			hasHeaders = true
			break
		}
	}

	if hasHeaders {
		return p.parseWithHeaders(trimmed, entries, parseErrors)
	}

	return p.parsePositional(trimmed, entries, parseErrors)
}

func (p *Parser) parseWithHeaders(raw string, entries []model.BanEntry, parseErrors []string) ([]model.BanEntry, []string) {
	reader := newRecordReader(raw)

	header, err := reader.Read()
	if err != nil {
		return entries, append(parseErrors, fmt.Sprintf("Failed to parse CSV: %v", err))
	}

	fieldNames := make([]string, len(header))
	for i, name := range header {
		fieldNames[i] = strings.ToLower(strings.TrimSpace(name))
	}

	// Row 1 is the header
	rowNum := 1

	for {
		rowNum++

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A malformed record aborts further parsing; rows already
			// collected are returned as-is.
			return entries, append(parseErrors, fmt.Sprintf("Failed to parse CSV: %v", err))
		}

		row := make(map[string]string, len(fieldNames))
		for i, name := range fieldNames {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}

		username := firstNonEmpty(row["username"], row["nickname"], row["name"])
		if username == "" {
			parseErrors = append(parseErrors, fmt.Sprintf("Row %d: Missing username/nickname", rowNum))
			continue
		}

		reason := row["reason"]
		if reason == "" {
			parseErrors = append(parseErrors, fmt.Sprintf("Row %d: Missing reason for user '%s'", rowNum, username))
			continue
		}

		duration := model.PermanentDuration
		if durationStr := row["duration"]; durationStr != "" {
			parsed, err := strconv.ParseInt(durationStr, 10, 64)
			if err != nil {
				// Reported as an error, but the entry is still added with a
				// permanent duration.
				parseErrors = append(parseErrors,
					fmt.Sprintf("Row %d: Invalid duration '%s' for user '%s', using permanent", rowNum, durationStr, username))
			} else {
				duration = parsed
			}
		}

		entries = append(entries, model.BanEntry{
			Username:           username,
			RobloxID:           row["roblox_id"],
			DiscordID:          row["discord_id"],
			Reason:             reason,
			Duration:           duration,
			ExcludeAltAccounts: isTruthy(row["exclude_alt_accounts"]),
			RowNum:             rowNum,
		})
	}

	return entries, parseErrors
}

func (p *Parser) parsePositional(raw string, entries []model.BanEntry, parseErrors []string) ([]model.BanEntry, []string) {
	// Scan physical lines rather than CSV records: a blank interior line is
	// still a numbered source row that fails the minimum-fields check, and
	// every later row keeps its source line number.
	for lineIdx, line := range strings.Split(raw, "\n") {
		rowNum := lineIdx + 1
		line = strings.TrimSuffix(line, "\r")

		if strings.TrimSpace(line) == "" {
			parseErrors = append(parseErrors, fmt.Sprintf("Row %d: Need at least username and reason", rowNum))
			continue
		}

		record, err := newRecordReader(line).Read()
		if err != nil {
			return entries, append(parseErrors, fmt.Sprintf("Failed to parse CSV: %v", err))
		}

		if len(record) < 2 {
			parseErrors = append(parseErrors, fmt.Sprintf("Row %d: Need at least username and reason", rowNum))
			continue
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		username := record[0]
		if username == "" {
			parseErrors = append(parseErrors, fmt.Sprintf("Row %d: Missing username", rowNum))
			continue
		}

		reason := record[1]
		if reason == "" {
			parseErrors = append(parseErrors, fmt.Sprintf("Row %d: Missing reason for user '%s'", rowNum, username))
			continue
		}

		duration := model.PermanentDuration
		if len(record) > 2 && record[2] != "" {
			parsed, err := strconv.ParseInt(record[2], 10, 64)
			if err != nil {
				parseErrors = append(parseErrors,
					fmt.Sprintf("Row %d: Invalid duration '%s' for user '%s', using permanent", rowNum, record[2], username))
			} else {
				duration = parsed
			}
		}

		excludeAlts := false
		if len(record) > 3 && record[3] != "" {
			excludeAlts = isTruthy(record[3])
		}

		entries = append(entries, model.BanEntry{
			Username:           username,
			RobloxID:           "", // not available in positional format
			DiscordID:          "", // not available in positional format
			Reason:             reason,
			Duration:           duration,
			ExcludeAltAccounts: excludeAlts,
			RowNum:             rowNum,
		})
	}

	return entries, parseErrors
}

func newRecordReader(raw string) *csv.Reader {
	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = false

	return reader
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}

func isTruthy(value string) bool {
	return truthyTokens[strings.ToLower(strings.TrimSpace(value))]
}
