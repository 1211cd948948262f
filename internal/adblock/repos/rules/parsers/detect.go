package parsers

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	logpkg "github.com/haukened/rr-adblock/internal/adblock/common/log"
)

// Format identifies the syntax of a rule list.
type Format int

const (
	// FormatPlain is one domain per line.
	FormatPlain Format = iota
	// FormatHosts is /etc/hosts syntax.
	FormatHosts
	// FormatFilterList is adblock filter syntax.
	FormatFilterList
)

// String returns a stable string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatPlain:
		return "plain"
	case FormatHosts:
		return "hosts"
	case FormatFilterList:
		return "filterlist"
	default:
		return fmt.Sprintf("Format(%d)", f)
	}
}

// detectSampleLines bounds how many rule lines DetectFormat looks at.
const detectSampleLines = 200

// DetectFormat guesses the syntax of a list from its leading rule lines.
// Any adblock marker wins; otherwise a majority of "IP name" lines means hosts.
func DetectFormat(data []byte) Format {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	sampled, hostsLines := 0, 0
	for scanner.Scan() && sampled < detectSampleLines {
		line := strings.TrimSpace(stripLineBOM(scanner.Text()))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[Adblock") || strings.HasPrefix(line, "!") ||
			strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "||") ||
			strings.Contains(line, "##") || strings.HasPrefix(line, "/") ||
			strings.ContainsAny(line, "^$") {
			return FormatFilterList
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		sampled++
		fields := strings.Fields(stripInlineComment(line))
		if len(fields) >= 2 && net.ParseIP(fields[0]) != nil {
			hostsLines++
		}
	}
	if sampled > 0 && hostsLines*2 > sampled {
		return FormatHosts
	}
	return FormatPlain
}

// ParseAuto detects the format of r and parses it with the matching parser.
func ParseAuto(r io.Reader, source string, logger logpkg.Logger, now time.Time) (*FilterSet, Format, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, FormatPlain, fmt.Errorf("read %s: %w", source, err)
	}
	format := DetectFormat(data)
	logger.Debug(map[string]any{"source": source, "format": format.String()}, "parse_auto_detected")

	switch format {
	case FormatFilterList:
		set, err := ParseFilterList(bytes.NewReader(data), source, logger, now)
		return set, format, err
	case FormatHosts:
		hosts, err := ParseHostsFile(bytes.NewReader(data), source, logger, now)
		if err != nil {
			return nil, format, err
		}
		return &FilterSet{Hosts: hosts}, format, nil
	default:
		hosts, err := ParsePlainList(bytes.NewReader(data), source, logger, now)
		if err != nil {
			return nil, format, err
		}
		return &FilterSet{Hosts: hosts}, format, nil
	}
}
