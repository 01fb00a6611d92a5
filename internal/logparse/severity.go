package logparse

import (
	"fmt"
	"strings"

	"github.com/tinytelemetry/vxlview/internal/vxl"
)

// NormalizeSeverity converts the various spellings of a VXL severity to its
// canonical short form (CRITICAL, ERROR, WARNING, INFO, DETAIL, DEBUG).
// Unknown input returns "".
func NormalizeSeverity(severity string) string {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "CRITICAL", "CRIT", "CRT", "FATAL", "FATL", "FTL", "PANIC":
		return "CRITICAL"
	case "ERROR", "ERR", "ERRO":
		return "ERROR"
	case "WARNING", "WARN", "WRNG", "WRN":
		return "WARNING"
	case "INFO", "INFORMATION", "INF":
		return "INFO"
	case "DETAIL", "DETAILS", "DTL", "VERBOSE", "TRACE":
		return "DETAIL"
	case "DEBUG", "DEBU", "DBG", "DEB":
		return "DEBUG"
	default:
		if len(normalized) >= 4 {
			switch normalized[:4] {
			case "CRIT", "FATA":
				return "CRITICAL"
			case "ERRO":
				return "ERROR"
			case "WARN":
				return "WARNING"
			case "INFO":
				return "INFO"
			case "DETA":
				return "DETAIL"
			case "DEBU":
				return "DEBUG"
			}
		}
		return ""
	}
}

// ParseSeverity maps a severity name to its vxl level.
func ParseSeverity(s string) (vxl.Severity, bool) {
	name := NormalizeSeverity(s)
	if name == "" {
		return 0, false
	}
	for i := 0; i < vxl.NumSeverities; i++ {
		if vxl.Severity(i).String() == name {
			return vxl.Severity(i), true
		}
	}
	return 0, false
}

// ParseSeverityList parses a comma separated list such as "error,warn".
// Empty items are ignored; duplicates are kept once.
func ParseSeverityList(s string) ([]vxl.Severity, error) {
	var out []vxl.Severity
	seen := make(map[vxl.Severity]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		sev, ok := ParseSeverity(part)
		if !ok {
			return nil, fmt.Errorf("unknown severity %q", strings.TrimSpace(part))
		}
		if !seen[sev] {
			seen[sev] = true
			out = append(out, sev)
		}
	}
	return out, nil
}
