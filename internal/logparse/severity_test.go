package logparse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tinytelemetry/vxlview/internal/vxl"
)

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Standard forms
		{"CRITICAL", "CRITICAL"}, {"ERROR", "ERROR"}, {"WARNING", "WARNING"},
		{"INFO", "INFO"}, {"DETAIL", "DETAIL"}, {"DEBUG", "DEBUG"},
		// Variants
		{"CRIT", "CRITICAL"}, {"FATAL", "CRITICAL"}, {"PANIC", "CRITICAL"},
		{"ERR", "ERROR"}, {"ERRO", "ERROR"},
		{"WARN", "WARNING"}, {"WRN", "WARNING"},
		{"INFORMATION", "INFO"}, {"INF", "INFO"},
		{"VERBOSE", "DETAIL"}, {"TRACE", "DETAIL"},
		{"DBG", "DEBUG"}, {"DEB", "DEBUG"},
		// Case insensitive
		{"info", "INFO"}, {"warn", "WARNING"}, {"error", "ERROR"},
		// Prefix matching
		{"INFORMATIONAL", "INFO"}, {"WARNINGS", "WARNING"}, {"CRITICAL_ALERT", "CRITICAL"},
		// Unknown
		{"", ""}, {"UNKNOWN", ""}, {"foo", ""},
		// Whitespace
		{"  INFO  ", "INFO"}, {"\tWARN\t", "WARNING"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeSeverity(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeSeverity(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	sev, ok := ParseSeverity("warn")
	if !ok || sev != vxl.SeverityWarning {
		t.Errorf("ParseSeverity(warn) = %v, %v", sev, ok)
	}
	if _, ok := ParseSeverity("loud"); ok {
		t.Error("ParseSeverity(loud) should fail")
	}
}

func TestParseSeverityList(t *testing.T) {
	got, err := ParseSeverityList("error, crit,,error,debug")
	if err != nil {
		t.Fatalf("ParseSeverityList: %v", err)
	}
	want := []vxl.Severity{vxl.SeverityError, vxl.SeverityCritical, vxl.SeverityDebug}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseSeverityList("info,nope"); err == nil {
		t.Error("expected error for unknown severity")
	}
}
