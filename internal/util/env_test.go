package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"yes", false, true},
		{"ON", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("INTAKELINE_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("INTAKELINE_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("INTAKELINE_TEST_INT", " 42 ")
	if got := ParseIntEnv("INTAKELINE_TEST_INT", 7); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	t.Setenv("INTAKELINE_TEST_INT", "forty")
	if got := ParseIntEnv("INTAKELINE_TEST_INT", 7); got != 7 {
		t.Errorf("got %d, want default 7", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"15m", 15 * time.Minute},
		{"600", 600 * time.Second},
		{"-5", time.Minute},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("INTAKELINE_TEST_DUR", tt.value)
		if got := ParseDurationEnv("INTAKELINE_TEST_DUR", time.Minute); got != tt.want {
			t.Errorf("ParseDurationEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("INTAKELINE_TEST_STR", "  ")
	if got := GetEnvDefault("INTAKELINE_TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}
	t.Setenv("INTAKELINE_TEST_STR", "value")
	if got := GetEnvDefault("INTAKELINE_TEST_STR", "fallback"); got != "value" {
		t.Errorf("got %q, want value", got)
	}
}
