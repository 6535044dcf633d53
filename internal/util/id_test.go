package util

import (
	"regexp"
	"strings"
	"testing"
)

func TestGenerateShortID(t *testing.T) {
	t.Run("length is always 6", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			id, err := GenerateShortID()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(id) != 6 {
				t.Errorf("expected length 6, got %d for id %q", len(id), id)
			}
		}
	})

	t.Run("contains only alphanumeric characters", func(t *testing.T) {
		pattern := regexp.MustCompile(`^[a-zA-Z0-9]+$`)
		for i := 0; i < 100; i++ {
			id, err := GenerateShortID()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !pattern.MatchString(id) {
				t.Errorf("id %q contains non-alphanumeric characters", id)
			}
		}
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id, err := GenerateShortID()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seen[id] {
				t.Errorf("duplicate id generated: %q", id)
			}
			seen[id] = true
		}
	})
}

func TestGenerateTaskID(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"load back->front", "load-back-front-"},
		{"warm-up", "warm-up-"},
		{"generate collagan/all.280824", "generate-collagan-all-280824-"},
		{"", "task-"},
		{"!!!", "task-"},
	}

	pattern := regexp.MustCompile(`-[a-zA-Z0-9]{6}$`)
	for _, tc := range tests {
		t.Run(tc.prefix, func(t *testing.T) {
			result := GenerateTaskID(tc.name)
			if !strings.HasPrefix(result, tc.prefix) {
				t.Errorf("GenerateTaskID(%q) = %q, want prefix %q", tc.name, result, tc.prefix)
			}
			if !pattern.MatchString(result) {
				t.Errorf("GenerateTaskID(%q) = %q, want 6-character suffix", tc.name, result)
			}
		})
	}
}

func TestToKebabCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"hello_world", "hello-world"},
		{"Hello---World", "hello-world"},
		{"  Hello  ", "hello"},
		{"Feature: Auth!", "feature-auth"},
		{"", ""},
		{"already-kebab", "already-kebab"},
		{"MixedCase_And Spaces", "mixedcase-and-spaces"},
		{"123 Numbers 456", "123-numbers-456"},
		{"---leading-trailing---", "leading-trailing"},
		{"pixel-sides/all,230224", "pixel-sides-all230224"},
		{"model.json", "model-json"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			result := toKebabCase(tc.input)
			if result != tc.expected {
				t.Errorf("toKebabCase(%q) = %q, want %q", tc.input, result, tc.expected)
			}
		})
	}
}
