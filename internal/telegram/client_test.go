package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/edgescout/edgescout/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatSignalByTier(t *testing.T) {
	sig := &models.SignalOpportunity{
		EventTitle:    "Maple Leafs vs. Bruins",
		Outcome:       "Toronto Maple Leafs",
		Side:          "yes",
		MarketPrice:   0.50,
		FairProb:      0.56,
		RawEdge:       0.06,
		NetEdge:       0.0524,
		Confidence:    76,
		Urgency:       models.UrgencyHigh,
		Tier:          models.TierElite,
		Trigger:       models.TriggerBoth,
		StakeFraction: 0.03,
		StartTime:     time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC),
	}

	msg := formatSignal(sig)
	if !strings.Contains(msg, "ELITE SIGNAL") {
		t.Errorf("elite message missing header: %q", msg)
	}
	if !strings.Contains(msg, "Maple Leafs vs\\. Bruins") {
		t.Errorf("event title not escaped: %q", msg)
	}
	if !strings.Contains(msg, "Toronto Maple Leafs") {
		t.Errorf("outcome missing: %q", msg)
	}

	sig.Tier = models.TierStrong
	if msg := formatSignal(sig); !strings.Contains(msg, "Strong Signal") {
		t.Errorf("strong message missing header: %q", msg)
	}

	sig.Tier = models.TierStatic
	msg = formatSignal(sig)
	if strings.Contains(msg, "ELITE") || strings.Contains(msg, "Strong Signal") {
		t.Errorf("static message should use the plain header: %q", msg)
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// NewClient with non-numeric chatID should return an error
	// Note: This test exercises the chat ID parsing error path
	// The bot token validation happens first (network call), so we use a clearly
	// invalid format to test the error handling flow
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}
