package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/dustcast-service/internal/domain"
)

func TestFormatAlert(t *testing.T) {
	previous := domain.RiskAssessment{RiskScore: 0.25, RiskLevel: domain.RiskLow}
	current := domain.RiskAssessment{
		Timestamp:        time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC),
		RiskScore:        0.68,
		RiskLevel:        domain.RiskHigh,
		TriggeredFactors: []string{domain.FactorDust, domain.FactorTemperature},
	}

	msg := formatAlert("Tashkent, Uzbekistan", previous, current)

	assert.Contains(t, msg, "🔴")
	assert.Contains(t, msg, "HIGH")
	assert.Contains(t, msg, "low → high")
	assert.Contains(t, msg, `0\.68`)
	assert.Contains(t, msg, `0\.25`)
	assert.Contains(t, msg, "dust, temperature")
	assert.Contains(t, msg, `2025\-07\-14 09:30 UTC`)
	// Location commas survive, periods and dashes are escaped for MarkdownV2.
	assert.Contains(t, msg, "Tashkent, Uzbekistan")
}

func TestLevelEmoji(t *testing.T) {
	assert.Equal(t, "🔴", levelEmoji(domain.RiskHigh))
	assert.Equal(t, "🟡", levelEmoji(domain.RiskModerate))
	assert.Equal(t, "🟢", levelEmoji(domain.RiskLow))
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"risk: 0.68", `risk: 0\.68`},
		{"a-b_c", `a\-b\_c`},
		{"(2025)", `\(2025\)`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeMarkdownV2(tt.in))
	}
}
