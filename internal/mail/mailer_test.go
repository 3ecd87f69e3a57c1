package mail

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecoveryMessageStatesEnforcedWindow(t *testing.T) {
	_, body := RecoveryMessage("Maria", "https://example.com/alterar-senha?token=abc", time.Hour)
	assert.Contains(t, body, "link válido por 1 hora")
	assert.Contains(t, body, "https://example.com/alterar-senha?token=abc")
	assert.Contains(t, body, "Olá Maria")

	_, body = RecoveryMessage("Maria", "https://example.com/x", 10*time.Minute)
	assert.Contains(t, body, "link válido por 10 minutos")
}

func TestFormatWindow(t *testing.T) {
	cases := map[time.Duration]string{
		time.Minute:      "1 minuto",
		10 * time.Minute: "10 minutos",
		time.Hour:        "1 hora",
		2 * time.Hour:    "2 horas",
		90 * time.Minute: "90 minutos",
	}
	for window, want := range cases {
		if got := formatWindow(window); got != want {
			t.Errorf("formatWindow(%s) = %q, want %q", window, got, want)
		}
	}
}

func TestSMTPSenderRejectsBareHost(t *testing.T) {
	sender := NewSMTPSender("mail.example.com", "", "", "noreply@example.com")
	err := sender.Send(context.Background(), "user@example.com", "subject", "<p>hi</p>")
	if err == nil || !strings.Contains(err.Error(), "smtp addr") {
		t.Fatalf("expected address parse error, got %v", err)
	}
}
