package auth

import (
	"log"
	"time"
)

type Mailer interface {
	SendVerificationCode(email, code string, expiresAt time.Time) error
}

// LogMailer writes codes to the log instead of sending mail.
type LogMailer struct {
	Logger *log.Logger
}

func (m LogMailer) SendVerificationCode(email, code string, expiresAt time.Time) error {
	logger := m.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("[auth] verification code for %s is %s (expires %s)", email, code, expiresAt.Format(time.RFC3339))
	return nil
}
