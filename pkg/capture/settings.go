package capture

import (
	"time"

	"github.com/scottring/family-planner-sub006/pkg/ocr"
)

// DefaultPollInterval is how often a mailbox is checked.
const DefaultPollInterval = 5 * time.Minute

// EmailSettings control the mailbox monitor.
type EmailSettings struct {
	Enabled            bool          `json:"enabled" yaml:"enabled"`
	MonitoredAddresses []string      `json:"monitoredAddresses" yaml:"monitored_addresses"`
	Query              string        `json:"query" yaml:"query"`
	PollInterval       time.Duration `json:"pollInterval" yaml:"poll_interval"`
}

// SMSSettings control the SMS webhook.
type SMSSettings struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	PhoneNumber string `json:"phoneNumber" yaml:"phone_number"`
}

// OCRSettings control photo recognition.
type OCRSettings struct {
	Enabled             bool    `json:"enabled" yaml:"enabled"`
	AutoProcess         bool    `json:"autoProcess" yaml:"auto_process"`
	ConfidenceThreshold float64 `json:"confidenceThreshold" yaml:"confidence_threshold"`
}

// NLPSettings choose the optional analyzers.
type NLPSettings struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	AIEnabled bool `json:"aiEnabled" yaml:"ai_enabled"`
}

// Settings are one owner's capture preferences.
type Settings struct {
	OwnerID string        `json:"ownerId"`
	Email   EmailSettings `json:"email"`
	SMS     SMSSettings   `json:"sms"`
	OCR     OCRSettings   `json:"ocr"`
	NLP     NLPSettings   `json:"nlp"`
}

// DefaultSettings are used for owners that never saved any.
func DefaultSettings(ownerID string) *Settings {
	return &Settings{
		OwnerID: ownerID,
		Email:   EmailSettings{PollInterval: DefaultPollInterval, Query: "is:unread"},
		OCR:     OCRSettings{Enabled: true, AutoProcess: true, ConfidenceThreshold: ocr.DefaultThreshold},
		NLP:     NLPSettings{Enabled: true, AIEnabled: true},
	}
}

// SettingsPatch updates only the sections that are set.
type SettingsPatch struct {
	Email *EmailSettings `json:"email,omitempty"`
	SMS   *SMSSettings   `json:"sms,omitempty"`
	OCR   *OCRSettings   `json:"ocr,omitempty"`
	NLP   *NLPSettings   `json:"nlp,omitempty"`
}

// Apply merges p into s.
func (p SettingsPatch) Apply(s *Settings) {
	if p.Email != nil {
		s.Email = *p.Email
		if s.Email.PollInterval <= 0 {
			s.Email.PollInterval = DefaultPollInterval
		}
	}
	if p.SMS != nil {
		s.SMS = *p.SMS
	}
	if p.OCR != nil {
		s.OCR = *p.OCR
		if s.OCR.ConfidenceThreshold <= 0 || s.OCR.ConfidenceThreshold > 1 {
			s.OCR.ConfidenceThreshold = ocr.DefaultThreshold
		}
	}
	if p.NLP != nil {
		s.NLP = *p.NLP
	}
}

// SettingsListener is told when an owner's settings change. The mailbox
// monitor uses it to start or stop polling.
type SettingsListener interface {
	SettingsChanged(s *Settings)
}
