package domain

import (
	"strconv"
)

// Well-known settings keys. Values live encrypted (where marked) in the
// configurations table and are editable at runtime through the settings API.
const (
	SettingOpenAIAPIKey      = "OPENAI_API_KEY"      // encrypted
	SettingHFToken           = "HF_TOKEN"            // encrypted
	SettingOpenAIAssistantID = "OPENAI_ASSISTANT_ID"
	SettingWhisperXModel     = "WHISPERX_MODEL"
	SettingDiarDevice        = "DIAR_DEVICE"
	SettingAlignDevice       = "ALIGN_DEVICE"
	SettingSMTPHost          = "SMTP_HOST"
	SettingSMTPPort          = "SMTP_PORT"
	SettingSMTPUser          = "SMTP_USER"
	SettingSMTPPass          = "SMTP_PASS"
	SettingSMTPFrom          = "SMTP_FROM"
	SettingEmailSchedule     = "EMAIL_SCHEDULE"
	SettingSummaryTrigger    = "SUMMARY_TRIGGER_COUNT"
)

// EncryptedSettingKeys lists the keys whose values are encrypted at rest.
var EncryptedSettingKeys = []string{SettingOpenAIAPIKey, SettingHFToken}

// WorkerSettingKeys is the allow-list of settings forwarded to the external
// worker. Anything outside this list (SMTP credentials in particular) never
// leaves the process.
var WorkerSettingKeys = []string{
	SettingOpenAIAPIKey,
	SettingHFToken,
	SettingOpenAIAssistantID,
	SettingWhisperXModel,
	SettingDiarDevice,
	SettingAlignDevice,
}

// Settings is the decrypted key/value view of the configurations table.
type Settings map[string]string

// IsEncryptedSetting reports whether the key's value is encrypted at rest.
func IsEncryptedSetting(key string) bool {
	for _, k := range EncryptedSettingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// WorkerView returns only the allow-listed entries forwarded to the worker.
func (s Settings) WorkerView() Settings {
	view := make(Settings, len(WorkerSettingKeys))
	for _, key := range WorkerSettingKeys {
		if v, ok := s[key]; ok && v != "" {
			view[key] = v
		}
	}
	return view
}

// SummaryTriggerCount returns the batch volume threshold, falling back to
// def when the setting is absent or unparseable.
func (s Settings) SummaryTriggerCount(def int) int {
	raw, ok := s[SettingSummaryTrigger]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// EmailSchedule returns the batch trigger cron expression, falling back to
// def when unset.
func (s Settings) EmailSchedule(def string) string {
	if v, ok := s[SettingEmailSchedule]; ok && v != "" {
		return v
	}
	return def
}

// SMTPComplete reports whether every field required to send mail is present.
func (s Settings) SMTPComplete() bool {
	for _, key := range []string{SettingSMTPHost, SettingSMTPPort, SettingSMTPUser, SettingSMTPPass, SettingSMTPFrom} {
		if s[key] == "" {
			return false
		}
	}
	return true
}

// SMTPPort returns the configured SMTP port, or 0 when missing or invalid.
func (s Settings) SMTPPort() int {
	n, err := strconv.Atoi(s[SettingSMTPPort])
	if err != nil {
		return 0
	}
	return n
}
