package logger

import "strings"

// RedactPhone masks a patient phone number for log output, keeping only
// the last two digits. Phone numbers never reach the logs verbatim.
func RedactPhone(phone string) string {
	if len(phone) <= 2 {
		return "***"
	}
	return strings.Repeat("*", len(phone)-2) + phone[len(phone)-2:]
}

// RedactEmail masks the local part of an email address.
func RedactEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
