// Package message turns raw chat messages into speakable plain text.
package message

import (
	"regexp"
	"strings"
)

var (
	reMention = regexp.MustCompile(`<@!?(\d+)>`)
	reEmoji   = regexp.MustCompile(`<a?:\w+:\d+>`)
	reURL     = regexp.MustCompile(`https?://[\w!?/+\-_~;.,*&@#$%()=']+`)
)

// Resolver maps a mentioned user id to a display name. The platform
// layer supplies the fallback (raw username) when a member lookup fails,
// so a resolver always returns something speakable.
type Resolver func(userID string) string

// Normalize converts a raw chat message into speakable text:
// mention tokens become "アットマーク<name>、", custom emoji are
// stripped, URLs collapse to "URL、", and attachments are announced.
// Pure and deterministic given its inputs.
func Normalize(raw string, resolve Resolver, attachmentCount int) string {
	text := reMention.ReplaceAllStringFunc(raw, func(token string) string {
		id := reMention.FindStringSubmatch(token)[1]
		return "アットマーク" + resolve(id) + "、"
	})

	text = reEmoji.ReplaceAllString(text, "")
	text = reURL.ReplaceAllString(text, "URL、")

	if attachmentCount > 0 {
		if strings.TrimSpace(text) == "" {
			text = "添付ファイル"
		} else {
			text = "添付ファイル、" + text
		}
	}

	return text
}
