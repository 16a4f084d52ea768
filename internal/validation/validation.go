package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
)

const (
	DefaultMaxMessageLength = 4000
	MaxGroupNameLength      = 100
	MaxDescriptionLength    = 255
	MaxClientIDLength       = 64
	MaxStatusLength         = 32
)

var clientIDRe = regexp.MustCompile(`^[A-Za-z0-9_\-:.]{1,64}$`)

// TrimAndLimit trims surrounding whitespace and cuts s to at most max runes.
func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}

// MessageContent normalizes message text. Empty content is rejected.
func MessageContent(content string, max int) (string, error) {
	if max <= 0 {
		max = DefaultMaxMessageLength
	}
	content = TrimAndLimit(content, max)
	if content == "" {
		return "", errs.InvalidArgument("message content is empty")
	}
	return content, nil
}

func GroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.InvalidArgument("group name is required")
	}
	if utf8.RuneCountInString(name) > MaxGroupNameLength {
		return "", errs.InvalidArgument("group name is too long")
	}
	return name, nil
}

func Description(desc string) string {
	return TrimAndLimit(desc, MaxDescriptionLength)
}

// ClientID validates an optional client-supplied message id; "" is allowed.
func ClientID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", nil
	}
	if !clientIDRe.MatchString(id) {
		return "", errs.InvalidArgument("invalid client_id")
	}
	return id, nil
}

func Status(status string) (string, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return "", errs.InvalidArgument("status is required")
	}
	if utf8.RuneCountInString(status) > MaxStatusLength {
		return "", errs.InvalidArgument("status is too long")
	}
	return status, nil
}

// UniqueIDs drops zeros and duplicates while keeping first-seen order.
func UniqueIDs(ids []uint, exclude ...uint) []uint {
	skip := make(map[uint]struct{}, len(ids)+len(exclude))
	skip[0] = struct{}{}
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; ok {
			continue
		}
		skip[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
