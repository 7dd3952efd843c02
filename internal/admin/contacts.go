// Package admin delivers diagnostic alerts to the bot administrators.
package admin

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Proton-105/stepbot/internal/platform"
)

// Contacts lists the chats and users that receive alerts.
type Contacts struct {
	ChatIDs []int64
	UserIDs []int64
}

var (
	usersPattern = regexp.MustCompile(`(?:^|;)\s*users:(-?\d[^;]*);`)
	chatsPattern = regexp.MustCompile(`(?:^|;)\s*chats:(-?\d[^;]*);`)
)

// ParseContacts reads the "chats:-1,-2;users:3,4;" format. Duplicates and unparsable ids are dropped.
func ParseContacts(s string) Contacts {
	s = strings.TrimSpace(s)
	if s != "" && !strings.HasSuffix(s, ";") {
		s += ";"
	}

	return Contacts{
		ChatIDs: parseIDs(chatsPattern, s),
		UserIDs: parseIDs(usersPattern, s),
	}
}

func parseIDs(re *regexp.Regexp, s string) []int64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	var ids []int64
	seen := make(map[int64]struct{})
	for _, part := range strings.Split(m[1], ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func (c Contacts) Empty() bool {
	return len(c.ChatIDs) == 0 && len(c.UserIDs) == 0
}

// Targets returns chats first, then user dialogs.
func (c Contacts) Targets() []platform.Target {
	targets := make([]platform.Target, 0, len(c.ChatIDs)+len(c.UserIDs))
	for _, id := range c.ChatIDs {
		targets = append(targets, platform.ToChat(id))
	}
	for _, id := range c.UserIDs {
		targets = append(targets, platform.ToUser(id))
	}
	return targets
}

// IsAdmin reports whether userID is listed as an admin user.
func (c Contacts) IsAdmin(userID int64) bool {
	for _, id := range c.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
