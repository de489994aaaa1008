package repositories

import (
	"fmt"
	"strings"
	"time"
)

// Prefixes lists the key families of the store, for inspection tools.
var Prefixes = []string{"user:", "username:", "conv:", "pair:", "msg:", "convmsg:", "presence:"}

// Describe decodes a raw entry into a short kind and a human readable detail.
// Unknown keys or undecodable values are reported, never fail.
func Describe(key string, val []byte) (kind string, detail string) {
	family, _, _ := strings.Cut(key, ":")
	switch family {
	case "user":
		var r userRecord
		if err := decode(val, &r); err != nil {
			return "USER", "undecodable: " + err.Error()
		}
		return "USER", fmt.Sprintf("%s created %s", r.DisplayName, r.CreatedAt.Format(time.RFC3339))
	case "conv":
		var r conversationRecord
		if err := decode(val, &r); err != nil {
			return "CONVERSATION", "undecodable: " + err.Error()
		}
		return "CONVERSATION", fmt.Sprintf("%s <-> %s last activity %s",
			short(r.Participants[0]), short(r.Participants[1]), r.LastActivity.Format(time.RFC3339))
	case "msg":
		var r messageRecord
		if err := decode(val, &r); err != nil {
			return "MESSAGE", "undecodable: " + err.Error()
		}
		return "MESSAGE", fmt.Sprintf("[%s] %s -> %s: %q", r.Status, short(r.SenderID), short(r.ReceiverID), r.Content)
	case "presence":
		var r presenceRecord
		if err := decode(val, &r); err != nil {
			return "PRESENCE", "undecodable: " + err.Error()
		}
		if r.Online {
			return "PRESENCE", "online"
		}
		return "PRESENCE", "offline since " + r.LastSeen.Format(time.RFC3339)
	case "username", "pair", "convmsg":
		return "INDEX", "-> " + string(val)
	default:
		return "RAW", fmt.Sprintf("Size: %d bytes", len(val))
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
