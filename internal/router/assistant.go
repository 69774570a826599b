package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/switchboard/internal/directory"
	"github.com/nextlevelbuilder/switchboard/internal/message"
)

// LocalAssistant is the built-in fallback assistant: it acknowledges the
// request deterministically instead of calling out to an AI backend. Used
// whenever no external assistant is wired in.
type LocalAssistant struct{}

func (LocalAssistant) Reply(_ context.Context, content string, user *directory.Identity, _ message.Channel) (string, error) {
	name := "there"
	if user != nil {
		if user.Name != "" {
			name = firstName(user.Name)
		} else if user.Username != "" {
			name = user.Username
		}
	}
	return fmt.Sprintf("Got it, %s. I've noted your request: %q. I'll take care of it.", name, summarize(content)), nil
}

func firstName(full string) string {
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}

func summarize(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	const max = 120
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}
