// ABOUTME: Terminal rendering of chat state for the REPL
// ABOUTME: Prints new messages as they arrive, the conversation list, and notifications

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/render"
	"github.com/2389/coven-chat/internal/store"
)

const newConversationLabel = "New Conversation"

var (
	humanLabel  = color.New(color.FgGreen, color.Bold)
	aiLabel     = color.New(color.FgMagenta, color.Bold)
	dim         = color.New(color.FgHiBlack)
	activeStyle = color.New(color.FgCyan, color.Bold)
	errorStyle  = color.New(color.FgRed)
	infoStyle   = color.New(color.FgYellow)
	okStyle     = color.New(color.FgGreen)
)

// view serializes all terminal output.
type view struct {
	mu      sync.Mutex
	out     io.Writer
	session string // session whose messages have been printed
	printed int    // how many of its messages are on screen
}

func newView(out io.Writer) *view {
	return &view{out: out}
}

// follow redraws on every state change and prints notifications until ctx ends.
func (v *view) follow(ctx context.Context, s *chat.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			return
		case n := <-s.Notifications():
			v.notify(n)
		case <-s.Changes():
			v.update(s.Snapshot())
		}
	}
}

// update prints whatever part of the thread is not on screen yet.
func (v *view) update(st chat.State) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if st.CurrentSession != v.session || len(st.Messages) < v.printed {
		v.session = st.CurrentSession
		v.printed = 0
		if st.CurrentSession != "" {
			dim.Fprintf(v.out, "\n── conversation %s ──\n", st.CurrentSession)
		} else {
			dim.Fprintf(v.out, "\n── %s ──\n", newConversationLabel)
		}
	}

	for _, m := range st.Messages[v.printed:] {
		v.writeMessage(m)
	}
	v.printed = len(st.Messages)
}

func (v *view) writeMessage(m store.Message) {
	if m.IsHuman() {
		humanLabel.Fprint(v.out, "you › ")
	} else {
		aiLabel.Fprint(v.out, "agent › ")
	}
	body := render.Message(m)
	fmt.Fprintln(v.out, indent(body, "  "))
}

// conversations prints the list and returns the session ids in printed order.
func (v *view) conversations(st chat.State) []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	if st.ConversationsLoading && len(st.Conversations) == 0 {
		dim.Fprintln(v.out, "Loading conversations...")
		return nil
	}
	if len(st.Conversations) == 0 {
		fmt.Fprintln(v.out, "No conversations yet")
		return nil
	}

	ids := make([]string, len(st.Conversations))
	fmt.Fprintln(v.out, "Conversations:")
	for i, c := range st.Conversations {
		ids[i] = c.SessionID
		title := c.Title
		if title == "" {
			title = newConversationLabel
		}
		line := fmt.Sprintf("%3d. %s", i+1, title)
		if c.SessionID == st.CurrentSession {
			activeStyle.Fprintln(v.out, line+"  ◀")
		} else {
			fmt.Fprintln(v.out, line)
		}
		if c.LastMessage != "" {
			dim.Fprintf(v.out, "     %s\n", oneLine(render.Preview(c.LastMessage), 60))
		}
	}
	return ids
}

func (v *view) notify(n chat.Notification) {
	v.mu.Lock()
	defer v.mu.Unlock()

	style := infoStyle
	switch n.Kind {
	case chat.KindError:
		style = errorStyle
	case chat.KindSuccess:
		style = okStyle
	}
	if n.Description != "" {
		style.Fprintf(v.out, "[%s] %s\n", n.Title, n.Description)
	} else {
		style.Fprintf(v.out, "[%s]\n", n.Title)
	}
}

func (v *view) prompt(st chat.State) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case st.Sending:
		dim.Fprint(v.out, "(sending) > ")
	case st.CurrentSession == "":
		fmt.Fprint(v.out, "[new]> ")
	default:
		fmt.Fprintf(v.out, "[%s]> ", shortID(st.CurrentSession))
	}
}

func (v *view) help(authEnabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintln(v.out, "Commands:")
	fmt.Fprintln(v.out, "  /list              List conversations")
	fmt.Fprintln(v.out, "  /switch <n|id>     Open a conversation")
	fmt.Fprintln(v.out, "  /new               Start a new conversation")
	fmt.Fprintln(v.out, "  /refresh           Reload the conversation list")
	if authEnabled {
		fmt.Fprintln(v.out, "  /signup <e> <p>    Create an account")
		fmt.Fprintln(v.out, "  /signin <e> <p>    Sign in")
		fmt.Fprintln(v.out, "  /signout           Sign out")
		fmt.Fprintln(v.out, "  /whoami            Show the signed-in user")
	}
	fmt.Fprintln(v.out, "  /help              Show this help")
	fmt.Fprintln(v.out, "  /quit              Exit")
	fmt.Fprintln(v.out, "Anything else is sent to the agent. Start with // to send a leading slash.")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = prefix + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// oneLine flattens s and cuts it to at most n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
