package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/chat-ai/internal/client"
)

var (
	flagConversation uint64
	flagNew          bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your conversations, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore()
		if err != nil {
			return err
		}
		if err := st.Load(cmd.Context()); err != nil {
			return unauthorized(err)
		}
		convs := st.Conversations()
		if len(convs) == 0 {
			fmt.Println(dimStyle.Render("No conversations yet."))
			return nil
		}
		for _, c := range convs {
			fmt.Printf("%6d  %-50s %s\n", c.ID, c.Title, dimStyle.Render(c.UpdatedAt.Local().Format("2006-01-02 15:04")))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <conversation-id>",
	Short: "Show the messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		st, err := newStore()
		if err != nil {
			return err
		}
		if err := st.Load(cmd.Context()); err != nil {
			return unauthorized(err)
		}
		if err := st.Activate(cmd.Context(), id); err != nil {
			return unauthorized(err)
		}
		_, title, _ := st.Active()
		fmt.Println(titleStyle.Render(title))
		printEntries(newRenderer(), st.Messages())
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively; an empty line or /quit ends the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := selectConversation(cmd, st); err != nil {
			return unauthorized(err)
		}
		r := newRenderer()

		_, title, _ := st.Active()
		fmt.Println(titleStyle.Render(title))
		printEntries(r, st.Messages())

		for {
			fmt.Print(userStyle.Render("you> "))
			line, err := stdin.ReadString('\n')
			line = strings.TrimSpace(line)
			if line == "" || line == "/quit" {
				return nil
			}
			before := len(st.Messages())
			sendErr := st.Send(ctx, line)
			msgs := st.Messages()
			if before+1 < len(msgs) {
				printEntries(r, msgs[before+1:])
			}
			if sendErr != nil && errors.Is(sendErr, client.ErrUnauthorized) {
				return unauthorized(sendErr)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
		}
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		st, err := newStore()
		if err != nil {
			return err
		}
		if err := st.Delete(cmd.Context(), id); err != nil {
			return unauthorized(err)
		}
		fmt.Printf("Conversation %d deleted.\n", id)
		return nil
	},
}

var timetrackCmd = &cobra.Command{
	Use:       "timetrack absences|projects [project name]",
	Short:     "Ask TimeTrack who is absent or who works on which project",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"absences", "projects"},
	RunE: func(cmd *cobra.Command, args []string) error {
		queryType := args[0]
		if queryType != "absences" && queryType != "projects" {
			return fmt.Errorf("unknown query %q, want absences or projects", queryType)
		}
		var project string
		if len(args) == 2 {
			project = args[1]
		}

		st, err := newStore()
		if err != nil {
			return err
		}
		if err := selectConversation(cmd, st); err != nil {
			return unauthorized(err)
		}
		before := len(st.Messages())
		sendErr := st.SendTimeTrack(cmd.Context(), queryType, project)
		msgs := st.Messages()
		printEntries(newRenderer(), msgs[min(before, len(msgs)):])
		return unauthorized(sendErr)
	},
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, timetrackCmd} {
		c.Flags().Uint64VarP(&flagConversation, "conversation", "c", 0, "continue this conversation")
		c.Flags().BoolVar(&flagNew, "new", false, "start a new conversation")
	}
}

// selectConversation picks the conversation chat and timetrack write into:
// --new, --conversation, or the most recent one.
func selectConversation(cmd *cobra.Command, st *client.Store) error {
	ctx := cmd.Context()
	if err := st.Load(ctx); err != nil {
		return err
	}
	switch {
	case flagNew:
		st.StartNew()
	case flagConversation != 0:
		return st.Activate(ctx, flagConversation)
	}
	return nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid conversation id %q", s)
	}
	return id, nil
}

func newRenderer() *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil
	}
	return r
}

func printEntries(r *glamour.TermRenderer, entries []client.Entry) {
	for _, e := range entries {
		switch {
		case e.Error:
			fmt.Printf("%s %s\n", dimStyle.Render(e.Display), errorStyle.Render(e.Content))
		case e.Role == client.RoleUser:
			fmt.Printf("%s %s %s\n", dimStyle.Render(e.Display), userStyle.Render("you:"), e.Content)
		default:
			fmt.Printf("%s %s\n", dimStyle.Render(e.Display), assistantStyle.Render("assistant:"))
			fmt.Println(render(r, e.Content))
		}
	}
}

func render(r *glamour.TermRenderer, md string) string {
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
