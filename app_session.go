package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sessionvault/internal/session"
	"sessionvault/internal/types"
)

// =============================================================================
// SESSION COMMANDS
// =============================================================================

func newListCmd() *cobra.Command {
	var (
		project string
		asJSON  bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var sessions []types.Session
			if project != "" {
				abs, err := filepath.Abs(project)
				if err != nil {
					return fmt.Errorf("resolve project path: %w", err)
				}
				sessions = app.sessions.GetProjectSessions(ctx, abs)
			} else {
				sessions = app.sessions.GetAllSessions(ctx)
			}
			if limit > 0 && len(sessions) > limit {
				sessions = sessions[:limit]
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), sessionSummaries(sessions))
			}
			return writeSessionTable(cmd.OutOrStdout(), sessions)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "restrict to one project path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum sessions to print (0 = all)")
	return cmd
}

func newShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <session_id>",
		Short: "Print one session's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, ok := app.sessions.GetSession(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("%w: %s", session.ErrNotFound, args[0])
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), sess)
			}
			return writeTranscript(cmd.OutOrStdout(), sess)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// sessionListEntry is the list --json row for one session
type sessionListEntry struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"messageCount"`
	ProjectDir   string    `json:"projectDir,omitempty"`
	Truncated    bool      `json:"truncated,omitempty"`
}

func sessionSummaries(sessions []types.Session) []sessionListEntry {
	entries := make([]sessionListEntry, 0, len(sessions))
	for _, s := range sessions {
		entries = append(entries, sessionListEntry{
			ID:           s.ID,
			Label:        s.Label,
			Timestamp:    s.Timestamp,
			MessageCount: s.MessageCount(),
			ProjectDir:   s.ProjectDir,
			Truncated:    s.Truncated,
		})
	}
	return entries
}

func writeSessionTable(w io.Writer, sessions []types.Session) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tMSGS\tPROJECT\tLABEL")
	for _, s := range sessions {
		project := "-"
		if s.ProjectDir != "" {
			project = session.DecodeFolder(filepath.Base(s.ProjectDir))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.ID, formatTime(s.Timestamp), s.MessageCount(), project, s.Label)
	}
	return tw.Flush()
}

func writeTranscript(w io.Writer, sess types.Session) error {
	fmt.Fprintf(w, "# %s\n", sess.Label)
	fmt.Fprintf(w, "session %s, %d messages\n", sess.ID, sess.MessageCount())
	if sess.Truncated {
		fmt.Fprintln(w, "(earlier history is missing)")
	}
	for _, m := range sess.Messages {
		fmt.Fprintf(w, "\n[%s] %s\n", formatTime(m.Timestamp), strings.ToUpper(m.Role))
		if text := m.Text(); text != "" {
			fmt.Fprintln(w, text)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
