// Command chatcli is a terminal client for the chat API.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/chat-ai/internal/client"
)

var (
	apiURL      string
	sessionPath string
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
	titleStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
)

var rootCmd = &cobra.Command{
	Use:           "chatcli",
	Short:         "Terminal client for the chat API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultAPI := os.Getenv("CHAT_API_URL")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8000"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPI, "API base URL (env CHAT_API_URL)")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session-file", defaultSessionPath(), "where the login session is kept")

	rootCmd.AddCommand(registerCmd, verifyCmd, loginCmd, logoutCmd)
	rootCmd.AddCommand(listCmd, historyCmd, chatCmd, deleteCmd, timetrackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".chatcli-session.json"
	}
	return filepath.Join(dir, "chat-ai", "session.json")
}

func saveSession(path string, s client.Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func loadSession(path string) (client.Session, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return client.Session{}, errors.New("not logged in, run `chatcli login` first")
		}
		return client.Session{}, err
	}
	var s client.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return client.Session{}, fmt.Errorf("read session %s: %w", path, err)
	}
	if s.Token == "" {
		return client.Session{}, errors.New("not logged in, run `chatcli login` first")
	}
	return s, nil
}

// newStore returns a store bound to the saved session.
func newStore() (*client.Store, error) {
	sess, err := loadSession(sessionPath)
	if err != nil {
		return nil, err
	}
	st := client.NewStore(client.New(apiURL))
	st.Resume(sess)
	return st, nil
}

// unauthorized clears the saved session when the API rejected it.
func unauthorized(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		_ = os.Remove(sessionPath)
		return errors.New("session expired, run `chatcli login` again")
	}
	return err
}
