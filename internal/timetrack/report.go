package timetrack

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	apiDateLayout     = "2006-01-02"
	displayDateLayout = "2.1.2006"
)

// CurrentAbsences lists everyone absent between today and tomorrow.
func (c *Client) CurrentAbsences(ctx context.Context) (string, error) {
	now := c.Now()
	today := now.Format(apiDateLayout)
	tomorrow := now.AddDate(0, 0, 1).Format(apiDateLayout)

	absences, err := c.Absences(ctx, today, tomorrow)
	if err != nil {
		return "", err
	}
	if len(absences) == 0 {
		return "No one is currently absent or on leave today.", nil
	}

	users, err := c.Users(ctx)
	if err != nil {
		return "", err
	}
	byID := make(map[int]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var b strings.Builder
	b.WriteString("Today's absences:\n")
	for _, a := range absences {
		who := fmt.Sprintf("User ID %d (Username: %s)", a.UserID, a.User)
		if u, ok := byID[a.UserID]; ok {
			who = u.FirstName + " " + u.LastName
		}
		fmt.Fprintf(&b, "- %s is on %s from %s to %s.\n", who, a.AbsenceTypeName, displayDate(a.From), displayDate(a.To))
	}
	return b.String(), nil
}

// ProjectInfo describes the first project whose name contains projectName, or lists
// all projects when projectName is empty.
func (c *Client) ProjectInfo(ctx context.Context, projectName string) (string, error) {
	projects, err := c.Projects(ctx)
	if err != nil {
		return "", err
	}
	if len(projects) == 0 {
		return "Sorry, I couldn't find any project information.", nil
	}

	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		names := make([]string, 0, len(projects))
		for _, p := range projects {
			names = append(names, p.Name)
		}
		return fmt.Sprintf("Available projects: %s. You can ask about a specific one.", strings.Join(names, ", ")), nil
	}

	needle := strings.ToLower(projectName)
	for _, p := range projects {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return fmt.Sprintf("Details for project %q: ID %d.", p.Name, p.ID), nil
		}
	}
	return fmt.Sprintf("Sorry, I couldn't find a project named %q.", projectName), nil
}

func displayDate(s string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", apiDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(displayDateLayout)
		}
	}
	return s
}
