package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"rewind/auth"
	"rewind/domain"
	"rewind/storage"

	"github.com/charmbracelet/lipgloss"
)

// SessionsCmd groups session subcommands
type SessionsCmd struct {
	Add  SessionsAddCmd  `cmd:"add" help:"Create an external session"`
	List SessionsListCmd `cmd:"list" help:"List external sessions for an owner"`
	Tree SessionsTreeCmd `cmd:"tree" help:"Show the branch tree of an external session"`
	Del  SessionsDelCmd  `cmd:"del" help:"Delete an external session and everything under it"`
}

// SessionsAddCmd creates an external session
type SessionsAddCmd struct {
	Owner string `help:"Owner reference (user ID, username, or API key)" required:""`
	Name  string `arg:"" help:"Session name"`
}

// Run executes the add command
func (s *SessionsAddCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	userID, err := auth.NewService(store).ResolveOwner(ctx, s.Owner)
	if err != nil {
		return err
	}
	session, err := store.CreateExternalSession(ctx, userID, s.Name)
	if err != nil {
		return err
	}

	fmt.Printf("Created session %d (%s)\n", session.ID, session.Name)
	return nil
}

// SessionsListCmd lists external sessions
type SessionsListCmd struct {
	Owner  string `help:"Owner reference (user ID, username, or API key)" required:""`
	Format string `help:"Output format: table or json" enum:"table,json" default:"table"`
}

// Run executes the list command
func (s *SessionsListCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	userID, err := auth.NewService(store).ResolveOwner(ctx, s.Owner)
	if err != nil {
		return err
	}
	sessions, err := store.ListExternalSessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if s.Format == "json" {
		data, err := json.MarshalIndent(sessions, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBRANCHES\tCHECKPOINTS\tACTIVE\tCREATED")
	for _, sess := range sessions {
		active := ""
		if sess.IsActive {
			active = "✓"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\n",
			sess.ID,
			sess.Name,
			sess.BranchCount,
			sess.TotalCheckpoints,
			active,
			sess.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d sessions\n", len(sessions))
	return nil
}

var (
	treeCurrentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141"))
	treeBranchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	treeDimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// SessionsTreeCmd renders the branch tree of an external session
type SessionsTreeCmd struct {
	ID int64 `arg:"" help:"External session ID"`
}

// Run executes the tree command
func (s *SessionsTreeCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	tree, err := store.BranchTree(ctx, s.ID)
	if err != nil {
		return err
	}
	stats, err := store.BranchStatistics(ctx, s.ID)
	if err != nil {
		return err
	}

	if len(tree.Roots) == 0 {
		fmt.Println("No sessions yet")
		return nil
	}
	for _, root := range tree.Roots {
		printBranchNode(root, stats, 0)
	}
	return nil
}

func printBranchNode(node *domain.BranchNode, stats map[int64]storage.SessionStatistics, depth int) {
	session := node.Session

	label := fmt.Sprintf("session %d", session.ID)
	switch {
	case session.IsCurrent:
		label = treeCurrentStyle.Render(label + " *")
	case session.IsBranch():
		label = treeBranchStyle.Render(label)
	}

	detail := ""
	if stat, ok := stats[session.ID]; ok {
		detail = treeDimStyle.Render(fmt.Sprintf("  tools=%d checkpoints=%d",
			stat.LedgerLength, stat.Checkpoints.Total()))
	}
	if session.BranchCheckpoint != nil {
		detail += treeDimStyle.Render(fmt.Sprintf("  from checkpoint %d", *session.BranchCheckpoint))
	}

	fmt.Printf("%s%s%s\n", strings.Repeat("  ", depth), label, detail)
	for _, child := range node.Children {
		printBranchNode(child, stats, depth+1)
	}
}

// SessionsDelCmd deletes an external session
type SessionsDelCmd struct {
	ID int64 `arg:"" help:"External session ID"`
}

// Run executes the del command
func (s *SessionsDelCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteExternalSession(context.Background(), s.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted session %d\n", s.ID)
	return nil
}
