package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/novacode/novacode/internal/tui"
	"github.com/novacode/novacode/pkg/client"
	"github.com/novacode/novacode/pkg/presenter"
	"github.com/novacode/novacode/pkg/tree"
	"github.com/novacode/novacode/pkg/view"
)

var flatTree bool

func init() {
	treeCmd.Flags().BoolVar(&flatTree, "flat", false, "print one path per line")
}

// treeCmd prints a project's tree fully expanded
var treeCmd = &cobra.Command{
	Use:   "tree <project-id>",
	Short: "Print a project's directory tree",
	Long: `Print every folder and file of a project, folders first, each level
sorted by name.

With --flat, print one path per line instead: every file, plus each
empty folder with a trailing slash.

Examples:
  explorer tree 3f2a9c1e-...
  explorer tree --flat 3f2a9c1e-...
  explorer tree --format nested 3f2a9c1e-...`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

// catCmd prints one file
var catCmd = &cobra.Command{
	Use:   "cat <project-id> <path>",
	Short: "Print the content of a project file",
	Long: `Print the content of one file of a project.

Examples:
  explorer cat 3f2a9c1e-... src/index.html`,
	Args: cobra.ExactArgs(2),
	RunE: runCat,
}

// rmCmd deletes one file
var rmCmd = &cobra.Command{
	Use:   "rm <project-id> <path>",
	Short: "Delete a file from a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := strings.Trim(args[1], "/")
		if err := newClient().DeleteFile(cmd.Context(), args[0], path); err != nil {
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("file %s not found in project %s", path, args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", path)
		return nil
	},
}

// browseCmd opens the interactive browser
var browseCmd = &cobra.Command{
	Use:   "browse <project-id>",
	Short: "Browse a project interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runBrowse,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check novacode server health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		if err := c.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("server %s unhealthy: %w", c.BaseURL(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "server %s is healthy\n", c.BaseURL())
		return nil
	},
}

func runTree(cmd *cobra.Command, args []string) error {
	c := newClient()
	if flatTree {
		l, err := c.FetchListing(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		root, err := tree.Build(l)
		if err != nil {
			return err
		}
		for _, p := range tree.Paths(root) {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	}
	v := view.New(args[0], c, c)
	if err := v.Load(cmd.Context()); err != nil {
		return err
	}
	v.ExpandAll()
	return printTree(cmd.OutOrStdout(), v.Rows())
}

// printTree writes rows as an indented tree. An empty project prints the
// same placeholder the browser shows.
func printTree(w io.Writer, rows []presenter.Entry) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No files available")
		return err
	}
	for _, row := range rows {
		name := row.Node.Name
		if row.Node.IsFolder() {
			name += "/"
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", row.Depth), name); err != nil {
			return err
		}
	}
	return nil
}

func runCat(cmd *cobra.Command, args []string) error {
	c := newClient()
	v := view.New(args[0], c, c)
	if err := v.Load(cmd.Context()); err != nil {
		return err
	}
	path := strings.Trim(args[1], "/")
	if v.IsFolder(path) {
		return fmt.Errorf("%s is a folder", path)
	}
	if err := v.Select(cmd.Context(), path); err != nil {
		return err
	}
	if sel, ok := v.Selected(); !ok || sel != path {
		return fmt.Errorf("file %s not found in project %s", path, args[0])
	}
	_, err := cmd.OutOrStdout().Write(v.Content().Data)
	return err
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c := newClient()
	p := tea.NewProgram(tui.NewModel(ctx, view.New(args[0], c, c)), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("browser: %w", err)
	}
	return nil
}
