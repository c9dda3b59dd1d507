package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dih-project/wishonia/internal"
	"github.com/dih-project/wishonia/internal/agent"
	"github.com/dih-project/wishonia/internal/checks"
	"github.com/dih-project/wishonia/internal/todo"
)

var stdout io.Writer = os.Stdout

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: run <check|%s>", checks.All)
	}
	rep, err := app.RunChecks(ctx, cmd.Args().First(), internal.RunOptions{
		Glob: cmd.String("path"),
		File: cmd.String("file"),
		Full: cmd.Bool("full"),
	})
	if err != nil {
		return err
	}
	if cmd.String("format") == "json" {
		return rep.WriteJSON(stdout)
	}
	return rep.WriteText(stdout)
}

func statusCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	selector := checks.All
	if cmd.Args().Len() > 0 {
		selector = cmd.Args().First()
	}
	st, err := app.Status(ctx, selector)
	if err != nil {
		return err
	}
	if cmd.String("format") == "json" {
		return writeJSON(st)
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tFIELD\tSTALE\tTOTAL")
	for _, s := range st {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.Check, s.HashField, len(s.Stale), s.Total)
		if cmd.Bool("verbose") {
			for _, p := range s.Stale {
				fmt.Fprintf(tw, "  %s\t\t\t\n", p)
			}
		}
	}
	return tw.Flush()
}

func checksCmd(_ context.Context, _ *cli.Command, app *internal.App) error {
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFIELD\tLLM\tSECTIONS\tDESCRIPTION")
	for _, c := range app.Checks() {
		sections := "all"
		if len(c.Sections) > 0 {
			parts := make([]string, len(c.Sections))
			for i, s := range c.Sections {
				parts[i] = string(s)
			}
			sections = strings.Join(parts, ",")
		}
		llm := ""
		if c.UsesLLM {
			llm = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.HashField, llm, sections, c.Description)
	}
	return tw.Flush()
}

func todosListCmd(_ context.Context, cmd *cli.Command, app *internal.App) error {
	f := todo.Filter{
		Status:   todo.Status(cmd.String("status")),
		Type:     todo.Type(cmd.String("type")),
		Priority: todo.Priority(cmd.String("priority")),
		FilePath: cmd.String("file"),
	}
	items := app.Ledger().Query(f)
	if cmd.String("format") == "json" {
		return writeJSON(items)
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRIORITY\tSTATUS\tTYPE\tLOCATION\tISSUE")
	for _, t := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s:%d\t%s\n", t.ID, t.Priority, t.Status, t.Type, t.FilePath, t.Line, oneLine(t.Issue, 80))
	}
	return tw.Flush()
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func todosExportCmd(_ context.Context, cmd *cli.Command, app *internal.App) error {
	l := app.Ledger()
	switch cmd.String("format") {
	case "":
		return app.PersistTodos()
	case "json":
		data, err := l.ExportJSON()
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	case "yaml":
		data, err := l.ExportYAML()
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	case "markdown", "md":
		_, err := stdout.Write(l.ExportMarkdown())
		return err
	default:
		return fmt.Errorf("unknown export format %q", cmd.String("format"))
	}
}

func todosSetCmd(_ context.Context, cmd *cli.Command, app *internal.App) error {
	if cmd.Args().Len() != 2 {
		return errors.New("usage: todos set <id> <status>")
	}
	t, err := app.Ledger().Move(cmd.Args().Get(0), todo.Status(cmd.Args().Get(1)))
	if err != nil {
		return err
	}
	if err := app.PersistTodos(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s %s\n", t.ID, t.Status)
	return nil
}

func todosReopenCmd(_ context.Context, cmd *cli.Command, app *internal.App) error {
	if cmd.Args().Len() != 1 {
		return errors.New("usage: todos reopen <id>")
	}
	t, err := app.Ledger().Reopen(cmd.Args().First())
	if err != nil {
		return err
	}
	if err := app.PersistTodos(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s %s\n", t.ID, t.Status)
	return nil
}

func migrateCmd(_ context.Context, cmd *cli.Command, app *internal.App) error {
	stats, err := app.MigrateHashes(cmd.Bool("strip"))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "migrated %d entries from %d files\n", stats.Entries, stats.Files)
	for p, ferr := range stats.Failed {
		fmt.Fprintf(stdout, "FAILED %s: %v\n", p, ferr)
	}
	return nil
}

func indexCmd(ctx context.Context, _ *cli.Command, app *internal.App) error {
	st, err := app.Index(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "indexed %d, unchanged %d, removed %d, failed %d\n", st.Indexed, st.Unchanged, st.Removed, st.Failed)
	return nil
}

func askCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	q := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(q) == "" {
		return errors.New("usage: ask <question>")
	}
	ans, err := app.Ask(ctx, q)
	if errors.Is(err, agent.ErrNoContext) {
		fmt.Fprintln(stdout, "The book has no passages about that.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, ans.Text)
	fmt.Fprintln(stdout)
	for i, s := range ans.Sources {
		fmt.Fprintf(stdout, "[%d] %s:%d %s\n", i+1, s.Path, s.Line, s.Heading)
	}
	return nil
}
