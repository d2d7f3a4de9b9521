package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rahul/workdesk/internal/agent"
	"github.com/rahul/workdesk/internal/contextlog"
	"github.com/rahul/workdesk/internal/gateway"
	"github.com/rahul/workdesk/internal/observability"
	"github.com/rahul/workdesk/internal/store"
	"github.com/spf13/cobra"
)

const replHelp = `Commands:
  :tasks              list created tasks
  :reports            list generated reports
  :checklists         show created checklists
  :sessions           list sessions of this run
  :session <id>       show a session summary
  :export <id> [yaml] print the full session record
  :help               show this help
  quit, exit, q       leave`

func newREPLCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg, opts.logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if observability.IsInteractive() {
				observability.PrintBanner(cmd.OutOrStdout())
			}
			return runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.orchestrator, a.artifacts, a.contexts)
		},
	}
}

// runREPL reads queries line by line until quit, end of input or ctx ends.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, assistant gateway.Assistant, artifacts *store.Artifacts, contexts *contextlog.Log) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	observability.PrintSection(out, "🎯 WORKSPACEGPT - Multi-Agent AI Assistant")
	fmt.Fprintln(out, "Enter your queries below (or 'quit' to exit)")
	fmt.Fprintln(out, "Example: 'Summarize my onboarding and create a checklist'")

	for {
		fmt.Fprint(out, "\n💬 Your query: ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\n👋 Goodbye!")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out, "\n👋 Goodbye!")
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(out, "👋 Goodbye!")
			return nil
		}

		if strings.HasPrefix(line, ":") {
			if err := replCommand(out, line, artifacts, contexts); err != nil {
				fmt.Fprintf(out, "\n❌ Error: %v\n", err)
			}
			continue
		}

		res := assistant.ProcessQuery(ctx, line)
		fmt.Fprintf(out, "\n%s", agent.Describe(res))
	}
}

func replCommand(out io.Writer, line string, artifacts *store.Artifacts, contexts *contextlog.Log) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":help":
		fmt.Fprintln(out, replHelp)
	case ":tasks":
		tasks := artifacts.Tasks()
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks yet.")
		}
		for _, t := range tasks {
			fmt.Fprintf(out, "- [%s] %s (%s, %s)\n", t.ID, t.Title, t.Priority, t.Status)
		}
	case ":reports":
		reports := artifacts.Reports()
		if len(reports) == 0 {
			fmt.Fprintln(out, "No reports yet.")
		}
		for _, r := range reports {
			fmt.Fprintf(out, "- [%s] %s (%d sections)\n", r.ID, r.Title, len(r.Sections))
		}
	case ":checklists":
		checklists := artifacts.Checklists()
		if len(checklists) == 0 {
			fmt.Fprintln(out, "No checklists yet.")
		}
		for _, c := range checklists {
			fmt.Fprintf(out, "%s\n", c.Title)
			for _, item := range c.Items {
				mark := " "
				if item.Completed {
					mark = "x"
				}
				fmt.Fprintf(out, "  [%s] %s\n", mark, item.Item)
			}
		}
	case ":sessions":
		ids := contexts.Sessions()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No sessions yet.")
		}
		for _, id := range ids {
			c, _ := contexts.Get(id)
			fmt.Fprintf(out, "- %s [%s] %s\n", id, c.Status(), c.UserQuery())
		}
	case ":session":
		if len(fields) != 2 {
			return fmt.Errorf("usage: :session <id>")
		}
		sum, err := contexts.Summary(fields[1])
		if err != nil {
			return err
		}
		return encode(out, "yaml", sum)
	case ":export":
		if len(fields) < 2 || len(fields) > 3 {
			return fmt.Errorf("usage: :export <id> [yaml]")
		}
		format := contextlog.FormatJSON
		if len(fields) == 3 {
			format = contextlog.Format(fields[2])
		}
		data, err := contexts.Export(fields[1], format)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", data)
	default:
		return fmt.Errorf("unknown command %s, try :help", fields[0])
	}
	return nil
}
