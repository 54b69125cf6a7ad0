package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/omriShneor/alfred_scheduler/internal/app"
	"github.com/omriShneor/alfred_scheduler/internal/config"
	"github.com/omriShneor/alfred_scheduler/internal/flow"
	"github.com/omriShneor/alfred_scheduler/internal/gcal"
	"github.com/omriShneor/alfred_scheduler/internal/testutil"
)

const defaultSender = "+972501234567"

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// demoMessages covers every branch of the flow in both languages.
var demoMessages = []string{
	"Schedule a meeting for tomorrow at 3pm",
	"How do I book an appointment?",
	"קבע לי פגישה מחר בשעה 10",
	"What's the weather?",
}

// cliOptions holds the persistent flags.
type cliOptions struct {
	fakeCalendar bool
	jsonOutput   bool
	verbose      bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "flowcli",
		Short: "📅 Run WhatsApp appointment messages through the scheduling flow",
		Long: `flowcli runs messages through the same classification, extraction and
booking flow as the webhook server, using configuration from the environment
(.env is loaded automatically).

Examples:
  flowcli process "Book a dentist appointment on Friday at 10:30"
  flowcli demo --fake-calendar
  flowcli traces --limit 20
  flowcli calendar`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().BoolVar(&opts.fakeCalendar, "fake-calendar", false, "use an in-memory calendar instead of Google Calendar")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "show flow logs on stderr")

	root.AddCommand(
		newProcessCommand(opts),
		newDemoCommand(opts),
		newTracesCommand(opts),
		newCalendarCommand(opts),
	)
	return root
}

func newProcessCommand(opts *cliOptions) *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "process <message>",
		Short: "Process a single message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			message := strings.Join(args, " ")
			st := a.Flow.Run(cmd.Context(), message, sender)
			return printResult(cmd.OutOrStdout(), opts, st)
		},
	}
	cmd.Flags().StringVar(&sender, "sender", defaultSender, "sender id to attach to the request")
	return cmd
}

func newDemoCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the built-in demo messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if !opts.jsonOutput {
				fmt.Fprintln(out, bold("🚀 ALFRED SCHEDULER - APPOINTMENT FLOW DEMO"))
			}
			for _, message := range demoMessages {
				st := a.Flow.Run(cmd.Context(), message, defaultSender)
				if err := printResult(out, opts, st); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newTracesCommand(opts *cliOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "traces",
		Short: "List recent request traces (requires ALFRED_DB_PATH)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.DB == nil {
				return fmt.Errorf("request traces are disabled: set ALFRED_DB_PATH")
			}

			traces, err := a.DB.ListRecentRequestTraces(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list traces: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, traces)
			}
			if len(traces) == 0 {
				fmt.Fprintln(out, gray("no traces recorded yet"))
				return nil
			}
			for _, tr := range traces {
				fmt.Fprintf(out, "%s  %-11s %-7s %-20s %s\n",
					gray(tr.CreatedAt.Format("2006-01-02 15:04:05")),
					tr.Category, tr.Language, tr.Outcome,
					gray(strings.Join(tr.Path, " → ")))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of traces to show")
	return cmd
}

func newCalendarCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "Check access to the configured Google Calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFromEnv()
			loc, _ := cfg.Location()

			client, err := gcal.NewClient(cmd.Context(), cfg.CalendarConfig(loc))
			if err != nil {
				return fmt.Errorf("failed to build calendar client: %w", err)
			}
			info, err := client.Describe(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, info)
			}
			fmt.Fprintf(out, "%s %s\n", green("✅ Calendar reachable:"), bold(info.Summary))
			fmt.Fprintf(out, "   id:       %s\n", info.ID)
			fmt.Fprintf(out, "   timezone: %s\n", info.TimeZone)
			if info.TimeZone != loc.String() {
				fmt.Fprintf(out, "%s calendar timezone differs from ALFRED_TIMEZONE (%s)\n", yellow("⚠️"), loc)
			}
			return nil
		},
	}
}

func buildApp(opts *cliOptions) (*app.App, error) {
	cfg := config.LoadFromEnv()

	logOut := io.Discard
	if opts.verbose {
		logOut = os.Stderr
	}
	appOpts := app.Options{
		Logger:                app.NewLogger(logOut, slog.LevelDebug),
		DisableRuntimeMetrics: true,
	}
	if opts.fakeCalendar {
		appOpts.Calendar = testutil.NewFakeCalendar()
	}

	a, err := app.New(cfg, appOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}

type resultJSON struct {
	RequestID    string   `json:"request_id"`
	Message      string   `json:"message"`
	Category     string   `json:"category"`
	Language     string   `json:"language"`
	Path         []string `json:"path"`
	Outcome      string   `json:"outcome"`
	EventCreated bool     `json:"event_created"`
	EventLink    string   `json:"event_link,omitempty"`
	Error        string   `json:"error,omitempty"`
	Response     string   `json:"response"`
}

func printResult(out io.Writer, opts *cliOptions, st *flow.RequestState) error {
	if opts.jsonOutput {
		r := resultJSON{
			RequestID:    st.RequestID,
			Message:      st.Message,
			Category:     st.Category.String(),
			Language:     st.Language.String(),
			Path:         st.PathNames(),
			Outcome:      st.Outcome,
			EventCreated: st.EventCreated,
			EventLink:    st.EventLink,
			Response:     st.Response,
		}
		if st.Err != nil {
			r.Error = st.Err.Error()
		}
		return writeJSON(out, r)
	}

	divider := strings.Repeat("=", 60)
	fmt.Fprintln(out, divider)
	fmt.Fprintf(out, "📨 Message: %s\n", st.Message)
	fmt.Fprintf(out, "📱 Sender: %s\n", st.SenderID)
	fmt.Fprintf(out, "🧭 %s %s %s\n", cyan(st.Category.String()), gray(st.Language.String()),
		gray(strings.Join(st.PathNames(), " → ")))
	if st.Err != nil && !st.EventCreated {
		fmt.Fprintf(out, "%s %s\n", yellow("⚠️"), gray(st.Err.Error()))
	}
	if st.EventLink != "" {
		fmt.Fprintf(out, "🔗 %s\n", st.EventLink)
	}
	fmt.Fprintln(out, green("✅ FINAL RESPONSE:"))
	fmt.Fprintln(out, st.Response)
	fmt.Fprintln(out, divider)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
