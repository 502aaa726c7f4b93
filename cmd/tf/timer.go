package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskflow/internal/engine"
	"taskflow/internal/tui"
	taskflowsdk "taskflow/sdk/go"
)

func timerCmd() *cobra.Command {
	tm := &cobra.Command{Use: "timer", Short: "Track time on cards and subtasks"}
	tm.AddCommand(timerStartCmd())
	tm.AddCommand(timerStopCmd())
	tm.AddCommand(timerOngoingCmd())
	tm.AddCommand(timerListCmd())
	tm.AddCommand(timerEditCmd())
	tm.AddCommand(timerDeleteCmd())
	tm.AddCommand(timerTotalCmd())
	tm.AddCommand(timerWatchCmd())
	return tm
}

func timerStartCmd() *cobra.Command {
	var opts engine.StartOptions
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a timer on a card or subtask",
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				opts.UserID = userID
				res, err := e.StartTimer(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				target := res.CardTitle
				if res.SubtaskName != "" {
					target += " / " + res.SubtaskName
				}
				fmt.Printf("timer %s started on %s (%s) at %s; card is %s\n",
					res.Log.ID, target, res.BoardName, res.Log.StartTime, res.CardStatus)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.CardID, "card", "", "card id")
	cmd.Flags().StringVar(&opts.SubtaskID, "subtask", "", "subtask id (card is derived)")
	cmd.Flags().StringVarP(&opts.Description, "message", "m", "", "what you are working on")
	return cmd
}

func timerStopCmd() *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "stop [log-id]",
		Short: "Stop a running timer (default: your ongoing one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				logID := ""
				if len(args) == 1 {
					logID = args[0]
				} else {
					running, err := e.Ongoing(ctx, userID)
					if err != nil {
						return err
					}
					if running == nil {
						return fmt.Errorf("no timer running")
					}
					logID = running.ID
				}
				var descPtr *string
				if cmd.Flags().Changed("message") {
					descPtr = &desc
				}
				res, err := e.StopTimer(ctx, logID, userID, descPtr)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("timer stopped. Duration: %s; card actual hours %.2f\n", res.Formatted, res.CardActualHours)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&desc, "message", "m", "", "replace the description")
	return cmd
}

func timerOngoingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ongoing",
		Short: "Show your running timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				running, err := e.Ongoing(ctx, userID)
				if err != nil {
					return err
				}
				if running == nil {
					if viper.GetBool("json") {
						return printJSON(nil)
					}
					fmt.Println("No timer running")
					return nil
				}
				return printJSONOrTable(running)
			})
		},
	}
}

func timerListCmd() *cobra.Command {
	var opts engine.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your time logs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				opts.UserID = userID
				page, err := e.ListTimeLogs(ctx, opts)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(page.Items))
				for _, l := range page.Items {
					rows = append(rows, table.Row{l.ID, l.CardTitle, l.SubtaskName, l.StartTime, deref(l.EndTime), l.Formatted})
				}
				if err := printRows(page, table.Row{"ID", "Card", "Subtask", "Start", "End", "Duration"}, rows); err != nil {
					return err
				}
				if !viper.GetBool("json") {
					fmt.Printf("page %d of %d (%d logs)\n", page.Page, page.LastPage, page.Total)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "ongoing or completed")
	cmd.Flags().StringVar(&opts.CardID, "card", "", "card filter")
	cmd.Flags().StringVar(&opts.SubtaskID, "subtask", "", "subtask filter")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", engine.DefaultPerPage, "page size")
	return cmd
}

func timerEditCmd() *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "edit <log-id>",
		Short: "Change the description of a completed log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				l, err := e.UpdateTimeLog(ctx, args[0], userID, desc)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVarP(&desc, "message", "m", "", "new description")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func timerDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <log-id>",
		Short: "Delete a completed log and recompute the card's hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				if err := e.DeleteTimeLog(ctx, args[0], userID); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func timerTotalCmd() *cobra.Command {
	var cardID, subtaskID string
	cmd := &cobra.Command{
		Use:   "total",
		Short: "Sum completed logs on a card or subtask",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (cardID == "") == (subtaskID == "") {
				return fmt.Errorf("exactly one of --card or --subtask is required")
			}
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				var err error
				var t any
				if cardID != "" {
					t, err = e.CardTotals(ctx, cardID, userID)
				} else {
					t, err = e.SubtaskTotals(ctx, subtaskID, userID)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&cardID, "card", "", "card id")
	cmd.Flags().StringVar(&subtaskID, "subtask", "", "subtask id")
	return cmd
}

func timerWatchCmd() *cobra.Command {
	var baseURL, apiKey, token string
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow your running timer against a taskflow server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := taskflowsdk.New(baseURL)
			client.APIKey = firstNonEmpty(apiKey, viper.GetString("api-key"))
			client.BearerToken = firstNonEmpty(token, viper.GetString("token"))
			if client.APIKey == "" && client.BearerToken == "" {
				return fmt.Errorf("--api-key or --token is required")
			}
			p := tea.NewProgram(tui.New(client, poll), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err := p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080/api", "API base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or TASKFLOW_API_KEY)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (or TASKFLOW_TOKEN)")
	cmd.Flags().DurationVar(&poll, "poll", 5*time.Second, "refresh interval")
	return cmd
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Reports"}
	var from, to string
	hours := &cobra.Command{
		Use:   "hours <project-id>",
		Short: "Completed hours per card and per user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				r, err := e.HoursReport(ctx, args[0], from, to, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(r)
				}
				cards := make([]table.Row, 0, len(r.Cards))
				for _, c := range r.Cards {
					cards = append(cards, table.Row{c.Title, c.Status, c.EstimatedHours, c.TotalHours, c.Formatted, c.LogCount})
				}
				_ = printRows(r.Cards, table.Row{"Card", "Status", "Est h", "Hours", "Duration", "Logs"}, cards)
				users := make([]table.Row, 0, len(r.Users))
				for _, u := range r.Users {
					users = append(users, table.Row{u.Name, u.TotalHours, u.Formatted, u.LogCount})
				}
				_ = printRows(r.Users, table.Row{"User", "Hours", "Duration", "Logs"}, users)
				fmt.Printf("total: %s over %d log(s)\n", r.Formatted, r.LogCount)
				return nil
			})
		},
	}
	hours.Flags().StringVar(&from, "from", "", "start date, inclusive (YYYY-MM-DD)")
	hours.Flags().StringVar(&to, "to", "", "end date, inclusive (YYYY-MM-DD)")
	rep.AddCommand(hours)
	return rep
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
