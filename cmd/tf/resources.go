package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskflow/internal/domain"
	"taskflow/internal/engine"
	"taskflow/internal/server"
	"taskflow/internal/workflow"
)

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage users"}
	var name, email, role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, name, email, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&role, "role", "member", "admin or member")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("email")
	usr.AddCommand(create)
	usr.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	})
	return usr
}

func apiKeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "apikey", Short: "Manage API keys of the acting user"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the secret is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				k, secret, err := e.CreateAPIKey(ctx, userID, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"id": k.ID, "name": k.Name, "key": secret})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key label")
	keys.AddCommand(create)
	keys.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				items, err := e.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, k := range items {
					rows = append(rows, table.Row{k.ID, k.Name, k.CreatedAt})
				}
				return printRows(items, table.Row{"ID", "Name", "Created"}, rows)
			})
		},
	})
	keys.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	})
	return keys
}

func tokenCmd() *cobra.Command {
	tok := &cobra.Command{Use: "token", Short: "Bearer tokens"}
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Sign a bearer token for the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actor()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret (or TASKFLOW_JWT_SECRET) is required to mint tokens")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.GetUser(ctx, userID); err != nil {
					return err
				}
				if ttl <= 0 {
					ttl = cfg.Auth.TokenTTL
				}
				signed, err := server.SignToken(server.AuthConfig{
					JWTSecret: cfg.Auth.JWTSecret,
					Issuer:    cfg.Auth.JWTIssuer,
					Audience:  cfg.Auth.JWTAudience,
				}, userID, ttl, time.Now())
				if err != nil {
					return err
				}
				fmt.Println(signed)
				return nil
			})
		},
	}
	mint.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	tok.AddCommand(mint)
	return tok
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	var name, desc string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project owned by the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				p, err := e.CreateProject(ctx, name, desc, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	create.Flags().StringVar(&desc, "description", "", "description")
	_ = create.MarkFlagRequired("name")
	prj.AddCommand(create)
	prj.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects the acting user belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				items, err := e.ListProjects(ctx, userID)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, p := range items {
					rows = append(rows, table.Row{p.ID, p.Name, p.CreatedBy, p.CreatedAt})
				}
				return printRows(items, table.Row{"ID", "Name", "Owner", "Created"}, rows)
			})
		},
	})
	prj.AddCommand(memberCmd())
	return prj
}

func memberCmd() *cobra.Command {
	mem := &cobra.Command{Use: "member", Short: "Manage project members"}
	var role string
	add := &cobra.Command{
		Use:   "add <project-id> <user-id>",
		Short: "Add a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				m, err := e.AddMember(ctx, args[0], args[1], role, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	add.Flags().StringVar(&role, "role", domain.RoleDeveloper, "developer, designer or team_lead")
	mem.AddCommand(add)
	mem.AddCommand(&cobra.Command{
		Use:   "remove <project-id> <user-id>",
		Short: "Remove a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				return e.RemoveMember(ctx, args[0], args[1], userID)
			})
		},
	})
	mem.AddCommand(&cobra.Command{
		Use:   "list <project-id>",
		Short: "List members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				items, err := e.ListMembers(ctx, args[0], userID)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, m := range items {
					rows = append(rows, table.Row{m.UserID, m.Role, m.JoinedAt})
				}
				return printRows(items, table.Row{"User", "Role", "Joined"}, rows)
			})
		},
	})
	return mem
}

func boardCmd() *cobra.Command {
	brd := &cobra.Command{Use: "board", Short: "Manage boards"}
	var name, desc string
	create := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Create a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				b, err := e.CreateBoard(ctx, args[0], name, desc, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "board name")
	create.Flags().StringVar(&desc, "description", "", "description")
	_ = create.MarkFlagRequired("name")
	brd.AddCommand(create)
	brd.AddCommand(&cobra.Command{
		Use:   "list <project-id>",
		Short: "List boards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				items, err := e.ListBoards(ctx, args[0], userID)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, b := range items {
					rows = append(rows, table.Row{b.ID, b.Name, b.CreatedAt})
				}
				return printRows(items, table.Row{"ID", "Name", "Created"}, rows)
			})
		},
	})
	return brd
}

func cardCmd() *cobra.Command {
	crd := &cobra.Command{Use: "card", Short: "Manage cards"}
	crd.AddCommand(cardCreateCmd())
	crd.AddCommand(cardListCmd())
	crd.AddCommand(cardShowCmd())
	crd.AddCommand(&cobra.Command{
		Use:   "status <card-id> <status>",
		Short: "Move a card; review and done need every subtask done",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				c, err := e.UpdateCardStatus(ctx, args[0], args[1], userID)
				if err != nil {
					var unfinished workflow.UnfinishedSubtasksError
					if errors.As(err, &unfinished) {
						rows := make([]table.Row, 0, len(unfinished.Unfinished))
						for _, s := range unfinished.Unfinished {
							rows = append(rows, table.Row{s.ID, s.Name, s.Status})
						}
						_ = printRows(unfinished.Unfinished, table.Row{"Subtask", "Name", "Status"}, rows)
					}
					return err
				}
				return printJSONOrTable(c)
			})
		},
	})
	crd.AddCommand(&cobra.Command{
		Use:   "assign <card-id> <user-id>",
		Short: "Assign a project member to a card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				a, err := e.AssignCard(ctx, args[0], args[1], userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	})
	return crd
}

func cardCreateCmd() *cobra.Command {
	var opts engine.CardCreateOptions
	cmd := &cobra.Command{
		Use:   "create <board-id>",
		Short: "Create a card in todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				opts.BoardID = args[0]
				opts.ActorID = userID
				c, err := e.CreateCard(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "card title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "medium", "low, medium or high")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&opts.EstimatedHours, "estimate", 0, "estimated hours")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func cardListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list <board-id>",
		Short: "List cards on a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				items, err := e.ListCards(ctx, args[0], status, userID)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, c := range items {
					rows = append(rows, table.Row{c.ID, c.Title, c.Status, c.Priority, c.EstimatedHours, c.ActualHours})
				}
				return printRows(items, table.Row{"ID", "Title", "Status", "Priority", "Est h", "Actual h"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func cardShowCmd() *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "show <card-id>",
		Short: "Show a card with subtasks, assignments and time totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				card, err := e.GetCard(ctx, args[0], userID)
				if err != nil {
					return err
				}
				if history <= 0 {
					return printJSONOrTable(card)
				}
				evts, err := e.Repo.LatestEvents(ctx, history, "card", card.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"card": card, "history": evts})
			})
		},
	}
	cmd.Flags().IntVar(&history, "history", 0, "include the last N card events")
	return cmd
}

func subtaskCmd() *cobra.Command {
	sub := &cobra.Command{Use: "subtask", Short: "Manage subtasks"}
	var opts engine.SubtaskCreateOptions
	create := &cobra.Command{
		Use:   "create <card-id>",
		Short: "Create a subtask in todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				opts.CardID = args[0]
				opts.ActorID = userID
				s, err := e.CreateSubtask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	create.Flags().StringVar(&opts.Name, "name", "", "subtask name")
	create.Flags().StringVar(&opts.Description, "description", "", "description")
	create.Flags().Float64Var(&opts.EstimatedHours, "estimate", 0, "estimated hours")
	_ = create.MarkFlagRequired("name")
	sub.AddCommand(create)
	sub.AddCommand(&cobra.Command{
		Use:   "list <card-id>",
		Short: "List subtasks of a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				items, err := e.ListSubtasks(ctx, args[0], userID)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, s := range items {
					rows = append(rows, table.Row{s.ID, s.Name, s.Status, s.EstimatedHours})
				}
				return printRows(items, table.Row{"ID", "Name", "Status", "Est h"}, rows)
			})
		},
	})
	sub.AddCommand(&cobra.Command{
		Use:   "status <subtask-id> <status>",
		Short: "Move a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asActor(cmd.Context(), func(ctx context.Context, e engine.Engine, userID string) error {
				s, err := e.UpdateSubtaskStatus(ctx, args[0], args[1], userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("subtask %s is now %s\n", s.ID, s.Status)
				return nil
			})
		},
	})
	return sub
}
