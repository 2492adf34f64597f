package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"callsheet/internal/actionitems"
	"callsheet/internal/app"
	"callsheet/internal/config"
	"callsheet/internal/db"
	"callsheet/internal/engine"
	"callsheet/internal/migrate"
	"callsheet/internal/phase"
	"callsheet/internal/readiness"
	"callsheet/internal/repo"
	"callsheet/internal/server"
	"callsheet/internal/settings"
	"callsheet/internal/sweep"
	"callsheet/internal/timezone"
)

var rootCmd = &cobra.Command{
	Use:   "cs",
	Short: "Callsheet CLI",
	Long: `Callsheet runs multi-day productions through their lifecycle phases.
Core concepts:
- Workspace: your .callsheet directory holding the database; callsheet.yml holds org settings.
- Project: one production, always in exactly one phase (prep -> staffing -> pre_show -> active -> post_show -> complete -> archived).
- Gates: each phase advance has completion criteria or a scheduled time; 'cs phase evaluate' shows what blocks it.
- Sweep: projects with auto transitions enabled advance on their own when gates open ('cs sweep run', or the background loop under 'cs serve').
- Audit log: every transition and attempt is recorded, view with 'cs log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CALLSHEET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(phaseCmd())
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(staffingCmd())
	rootCmd.AddCommand(timecardCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(actionsCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(scheduledCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage productions"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List productions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Phase", "Auto", "Show End"})
				for _, p := range items {
					showEnd := ""
					if p.ShowEndDate != nil {
						showEnd = *p.ShowEndDate
					}
					tw.AppendRow(table.Row{p.ID, p.Name, p.Phase, p.AutoTransitionsEnabled, showEnd})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var id, name, desc, tz, rehearsal, showEnd string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a production in the prep phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					ID:                 id,
					Name:               name,
					Description:        desc,
					Timezone:           tz,
					RehearsalStartDate: rehearsal,
					ShowEndDate:        showEnd,
					ActorID:            viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id")
	cmd.Flags().StringVar(&name, "name", "", "production name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&tz, "timezone", "", "IANA timezone (defaults to org timezone)")
	cmd.Flags().StringVar(&rehearsal, "rehearsal-start", "", "rehearsal start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&showEnd, "show-end", "", "show end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a production",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, requireProject())
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func phaseCmd() *cobra.Command {
	ph := &cobra.Command{Use: "phase", Short: "Inspect and advance lifecycle phases"}
	ph.AddCommand(phaseShowCmd())
	ph.AddCommand(phaseEvaluateCmd())
	ph.AddCommand(phaseAdvanceCmd())
	return ph
}

func phaseShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				current, err := e.GetCurrentPhase(ctx, requireProject())
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"project_id": requireProject(), "phase": string(current)})
			})
		},
	}
	return cmd
}

func phaseEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate whether the next transition can happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.EvaluateTransition(ctx, requireProject())
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	return cmd
}

func phaseAdvanceCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Advance to the next phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				projectID := requireProject()
				var to phase.Phase
				if target != "" {
					parsed, err := phase.Parse(target)
					if err != nil {
						return err
					}
					to = parsed
				} else {
					current, err := e.GetCurrentPhase(ctx, projectID)
					if err != nil {
						return err
					}
					next, ok := phase.Successor(current)
					if !ok {
						return fmt.Errorf("project %s is archived", projectID)
					}
					to = next
				}
				p, err := e.ExecuteTransition(ctx, projectID, to, phase.TriggerManual, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&target, "to", "", "target phase (defaults to the next phase)")
	return cmd
}

func checklistCmd() *cobra.Command {
	cl := &cobra.Command{Use: "checklist", Short: "Manage the setup checklist"}
	cl.AddCommand(checklistShowCmd())
	cl.AddCommand(checklistSetCmd())
	return cl
}

func checklistShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show checklist flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetSetupChecklist(ctx, requireProject())
				if errors.Is(err, repo.ErrNotFound) {
					c.ProjectID = requireProject()
					err = nil
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func checklistSetCmd() *cobra.Command {
	var roles, locations, team, talent bool
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set checklist finalization flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				upd := engine.ChecklistUpdate{}
				if cmd.Flags().Changed("roles-finalized") {
					upd.RolesFinalized = &roles
				}
				if cmd.Flags().Changed("locations-finalized") {
					upd.LocationsFinalized = &locations
				}
				if cmd.Flags().Changed("team-finalized") {
					upd.TeamAssignmentsFinalized = &team
				}
				if cmd.Flags().Changed("talent-finalized") {
					upd.TalentRosterFinalized = &talent
				}
				c, err := e.UpdateChecklist(ctx, requireProject(), upd, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().BoolVar(&roles, "roles-finalized", false, "role templates finalized")
	cmd.Flags().BoolVar(&locations, "locations-finalized", false, "locations finalized")
	cmd.Flags().BoolVar(&team, "team-finalized", false, "team assignments finalized")
	cmd.Flags().BoolVar(&talent, "talent-finalized", false, "talent roster finalized")
	return cmd
}

func staffingCmd() *cobra.Command {
	st := &cobra.Command{Use: "staffing", Short: "Manage locations, roles and assignments"}
	st.AddCommand(addLocationCmd())
	st.AddCommand(addRoleCmd())
	st.AddCommand(addTeamCmd())
	st.AddCommand(addTalentCmd())
	st.AddCommand(teamListCmd())
	return st
}

func addLocationCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add-location",
		Short: "Add a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				loc, err := e.AddLocation(ctx, requireProject(), name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(loc)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "location name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func addRoleCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "add-role",
		Short: "Add a role template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rt, err := e.AddRoleTemplate(ctx, requireProject(), role, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rt)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role name")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func addTeamCmd() *cobra.Command {
	var member, role string
	cmd := &cobra.Command{
		Use:   "add-team",
		Short: "Assign a team member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ta, err := e.AddTeamAssignment(ctx, requireProject(), member, role, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(ta)
			})
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "member name")
	cmd.Flags().StringVar(&role, "role", "", "role (defaults to staff)")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}

func addTalentCmd() *cobra.Command {
	var talent, escort string
	cmd := &cobra.Command{
		Use:   "add-talent",
		Short: "Add talent to the roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ta, err := e.AddTalentAssignment(ctx, requireProject(), talent, escort, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(ta)
			})
		},
	}
	cmd.Flags().StringVar(&talent, "talent", "", "talent name")
	cmd.Flags().StringVar(&escort, "escort", "", "escort name")
	_ = cmd.MarkFlagRequired("talent")
	return cmd
}

func teamListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "List team assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTeamAssignments(ctx, requireProject())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Member", "Role"})
				for _, ta := range items {
					tw.AppendRow(table.Row{ta.ID, ta.MemberName, ta.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func timecardCmd() *cobra.Command {
	tc := &cobra.Command{Use: "timecard", Short: "Manage timecards"}
	tc.AddCommand(timecardAddCmd())
	tc.AddCommand(timecardSetStatusCmd())
	tc.AddCommand(timecardListCmd())
	return tc
}

func timecardAddCmd() *cobra.Command {
	var assignment, workDate string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Submit a timecard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AddTimecard(ctx, requireProject(), assignment, workDate, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&assignment, "assignment", "", "team assignment id")
	cmd.Flags().StringVar(&workDate, "date", "", "work date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

func timecardSetStatusCmd() *cobra.Command {
	var id, status string
	cmd := &cobra.Command{
		Use:   "set-status",
		Short: "Set timecard status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.SetTimecardStatus(ctx, requireProject(), id, status, viper.GetString("actor-id")); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"id": id, "status": status})
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "timecard id")
	cmd.Flags().StringVar(&status, "status", "", "status (draft, submitted, approved, paid, rejected)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func timecardListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List timecards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTimecards(ctx, requireProject())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Assignment", "Date", "Status"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.TeamAssignmentID, t.WorkDate, t.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configSetCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default callsheet.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show scheduling configuration for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s services) error {
				cfg, err := s.settings.Get(ctx, requireProject())
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	return cmd
}

func configSetCmd() *cobra.Command {
	var tz, rehearsal, showEnd string
	var auto bool
	var month, day, hour int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update scheduling configuration for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s services) error {
				upd := settings.ConfigurationUpdate{}
				if cmd.Flags().Changed("timezone") {
					upd.Timezone = &tz
				}
				if cmd.Flags().Changed("rehearsal-start") {
					upd.RehearsalStartDate = &rehearsal
				}
				if cmd.Flags().Changed("show-end") {
					upd.ShowEndDate = &showEnd
				}
				if cmd.Flags().Changed("auto-transitions") {
					upd.AutoTransitionsEnabled = &auto
				}
				if cmd.Flags().Changed("archive-month") {
					upd.ArchiveMonth = &month
				}
				if cmd.Flags().Changed("archive-day") {
					upd.ArchiveDay = &day
				}
				if cmd.Flags().Changed("post-show-hour") {
					upd.PostShowTransitionHour = &hour
				}
				cfg, err := s.settings.Update(ctx, requireProject(), upd, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&tz, "timezone", "", "IANA timezone")
	cmd.Flags().StringVar(&rehearsal, "rehearsal-start", "", "rehearsal start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&showEnd, "show-end", "", "show end date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&auto, "auto-transitions", true, "enable automatic transitions")
	cmd.Flags().IntVar(&month, "archive-month", 0, "archive month (1-12)")
	cmd.Flags().IntVar(&day, "archive-day", 0, "archive day (1-31)")
	cmd.Flags().IntVar(&hour, "post-show-hour", 0, "post-show transition hour (0-23)")
	return cmd
}

func actionsCmd() *cobra.Command {
	var phaseName, category, priority string
	var requiredOnly, includeReadiness bool
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List action items for the current phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s services) error {
				list, err := s.actions.List(ctx, requireProject(), actionitems.Filters{
					Phase:                 phaseName,
					Category:              category,
					Priority:              priority,
					RequiredOnly:          requiredOnly,
					IncludeReadinessItems: includeReadiness,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Category", "Priority", "Done", "Required"})
				for _, it := range list.Items {
					tw.AppendRow(table.Row{it.ID, it.Title, it.Category, it.Priority, it.Completed, it.RequiredForTransition})
				}
				tw.Render()
				fmt.Printf("%d total, %d pending, %d required\n", list.Summary.Total, list.Summary.Pending, list.Summary.Required)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&phaseName, "phase", "", "preview items for a specific phase")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&priority, "priority", "", "priority filter (high, medium, low)")
	cmd.Flags().BoolVar(&requiredOnly, "required-only", false, "only items required for transition")
	cmd.Flags().BoolVar(&includeReadiness, "readiness", false, "include readiness feed items")
	return cmd
}

func sweepCmd() *cobra.Command {
	sw := &cobra.Command{Use: "sweep", Short: "Automatic phase transitions"}
	var dryRun bool
	run := &cobra.Command{
		Use:   "run",
		Short: "Evaluate all auto-transition projects once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s services) error {
				result, err := s.sweep.EvaluateAllProjects(ctx, dryRun)
				if err != nil {
					return err
				}
				return printJSONOrTable(result)
			})
		},
	}
	run.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate without applying transitions")
	sw.AddCommand(run)
	return sw
}

func scheduledCmd() *cobra.Command {
	var windowHours int
	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "List upcoming scheduled transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s services) error {
				items, err := s.sweep.ScheduledTransitions(ctx, time.Duration(windowHours)*time.Hour)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Project", "Name", "From", "To", "When"})
				for _, st := range items {
					tw.AppendRow(table.Row{st.ProjectID, st.ProjectName, st.CurrentPhase, st.TargetPhase, st.ScheduledAt.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&windowHours, "window", 72, "lookahead window in hours")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Audit log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var actionType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.Repo.LatestAuditEntries(ctx, repo.AuditFilters{
					ProjectID:  viper.GetString("project"),
					ActionType: actionType,
					Limit:      n,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&actionType, "type", "", "action type filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s services) error {
				handler, err := server.New(server.Config{
					Engine:   s.engine,
					Settings: s.settings,
					Sweep:    s.sweep,
					Actions:  s.actions,
					BasePath: basePath,
				})
				if err != nil {
					return err
				}
				if s.cfg.Sweep.Enabled {
					sweep.Runner{
						Evaluator: s.sweep,
						Interval:  time.Duration(s.cfg.Sweep.IntervalSeconds) * time.Second,
						DryRun:    s.cfg.Sweep.DryRun,
						Logger:    s.logger,
					}.Start(ctx)
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Callsheet API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

type services struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   engine.Engine
	settings settings.Service
	sweep    sweep.Evaluator
	actions  actionitems.Service
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withServices(ctx, func(ctx context.Context, s services) error {
		return fn(ctx, s.engine)
	})
}

func withServices(ctx context.Context, fn func(context.Context, services) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	e := engine.New(conn, cfg, logger)
	s := services{
		cfg:    cfg,
		logger: logger,
		engine: e,
		settings: settings.Service{
			DB:       conn,
			Repo:     e.Repo,
			Audit:    e.Audit,
			TZ:       timezone.Service{Logger: logger},
			Defaults: cfg.Defaults,
		},
		sweep: sweep.Evaluator{
			Engine: e,
			Repo:   e.Repo,
			Audit:  e.Audit,
			Config: cfg,
			Logger: logger,
		},
	}
	s.actions = actionitems.Service{
		Engine:    e,
		Readiness: readiness.NewClient(cfg.Readiness, logger),
		Logger:    logger,
	}
	if viper.GetString("project") == "" {
		if id, err := app.ResolveProject(ctx, "", e.Repo); err == nil {
			viper.Set("project", id)
		}
	}
	return fn(ctx, s)
}

func requireProject() string {
	return viper.GetString("project")
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
