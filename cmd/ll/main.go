package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leadline/internal/app"
	"leadline/internal/config"
	"leadline/internal/db"
	"leadline/internal/domain"
	"leadline/internal/engine"
	"leadline/internal/feed"
	"leadline/internal/migrate"
	"leadline/internal/repo"
	"leadline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ll",
	Short: "Leadline CLI",
	Long: `Leadline captures inbound leads and walks each one through a small workflow.
Core concepts:
- Workspace: your .leadline directory holding the database; config lives next to it in leadline.yml.
- Lead: one inbound contact (name, email, notes, source); ingestion never rejects a submission.
- Statuses: needs_follow_up -> in_review -> success; use --force to jump out of order.
- Ideation: 'll lead ideate' sends the lead notes to the configured text-generation backend and stores the result.
- Feed: 'll feed watch' streams the full lead list every time something changes.
- Event log: diary of changes, view with 'll log tail'.`,
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
	viper.SetEnvPrefix("LEADLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "actor identifier (defaults to configured owner)")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(leadCmd())
	rootCmd.AddCommand(feedCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func leadCmd() *cobra.Command {
	lead := &cobra.Command{
		Use:   "lead",
		Short: "Manage leads",
		Long:  "Leads flow needs_follow_up -> in_review -> success. Ingestion accepts anything; status changes are guarded unless --force is set.",
	}
	lead.AddCommand(leadIngestCmd())
	lead.AddCommand(leadListCmd())
	lead.AddCommand(leadGetCmd())
	lead.AddCommand(leadStatusCmd())
	lead.AddCommand(leadIdeateCmd())
	return lead
}

func leadIngestCmd() *cobra.Command {
	var opts engine.IngestOptions
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a lead",
		Long:  "Create a lead from submission fields. Every field is optional; missing values are defaulted so a lead is never dropped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = actorID(e)
				l, err := e.IngestLead(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "contact name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "submission notes")
	cmd.Flags().StringVar(&opts.Source, "source", "cli", "submission source")
	return cmd
}

func leadListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				leads, err := e.Repo.ListLeads(ctx, repo.LeadFilters{
					OwnerID: e.Config.Owner.ID,
					OrgID:   scopedOrgID(e.Config),
					Status:  domain.Status(status),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(leads)
				}
				renderLeadTable(leads)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func leadGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.Repo.GetLead(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	return cmd
}

func leadStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Update lead status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.UpdateLeadStatus(ctx, engine.UpdateStatusOptions{
					ID:      args[0],
					Status:  domain.Status(status),
					ActorID: actorID(e),
					Force:   viper.GetBool("force"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (needs_follow_up, in_review, success)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func leadIdeateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ideate <id>",
		Short: "Generate ideation for a lead",
		Long:  "Send the lead notes to the configured text-generation backend. On success the ideation is stored on the lead and the lead moves to in_review.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.GenerateIdeation(ctx, engine.IdeateOptions{
					ID:      args[0],
					ActorID: actorID(e),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
		Args: cobra.ExactArgs(1),
	}
	return cmd
}

func feedCmd() *cobra.Command {
	f := &cobra.Command{
		Use:   "feed",
		Short: "Live lead feed",
	}
	f.AddCommand(feedWatchCmd())
	return f
}

func feedWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the lead list for changes",
		Long:  "Print the full lead list now and again after every change, until interrupted. With a NATS bus configured this follows writes from other processes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
				_, sub, closeBus, err := app.NewBus(e.Config)
				if err != nil {
					return err
				}
				defer closeBus()
				f := &feed.Feed{
					Repo:       e.Repo,
					Subscriber: sub,
					OwnerID:    e.Config.Owner.ID,
					OrgID:      scopedOrgID(e.Config),
				}
				snapshots, cancel, err := f.Subscribe(ctx)
				if err != nil {
					return err
				}
				defer cancel()
				for {
					select {
					case <-ctx.Done():
						return nil
					case s, ok := <-snapshots:
						if !ok {
							return nil
						}
						if viper.GetBool("json") {
							if err := printJSON(s); err != nil {
								return err
							}
						} else {
							renderLeadTable(s)
						}
					}
				}
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: ingestions, status changes, and ideation runs.",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, leadID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, leadID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&leadID, "lead", "", "lead id filter")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is the rulebook (leadline.yml): owner and org identity, ideation backend, bus transport, and outbound webhooks.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"), viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import config from a YAML file into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			dst := config.Path(viper.GetString("workspace"))
			if err := os.WriteFile(dst, data, 0o644); err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var legacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := app.ResolveConfig(workspace, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			pub, sub, closeBus, err := app.NewBus(cfg)
			if err != nil {
				return err
			}
			defer closeBus()

			e := engine.New(conn, cfg)
			e.Bus = pub
			e.Ideation = app.NewIdeationClient(cfg)

			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("LEADLINE_JWT_SECRET"),
				AllowLegacyActorHeader: legacyHeader,
			}
			if authCfg.JWTSecret == "" && !legacyHeader {
				return fmt.Errorf("LEADLINE_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor-header)")
			}
			f := &feed.Feed{
				Repo:       e.Repo,
				Subscriber: sub,
				OwnerID:    cfg.Owner.ID,
				OrgID:      scopedOrgID(cfg),
			}
			handler, err := server.New(server.Config{Engine: e, Feed: f, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving Leadline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&legacyHeader, "allow-legacy-actor-header", false, "accept X-Actor-Id without a token (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := app.ResolveConfig(workspace, viper.GetString("actor-id"))
	if err != nil {
		return err
	}
	pub, _, closeBus, err := app.NewBus(cfg)
	if err != nil {
		return err
	}
	defer closeBus()
	e := engine.New(conn, cfg)
	e.Bus = pub
	e.Ideation = app.NewIdeationClient(cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

// actorID resolves the acting identity: the --actor-id flag when given,
// otherwise the configured owner.
func actorID(e engine.Engine) string {
	if id := strings.TrimSpace(viper.GetString("actor-id")); id != "" {
		return id
	}
	return e.Config.Owner.ID
}

func scopedOrgID(cfg *config.Config) string {
	if cfg.Org.Scoped {
		return cfg.Org.ID
	}
	return ""
}

func renderLeadTable(leads []domain.Lead) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Email", "Status", "Ideation", "Updated"})
	for _, l := range leads {
		ideated := ""
		if l.AIIdeation != nil {
			ideated = "yes"
		}
		tw.AppendRow(table.Row{l.ID, l.ArtifactContent, l.ContactEmail, l.Status, ideated, l.UpdatedAt})
	}
	tw.Render()
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
