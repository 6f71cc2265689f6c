// Package main is the entry point for the Orchestra CLI application.
// Orchestra is a personal AI assistant core that routes each request to
// the orchestration strategy its complexity calls for, backed by a
// file-based long-term memory.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/normanking/orchestra/internal/config"
	"github.com/normanking/orchestra/internal/llm"
	"github.com/normanking/orchestra/internal/memory"
	"github.com/normanking/orchestra/internal/orchestrator"
	"github.com/normanking/orchestra/internal/router"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	metaStyle      = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orchestra",
		Short: "Orchestra - personal AI assistant with adaptive request routing",
		Long: `Orchestra routes each request to the orchestration strategy its
complexity calls for: a direct chat for simple questions, a
memory-augmented path for ongoing work, and a task-decomposing
controller for complex requests. All context lives in a local
file-based memory under ~/.orchestra.

Start interactive mode:  orchestra chat
One-shot question:       orchestra ask "question"
Search memories:         orchestra memory search <query>`,
		PersistentPreRunE: initLogging,
		RunE:              runChat,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.orchestra/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Orchestra v%s\n", version)
		},
	})

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(memoryCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zlog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	return nil
}

// loadEnvFile loads API keys from ~/.orchestra/.env into the process
// environment so provider construction can pick them up via os.Getenv.
func loadEnvFile() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	envPath := filepath.Join(home, ".orchestra", ".env")
	if err := godotenv.Load(envPath); err == nil {
		zlog.Debug().Str("path", envPath).Msg("loaded environment file")
	}
}

// app bundles the wired components behind every command.
type app struct {
	cfg      *config.Config
	store    *memory.Store
	searcher *memory.Searcher
	manager  *orchestrator.Manager
}

func initialize() (*app, error) {
	loadEnvFile()

	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to prepare directories: %w", err)
	}

	store, err := memory.NewStore(cfg.Memory.BaseDir, memory.WithCacheTTL(cfg.Memory.CacheTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	searcher := memory.NewSearcher(store)

	providers := llm.NewRegistry()
	for _, name := range cfg.LLM.ProviderOrder() {
		provider, err := llm.New(name, providerConfig(name, cfg.LLM.Providers[name]))
		if err != nil {
			zlog.Warn().Err(err).Str("provider", name).Msg("skipping provider")
			continue
		}
		if err := providers.Register(name, provider); err != nil {
			return nil, fmt.Errorf("failed to register provider %s: %w", name, err)
		}
	}
	if len(providers.Names()) == 0 {
		return nil, fmt.Errorf("no usable chat providers configured")
	}

	analyzer := router.NewAnalyzer()
	coordinator := orchestrator.NewCoordinator(providers,
		orchestrator.WithPreferredProvider(cfg.Orchestrator.PreferredProvider))

	registry := orchestrator.NewRegistry(orchestrator.Deps{
		Providers:       providers,
		Store:           store,
		Searcher:        searcher,
		Analyzer:        analyzer,
		Coordinator:     coordinator,
		DefaultProvider: cfg.LLM.DefaultProvider,
	})

	return &app{
		cfg:      cfg,
		store:    store,
		searcher: searcher,
		manager: orchestrator.NewManager(store, searcher, analyzer, registry,
			orchestrator.WithDefaultOrchestrator(router.OrchestratorType(cfg.Orchestrator.Default)),
			orchestrator.WithHistoryLimit(cfg.Orchestrator.HistoryLimit)),
	}, nil
}

// providerConfig merges file configuration over the provider's built-in
// defaults.
func providerConfig(name string, pc config.ProviderConfig) *llm.ProviderConfig {
	cfg := llm.DefaultConfig(name)
	if pc.Endpoint != "" {
		cfg.Endpoint = pc.Endpoint
	}
	if pc.APIKey != "" {
		cfg.APIKey = pc.APIKey
	}
	if pc.Model != "" {
		cfg.Model = pc.Model
	}
	if pc.MaxTokens > 0 {
		cfg.MaxTokens = pc.MaxTokens
	}
	if pc.Temperature > 0 {
		cfg.Temperature = pc.Temperature
	}
	if pc.TimeoutSec > 0 {
		cfg.Timeout = time.Duration(pc.TimeoutSec) * time.Second
	}
	return cfg
}

// ═══════════════════════════════════════════════════════════════════════════════
// CHAT COMMAND (interactive loop)
// ═══════════════════════════════════════════════════════════════════════════════

func chatCmd() *cobra.Command {
	var orchestratorFlag string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session. Each message is analyzed and
routed to the matching orchestrator.

In-session commands:
  /switch <simple|memory|control>  prefer an orchestrator for this session
  /stats                           show session statistics
  /quit                            end the session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatWith(orchestratorFlag)
		},
	}

	cmd.Flags().StringVar(&orchestratorFlag, "orchestrator", "", "initial orchestrator (simple, memory, control)")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	return runChatWith("")
}

func runChatWith(orchestratorName string) error {
	a, err := initialize()
	if err != nil {
		return err
	}

	sctx, err := a.manager.CreateSession(router.OrchestratorType(orchestratorName))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		if err := a.manager.CloseSession(sctx.SessionID); err != nil {
			zlog.Warn().Err(err).Msg("failed to close session")
		}
	}()

	fmt.Println(titleStyle.Render(fmt.Sprintf("Orchestra v%s", version)))
	fmt.Println(metaStyle.Render(fmt.Sprintf("session %s | orchestrator %s | /quit to exit",
		sctx.SessionID[:8], sctx.CurrentOrchestrator)))
	fmt.Println()

	// Ctrl-C cancels the in-flight request; /quit ends the session.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if done := handleSlashCommand(a, sctx, input); done {
				break
			}
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()

		resp, err := a.manager.HandleRequest(ctx, sctx.SessionID, input)
		cancel()
		if err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("error: %v", err)))
			continue
		}

		renderResponse(resp)
	}

	return scanner.Err()
}

// handleSlashCommand processes in-session commands. Returns true when the
// session should end.
func handleSlashCommand(a *app, sctx *orchestrator.SessionContext, input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		fmt.Println(metaStyle.Render("bye"))
		return true

	case "/switch":
		if len(fields) < 2 {
			fmt.Println(errorStyle.Render("usage: /switch <simple|memory|control>"))
			return false
		}
		target := router.OrchestratorType(fields[1])
		if !target.IsValid() {
			fmt.Println(errorStyle.Render(fmt.Sprintf("unknown orchestrator %q", fields[1])))
			return false
		}
		// The preference is sticky: routing honors it on every following
		// request unless the target cannot handle the analysis.
		sctx.Profile.PreferredOrchestrator = target.String()
		fmt.Println(metaStyle.Render(fmt.Sprintf("preferred orchestrator set to %s", target)))
		return false

	case "/stats":
		fmt.Printf("Session:       %s\n", sctx.SessionID)
		fmt.Printf("Orchestrator:  %s\n", sctx.CurrentOrchestrator)
		fmt.Printf("Interactions:  %d\n", sctx.TotalInteractions)
		fmt.Printf("Started:       %s\n", sctx.StartTime.Format(time.RFC3339))
		return false

	default:
		fmt.Println(errorStyle.Render(fmt.Sprintf("unknown command %s", fields[0])))
		return false
	}
}

func renderResponse(resp *orchestrator.OrchestratorResponse) {
	if resp.IsError() {
		fmt.Println(errorStyle.Render(resp.Content))
		return
	}

	fmt.Println(assistantStyle.Render(resp.Content))

	meta := fmt.Sprintf("[%s | %.1fs", resp.Type, resp.ProcessingTime.Seconds())
	if total, ok := resp.TokenUsage["total"]; ok && total > 0 {
		meta += fmt.Sprintf(" | %d tokens", total)
	}
	if len(resp.UsedProviders) > 0 {
		meta += " | " + strings.Join(resp.UsedProviders, ", ")
	}
	meta += "]"
	fmt.Println(metaStyle.Render(meta))
	fmt.Println()
}

// ═══════════════════════════════════════════════════════════════════════════════
// ASK COMMAND (one-shot query)
// ═══════════════════════════════════════════════════════════════════════════════

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a one-shot question",
		Long: `Ask a question in a throwaway session and print the answer.

Examples:
  orchestra ask "왜 이 에러가 발생하나요?"
  orchestra ask "Design an authentication flow for my API"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			a, err := initialize()
			if err != nil {
				return err
			}

			sctx, err := a.manager.CreateSession("")
			if err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			defer a.manager.CloseSession(sctx.SessionID)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			resp, err := a.manager.HandleRequest(ctx, sctx.SessionID, question)
			if err != nil {
				return fmt.Errorf("failed to process: %w", err)
			}
			if resp.IsError() {
				return fmt.Errorf("request failed: %s", resp.Content)
			}

			fmt.Println(resp.Content)
			return nil
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// MEMORY COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "memory",
		Aliases: []string{"m"},
		Short:   "Inspect and manage long-term memory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "search [query]",
		Short: "Search stored memories by relevance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			a, err := initialize()
			if err != nil {
				return err
			}

			start := time.Now()
			result := a.searcher.SearchMemories(query, nil, 10)
			duration := time.Since(start)

			if len(result.Items) == 0 {
				fmt.Printf("No memories found for: %s\n", query)
				return nil
			}

			fmt.Printf("Found %d memories in %v:\n\n", len(result.Items), duration)
			for i, item := range result.Items {
				fmt.Printf("%d. [%s] %s\n", i+1, item.Type, truncate(item.Content, 70))
				fmt.Printf("   Score: %.2f | Tags: %s\n\n", item.RelevanceScore, strings.Join(item.Tags, ", "))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add [content]",
		Short: "Save a note to long-term memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")

			a, err := initialize()
			if err != nil {
				return err
			}

			item := memory.NewMemoryItem(content, memory.TypeNote, []string{"manual", "cli"})
			if err := a.store.SaveMemoryItem(item); err != nil {
				return fmt.Errorf("failed to save memory: %w", err)
			}

			fmt.Printf("Saved note %s\n", item.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Remove conversations past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initialize()
			if err != nil {
				return err
			}

			if a.cfg.Memory.RetentionDays <= 0 {
				fmt.Println("Retention disabled (memory.retention_days is 0); nothing to do.")
				return nil
			}

			age := time.Duration(a.cfg.Memory.RetentionDays) * 24 * time.Hour
			removed := a.store.CleanupOlderThan(age)
			fmt.Printf("Removed %d conversations older than %d days\n", removed, a.cfg.Memory.RetentionDays)
			return nil
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// PROFILE COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the user profile",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initialize()
			if err != nil {
				return err
			}

			p := a.store.LoadUserProfile()
			fmt.Println("User Profile:")
			fmt.Println("─────────────")
			fmt.Printf("Name:                   %s\n", p.Name)
			fmt.Printf("Coding style:           %s\n", p.CodingStyle)
			fmt.Printf("Preferred languages:    %s\n", strings.Join(p.PreferredLanguages, ", "))
			fmt.Printf("IDE:                    %s\n", p.IDE)
			fmt.Printf("Interaction style:      %s\n", p.InteractionStyle)
			if p.PreferredOrchestrator != "" {
				fmt.Printf("Preferred orchestrator: %s\n", p.PreferredOrchestrator)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [field] [value]",
		Short: "Update a profile field",
		Long: `Update a profile field.

Fields: name, style (brief|balanced|detailed), orchestrator (simple|memory|control), ide

Examples:
  orchestra profile set name "Jane"
  orchestra profile set style brief
  orchestra profile set orchestrator memory`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, value := args[0], args[1]

			a, err := initialize()
			if err != nil {
				return err
			}

			p := a.store.LoadUserProfile()
			switch field {
			case "name":
				p.Name = value
			case "style":
				valid := map[string]bool{
					memory.StyleBrief:    true,
					memory.StyleBalanced: true,
					memory.StyleDetailed: true,
				}
				if !valid[value] {
					return fmt.Errorf("invalid style %q, must be one of: brief, balanced, detailed", value)
				}
				p.InteractionStyle = value
			case "orchestrator":
				if !router.OrchestratorType(value).IsValid() {
					return fmt.Errorf("invalid orchestrator %q, must be one of: simple, memory, control", value)
				}
				p.PreferredOrchestrator = value
			case "ide":
				p.IDE = value
			default:
				return fmt.Errorf("unknown field %q", field)
			}

			if err := a.store.SaveUserProfile(p); err != nil {
				return fmt.Errorf("failed to save profile: %w", err)
			}
			fmt.Printf("Updated %s\n", field)
			return nil
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATS COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initialize()
			if err != nil {
				return err
			}

			stats := a.store.Stats()
			fmt.Println("Memory Store:")
			fmt.Println("─────────────")
			fmt.Printf("Conversations: %d\n", stats.TotalConversations)
			fmt.Printf("Turns:         %d\n", stats.TotalTurns)
			fmt.Printf("Memory items:  %d\n", stats.TotalMemoryItems)
			if !stats.OldestConversation.IsZero() {
				fmt.Printf("Oldest:        %s\n", stats.OldestConversation.Format("2006-01-02"))
				fmt.Printf("Newest:        %s\n", stats.NewestConversation.Format("2006-01-02"))
			}
			fmt.Printf("Storage:       %s\n", stats.StoragePath)
			return nil
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initialize()
			if err != nil {
				return err
			}

			cfg := a.cfg
			fmt.Println("Orchestra Configuration:")
			fmt.Println("────────────────────────")
			fmt.Printf("Default provider:     %s\n", cfg.LLM.DefaultProvider)
			fmt.Printf("Providers:            %s\n", strings.Join(providerNames(cfg), ", "))
			fmt.Printf("Default orchestrator: %s\n", cfg.Orchestrator.Default)
			fmt.Printf("Preferred provider:   %s\n", cfg.Orchestrator.PreferredProvider)
			fmt.Printf("Memory dir:           %s\n", cfg.Memory.BaseDir)
			fmt.Printf("Log level:            %s\n", cfg.Logging.Level)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			if cfgPath != "" {
				fmt.Println(cfgPath)
				return
			}
			home, err := os.UserHomeDir()
			if err != nil {
				home = "."
			}
			fmt.Println(filepath.Join(home, ".orchestra", "config.yaml"))
		},
	})

	return cmd
}

func providerNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.LLM.Providers))
	for name := range cfg.LLM.Providers {
		names = append(names, name)
	}
	return names
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
