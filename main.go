package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"auto_social_publisher/client"
	"auto_social_publisher/config"
	"auto_social_publisher/generator"
	"auto_social_publisher/publisher"
	"auto_social_publisher/server"
	"auto_social_publisher/store"
	"auto_social_publisher/workflow"
)

var (
	verbose    bool
	configPath string
	listenAddr string
	serverURL  string
	prompt     string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "autopost",
	Short: "Human-in-the-loop social media publishing",
	Long: `autopost turns a one-line goal into reviewed, scheduled posts for
Instagram, Facebook and LinkedIn.

Run "autopost serve" for the backend and "autopost run" to drive a workflow
from the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workflow backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.ServerAddr = listenAddr
		}
		return serve(cmd.Context(), cfg)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive a workflow interactively against a running backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		o := workflow.NewOrchestrator(client.New(serverURL, nil), workflow.WithLogger(logger))
		return runInteractive(cmd.Context(), o, cmd.InOrStdin(), cmd.OutOrStdout(), prompt)
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the backend's current workflow snapshot as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := client.New(serverURL, nil).Fetch(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	serveCmd.Flags().StringVar(&configPath, "config", "", "path to config file (.json or .yaml); empty uses defaults and environment")
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (overrides server_addr)")

	for _, c := range []*cobra.Command{runCmd, stateCmd} {
		c.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "backend base URL")
	}
	runCmd.Flags().StringVar(&prompt, "prompt", "", "start a new workflow with this goal instead of resuming")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	llm, err := buildLLM(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	agent, err := generator.NewAgent(llm, logger.Named("generator"))
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.New(agent, publisher.New(cfg, nil, logger.Named("publisher")), st, logger.Named("server"))
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting web server",
			zap.String("addr", cfg.ServerAddr),
			zap.String("llm", cfg.LLM.Provider),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("dry_run", cfg.DryRun))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func buildLLM(ctx context.Context, cfg config.LLMConfig) (generator.LLMClient, error) {
	settings := &generator.LLMSettings{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
	}
	switch cfg.Provider {
	case "", "mock":
		return generator.MockLLM{}, nil
	case "gemini":
		return generator.NewGeminiLLMFromConfig(ctx, settings)
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url（例如官方/网关地址）。
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
