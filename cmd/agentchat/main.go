package main

import (
	"fmt"
	"os"

	"agentchat/internal/app"
	"agentchat/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	var configPath string
	var mockFlag bool

	root := &cobra.Command{
		Use:     "agentchat",
		Short:   "Terminal chat client for a remote conversation agent",
		Long:    "agentchat is a terminal client for a conversational agent behind a single HTTP endpoint.\n\nConversations live on the backend; the client keeps a session-scoped cache and reconciles it against the remote store as you switch between chats.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A .env next to the binary is convenient for the API key;
			// missing is fine.
			_ = godotenv.Load()

			if configPath == "" {
				configPath = app.DefaultConfigPath()
			}
			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}

			mock := mockFlag || cfg.Endpoint == ""
			application := app.NewApplication(cfg, mock)
			application.Logger.Info("starting", map[string]interface{}{
				"version": version,
				"mock":    mock,
			})

			p := tea.NewProgram(tui.New(application), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "Path to config file (default: "+app.DefaultConfigPath()+")")
	root.Flags().BoolVar(&mockFlag, "mock", false, "Run against an in-memory mock backend")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
