package main

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"marketpulse/config"
	"marketpulse/internal/chat"
	"marketpulse/internal/cli"
	"marketpulse/internal/credentials"
	"marketpulse/internal/onboarding"
	"marketpulse/internal/store"
	"marketpulse/version"
)

var (
	flagSession string
)

var rootCmd = &cobra.Command{
	Use:   "mpulse",
	Short: "MarketPulse terminal client",
	Long:  "mpulse streams live market-research runs from a MarketPulse backend into the terminal.",
	Run: func(cmd *cobra.Command, args []string) {
		if onboarding.IsFirstRun() {
			fmt.Println("Welcome to MarketPulse! Let's get you set up.")
			if err := onboarding.RunSetupWizard(); err != nil {
				log.Fatalf("Setup failed: %v", err)
			}
			return
		}
		runWatch(cmd, args)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a session's live agent run",
	Run:   runWatch,
}

func runWatch(cmd *cobra.Command, args []string) {
	cfg, token, st := mustSetup()
	defer st.Close()

	err := cli.Watch(cli.WatchOptions{
		Config:    cfg,
		Token:     token,
		SessionID: flagSession,
		Store:     st,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask the agent a question and stream the answer",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, token, st := mustSetup()
		defer st.Close()

		message := ""
		if len(args) > 0 {
			message = args[0]
		} else {
			fmt.Print("> ")
			scanner := bufio.NewScanner(os.Stdin)
			if scanner.Scan() {
				message = scanner.Text()
			}
		}
		if strings.TrimSpace(message) == "" {
			fmt.Fprintln(os.Stderr, "Nothing to ask")
			os.Exit(1)
		}

		client := chat.NewClient(cfg.APIURL, chat.WithToken(token))
		if err := cli.ChatOnce(os.Stdout, client, st, flagSession, message); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage local sessions",
	Run: func(cmd *cobra.Command, args []string) {
		_, _, st := mustSetup()
		defer st.Close()
		if err := cli.ListSessions(cmd.OutOrStdout(), st); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's transcript and runs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, _, st := mustSetup()
		defer st.Close()
		if err := cli.ShowSession(cmd.OutOrStdout(), st, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, _, st := mustSetup()
		defer st.Close()
		if err := st.DeleteSession(cmd.Context(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted session %s\n", args[0])
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change client configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		configFile, _ := config.GetConfigFile()
		fmt.Printf("Config file:   %s\n", configFile)
		fmt.Printf("API URL:       %s\n", cfg.APIURL)
		fmt.Printf("Keepalive:     %s\n", cfg.KeepaliveInterval())
		fmt.Printf("Reconnects:    %d (every %s)\n", cfg.MaxReconnects, cfg.ReconnectDelay())

		hasToken, _ := credentials.HasAPIToken()
		if hasToken {
			fmt.Println("API token:     configured")
		} else {
			fmt.Println("API token:     not set (run 'mpulse config set-token')")
		}
	},
}

var configSetURLCmd = &cobra.Command{
	Use:   "set-url <url>",
	Short: "Set the backend API URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.APIURL = strings.TrimSuffix(args[0], "/")
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("API URL set to %s\n", cfg.APIURL)
	},
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Store the backend API token in the system keyring",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print("Token: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			os.Exit(1)
		}
		if err := credentials.SetAPIToken(scanner.Text()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Token stored")
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check installation and runtime health",
	Run: func(cmd *cobra.Command, args []string) {
		exitCode, err := cli.Doctor(cmd.OutOrStdout())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get())
	},
}

// setupLogging sends the standard logger to a file so background noise
// never corrupts the TUI.
func setupLogging() {
	logPath, err := config.GetLogPath()
	if err != nil {
		return
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

func mustSetup() (*config.Config, string, *store.Store) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	token, err := credentials.GetAPIToken()
	if err != nil && !errors.Is(err, credentials.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Error reading token: %v\n", err)
		os.Exit(1)
	}

	dbPath, err := config.GetDatabasePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving database path: %v\n", err)
		os.Exit(1)
	}
	db, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}

	return cfg, token, store.New(db)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSession, "session", "", "Session identifier (defaults to a new session)")

	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	configCmd.AddCommand(configSetURLCmd)
	configCmd.AddCommand(configSetTokenCmd)

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	setupLogging()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
