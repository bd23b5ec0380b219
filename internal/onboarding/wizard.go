package onboarding

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"

	"marketpulse/config"
	"marketpulse/internal/credentials"
)

var (
	wizardPrimary = lipgloss.AdaptiveColor{Light: "#7aa2f7", Dark: "#7aa2f7"}
	spinnerStyle  = lipgloss.NewStyle().MarginLeft(2).Foreground(lipgloss.Color("#7aa2f7"))
)

// RunSetupWizard walks a first-time user through connecting to the
// MarketPulse backend: API URL, token, then a reachability probe.
func RunSetupWizard() error {
	highlight := lipgloss.NewStyle().Foreground(wizardPrimary).Bold(true)

	intro := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title(highlight.Render("MarketPulse setup")).
				Description("mpulse streams live research runs from your\nMarketPulse backend into the terminal.\n\nThis setup will:\n\n 1. Point mpulse at your backend\n 2. Store your API token in the system keyring\n\nPress Enter to continue."),
		),
	).
		WithWidth(80).
		WithShowHelp(false).
		WithShowErrors(false)

	if err := intro.Run(); err != nil {
		return errors.New("cancelled")
	}

	apiURL := config.DefaultAPIURL
	var token string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Where the MarketPulse API is running.").
				Value(&apiURL).
				Validate(validateAPIURL),
			huh.NewInput().
				Title("API token").
				Description("Leave empty to configure later with 'mpulse config set-token'.").
				EchoMode(huh.EchoModePassword).
				Value(&token),
		),
	).
		WithWidth(80).
		WithShowErrors(true)

	if err := form.Run(); err != nil {
		return errors.New("cancelled")
	}

	var probeErr error
	err := spinner.New().
		Title("Checking backend...").
		Style(spinnerStyle).
		Action(func() {
			probeErr = probeBackend(apiURL)
		}).
		Run()
	if err != nil {
		return errors.New("cancelled")
	}
	if probeErr != nil {
		// Setup still completes; doctor surfaces reachability later.
		fmt.Printf("Warning: backend not reachable yet: %v\n", probeErr)
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}
	cfg.APIURL = strings.TrimSuffix(apiURL, "/")
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if strings.TrimSpace(token) != "" {
		if err := credentials.SetAPIToken(token); err != nil {
			return fmt.Errorf("store API token: %w", err)
		}
	}

	return MarkComplete()
}

func validateAPIURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return errors.New("not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	if u.Host == "" {
		return errors.New("URL needs a host")
	}
	return nil
}

func probeBackend(apiURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimSuffix(apiURL, "/") + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend returned HTTP %d", resp.StatusCode)
	}
	return nil
}
