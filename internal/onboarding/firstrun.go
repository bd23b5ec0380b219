package onboarding

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
	"marketpulse/config"
)

type OnboardingConfig struct {
	OnboardingComplete bool `yaml:"onboarding_complete"`
}

// IsFirstRun checks if this is the first time the app is being run
func IsFirstRun() bool {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return true // If we can't get config dir, assume first run
	}

	prefsFile := filepath.Join(configDir, "preferences.yaml")

	data, err := os.ReadFile(prefsFile)
	if err != nil {
		return true
	}

	var prefs OnboardingConfig
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return true
	}

	return !prefs.OnboardingComplete
}

// MarkComplete records that onboarding finished so the wizard is not shown again.
func MarkComplete() error {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(OnboardingConfig{OnboardingComplete: true})
	if err != nil {
		return err
	}

	prefsFile := filepath.Join(configDir, "preferences.yaml")
	return os.WriteFile(prefsFile, data, 0644)
}
