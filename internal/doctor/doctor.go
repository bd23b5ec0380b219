package doctor

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"marketpulse/config"
	"marketpulse/internal/credentials"
	"marketpulse/internal/store"
)

type Status string

const (
	StatusOK   Status = "OK"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

type CheckResult struct {
	Name    string
	Status  Status
	Summary string
	Details []string
	Actions []string
}

type Report struct {
	Checks []CheckResult
}

func (r Report) HasFailures() bool {
	for _, check := range r.Checks {
		if check.Status == StatusFail {
			return true
		}
	}
	return false
}

func (r Report) ExitCode() int {
	if r.HasFailures() {
		return 1
	}
	return 0
}

func GenerateReport() Report {
	var checks []CheckResult

	checks = append(checks, checkMetadata())

	configResult, cfg := checkConfig()
	checks = append(checks, configResult)

	checks = append(checks, checkToken())
	checks = append(checks, checkDataStore())
	checks = append(checks, checkBackend(cfg))

	return Report{Checks: checks}
}

func checkMetadata() CheckResult {
	result := CheckResult{Name: "Runtime Metadata", Status: StatusOK}

	execPath, err := os.Executable()
	if err != nil {
		result.Status = StatusWarn
		result.Summary = "Could not resolve executable path"
		result.Details = append(result.Details, err.Error())
		return result
	}

	buildInfo, ok := debug.ReadBuildInfo()
	summaryParts := []string{fmt.Sprintf("go runtime %s", runtime.Version())}
	if ok && buildInfo != nil && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		summaryParts = append(summaryParts, fmt.Sprintf("module %s", buildInfo.Main.Version))
	}

	result.Summary = strings.Join(summaryParts, ", ")
	result.Details = append(result.Details,
		fmt.Sprintf("Executable: %s", execPath),
		fmt.Sprintf("OS/Arch: %s/%s", runtime.GOOS, runtime.GOARCH),
	)
	return result
}

func checkConfig() (CheckResult, *config.Config) {
	result := CheckResult{Name: "Configuration", Status: StatusOK}

	configDir, err := config.GetConfigDir()
	if err != nil {
		result.Status = StatusFail
		result.Summary = "Unable to resolve config directory"
		result.Details = append(result.Details, err.Error())
		result.Actions = append(result.Actions, "verify HOME is set and accessible")
		return result, nil
	}
	result.Details = append(result.Details, fmt.Sprintf("Config directory: %s", configDir))

	if err := checkDirWritable(configDir); err != nil {
		result.Status = StatusWarn
		result.Details = append(result.Details, fmt.Sprintf("Directory not writable: %v", err))
		result.Actions = append(result.Actions, "adjust permissions so mpulse can write config")
	}

	configFile, err := config.GetConfigFile()
	if err != nil {
		result.Status = StatusFail
		result.Summary = "Unable to resolve config file"
		result.Details = append(result.Details, err.Error())
		return result, nil
	}
	result.Details = append(result.Details, fmt.Sprintf("Config file: %s", configFile))

	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
		result.Status = StatusWarn
		result.Summary = "config.yaml not found, using defaults"
		result.Actions = append(result.Actions, "run 'mpulse config' to create one")
	}

	cfg, err := config.Load()
	if err != nil {
		result.Status = StatusFail
		result.Summary = "Failed to parse config.yaml"
		result.Details = append(result.Details, err.Error())
		result.Actions = append(result.Actions, "fix YAML syntax in config.yaml")
		return result, nil
	}

	if result.Summary == "" {
		result.Summary = fmt.Sprintf("Config loaded (API %s)", cfg.APIURL)
	}
	return result, cfg
}

func checkDirWritable(dir string) error {
	file, err := os.CreateTemp(dir, "doctor-")
	if err != nil {
		return err
	}
	name := file.Name()
	file.Close()
	return os.Remove(name)
}

func checkToken() CheckResult {
	result := CheckResult{Name: "Authentication", Status: StatusOK}

	exists, err := credentials.HasAPIToken()
	if err != nil {
		result.Status = StatusFail
		result.Summary = "Unable to access system keyring"
		result.Details = append(result.Details, err.Error())
		result.Actions = append(result.Actions, "confirm keyring backend is available or set MPULSE_TOKEN")
		return result
	}

	if exists {
		result.Summary = "API token is stored"
	} else {
		result.Status = StatusWarn
		result.Summary = "API token not configured"
		result.Actions = append(result.Actions, "run 'mpulse config set-token' to store one")
	}
	return result
}

func checkDataStore() CheckResult {
	result := CheckResult{Name: "Data Store", Status: StatusOK}

	dbPath, err := config.GetDatabasePath()
	if err != nil {
		result.Status = StatusFail
		result.Summary = "Unable to resolve database path"
		result.Details = append(result.Details, err.Error())
		return result
	}
	result.Details = append(result.Details, fmt.Sprintf("Database: %s", dbPath))

	db, err := store.Open(dbPath)
	if err != nil {
		result.Status = StatusFail
		result.Summary = "Cannot open database"
		result.Details = append(result.Details, err.Error())
		result.Actions = append(result.Actions, "check file permissions or remove a corrupted database")
		return result
	}
	defer db.Close()

	current, latest, err := store.SchemaVersion(db)
	if err != nil {
		result.Status = StatusWarn
		result.Details = append(result.Details, fmt.Sprintf("Schema version check failed: %v", err))
		return result
	}
	result.Summary = fmt.Sprintf("Database healthy (schema v%d)", current)
	if current < latest {
		result.Status = StatusWarn
		result.Details = append(result.Details, fmt.Sprintf("Schema v%d behind latest v%d", current, latest))
	}
	return result
}

func checkBackend(cfg *config.Config) CheckResult {
	result := CheckResult{Name: "Backend", Status: StatusOK}

	if cfg == nil {
		result.Status = StatusWarn
		result.Summary = "Skipped (config unavailable)"
		return result
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimSuffix(cfg.APIURL, "/") + "/api/health")
	if err != nil {
		result.Status = StatusWarn
		result.Summary = "Backend unreachable"
		result.Details = append(result.Details, err.Error())
		result.Actions = append(result.Actions, "verify the backend is running and api_url is correct")
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Summary = fmt.Sprintf("Backend reachable at %s", cfg.APIURL)
	} else {
		result.Status = StatusWarn
		result.Summary = fmt.Sprintf("Backend returned HTTP %d", resp.StatusCode)
		result.Actions = append(result.Actions, "check backend logs")
	}
	return result
}
