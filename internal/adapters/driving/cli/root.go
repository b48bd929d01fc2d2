// Package cli provides the lorekeeper command line interface.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// DefaultProjectID is used when --project is not given.
const DefaultProjectID = "default"

// StatusSource delivers job events for a project.
type StatusSource interface {
	Subscribe(ctx context.Context, projectID string) (<-chan domain.JobEvent, func(), error)
}

// ManuscriptOpener binds the import service to a manuscript directory.
// The returned closer releases the directory watch.
type ManuscriptOpener func(projectID, root string) (driving.ManuscriptService, func() error, error)

// Services holds every driving port the commands use.
type Services struct {
	Jobs            driving.JobService
	Staleness       driving.StalenessDetector
	Documents       driving.DocumentService
	Supervisor      driving.TimeoutSupervisor
	Knowledge       driving.KnowledgeService
	Enhancement     driving.EnhancementService
	Hash            driving.HashService
	Settings        driving.SettingsService
	Scheduler       driving.Scheduler
	SchedulerConfig domain.SchedulerConfig
	Status          StatusSource
	Manuscripts     ManuscriptOpener
}

// Options are the global flags handed to the bootstrap hook.
type Options struct {
	DataDir   string
	ConfigDir string
	Verbose   bool
}

// Bootstrap builds the services for a command run. The returned cleanup
// runs once the command finishes.
type Bootstrap func(ctx context.Context, opts Options) (*Services, func(), error)

var (
	jobService         driving.JobService
	stalenessDetector  driving.StalenessDetector
	documentService    driving.DocumentService
	timeoutSupervisor  driving.TimeoutSupervisor
	knowledgeService   driving.KnowledgeService
	enhancementService driving.EnhancementService
	hashService        driving.HashService
	settingsService    driving.SettingsService
	scheduler          driving.Scheduler
	schedulerConfig    domain.SchedulerConfig
	statusSource       StatusSource
	openManuscript     ManuscriptOpener
)

var (
	bootstrap Bootstrap
	cleanup   func()

	flagVerbose   bool
	flagDataDir   string
	flagConfigDir string
	flagProject   string
)

var rootCmd = &cobra.Command{
	Use:   "lorekeeper",
	Short: "Incremental story knowledge for manuscripts",
	Long: `Lorekeeper imports a manuscript, extracts story knowledge with an LLM
and keeps it current as chapters change. Only content that changed since the
last successful run is reanalysed.`,
	SilenceUsage:      true,
	PersistentPreRunE: runBootstrap,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.lorekeeper/data)")
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "config directory (default ~/.lorekeeper)")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "P", projectFromEnv(), "project identifier")
}

// SetBootstrap installs the hook that wires services before a command runs.
func SetBootstrap(fn Bootstrap) {
	bootstrap = fn
}

// SetServices installs services directly.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	jobService = s.Jobs
	stalenessDetector = s.Staleness
	documentService = s.Documents
	timeoutSupervisor = s.Supervisor
	knowledgeService = s.Knowledge
	enhancementService = s.Enhancement
	hashService = s.Hash
	settingsService = s.Settings
	scheduler = s.Scheduler
	schedulerConfig = s.SchedulerConfig
	statusSource = s.Status
	openManuscript = s.Manuscripts
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	runCleanup()
	return err
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(flagVerbose)
	if bootstrap == nil || !needsServices(cmd) {
		return nil
	}

	services, done, err := bootstrap(cmd.Context(), Options{
		DataDir:   flagDataDir,
		ConfigDir: flagConfigDir,
		Verbose:   flagVerbose,
	})
	if err != nil {
		return err
	}
	SetServices(services)
	cleanup = done
	return nil
}

func runCleanup() {
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
}

// needsServices reports whether cmd touches storage. Help and version do not.
func needsServices(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return false
	}
	return true
}

func projectFromEnv() string {
	if p := os.Getenv("LOREKEEPER_PROJECT"); p != "" {
		return p
	}
	return DefaultProjectID
}

// projectID returns the selected project.
func projectID() (string, error) {
	if flagProject == "" {
		return "", errors.New("project is required")
	}
	return flagProject, nil
}
