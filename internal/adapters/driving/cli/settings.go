package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

const defaultRedisAddr = "localhost:6379"

var settingsJSON bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change configuration",
	Long: `Show the LLM provider, pipeline tuning, rate limits and status delivery
settings, or change them with one of the subcommands.

Every key can also be overridden for a single run with a LOREKEEPER_*
environment variable, e.g. LOREKEEPER_LLM_API_KEY.`,
	RunE: runSettingsShow,
}

func init() {
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE:  runSettingsShow,
	}
	show.Flags().BoolVar(&settingsJSON, "json", false, "output settings as JSON (API key masked)")

	settingsCmd.AddCommand(
		show,
		&cobra.Command{
			Use:   "wizard",
			Short: "Walk through every setting interactively",
			RunE:  runSettingsWizard,
		},
		&cobra.Command{
			Use:   "llm",
			Short: "Choose the LLM used for extraction, merge decisions and enhancement",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPrompter(cmd, configureLLMProvider)
			},
		},
		&cobra.Command{
			Use:   "status-backend",
			Short: "Choose how job status reaches watchers",
			Long: `Choose how job state changes reach 'status --watch' and other watchers.

  memory   in-process fan-out, single process only
  redis    Redis pub/sub, shared across processes
  polling  periodic reads of the job store`,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPrompter(cmd, configureStatusBackend)
			},
		},
	)
	rootCmd.AddCommand(settingsCmd)
}

// settingsSection is one titled block of "label: value" rows.
type settingsSection struct {
	title string
	rows  [][2]string
}

func (s *settingsSection) add(label, format string, args ...any) {
	s.rows = append(s.rows, [2]string{label, fmt.Sprintf(format, args...)})
}

func describeSettings(s domain.AppSettings) []settingsSection {
	llm := settingsSection{title: "LLM"}
	if s.LLM.Provider == "" {
		llm.add("Provider", "(not set)")
	} else {
		llm.add("Provider", "%s", s.LLM.Provider.Description())
		llm.add("Model", "%s", s.LLM.Model)
	}
	if s.LLM.Provider.IsLocal() {
		llm.add("Base URL", "%s", s.LLM.BaseURL)
	}
	if s.LLM.Provider.RequiresAPIKey() {
		key := "(not set)"
		if s.LLM.APIKey != "" {
			key = maskAPIKey(s.LLM.APIKey)
		}
		llm.add("API Key", "%s", key)
	}
	if s.LLM.IsConfigured() {
		llm.add("Status", "configured")
	} else {
		llm.add("Status", "not configured")
	}

	p := s.Pipeline
	pipeline := settingsSection{title: "Pipeline"}
	pipeline.add("Job timeout", "%s", p.JobTimeout)
	pipeline.add("Sweep interval", "%s", p.SweepInterval)
	pipeline.add("Chunk size", "%d (overlap %d)", p.ChunkSize, p.ChunkOverlap)
	pipeline.add("Batch size", "%d (parallelism %d)", p.BatchSize, p.Parallelism)
	pipeline.add("Low confidence below", "%.2f", p.LowConfidenceThreshold)

	limits := settingsSection{title: "Rate Limit"}
	limits.add("Requests/second", "%g (burst %d)", s.RateLimit.RequestsPerSecond, s.RateLimit.Burst)
	limits.add("Idle keys evicted after", "%s", s.RateLimit.IdleTTL)

	status := settingsSection{title: "Status"}
	status.add("Backend", "%s", s.Status.Backend)
	switch s.Status.Backend {
	case domain.StatusBackendRedis:
		status.add("Redis", "%s", s.Status.RedisAddr)
	case domain.StatusBackendPolling:
		status.add("Poll interval", "%s", domain.ClampPollInterval(s.Status.PollInterval))
	}

	return []settingsSection{llm, pipeline, limits, status}
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if settingsJSON {
		settings.LLM.APIKey = maskAPIKey(settings.LLM.APIKey)
		return printJSON(cmd, settings)
	}

	for _, section := range describeSettings(*settings) {
		cmd.Printf("[%s]\n", section.title)
		for _, row := range section.rows {
			cmd.Printf("  %s: %s\n", row[0], row[1])
		}
		cmd.Println()
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'lorekeeper settings wizard' to fix it.")
		return nil
	}
	cmd.Println("Configuration is valid.")
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	return withPrompter(cmd, func(p *prompter) error {
		p.heading("1/2 LLM provider")
		if err := configureLLMProvider(p); err != nil {
			return err
		}
		p.heading("2/2 Status delivery")
		if err := configureStatusBackend(p); err != nil {
			return err
		}

		if err := settingsService.Validate(); err != nil {
			p.cmd.Printf("Saved, but: %v\n", err)
			return nil
		}
		p.cmd.Println("All settings are valid and saved.")
		return nil
	})
}

func configureLLMProvider(p *prompter) error {
	providers := domain.AllLLMProviders()
	labels := make([]string, len(providers))
	for i, provider := range providers {
		labels[i] = provider.Description()
	}
	provider := providers[p.choose("Select LLM Provider", labels, 1)-1]

	model := p.line("Enter model name", domain.DefaultLLMModels()[provider])

	var apiKey string
	if provider.RequiresAPIKey() {
		if apiKey = p.secret("Enter API key"); apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetLLMProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	p.cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		p.cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	p.cmd.Println("OK")
	p.cmd.Printf("LLM provider configured: %s (%s)\n\n", provider.Description(), model)
	return nil
}

func configureStatusBackend(p *prompter) error {
	backends := []domain.StatusBackend{
		domain.StatusBackendMemory,
		domain.StatusBackendRedis,
		domain.StatusBackendPolling,
	}
	labels := make([]string, len(backends))
	for i, b := range backends {
		labels[i] = string(b)
	}
	backend := backends[p.choose("Select Status Backend", labels, 1)-1]

	var addr string
	if backend == domain.StatusBackendRedis {
		addr = p.line("Enter Redis address", defaultRedisAddr)
	}

	if err := settingsService.SetStatusBackend(backend, addr); err != nil {
		return fmt.Errorf("failed to set status backend: %w", err)
	}
	p.cmd.Printf("Status backend set to: %s\n\n", backend)
	return nil
}

// prompter asks questions on the command's output and reads answers from
// its input.
type prompter struct {
	cmd *cobra.Command
	in  io.Reader
	r   *bufio.Reader
}

func withPrompter(cmd *cobra.Command, fn func(*prompter) error) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	in := cmd.InOrStdin()
	return fn(&prompter{cmd: cmd, in: in, r: bufio.NewReader(in)})
}

func (p *prompter) heading(title string) {
	p.cmd.Println(title)
	p.cmd.Println(strings.Repeat("-", len(title)))
}

// line reads one trimmed answer, returning def when it is empty.
func (p *prompter) line(question, def string) string {
	if def != "" {
		p.cmd.Printf("%s [%s]: ", question, def)
	} else {
		p.cmd.Printf("%s: ", question)
	}
	answer, _ := p.r.ReadString('\n')
	if answer = strings.TrimSpace(answer); answer == "" {
		return def
	}
	return answer
}

// choose lists options and returns the 1-based index picked.
func (p *prompter) choose(title string, options []string, def int) int {
	p.cmd.Println(title)
	for i, opt := range options {
		p.cmd.Printf("  %d. %s\n", i+1, opt)
	}
	p.cmd.Println()
	return parseChoice(p.line("Enter choice", strconv.Itoa(def)), len(options), def)
}

// secret reads without echo when input is an interactive terminal.
func (p *prompter) secret(question string) string {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.cmd.Printf("%s: ", question)
		b, err := term.ReadPassword(int(f.Fd()))
		p.cmd.Println()
		if err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	return p.line(question, "")
}

func parseChoice(input string, n, def int) int {
	v, err := strconv.Atoi(input)
	if err != nil || v < 1 || v > n {
		return def
	}
	return v
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
