package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rafabd1/Nightshade/internal/config"
	"github.com/rafabd1/Nightshade/internal/core"
	"github.com/rafabd1/Nightshade/internal/input"
	"github.com/rafabd1/Nightshade/internal/networking"
	"github.com/rafabd1/Nightshade/internal/output"
	"github.com/rafabd1/Nightshade/internal/report"
	"github.com/rafabd1/Nightshade/internal/utils"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "nightshade",
	Short: "Adaptive token validity prober for authorized endpoint assessments",
	Long: `Nightshade probes a redemption-check endpoint with candidate tokens and
classifies each response, throttling itself when the endpoint pushes back.
Only run it against endpoints you are authorized to assess.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
			}
		}
		viper.SetEnvPrefix("nightshade")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()
		if err := viper.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
			return err
		}
		return viper.BindPFlags(cmd.Flags())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	defaults := config.GetDefaultConfig()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to a config file (any format viper reads)")
	pf.StringP("url", "u", "", "Target base URL (scheme optional)")
	pf.String("probe-path", defaults.ProbePath, "Path of the redemption-check endpoint")
	pf.String("token-field", defaults.TokenField, "Form field carrying the candidate token")
	pf.String("ajax-field", defaults.AjaxField, "Form field marking the request as async (empty disables)")
	pf.String("session", "", "Session cookie value")
	pf.String("session-cookie-name", defaults.SessionCookieName, "Session cookie name")
	pf.String("csrf", "", "CSRF token (sent as form field and header)")
	pf.String("csrf-cookie-name", defaults.CSRFCookieName, "CSRF cookie name")
	pf.String("csrf-cookie-value", "", "CSRF cookie value (defaults to the CSRF token)")
	pf.String("csrf-field", defaults.CSRFField, "CSRF form field name")
	pf.String("csrf-header", defaults.CSRFHeader, "CSRF header name (empty disables)")
	pf.StringSlice("cookie", nil, "Extra cookie to forward unchanged, name=value (repeatable)")
	pf.String("control", "", "Control token known to be valid, for the liveness check")
	pf.String("user-agent", defaults.UserAgent, "User-Agent header")
	pf.Duration("timeout", defaults.RequestTimeout, "Per-request timeout")
	pf.Int("retries", defaults.MaxRetries, "Retry cap for transient transport errors")
	pf.String("markers", "", "YAML marker rules file overriding the builtin classifier markers")
	pf.String("loglevel", defaults.Verbosity, "Log level (debug, info, warn, error, fatal)")
	pf.Bool("no-color", false, "Disable colored output")
	pf.Bool("silent", false, "Suppress non-error output")

	probeFlags := probeCmd.Flags()
	probeFlags.IntP("threads", "t", defaults.Concurrency, fmt.Sprintf("Number of concurrent workers (1-%d)", config.MaxConcurrency))
	probeFlags.Duration("delay", defaults.BaseDelay, "Baseline inter-probe delay")
	probeFlags.Duration("max-delay", defaults.MaxDelay, "Ceiling for throttle escalation")
	probeFlags.Duration("jitter", defaults.JitterMax, "Upper bound for random delay jitter")
	probeFlags.Int("block-threshold", defaults.BlockThreshold, "Consecutive block signals before escalating")
	probeFlags.Int("timeout-threshold", defaults.TimeoutThreshold, "Consecutive timeouts before escalating")
	probeFlags.Bool("no-throttle", false, "Disable all adaptive throttling (fixed baseline delay)")
	probeFlags.BoolP("priority", "p", false, "Probe the builtin priority tier only (default)")
	probeFlags.BoolP("all", "a", false, "Probe the full builtin catalog")
	probeFlags.StringP("wordlist", "w", "", "Probe codes from a wordlist file")
	probeFlags.StringP("code", "c", "", "Probe a single code")
	probeFlags.IntP("random", "r", 0, "Probe COUNT randomly generated codes")
	probeFlags.Int("random-length", defaults.RandomLength, "Length of the random portion")
	probeFlags.String("random-charset", defaults.RandomCharset, fmt.Sprintf("Charset (%s)", strings.Join(input.CharsetNames(), ", ")))
	probeFlags.String("random-prefix", "", "Fixed prefix for random codes")
	probeFlags.String("random-suffix", "", "Fixed suffix for random codes")
	probeFlags.StringP("output", "o", "", "JSON results file (stdout report is always printed)")
	probeFlags.String("sqlite", "", "SQLite file to append the run's outcomes to")

	generateFlags := generateCmd.Flags()
	generateFlags.String("html-file", "", "Local HTML file to extract candidate words from")
	generateFlags.String("text-file", "", "Local text file (browser paste) to extract candidate words from")
	generateFlags.StringP("output", "o", "wordlist.txt", "Output wordlist file")
	generateFlags.Bool("no-variations", false, "Skip common suffix variations")

	rootCmd.AddCommand(probeCmd, validateCmd, generateCmd, rulesCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe candidate tokens against the target endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(true)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		rules, err := config.LoadMarkerRules(cfg.MarkersFile)
		if err != nil {
			return err
		}

		session, err := networking.NewSessionContext(cfg)
		if err != nil {
			return err
		}
		client, err := networking.NewClient(session, cfg.RequestTimeout, logger)
		if err != nil {
			return err
		}

		source, err := buildSource(cfg)
		if err != nil {
			return err
		}
		logger.Infof("Nightshade starting: %s", cfg.String())
		if size := source.Size(); size >= 0 {
			logger.Infof("Candidate source: %s mode, %d codes", cfg.SourceMode, size)
		}

		if limit, err := utils.CheckFileDescriptorLimit(cfg.Concurrency); err != nil {
			logger.Warnf("%v", err)
		} else {
			logger.Debugf("Soft fd limit: %d", limit)
		}

		throttle := core.NewThrottle(core.ThrottleConfig{
			BaseDelay:        cfg.BaseDelay,
			MaxDelay:         cfg.MaxDelay,
			JitterMax:        cfg.JitterMax,
			BlockThreshold:   cfg.BlockThreshold,
			TimeoutThreshold: cfg.TimeoutThreshold,
			MaxConcurrency:   cfg.Concurrency,
			Disabled:         cfg.NoThrottle,
		})
		scheduler := core.NewScheduler(cfg, client, core.NewClassifier(rules), throttle, source, logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			logger.Warnf("Interrupt received, shutting down gracefully...")
			cancel()
		}()

		var tracker *output.Tracker
		if !cfg.Silent {
			tracker = output.NewTracker(source.Size(), scheduler.Aggregator().Tested)
			tracker.Start()
		}

		result, runErr := scheduler.Run(ctx)
		if tracker != nil {
			tracker.Stop()
		}

		reporter := report.NewReporter()
		if !cfg.Silent {
			if err := reporter.Generate(result, "", "text"); err != nil {
				logger.Errorf("Failed to print report: %v", err)
			}
		}
		if cfg.OutputFile != "" {
			if err := reporter.Generate(result, cfg.OutputFile, "json"); err != nil {
				logger.Errorf("Failed to write %s: %v", cfg.OutputFile, err)
			} else {
				logger.Infof("Results saved to %s", cfg.OutputFile)
			}
		}
		if cfg.SQLiteFile != "" {
			if err := report.SaveSQLite(cfg.SQLiteFile, result); err != nil {
				logger.Errorf("Failed to write sqlite results: %v", err)
			} else {
				logger.Infof("Outcomes appended to %s", cfg.SQLiteFile)
			}
		}

		if runErr != nil {
			return runErr
		}
		logger.Infof("Run finished: %s, %d tested in %s", result.Status, result.Snapshot.Tested, result.Duration.Round(time.Millisecond))
		if result.Status != core.StatusSuccess {
			os.Exit(1)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the supplied session credentials are live",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(false)
		if err != nil {
			return err
		}
		if cfg.ControlToken == "" {
			return fmt.Errorf("validate requires a control token (--control)")
		}
		logger := newLogger(cfg)

		rules, err := config.LoadMarkerRules(cfg.MarkersFile)
		if err != nil {
			return err
		}
		session, err := networking.NewSessionContext(cfg)
		if err != nil {
			return err
		}
		client, err := networking.NewClient(session, cfg.RequestTimeout, logger)
		if err != nil {
			return err
		}

		scheduler := core.NewScheduler(cfg, client, core.NewClassifier(rules), core.NewThrottle(core.ThrottleConfig{MaxConcurrency: 1}), input.NewSliceSource(nil, input.OriginPriority), logger)
		live, cls := scheduler.ValidateSession(context.Background())
		if live {
			logger.Infof("Session is VALID (control verdict: %s, %s)", cls.Verdict, cls.Detail)
			return nil
		}
		logger.Errorf("Session is INVALID: %s", cls.Detail)
		os.Exit(1)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a wordlist from a local HTML or text file",
	RunE: func(cmd *cobra.Command, args []string) error {
		htmlFile := viper.GetString("html-file")
		textFile := viper.GetString("text-file")
		if (htmlFile == "") == (textFile == "") {
			return fmt.Errorf("provide exactly one of --html-file or --text-file")
		}

		var words []string
		sourceName := textFile
		if htmlFile != "" {
			sourceName = htmlFile
			file, err := os.Open(htmlFile)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", htmlFile, err)
			}
			defer file.Close()
			words, err = input.ExtractWordsFromHTML(file)
			if err != nil {
				return err
			}
		} else {
			data, err := os.ReadFile(textFile)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", textFile, err)
			}
			words = input.ExtractWords(string(data))
		}

		patterns := input.GeneratePatterns(words, !viper.GetBool("no-variations"))
		outputFile := viper.GetString("output")
		comment := fmt.Sprintf("Nightshade wordlist generated from %s", sourceName)
		if err := input.WriteWordlist(outputFile, patterns, comment); err != nil {
			return err
		}
		fmt.Printf("Saved %d patterns to %s\n", len(patterns), outputFile)
		return nil
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules <file>",
	Short: "Write a marker rules template to edit for your endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefaultMarkerRules(args[0]); err != nil {
			return err
		}
		fmt.Printf("Wrote default marker rules to %s\n", args[0])
		return nil
	},
}

// buildConfig assembles and validates the engine configuration from viper.
// probeMode additionally reads the probe command's flags and resolves the
// candidate source mode.
func buildConfig(probeMode bool) (*config.Config, error) {
	cfg := config.GetDefaultConfig()

	cfg.Target = viper.GetString("url")
	cfg.ProbePath = viper.GetString("probe-path")
	cfg.TokenField = viper.GetString("token-field")
	cfg.AjaxField = viper.GetString("ajax-field")
	cfg.SessionCookieName = viper.GetString("session-cookie-name")
	cfg.SessionCookieValue = viper.GetString("session")
	cfg.CSRFCookieName = viper.GetString("csrf-cookie-name")
	cfg.CSRFCookieValue = viper.GetString("csrf-cookie-value")
	cfg.CSRFToken = viper.GetString("csrf")
	cfg.CSRFField = viper.GetString("csrf-field")
	cfg.CSRFHeader = viper.GetString("csrf-header")
	cfg.ExtraCookies = viper.GetStringSlice("cookie")
	cfg.ControlToken = viper.GetString("control")
	cfg.UserAgent = viper.GetString("user-agent")
	cfg.RequestTimeout = viper.GetDuration("timeout")
	cfg.MaxRetries = viper.GetInt("retries")
	cfg.MarkersFile = viper.GetString("markers")
	cfg.Verbosity = viper.GetString("loglevel")
	cfg.NoColor = viper.GetBool("no-color")
	cfg.Silent = viper.GetBool("silent")

	if probeMode {
		cfg.Concurrency = viper.GetInt("threads")
		cfg.BaseDelay = viper.GetDuration("delay")
		cfg.MaxDelay = viper.GetDuration("max-delay")
		cfg.JitterMax = viper.GetDuration("jitter")
		cfg.BlockThreshold = viper.GetInt("block-threshold")
		cfg.TimeoutThreshold = viper.GetInt("timeout-threshold")
		cfg.NoThrottle = viper.GetBool("no-throttle")
		cfg.WordlistFile = viper.GetString("wordlist")
		cfg.SingleCode = strings.ToUpper(viper.GetString("code"))
		cfg.RandomCount = viper.GetInt("random")
		cfg.RandomLength = viper.GetInt("random-length")
		cfg.RandomCharset = viper.GetString("random-charset")
		cfg.RandomPrefix = viper.GetString("random-prefix")
		cfg.RandomSuffix = viper.GetString("random-suffix")
		cfg.OutputFile = viper.GetString("output")
		cfg.SQLiteFile = viper.GetString("sqlite")

		switch {
		case cfg.SingleCode != "":
			cfg.SourceMode = config.SourceSingle
		case cfg.RandomCount > 0:
			cfg.SourceMode = config.SourceRandom
		case cfg.WordlistFile != "":
			cfg.SourceMode = config.SourceWordlist
		case viper.GetBool("all"):
			cfg.SourceMode = config.SourceCatalog
		default:
			cfg.SourceMode = config.SourcePriority
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildSource(cfg *config.Config) (input.Source, error) {
	switch cfg.SourceMode {
	case config.SourceSingle:
		return input.NewSliceSource([]string{cfg.SingleCode}, input.OriginWordlist), nil
	case config.SourceRandom:
		return input.NewRandomSource(cfg.RandomCount, cfg.RandomLength, cfg.RandomCharset, cfg.RandomPrefix, cfg.RandomSuffix)
	case config.SourceWordlist:
		return input.NewFileSource(cfg.WordlistFile)
	case config.SourceCatalog:
		return input.NewCatalogSource(), nil
	default:
		return input.NewPrioritySource(), nil
	}
}

func newLogger(cfg *config.Config) utils.Logger {
	return utils.NewDefaultLogger(utils.StringToLogLevel(cfg.Verbosity), cfg.NoColor, cfg.Silent)
}
