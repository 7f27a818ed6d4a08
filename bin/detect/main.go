package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"grayscale-detector/internal/detect"
	"grayscale-detector/internal/report"
	"grayscale-detector/internal/retry"
	"grayscale-detector/internal/source"
	"grayscale-detector/internal/telemetry"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"
)

const usage = "Usage: detect [flags] <tolerance_percent> <image_url>"

// UsageError reports malformed command line arguments.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return e.Reason
}

func envOrDefaultValue[T any](key string, defaultValue T) T {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case string:
		return any(value).(T)
	case int:
		if intValue, err := strconv.Atoi(value); err == nil {
			return any(intValue).(T)
		}
	case uint:
		if uintValue, err := strconv.ParseUint(value, 10, 0); err == nil {
			return any(uint(uintValue)).(T)
		}
	case bool:
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return any(boolValue).(T)
		}
	case time.Duration:
		if durationValue, err := time.ParseDuration(value); err == nil {
			return any(durationValue).(T)
		}
	}

	return defaultValue
}

type options struct {
	lang      string
	format    string
	timeout   time.Duration
	retryMax  uint
	retryOn   string
	cdpURL    string
	directory string
	debug     bool
	tolerance int
	url       string
}

func parseArgs(args []string, stdout io.Writer, stderr io.Writer) (*options, error) {
	o := &options{}

	flags := flag.NewFlagSet("detect", flag.ContinueOnError)
	flags.SetOutput(stderr)
	printUsage := func() {
		fmt.Fprintln(stdout, usage)
		flags.SetOutput(stdout)
		flags.PrintDefaults()
		flags.SetOutput(stderr)
	}
	// A negative tolerance looks like an unknown flag; usage is printed only
	// once the arguments are known to be malformed.
	flags.Usage = func() {}
	flags.StringVar(&o.lang, "lang", envOrDefaultValue("LANG_CODE", "en"), "Label language (en or ru)")
	flags.StringVar(&o.format, "format", envOrDefaultValue("FORMAT", "text"), "Output format (text or json)")
	flags.DurationVar(&o.timeout, "timeout", envOrDefaultValue("TIMEOUT", time.Duration(0)), "Fetch timeout, 0 for none")
	flags.UintVar(&o.retryMax, "retry-max", envOrDefaultValue("RETRY_MAX", uint(0)), "Maximum fetch retries, 0 disables retrying")
	flags.StringVar(&o.retryOn, "retry-on", envOrDefaultValue("RETRY_ON", "gateway-error,connect-failure,too-many-requests"), "Comma separated retry conditions")
	flags.StringVar(&o.cdpURL, "chrome-devtools-protocol-url", envOrDefaultValue("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to an existing browser for screenshot+ URLs")
	flags.StringVar(&o.directory, "directory", envOrDefaultValue("DIRECTORY", "."), "Base directory for relative file paths")
	flags.BoolVar(&o.debug, "debug", envOrDefaultValue("DEBUG", false), "Human readable debug logging")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage()
			return nil, &UsageError{Reason: err.Error()}
		}
		name := strings.TrimPrefix(err.Error(), "flag provided but not defined: ")
		if tolerance, convErr := strconv.Atoi(name); convErr == nil {
			return nil, &UsageError{Reason: fmt.Sprintf("tolerance must be between 0 and 100, got %d", tolerance)}
		}
		return nil, &UsageError{Reason: err.Error()}
	}

	if flags.NArg() != 2 {
		printUsage()
		return nil, &UsageError{Reason: fmt.Sprintf("expected 2 arguments, got %d", flags.NArg())}
	}

	tolerance, err := strconv.Atoi(flags.Arg(0))
	if err != nil {
		return nil, &UsageError{Reason: fmt.Sprintf("tolerance must be an integer: %q", flags.Arg(0))}
	}
	if tolerance < 0 || tolerance > 100 {
		return nil, &UsageError{Reason: fmt.Sprintf("tolerance must be between 0 and 100, got %d", tolerance)}
	}
	o.tolerance = tolerance
	o.url = flags.Arg(1)

	return o, nil
}

func (o *options) sourceConfig() (source.Config, error) {
	c := source.DefaultConfig()
	c.HTTP.Timeout = o.timeout
	if o.retryMax > 0 {
		retryOn, err := retry.ParseOn(o.retryOn)
		if err != nil {
			return c, err
		}
		c.HTTP.RetryStrategy = retry.NewExponentialBackOff(100*time.Millisecond, 5*time.Second, o.retryMax, nil)
		c.HTTP.RetryOn = retryOn
	}
	c.File.Directory = o.directory
	c.Screenshot.Timeout = max(c.Screenshot.Timeout, o.timeout)
	c.Screenshot.ChromeDevtoolsProtocolURL = o.cdpURL
	c.InstallBrowser = o.cdpURL == ""
	return c, nil
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	o, err := parseArgs(args, stdout, stderr)
	if err != nil {
		return err
	}

	// Only the result belongs on a successful run's output.
	logger, err := telemetry.NewLogger(stderr, slog.LevelWarn, o.debug)
	if err != nil {
		return err
	}

	shutdown, err := telemetry.SetupTracing(ctx, "detect")
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to shutdown trace provider", "error", err)
		}
	}()

	reporter, err := report.New(stdout, o.lang, report.Format(o.format))
	if err != nil {
		return &UsageError{Reason: err.Error()}
	}

	config, err := o.sourceConfig()
	if err != nil {
		return &UsageError{Reason: err.Error()}
	}
	config.HTTP.Logger = logger

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	detector := &detect.Detector{
		Source:    source.NewDefaultRouter(config),
		Tolerance: o.tolerance,
		Logger:    logger,
	}

	result, err := detector.Run(ctx, o.url)
	if err != nil {
		return err
	}

	if err := reporter.ReportResult(result); err != nil {
		return xerrors.Errorf("failed to report result: %w", err)
	}
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "detect: %v\n", err)
		os.Exit(1)
	}
}
