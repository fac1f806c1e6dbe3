package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dgellow/wishlist-front/internal"
	"github.com/dgellow/wishlist-front/internal/config"
	"github.com/dgellow/wishlist-front/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": config.SupportedVersion,
		"api": map[string]any{
			"baseURL": config.DefaultBaseURL,
			"timeout": config.DefaultTimeout.String(),
		},
		"session": map[string]any{
			"retainPassword":           false,
			"invalidateOnUnauthorized": true,
		},
		"credentials": map[string]any{
			"username": map[string]string{"$env": "WISHLIST_USERNAME"},
			"password": map[string]string{"$env": "WISHLIST_PASSWORD"},
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Printf("Validating: %s\n", path)

	printIssues := func(title string, issues []config.ValidationError) {
		if len(issues) == 0 {
			return
		}
		fmt.Printf("\n%s (%d):\n", title, len(issues))
		for _, issue := range issues {
			if issue.Path != "" {
				fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
			} else {
				fmt.Printf("  - %s\n", issue.Message)
			}
		}
	}
	printIssues("Errors", result.Errors)
	printIssues("Warnings", result.Warnings)

	fmt.Println()
	switch {
	case len(result.Errors) > 0:
		fmt.Println("Result: FAIL")
	case len(result.Warnings) > 0:
		fmt.Println("Result: PASS (with warnings)")
	default:
		fmt.Println("Result: PASS")
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("validation failed: %d error(s)", len(result.Errors))
	}
	return nil
}

func logMetrics(app *internal.WishlistFront) {
	summary, err := app.MetricsSummary()
	if err != nil {
		log.LogWarn("Failed to gather metrics: %v", err)
		return
	}
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		log.LogDebugWithFields("metrics", k, map[string]any{"value": summary[k]})
	}
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	calls := flag.String("call", "hello,secured", "comma separated calls: hello, secured, user:<id>, create:<first>/<last>")
	logLevel := flag.String("log-level", "", "log level: error, warn, info, debug, trace (overrides LOG_LEVEL)")
	flag.Parse()
	if *logLevel != "" {
		if err := log.SetLogLevel(*logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	planned, err := internal.ParseCalls(*calls)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting wishlist-front", map[string]any{
		"version":  BuildVersion,
		"config":   *conf,
		"logLevel": log.GetLogLevel(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := internal.NewWishlistFront(cfg)
	if err != nil {
		log.LogError("Failed to create wishlist client: %v", err)
		os.Exit(1)
	}

	if err := app.LoginConfigured(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
	}

	failed := 0
	for _, result := range app.Run(ctx, planned) {
		if result.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", result.Call, result.Err)
			continue
		}
		fmt.Printf("%s: %d %s\n", result.Call, result.Response.StatusCode, result.Response.Body)
	}

	logMetrics(app)

	if failed > 0 {
		stop()
		os.Exit(1)
	}
}
