package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/traceforge/traceforge/internal/recipe"
	"github.com/traceforge/traceforge/internal/validator"
	"github.com/traceforge/traceforge/pkg/analyzer"
)

var (
	// Global flags
	configFile   string
	verbose      bool
	debug        bool
	storePath    string
	storeBackend string

	// Analyze flags
	seedURL     string
	serviceName string
	outputFile  string

	// Validate flags
	maxEndpoints int
	budget       int
	reqTimeout   int
	rateLimit    float64
	authHeaders  []string
	authCookies  []string
	insecure     bool

	// Recipe flags
	recipeBody string
	recipeName string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "traceforge",
		Short: "TraceForge - API catalog synthesis from recorded traffic",
		Long: `TraceForge reverse-engineers undocumented web APIs from recorded HTTP
exchanges. It normalizes paths, infers response schemas, correlates
dependencies between endpoints, and merges everything into a versioned
endpoint catalog.`,
		Version: analyzer.Version,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [har-file]",
		Short: "Analyze a HAR capture",
		Long:  "Analyze a HAR capture and merge the discovered endpoints into the service catalog.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}

	validateCmd := &cobra.Command{
		Use:   "validate [service]",
		Short: "Probe catalog endpoints for liveness",
		Long:  "Probe a diverse subset of a service's GET endpoints and report structural evidence.",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	exportCmd := &cobra.Command{
		Use:   "export [service]",
		Short: "Export a catalog as OpenAPI 3",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}

	showCmd := &cobra.Command{
		Use:   "show [service]",
		Short: "Print a service's catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	servicesCmd := &cobra.Command{
		Use:   "services",
		Short: "List services with a stored catalog",
		RunE:  runServices,
	}

	recipeCmd := &cobra.Command{
		Use:   "recipe",
		Short: "Work with extraction recipes",
	}
	recipeValidateCmd := &cobra.Command{
		Use:   "validate [recipe-file]",
		Short: "Statically validate recipes",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecipeValidate,
	}
	recipeApplyCmd := &cobra.Command{
		Use:   "apply [recipe-file]",
		Short: "Apply a recipe to a response body",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecipeApply,
	}
	recipeCmd.AddCommand(recipeValidateCmd)
	recipeCmd.AddCommand(recipeApplyCmd)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Catalog store path (bolt file or directory)")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store-backend", "", "Catalog store backend (bolt, file, memory)")

	// Analyze flags
	analyzeCmd.Flags().StringVar(&seedURL, "seed-url", "", "URL the capture was recorded against")
	analyzeCmd.Flags().StringVar(&serviceName, "service", "", "Override the derived service name")
	analyzeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the merged catalog to a file (default: stdout summary)")

	// Validate flags
	validateCmd.Flags().IntVar(&maxEndpoints, "max-endpoints", 10, "Maximum endpoints to probe")
	validateCmd.Flags().IntVar(&budget, "budget", 60, "Total validation budget in seconds")
	validateCmd.Flags().IntVarP(&reqTimeout, "timeout", "t", 10, "Per-request timeout in seconds")
	validateCmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 5, "Requests per second")
	validateCmd.Flags().StringArrayVarP(&authHeaders, "header", "H", nil, "Auth header as name:value (repeatable)")
	validateCmd.Flags().StringArrayVar(&authCookies, "cookie", nil, "Auth cookie as name=value (repeatable)")
	validateCmd.Flags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	validateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write evidence to a file (default: stdout)")

	// Export flags
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	// Recipe flags
	recipeApplyCmd.Flags().StringVar(&recipeBody, "body", "", "File containing the JSON response body")
	recipeApplyCmd.Flags().StringVar(&recipeName, "name", "", "Recipe name to apply (default: first in file)")
	recipeApplyCmd.MarkFlagRequired("body")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(recipeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildConfig merges the config file, defaults, and command-line overrides.
func buildConfig(cmd *cobra.Command) (*analyzer.Config, error) {
	config := analyzer.DefaultConfig()
	if configFile != "" {
		fileConfig, err := analyzer.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	if storePath != "" {
		config.Store.Path = storePath
	}
	if storeBackend != "" {
		config.Store.Backend = analyzer.StoreBackend(storeBackend)
	}
	if cmd.Flags().Changed("seed-url") {
		config.SeedURL = seedURL
	}
	if cmd.Flags().Changed("service") {
		config.Service = serviceName
	}
	if cmd.Flags().Changed("max-endpoints") {
		config.Validation.MaxEndpoints = maxEndpoints
	}
	if cmd.Flags().Changed("budget") {
		config.Validation.TotalBudget = time.Duration(budget) * time.Second
	}
	if cmd.Flags().Changed("timeout") {
		config.Validation.RequestTimeout = time.Duration(reqTimeout) * time.Second
	}
	if cmd.Flags().Changed("rate-limit") {
		config.Validation.RequestsPerSecond = rateLimit
	}
	if insecure {
		config.Validation.SkipTLSVerify = true
	}
	config.Verbose = verbose
	config.Debug = debug
	return config, nil
}

func newAnalyzer(cmd *cobra.Command) (*analyzer.Analyzer, *analyzer.Config, error) {
	config, err := buildConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	a, err := analyzer.New(analyzer.WithConfig(config))
	if err != nil {
		return nil, nil, err
	}
	return a, config, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, stopping...")
		cancel()
	}()
	return ctx, cancel
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	harFile := args[0]

	data, err := os.ReadFile(harFile)
	if err != nil {
		return fmt.Errorf("failed to read capture: %w", err)
	}

	a, config, err := newAnalyzer(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	result, err := a.AnalyzeHAR(ctx, data)
	if err != nil {
		return err
	}

	c := result.Catalog
	fmt.Printf("Service:   %s\n", c.Service)
	fmt.Printf("Base URL:  %s\n", c.BaseURL)
	fmt.Printf("Auth:      %s\n", c.AuthMethod)
	fmt.Printf("Endpoints: %d\n", len(c.Endpoints))
	fmt.Printf("Version:   %s\n", result.Version)
	fmt.Printf("Diff:      %s\n", result.Diff)
	fmt.Printf("Duration:  %s\n", time.Since(start).Round(time.Millisecond))

	out := config.Output
	if outputFile != "" {
		out.File = outputFile
	}
	if out.File != "" {
		return writeReport(out, c)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	service := args[0]

	a, config, err := newAnalyzer(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	creds := &validator.Credentials{
		Headers: map[string]string{},
		Cookies: map[string]string{},
	}
	for _, h := range authHeaders {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid header %q, want name:value", h)
		}
		creds.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	for _, c := range authCookies {
		name, value, ok := strings.Cut(c, "=")
		if !ok {
			return fmt.Errorf("invalid cookie %q, want name=value", c)
		}
		creds.Cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	evidence, err := a.Validate(ctx, service, creds)
	if err != nil {
		return err
	}

	fmt.Printf("Run:      %s\n", evidence.RunID)
	fmt.Printf("Tested:   %d\n", evidence.EndpointsTested)
	fmt.Printf("Verified: %d\n", evidence.EndpointsVerified)
	fmt.Printf("Failed:   %d\n", evidence.EndpointsFailed)
	fmt.Printf("Skipped:  %d\n", evidence.EndpointsSkipped)
	fmt.Printf("Passed:   %v\n", evidence.Passed)

	out := config.Output
	if outputFile != "" {
		out.File = outputFile
	}
	if out.File != "" {
		return writeReport(out, evidence)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, _, err := newAnalyzer(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.ExportOpenAPI(args[0])
	if err != nil {
		return err
	}
	if outputFile != "" {
		return os.WriteFile(outputFile, data, 0644)
	}
	fmt.Println(string(data))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, _, err := newAnalyzer(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.Catalog(args[0])
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("no catalog for service %q", args[0])
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runServices(cmd *cobra.Command, args []string) error {
	a, _, err := newAnalyzer(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	services, err := a.Services()
	if err != nil {
		return err
	}
	if len(services) == 0 {
		fmt.Println("No catalogs stored.")
		return nil
	}
	for _, svc := range services {
		fmt.Println(svc)
	}
	return nil
}

func runRecipeValidate(cmd *cobra.Command, args []string) error {
	recipes, err := recipe.LoadFile(args[0])
	if err != nil {
		return err
	}
	if len(recipes) == 0 {
		return fmt.Errorf("no recipes in %s", args[0])
	}

	failed := false
	for _, r := range recipes {
		name := r.Name
		if name == "" {
			name = r.Source
		}
		errs := recipe.Validate(r)
		if len(errs) == 0 {
			fmt.Printf("%s: ok\n", name)
			continue
		}
		failed = true
		fmt.Printf("%s: %d violations\n", name, len(errs))
		for _, e := range errs {
			fmt.Printf("  - %s\n", e)
		}
	}
	if failed {
		return fmt.Errorf("recipe validation failed")
	}
	return nil
}

func runRecipeApply(cmd *cobra.Command, args []string) error {
	recipes, err := recipe.LoadFile(args[0])
	if err != nil {
		return err
	}

	var selected *recipe.Recipe
	for _, r := range recipes {
		if recipeName == "" || r.Name == recipeName {
			selected = r
			break
		}
	}
	if selected == nil {
		return fmt.Errorf("recipe %q not found in %s", recipeName, args[0])
	}
	if errs := recipe.Validate(selected); len(errs) > 0 {
		return fmt.Errorf("recipe invalid: %s", strings.Join(errs, "; "))
	}

	body, err := os.ReadFile(recipeBody)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	records := recipe.ApplyToBody(string(body), selected)
	if records == nil {
		return fmt.Errorf("recipe does not apply to this body")
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// writeReport renders a report per the output settings and writes it to the
// configured file, or stdout when no file is set.
func writeReport(out analyzer.OutputConfig, v any) error {
	var data []byte
	var err error
	switch {
	case out.Format == "yaml":
		data, err = yaml.Marshal(v)
	case out.Pretty:
		data, err = json.MarshalIndent(v, "", "  ")
	default:
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	if out.File == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(out.File, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Written to %s\n", out.File)
	return nil
}
