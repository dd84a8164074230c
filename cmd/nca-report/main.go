package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"ncacli/internal/config"
	"ncacli/internal/datagen"
	"ncacli/internal/dataset"
	"ncacli/internal/exporter"
	"ncacli/internal/nca"
	"ncacli/internal/population"
)

func main() {
	configFile := flag.String("config", "", "configuration file (defaults to nca.yaml when present)")
	input := flag.String("input", "", "input dataset (.csv or .xlsx)")
	outputDir := flag.String("out", "", "output directory for analysis reports")
	generateExample := flag.Bool("generate-example", false, "generate an example dataset instead of analyzing")
	nSubjects := flag.Int("subjects", 20, "number of subjects for the example dataset")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed for the example dataset")
	blqHandling := flag.String("blq-handling", "", "BLQ policy: half_lloq, zero, or drop")
	lambdaZMethod := flag.String("lambda-z-method", "", "lambda_z selection: auto, manual, or best_fit")
	lambdaZIndices := flag.String("lambda-z-indices", "", "comma-separated observation indices for manual lambda_z selection")
	aucMethods := flag.String("auc-methods", "", "comma-separated AUC methods")
	stratifyBy := flag.String("stratify-by", "", "comma-separated stratification variables (e.g. SEX,TREATMENT)")
	covariateAnalysis := flag.Bool("covariate-analysis", false, "perform covariate correlation and regression analysis")
	doseNormalization := flag.Bool("dose-normalization", false, "perform dose-normalized exposure analysis")
	concurrency := flag.Int("concurrency", 0, "max concurrent subject analyses (0 = number of CPUs)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	applyFlags(&cfg.Analysis, *blqHandling, *lambdaZMethod, *aucMethods, *stratifyBy,
		*covariateAnalysis, *doseNormalization, *concurrency)
	if *lambdaZIndices != "" {
		indices, err := parseIndexList(*lambdaZIndices)
		if err != nil {
			logger.Error("Invalid -lambda-z-indices", "error", err)
			os.Exit(2)
		}
		cfg.Analysis.LambdaZIndices = indices
	}

	if *input == "" {
		*input = cfg.Paths.InputFile
	}
	if *outputDir == "" {
		*outputDir = cfg.Paths.OutputDir
	}

	if *generateExample {
		if *input == "" {
			*input = "example_pk_data.csv"
		}
		if err := generateExampleDataset(logger, *input, *nSubjects, *seed); err != nil {
			logger.Error("Failed to generate example dataset", "error", err)
			os.Exit(1)
		}
		return
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "no input dataset: pass -input or set paths.input_file in the config")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(logger, cfg, *input, *outputDir); err != nil {
		logger.Error("Analysis failed", "error", err)
		os.Exit(1)
	}
}

func applyFlags(a *config.AnalysisConfig, blq, lambdaZ, aucMethods, stratifyBy string, covariate, doseNorm bool, concurrency int) {
	if blq != "" {
		a.BLQHandling = blq
	}
	if lambdaZ != "" {
		a.LambdaZMethod = lambdaZ
	}
	if aucMethods != "" {
		a.AUCMethods = splitList(aucMethods)
	}
	if stratifyBy != "" {
		a.StratifyBy = splitList(stratifyBy)
	}
	if covariate {
		a.CovariateAnalysis = true
	}
	if doseNorm {
		a.DoseNormalization = true
	}
	if concurrency > 0 {
		a.Concurrency = concurrency
	}
}

func parseIndexList(s string) ([]int, error) {
	parts := splitList(s)
	indices := make([]int, 0, len(parts))
	for _, p := range parts {
		idx, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("index %q is not an integer", p)
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func generateExampleDataset(logger *slog.Logger, path string, nSubjects int, seed int64) error {
	logger.Info("Generating example dataset", "path", path, "subjects", nSubjects, "seed", seed)

	generator := datagen.NewGenerator(seed)
	subjects := generator.GenerateSubjects(nSubjects)
	if err := datagen.WriteCSV(path, subjects); err != nil {
		return err
	}

	logger.Info("Example dataset written", "path", path, "subjects", len(subjects))
	return nil
}

func run(logger *slog.Logger, cfg *config.Config, input, outputDir string) error {
	ctx := context.Background()

	engineCfg, err := cfg.Analysis.ToAnalysisConfig()
	if err != nil {
		return fmt.Errorf("invalid analysis options: %w", err)
	}

	logger.Info("Loading dataset", "path", input)
	subjects, err := dataset.ParseFile(input)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	if len(subjects) == 0 {
		return fmt.Errorf("no subjects found in %s", input)
	}
	logger.Info("Loaded dataset", "subjects", len(subjects))

	aggregator, err := population.NewAggregator(engineCfg, logger)
	if err != nil {
		return err
	}
	if cfg.Analysis.Concurrency > 0 {
		aggregator.SetConcurrency(cfg.Analysis.Concurrency)
	}

	logger.Info("Running population analysis",
		"blq_handling", engineCfg.BLQ.String(),
		"lambda_z_method", engineCfg.LambdaZ.Method.String(),
		"covariate_analysis", engineCfg.PerformCovariateAnalysis,
	)
	start := time.Now()
	results, err := aggregator.AnalyzePopulation(ctx, subjects)
	if err != nil {
		return err
	}
	logger.Info("Population analysis complete",
		"analyzed", len(results.IndividualResults),
		"failed", len(results.FailedSubjects),
		"elapsed", time.Since(start).String(),
	)

	exp := exporter.NewExporter(outputDir, logger)
	if err := exp.SaveResults(ctx, results, engineCfg); err != nil {
		return err
	}

	printSummary(results)
	return nil
}

func printSummary(results nca.PopulationResults) {
	fmt.Println("\n=== POPULATION SUMMARY ===")
	fmt.Printf("Subjects analyzed: %d\n", len(results.IndividualResults))
	if len(results.FailedSubjects) > 0 {
		fmt.Printf("Subjects excluded: %d (see failed_subjects.log)\n", len(results.FailedSubjects))
	}

	fmt.Println("\nParameter       |     Mean |      CV% |   Median")
	fmt.Println("----------------|----------|----------|---------")
	for _, param := range nca.ParameterNames {
		stats, ok := results.SummaryStatistics[param]
		if !ok || stats.N == 0 {
			continue
		}
		fmt.Printf("%-15s | %8.3f | %8.1f | %8.3f\n", param, stats.Mean, stats.CVPercent, stats.Median)
	}

	if len(results.MethodComparison.AUCMethods) > 1 {
		fmt.Println("\nMean AUC_last by method:")
		for _, method := range sortedMethodNames(results.MethodComparison.AUCMethods) {
			fmt.Printf("  %-25s %10.3f\n", method, results.MethodComparison.AUCMethods[method])
		}
	}
}

func sortedMethodNames(methods map[string]float64) []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
