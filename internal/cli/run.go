package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/config"
	"github.com/tandriamil/BrFAST/internal/dataset"
	"github.com/tandriamil/BrFAST/internal/engineerr"
	"github.com/tandriamil/BrFAST/internal/exploration"
	"github.com/tandriamil/BrFAST/internal/exploration/condentropy"
	"github.com/tandriamil/BrFAST/internal/exploration/entropygreedy"
	"github.com/tandriamil/BrFAST/internal/exploration/fpselect"
	"github.com/tandriamil/BrFAST/internal/logging"
	"github.com/tandriamil/BrFAST/internal/measures"
	"github.com/tandriamil/BrFAST/internal/trace"
	"github.com/tandriamil/BrFAST/internal/workerpool"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an attribute-selection algorithm against a dataset",
	Long: `Loads a fingerprint dataset and its usability cost CSVs, runs one
of the three selection algorithms (entropy-greedy, conditional-entropy-greedy,
fpselect) synchronously, and optionally saves the exploration trace.`,
	RunE: runRun,
}

func init() {
	flags := runCmd.Flags()
	flags.String("dataset", "", "path to the fingerprint dataset CSV (required)")
	flags.String("memory-csv", "", "path to the average-fingerprint-size CSV")
	flags.String("instability-csv", "", "path to the attribute instability CSV")
	flags.String("time-csv", "", "path to the attribute collection-time CSV (enables the time cost dimension)")
	flags.String("weights", "memory=1,instability=1", "comma-separated dimension=weight pairs")
	flags.StringP("method", "m", "fpselect", "selection method: entropy-greedy, conditional-entropy-greedy, fpselect")
	flags.Float64P("sensitivity-threshold", "t", 0.10, "the sensitivity threshold alpha")
	flags.IntP("attacker-submissions", "k", 4, "the number k of top fingerprints considered by the attacker")
	flags.StringP("trace-file", "o", "", "if set, write the exploration trace to this path")
	flags.IntP("explored-paths", "p", 3, "the number of paths explored by fpselect at each stage")
	flags.Bool("no-pruning", false, "disable fpselect's pruning of non-improving branches")
	flags.Bool("dedup-last", false, "keep the last fingerprint per browser instead of the first, when deduplicating")
	flags.String("config", "", "path to a YAML run configuration; defaults are used when unset")
}

func runRun(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	datasetPath, _ := flags.GetString("dataset")
	if datasetPath == "" {
		return fmt.Errorf("--dataset is required")
	}
	memoryCSV, _ := flags.GetString("memory-csv")
	instabilityCSV, _ := flags.GetString("instability-csv")
	timeCSV, _ := flags.GetString("time-csv")
	weightsFlag, _ := flags.GetString("weights")
	method, _ := flags.GetString("method")
	alpha, _ := flags.GetFloat64("sensitivity-threshold")
	k, _ := flags.GetInt("attacker-submissions")
	traceFile, _ := flags.GetString("trace-file")
	exploredPaths, _ := flags.GetInt("explored-paths")
	noPruning, _ := flags.GetBool("no-pruning")
	dedupLast, _ := flags.GetBool("dedup-last")
	configPath, _ := flags.GetString("config")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logger := logging.Named(method)

	datasetFile, err := os.Open(datasetPath)
	if err != nil {
		return fmt.Errorf("opening dataset: %w", err)
	}
	defer datasetFile.Close()

	ds, err := dataset.NewDatasetFromCSV(datasetFile)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	candidates := ds.CandidateAttributes()

	weights, err := parseWeights(weightsFlag)
	if err != nil {
		return err
	}

	costMeasure, err := buildCostMeasure(candidates, weights, memoryCSV, instabilityCSV, timeCSV)
	if err != nil {
		return err
	}

	dedupView, err := ds.DedupOneFpPerBrowser(dedupLast)
	if err != nil {
		return err
	}
	sensitivityMeasure := measures.NewTopKFingerprints(dedupView, k)

	measuresMP, explorationsMP := cfg.EffectiveMultiprocessing()
	var pool *workerpool.Pool
	if explorationsMP {
		pool = workerpool.New(runtime.NumCPU(), cfg.Multiprocessing.FreeCores)
	}
	_ = measuresMP // the measure kernels are evaluated synchronously by the controller; this flag is read but has no effect

	var algo exploration.Algorithm
	var exploredPathsParam *int
	var pruningParam *bool
	switch method {
	case "entropy-greedy":
		algo = entropygreedy.New(pool)
	case "conditional-entropy-greedy":
		algo = condentropy.New(pool)
	case "fpselect":
		pruning := !noPruning
		a, ferr := fpselect.New(pool, exploredPaths, pruning)
		if ferr != nil {
			return ferr
		}
		algo = a
		exploredPathsParam = &exploredPaths
		pruningParam = &pruning
	default:
		return engineerr.New(engineerr.InvalidParameter, "unknown selection method %q", method)
	}

	params := trace.Parameters{
		Method:               algo.Name(),
		SensitivityMeasure:   sensitivityMeasure.String(),
		UsabilityCostMeasure: costMeasure.String(),
		Dataset:              datasetPath,
		SensitivityThreshold: alpha,
		AnalysisEngine:       cfg.AnalysisEngineLabel(),
		Multiprocessing:      explorationsMP,
		FreeCores:            cfg.Multiprocessing.FreeCores,
		ExploredPaths:        exploredPathsParam,
		Pruning:              pruningParam,
	}

	controller := exploration.NewController(sensitivityMeasure, costMeasure, ds, alpha, algo, params, logger)

	if err := controller.Run(); err != nil {
		return fmt.Errorf("exploration failed: %w", err)
	}

	solution, err := controller.GetSolution()
	if err != nil {
		return err
	}
	cmd.Printf("solution: %v\n", solution.Names())

	if traceFile == "" {
		return nil
	}
	builtTrace, err := controller.BuildTrace()
	if err != nil {
		return err
	}
	out, err := os.Create(traceFile)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer out.Close()
	return trace.Write(out, builtTrace)
}

// parseWeights parses a comma-separated list of dimension=weight pairs, the
// shape every cost-measure weight map takes on the command line.
func parseWeights(s string) (map[string]float64, error) {
	weights := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed weight pair %q, expected dimension=weight", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing weight for %q: %w", parts[0], err)
		}
		weights[strings.TrimSpace(parts[0])] = v
	}
	return weights, nil
}

// buildCostMeasure loads the memory and instability CSVs (and, if given,
// the collection-time CSV) and assembles the corresponding usability cost
// measure over candidates.
func buildCostMeasure(candidates attribute.AttributeSet, weights map[string]float64, memoryCSV, instabilityCSV, timeCSV string) (measures.UsabilityCostMeasure, error) {
	if memoryCSV == "" || instabilityCSV == "" {
		return nil, fmt.Errorf("--memory-csv and --instability-csv are both required")
	}

	size, err := loadAttributeCSV(memoryCSV, candidates, measures.LoadAverageSizeCSV)
	if err != nil {
		return nil, err
	}
	instability, err := loadAttributeCSV(instabilityCSV, candidates, measures.LoadInstabilityCSV)
	if err != nil {
		return nil, err
	}

	if timeCSV == "" {
		return measures.NewMemoryInstability(size, instability, weights)
	}

	timeFile, err := os.Open(timeCSV)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", timeCSV, err)
	}
	defer timeFile.Close()
	collectionTime, err := measures.LoadCollectionTimeCSV(timeFile, candidates)
	if err != nil {
		return nil, err
	}
	return measures.NewMemoryInstabilityTime(size, instability, collectionTime, weights)
}

func loadAttributeCSV(path string, candidates attribute.AttributeSet, load func(r io.Reader, candidates attribute.AttributeSet) (map[uint32]float64, error)) (map[uint32]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return load(f, candidates)
}
