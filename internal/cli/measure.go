package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/dataset"
	"github.com/tandriamil/BrFAST/internal/kernels"
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Print an entropy diagnostic report for one or more attributes",
	Long: `Loads a dataset and reports the Shannon entropy, maximum entropy,
and normalized entropy of the given attribute set. A diagnostic aid, not
part of the exploration trace.`,
	RunE: runMeasure,
}

func init() {
	measureCmd.Flags().String("dataset", "", "path to the fingerprint dataset CSV (required)")
	measureCmd.Flags().String("attributes", "", "comma-separated attribute names (default: every candidate attribute, taken singly)")
	measureCmd.Flags().Bool("dedup-last", false, "keep the last fingerprint per browser instead of the first")
}

func runMeasure(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	datasetPath, _ := flags.GetString("dataset")
	if datasetPath == "" {
		return fmt.Errorf("--dataset is required")
	}
	attrsFlag, _ := flags.GetString("attributes")
	dedupLast, _ := flags.GetBool("dedup-last")

	f, err := os.Open(datasetPath)
	if err != nil {
		return fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	ds, err := dataset.NewDatasetFromCSV(f)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	candidates := ds.CandidateAttributes()

	view, err := ds.DedupOneFpPerBrowser(dedupLast)
	if err != nil {
		return err
	}

	sets, err := attributeSetsToMeasure(attrsFlag, candidates)
	if err != nil {
		return err
	}

	for _, set := range sets {
		report, err := kernels.Report(view, set)
		if err != nil {
			return err
		}
		cmd.Printf("%v: entropy=%.4f max_entropy=%.4f normalized_entropy=%.4f\n",
			set.Names(), report.Entropy, report.MaximumEntropy, report.NormalizedEntropy)
	}
	return nil
}

// attributeSetsToMeasure returns one attribute set per name in attrsFlag, or,
// when empty, one singleton set per candidate attribute.
func attributeSetsToMeasure(attrsFlag string, candidates attribute.AttributeSet) ([]attribute.AttributeSet, error) {
	if strings.TrimSpace(attrsFlag) == "" {
		sets := make([]attribute.AttributeSet, 0, candidates.Len())
		for _, a := range candidates.Attributes() {
			sets = append(sets, attribute.MustNewAttributeSet(a))
		}
		return sets, nil
	}

	var attrs []attribute.Attribute
	for _, name := range strings.Split(attrsFlag, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		a, err := candidates.ByName(name)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	set, err := attribute.NewAttributeSet(attrs...)
	if err != nil {
		return nil, err
	}
	return []attribute.AttributeSet{set}, nil
}
