package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/catalog-engine/internal/annotate"
	"github.com/pdiddy/catalog-engine/internal/compact"
	"github.com/pdiddy/catalog-engine/internal/secrets"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

const defaultAnnotateTimeout = 120 * time.Second

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Annotate fetched items with a language model",
	Long: `Annotate reads every partition of the date, sends each item not yet
enriched under the enrichment version to the model, validates the returned
metrics, topics and confidence, and appends the accepted rows to a new part
file under silver/enriched/. Items that fail are retried on the next run.`,
	RunE: runAnnotate,
}

func init() {
	f := annotateCmd.Flags()
	f.String("date", "", "fetch date YYYY-MM-DD (default today, UTC)")
	f.String("model", "", "model identifier (default "+annotate.DefaultModel+")")
	f.String("base-url", "", "annotation API endpoint (default OpenAI)")
	f.Int("workers", 0, "items annotated in parallel (default 2)")
	f.Duration("timeout", 0, "HTTP request timeout (default 120s)")
	f.String("enrichment-version", "", "enrichment version stamped on output (default v1)")
	f.String("model-version", "", "model version stamped on output (default: the model)")
	f.String("prompt-version", "", "prompt template version (default "+annotate.DefaultPromptVersion+")")

	_ = viper.BindPFlag("annotate.model", f.Lookup("model"))
	_ = viper.BindPFlag("annotate.base_url", f.Lookup("base-url"))
	_ = viper.BindPFlag("annotate.workers", f.Lookup("workers"))
	_ = viper.BindPFlag("annotate.timeout", f.Lookup("timeout"))
	_ = viper.BindPFlag("annotate.enrichment_version", f.Lookup("enrichment-version"))
	_ = viper.BindPFlag("annotate.model_version", f.Lookup("model-version"))
	_ = viper.BindPFlag("annotate.prompt_version", f.Lookup("prompt-version"))

	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	defer timeStage("annotate")()
	ctx := cmd.Context()

	date, err := fetchDate(cmd)
	if err != nil {
		return err
	}

	cfg := annotationConfig()
	timeout := viper.GetDuration("annotate.timeout")
	if timeout == 0 {
		timeout = defaultAnnotateTimeout
	}
	annotator, err := annotate.NewOpenAIAnnotator(cfg, &http.Client{Timeout: timeout}, logger)
	if err != nil {
		return err
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	partitions, err := compact.DiscoverPartitions(ctx, store, date)
	if err != nil {
		return err
	}
	if len(partitions) == 0 {
		fmt.Fprintf(os.Stdout, "No partitions found for %s.\n", date)
		return nil
	}

	runner := annotate.NewRunner(store, annotator, cfg, logger, recorder)
	m, err := runner.Run(ctx, partitions, date, os.Stdout)
	if err != nil {
		return err
	}
	if m.Failed > 0 && m.Annotated == 0 {
		return fmt.Errorf("%d item(s) failed annotation, none succeeded", m.Failed)
	}
	return nil
}

func annotationConfig() types.AnnotationConfig {
	model := viper.GetString("annotate.model")
	if model == "" {
		model = annotate.DefaultModel
	}
	return types.AnnotationConfig{
		RetryConfig:       retryConfig("annotate"),
		Model:             model,
		BaseURL:           viper.GetString("annotate.base_url"),
		APIKey:            secretDefault(secrets.OpenAIAPIKey, viper.GetString("annotate.api_key")),
		Workers:           viper.GetInt("annotate.workers"),
		EnrichmentVersion: viper.GetString("annotate.enrichment_version"),
		ModelVersion:      viper.GetString("annotate.model_version"),
		PromptVersion:     viper.GetString("annotate.prompt_version"),
	}
}
