package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/rcount/internal/config"
	"github.com/MikeSquared-Agency/rcount/internal/fuzzy"
)

var (
	inferSystemPath string
	inferInputs     []string
	inferMethod     string
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Evaluate a decision system file once and print the result",
	Long: `Loads a decision system definition (YAML or JSON) and computes it
for the given inputs without starting the server.

Examples:
  rcount infer --system supplier.yaml --input kualitas=90 --input harga=10
  rcount infer --system supplier.json --input kualitas=40,harga=70 --method mom`,
	RunE: runInfer,
}

func init() {
	inferCmd.Flags().StringVar(&inferSystemPath, "system", "", "decision system definition file")
	inferCmd.Flags().StringSliceVar(&inferInputs, "input", nil, "crisp input as name=value (repeatable)")
	inferCmd.Flags().StringVar(&inferMethod, "method", "", "defuzzification method override")
	_ = inferCmd.MarkFlagRequired("system")
}

func runInfer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	def, err := loadDefinition(inferSystemPath)
	if err != nil {
		return err
	}
	if inferMethod != "" {
		def.Method = inferMethod
	}
	inputs, err := parseInputs(inferInputs)
	if err != nil {
		return err
	}

	opts := []fuzzy.Option{
		fuzzy.WithMaxUniversePoints(cfg.Fuzzy.MaxUniversePoints),
		fuzzy.WithDefaultStep(cfg.Fuzzy.DefaultStep),
	}
	if m, err := fuzzy.ParseMethod(cfg.Fuzzy.DefaultMethod); err == nil {
		opts = append(opts, fuzzy.WithMethod(m))
	}
	res, err := fuzzy.Evaluate(def, inputs, opts...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func loadDefinition(path string) (fuzzy.DecisionConfig, error) {
	var def fuzzy.DecisionConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("read system: %w", err)
	}
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		err = json.Unmarshal(data, &def)
	} else {
		err = yaml.Unmarshal(data, &def)
	}
	if err != nil {
		return def, fmt.Errorf("parse system %s: %w", path, err)
	}
	return def, nil
}

func parseInputs(pairs []string) (map[string]float64, error) {
	inputs := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid input %q, want name=value", p)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		inputs[name] = v
	}
	return inputs, nil
}
