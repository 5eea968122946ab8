package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tensorfuzz/domaininfer/pkg/executor"
	"github.com/tensorfuzz/domaininfer/pkg/sampler"
	"github.com/tensorfuzz/domaininfer/pkg/spec"
	"github.com/tensorfuzz/domaininfer/pkg/tensor"
)

type sampleOptions struct {
	modelPath  string
	domainPath string
	backend    string
	outputPath string
	seed       uint64
}

func newSampleCommand() *cobra.Command {
	var opts sampleOptions
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw a concrete input mapping for a model from an inferred domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.modelPath, "model", "", "path to the model file")
	cmd.Flags().StringVar(&opts.domainPath, "domain", "", "path to a domain artifact; omitted means the default range")
	cmd.Flags().StringVar(&opts.backend, "backend", "native", "execution backend that understands the model format")
	cmd.Flags().StringVar(&opts.outputPath, "output", "", "write the sampled inputs as JSON to this path instead of stdout")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "sampling seed (0 = time-seeded)")
	cmd.MarkFlagRequired("model")
	return cmd
}

// sampledTensor is the JSON shape of one sampled input tensor.
type sampledTensor struct {
	Shape  []int64    `json:"shape"`
	DType  spec.DType `json:"dtype"`
	Values []float64  `json:"values"`
}

func runSample(ctx context.Context, opts sampleOptions) error {
	backend, err := executor.Lookup(opts.backend)
	if err != nil {
		return err
	}
	model, err := backend.LoadModel(opts.modelPath)
	if err != nil {
		return err
	}
	ispec, err := model.InputSpec()
	if err != nil {
		return err
	}

	rng := seedRand(opts.seed)
	var inputs tensor.Map
	if opts.domainPath != "" {
		inputs, err = sampler.SampleFromFile(ispec, opts.domainPath, rng)
	} else {
		inputs, err = sampler.SampleFromSet(ispec, nil, rng)
	}
	if err != nil {
		return err
	}

	sampled := make(map[string]sampledTensor, len(inputs))
	for name, t := range inputs {
		sampled[name] = sampledTensor{Shape: t.Shape, DType: t.DType, Values: t.Values}
	}
	data, err := json.MarshalIndent(sampled, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sampled inputs: %w", err)
	}

	if opts.outputPath == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(opts.outputPath, data, 0644); err != nil {
		return fmt.Errorf("writing sampled inputs: %w", err)
	}
	return nil
}
