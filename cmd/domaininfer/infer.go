package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"k8s.io/klog/v2"

	"github.com/tensorfuzz/domaininfer/pkg/artifacts"
	"github.com/tensorfuzz/domaininfer/pkg/domain"
	"github.com/tensorfuzz/domaininfer/pkg/executor"
	"github.com/tensorfuzz/domaininfer/pkg/infer"
	"github.com/tensorfuzz/domaininfer/pkg/nancheck"
	"github.com/tensorfuzz/domaininfer/pkg/registry"
	"github.com/tensorfuzz/domaininfer/pkg/sampler"
)

type inferOptions struct {
	modelPath    string
	outputPath   string
	backend      string
	registryPath string
	uploadBucket string

	maxTrials int
	thres     float64
	eps       float64
	lo, hi    float64
	seed      uint64
}

func newInferCommand() *cobra.Command {
	var opts inferOptions
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Infer the NaN-safe input domain of a model and write it as an artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfer(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.modelPath, "model", "", "path to the model file")
	cmd.Flags().StringVar(&opts.outputPath, "output", "domain.bin", "path to write the domain artifact")
	cmd.Flags().StringVar(&opts.backend, "backend", "native", "execution backend (one of: "+strings.Join(executor.Backends(), ", ")+")")
	cmd.Flags().StringVar(&opts.registryPath, "registry", "", "optional sqlite registry; reuses a previously inferred domain for the same model digest")
	cmd.Flags().StringVar(&opts.uploadBucket, "upload-bucket", "", "optional GCS bucket (gs://name) to upload the artifact to, keyed by model digest")
	cmd.Flags().IntVar(&opts.maxTrials, "max-trials", nancheck.DefaultMaxTrials, "stochastic executions per range decision")
	cmd.Flags().Float64Var(&opts.thres, "thres", nancheck.DefaultThres, "minimum pass fraction to accept a range")
	cmd.Flags().Float64Var(&opts.eps, "eps", infer.DefaultEps, "binary search precision")
	cmd.Flags().Float64Var(&opts.lo, "lo", infer.DefaultLo, "lower search bound")
	cmd.Flags().Float64Var(&opts.hi, "hi", infer.DefaultHi, "upper search bound")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "sampling seed (0 = time-seeded)")
	cmd.MarkFlagRequired("model")
	return cmd
}

func runInfer(ctx context.Context, opts inferOptions) error {
	log := klog.FromContext(ctx)

	backend, err := executor.Lookup(opts.backend)
	if err != nil {
		return err
	}
	model, err := backend.LoadModel(opts.modelPath)
	if err != nil {
		return err
	}
	digest, err := registry.DigestFile(opts.modelPath)
	if err != nil {
		return err
	}

	var reg *registry.Registry
	if opts.registryPath != "" {
		reg, err = registry.Open(opts.registryPath)
		if err != nil {
			return err
		}
		defer reg.Close()

		rec, found, err := reg.Get(ctx, digest)
		if err != nil {
			return err
		}
		if found {
			log.Info("reusing registered domain", "digest", digest, "run", rec.RunID, "ranges", len(rec.Ranges))
			return domain.Save(opts.outputPath, rec.Ranges)
		}
	}

	exec, err := backend.New()
	if err != nil {
		return err
	}
	checker := nancheck.NewExecChecker(exec, nancheck.Options{
		MaxTrials: opts.maxTrials,
		Thres:     opts.thres,
		Rand:      seedRand(opts.seed),
	})
	inferrer := infer.New(checker, infer.Options{Lo: opts.lo, Hi: opts.hi, Eps: opts.eps})

	startedAt := time.Now()
	set, err := inferrer.InferDomain(ctx, model)
	if err != nil {
		return err
	}
	log.Info("domain inference finished", "digest", digest, "ranges", len(set), "duration", time.Since(startedAt))

	if err := domain.Save(opts.outputPath, set); err != nil {
		return err
	}

	if reg != nil {
		runID, err := reg.Put(ctx, digest, opts.backend, set)
		if err != nil {
			return err
		}
		log.Info("registered domain", "digest", digest, "run", runID)
	}
	if opts.uploadBucket != "" {
		store := &artifacts.GCSStore{Bucket: strings.TrimPrefix(opts.uploadBucket, "gs://")}
		if err := store.Upload(ctx, opts.outputPath, digest); err != nil {
			return err
		}
	}
	return nil
}

func seedRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return sampler.NewRand(seed)
}
