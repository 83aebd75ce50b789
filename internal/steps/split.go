package steps

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazuruo/mlprep/internal/artifact"
	"github.com/chazuruo/mlprep/internal/dataset"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/run"
	"github.com/chazuruo/mlprep/internal/split"
)

// NoStratify disables stratified splitting.
const NoStratify = "none"

// DefaultRandomSeed seeds the split permutation when none is given.
const DefaultRandomSeed int64 = 42

// SplitConfig configures the Split step.
type SplitConfig struct {
	Input      string  `yaml:"input"`
	TestSize   float64 `yaml:"test_size"`
	RandomSeed int64   `yaml:"random_seed"`
	StratifyBy string  `yaml:"stratify_by"`
}

// DefaultSplitConfig returns a SplitConfig with the default seed and no
// stratification.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		RandomSeed: DefaultRandomSeed,
		StratifyBy: NoStratify,
	}
}

// UnmarshalYAML fills omitted fields from DefaultSplitConfig.
func (c *SplitConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain SplitConfig
	p := plain(DefaultSplitConfig())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = SplitConfig(p)
	return nil
}

// Stratified reports whether a stratum column is configured.
func (c SplitConfig) Stratified() bool {
	s := strings.TrimSpace(c.StratifyBy)
	return s != "" && s != NoStratify
}

// Validate checks the configuration. The split outputs use built-in types, so
// types is accepted only for symmetry with the other steps.
func (c SplitConfig) Validate(types artifact.TypeSet) error {
	_, err := c.parse()
	return err
}

func (c SplitConfig) parse() (artifact.Query, error) {
	q, err := queryFor(c.Input, "input")
	if err != nil {
		return artifact.Query{}, err
	}
	if err := split.ValidateTestSize(c.TestSize); err != nil {
		return artifact.Query{}, &mlerrors.ConfigurationError{Field: "test_size", Err: err}
	}
	return q, nil
}

// Partition names the two outputs of Split.
type Partition string

const (
	PartitionTrainval Partition = "trainval"
	PartitionTest     Partition = "test"
)

// FileName returns the export file and artifact name of the partition.
func (p Partition) FileName() string { return string(p) + "_data.csv" }

// Spec returns the artifact metadata the partition is registered with.
func (p Partition) Spec() artifact.Spec {
	return artifact.Spec{
		Name:        p.FileName(),
		Type:        artifact.Type(string(p) + "_data"),
		Description: string(p) + " split of dataset",
	}
}

// Split partitions a dataset into trainval and test artifacts.
type Split struct {
	cfg   SplitConfig
	input artifact.Query
}

// NewSplit validates cfg and returns a runnable step.
func NewSplit(cfg SplitConfig) (*Split, error) {
	q, err := cfg.parse()
	if err != nil {
		return nil, err
	}
	return &Split{cfg: cfg, input: q}, nil
}

// JobType implements Step.
func (s *Split) JobType() string { return JobSplit }

// Config implements Step.
func (s *Split) Config() any { return s.cfg }

// Run implements Step.
func (s *Split) Run(ctx context.Context, sess *run.Session) error {
	logger := sess.Logger()

	logger.Infof("Fetching artifact %s", s.input)
	ref, path, err := sess.UseArtifact(ctx, s.input)
	if err != nil {
		return err
	}
	ds, err := dataset.Read(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", ref, err)
	}

	logger.Infof("Splitting train/validation and test")
	trainval, test, err := SplitDataset(ds, s.cfg)
	if err != nil {
		return err
	}

	parts := []struct {
		partition Partition
		rows      *dataset.Dataset
	}{
		{PartitionTrainval, trainval},
		{PartitionTest, test},
	}
	for _, part := range parts {
		logger.Infof("Uploading %s dataset (%d rows)", part.partition.FileName(), part.rows.Len())
		if err := s.export(ctx, sess, part.partition, part.rows); err != nil {
			return err
		}
	}
	return nil
}

func (s *Split) export(ctx context.Context, sess *run.Session, p Partition, ds *dataset.Dataset) error {
	out := sess.WorkPath(p.FileName())
	if err := ds.Write(out); err != nil {
		return err
	}
	defer removeQuietly(sess, out)

	_, err := sess.LogArtifact(ctx, p.Spec(), out)
	return err
}

// SplitDataset partitions ds into trainval and test according to cfg.
// Every input row lands in exactly one partition.
func SplitDataset(ds *dataset.Dataset, cfg SplitConfig) (trainval, test *dataset.Dataset, err error) {
	nTest, err := split.TestCount(ds.Len(), cfg.TestSize)
	if err != nil {
		return nil, nil, &mlerrors.ConfigurationError{Field: "test_size", Err: err}
	}

	var trainIdx, testIdx []int
	if cfg.Stratified() {
		column := strings.TrimSpace(cfg.StratifyBy)
		labels, err := ds.Column(column)
		if err != nil {
			return nil, nil, &mlerrors.ConfigurationError{
				Field: "stratify_by",
				Err:   fmt.Errorf("column %q does not exist: %w", column, mlerrors.ErrInvalid),
			}
		}
		trainIdx, testIdx, err = split.Stratified(labels, nTest, cfg.RandomSeed)
		if err != nil {
			return nil, nil, &mlerrors.ConfigurationError{Field: "stratify_by", Err: err}
		}
	} else {
		trainIdx, testIdx = split.Random(ds.Len(), nTest, cfg.RandomSeed)
	}

	return ds.Select(trainIdx), ds.Select(testIdx), nil
}
