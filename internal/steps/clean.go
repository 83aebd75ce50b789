package steps

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/chazuruo/mlprep/internal/artifact"
	"github.com/chazuruo/mlprep/internal/dataset"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/run"
)

// Geographic bounds of listings kept by Clean, inclusive.
const (
	MinLongitude = -74.25
	MaxLongitude = -73.50
	MinLatitude  = 40.5
	MaxLatitude  = 41.2
)

// CleanOutputFile is the transient export registered by Clean.
const CleanOutputFile = "clean_sample.csv"

// Columns Clean reads.
const (
	ColumnPrice      = "price"
	ColumnLongitude  = "longitude"
	ColumnLatitude   = "latitude"
	ColumnLastReview = "last_review"
)

// CleanConfig configures the Clean step.
type CleanConfig struct {
	InputArtifact     string  `yaml:"input_artifact"`
	OutputArtifact    string  `yaml:"output_artifact"`
	OutputType        string  `yaml:"output_type"`
	OutputDescription string  `yaml:"output_description"`
	MinPrice          float64 `yaml:"min_price"`
	MaxPrice          float64 `yaml:"max_price"`
}

// Validate checks the configuration against the recognized artifact types.
func (c CleanConfig) Validate(types artifact.TypeSet) error {
	_, _, err := c.parse(types)
	return err
}

func (c CleanConfig) parse(types artifact.TypeSet) (artifact.Query, artifact.Spec, error) {
	q, err := queryFor(c.InputArtifact, "input_artifact")
	if err != nil {
		return artifact.Query{}, artifact.Spec{}, err
	}

	bounds := []struct {
		field string
		value float64
	}{{"min_price", c.MinPrice}, {"max_price", c.MaxPrice}}
	for _, b := range bounds {
		if math.IsNaN(b.value) || math.IsInf(b.value, 0) {
			return artifact.Query{}, artifact.Spec{}, &mlerrors.ConfigurationError{
				Field: b.field,
				Err:   fmt.Errorf("must be a finite number: %w", mlerrors.ErrInvalid),
			}
		}
	}
	if c.MinPrice > c.MaxPrice {
		return artifact.Query{}, artifact.Spec{}, &mlerrors.ConfigurationError{
			Field: "min_price",
			Err:   fmt.Errorf("min_price %v exceeds max_price %v: %w", c.MinPrice, c.MaxPrice, mlerrors.ErrInvalid),
		}
	}

	spec, err := specFor(c.OutputArtifact, c.OutputType, c.OutputDescription, types, "output_artifact", "output_type")
	if err != nil {
		return artifact.Query{}, artifact.Spec{}, err
	}
	return q, spec, nil
}

// Clean drops price outliers and out-of-area listings and normalizes review dates.
type Clean struct {
	cfg   CleanConfig
	input artifact.Query
	spec  artifact.Spec
}

// NewClean validates cfg and returns a runnable step.
func NewClean(cfg CleanConfig, types artifact.TypeSet) (*Clean, error) {
	q, spec, err := cfg.parse(types)
	if err != nil {
		return nil, err
	}
	return &Clean{cfg: cfg, input: q, spec: spec}, nil
}

// JobType implements Step.
func (c *Clean) JobType() string { return JobClean }

// Config implements Step.
func (c *Clean) Config() any { return c.cfg }

// Run implements Step.
func (c *Clean) Run(ctx context.Context, sess *run.Session) error {
	logger := sess.Logger()

	logger.Infof("Downloading artifact %s", c.input)
	ref, path, err := sess.UseArtifact(ctx, c.input)
	if err != nil {
		return err
	}
	ds, err := dataset.Read(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", ref, err)
	}

	cleaned, err := CleanDataset(ds, c.cfg.MinPrice, c.cfg.MaxPrice, logger.Infof)
	if err != nil {
		if se, ok := mlerrors.AsSchemaError(err); ok {
			se.Artifact = ref.String()
		}
		return err
	}
	logger.Infof("Kept %d of %d rows", cleaned.Len(), ds.Len())

	out := sess.WorkPath(CleanOutputFile)
	logger.Infof("Saving cleaned data to %s", CleanOutputFile)
	if err := cleaned.Write(out); err != nil {
		return err
	}
	defer removeQuietly(sess, out)

	logger.Infof("Logging artifact")
	_, err = sess.LogArtifact(ctx, c.spec, out)
	return err
}

// CleanDataset applies the price filter, date normalization and bounding-box
// filter in that order. Rows with an unparseable price or coordinate are
// dropped; rows with an unparseable review date are kept with an empty date.
// progress, when non-nil, receives a message before each stage.
func CleanDataset(ds *dataset.Dataset, minPrice, maxPrice float64, progress func(format string, args ...interface{})) (*dataset.Dataset, error) {
	if err := ds.RequireColumns(ColumnPrice, ColumnLongitude, ColumnLatitude, ColumnLastReview); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(string, ...interface{}) {}
	}

	price, _ := ds.ColumnIndex(ColumnPrice)
	lon, _ := ds.ColumnIndex(ColumnLongitude)
	lat, _ := ds.ColumnIndex(ColumnLatitude)
	review, _ := ds.ColumnIndex(ColumnLastReview)

	progress("Dropping outliers based on price")
	ds = ds.Filter(func(row []string) bool {
		return within(row[price], minPrice, maxPrice)
	})

	progress("Converting last_review to datetime")
	ds = ds.MapColumn(review, NormalizeDate)

	progress("Filtering rows by geolocation")
	ds = ds.Filter(func(row []string) bool {
		return within(row[lon], MinLongitude, MaxLongitude) && within(row[lat], MinLatitude, MaxLatitude)
	})

	return ds, nil
}

func within(cell string, lo, hi float64) bool {
	v, ok := dataset.ParseFloat(cell)
	return ok && v >= lo && v <= hi
}

// fallbackLayouts covers month-name forms dateparse may reject.
var fallbackLayouts = []string{
	"Jan 2 2006",
	"January 2 2006",
	"2-Jan-2006",
	"02-Jan-2006",
}

// Normalized date formats written by NormalizeDate.
const (
	DateFormat         = "2006-01-02"
	DateTimeFormat     = "2006-01-02 15:04:05"
	DateTimeZoneFormat = "2006-01-02 15:04:05-07:00"
)

// NormalizeDate rewrites a review date as YYYY-MM-DD, or YYYY-MM-DD HH:MM:SS
// when it carries a time of day other than midnight. Values with a non-UTC
// offset keep it. Empty and unparseable values become the empty string.
func NormalizeDate(cell string) string {
	s := strings.TrimSpace(cell)
	if s == "" || strings.EqualFold(s, "nan") {
		return ""
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		t, err = parseFallback(s)
		if err != nil {
			return ""
		}
	}

	if _, offset := t.Zone(); offset != 0 {
		return t.Format(DateTimeZoneFormat)
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(DateFormat)
	}
	return t.Format(DateTimeFormat)
}

func parseFallback(s string) (time.Time, error) {
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q: %w", s, mlerrors.ErrInvalid)
}
