// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raff

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidTrusted reports an out of range outlier count or trusted fraction.
	ErrInvalidTrusted = errors.New("invalid trusted specification")
	// ErrConflictingTrusted reports both NOutliers and FTrusted being set.
	ErrConflictingTrusted = errors.New("noutliers and ftrusted are mutually exclusive")
)

// Trusted is the fraction of observations to trust, either a single value or a closed range.
type Trusted struct {
	Lo, Hi float64
	scalar bool
}

// Fraction trusts round(c × m) observations, 0 < c ≤ 1.
func Fraction(c float64) *Trusted {
	return &Trusted{Lo: c, Hi: c, scalar: true}
}

// Range sweeps the trusted count over [round(lo × m), round(hi × m)], 0 ≤ lo ≤ hi ≤ 1.
func Range(lo, hi float64) *Trusted {
	return &Trusted{Lo: lo, Hi: hi}
}

// IsScalar reports whether t was built by Fraction.
func (t Trusted) IsScalar() bool { return t.scalar }

func (t Trusted) validate() error {
	if t.scalar {
		if !(t.Lo > 0 && t.Lo <= 1) {
			return fmt.Errorf("%w: fraction %g not in (0, 1]", ErrInvalidTrusted, t.Lo)
		}
		return nil
	}
	if !(t.Lo >= 0 && t.Hi <= 1 && t.Lo <= t.Hi) {
		return fmt.Errorf("%w: range [%g, %g] not within [0, 1]", ErrInvalidTrusted, t.Lo, t.Hi)
	}
	return nil
}

// UnmarshalYAML accepts a scalar fraction or a two element sequence [lo, hi].
func (t *Trusted) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var c float64
		if err := node.Decode(&c); err != nil {
			return err
		}
		*t = *Fraction(c)
	case yaml.SequenceNode:
		var v []float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		if len(v) != 2 {
			return fmt.Errorf("ftrusted range must have 2 elements, got %d", len(v))
		}
		*t = *Range(v[0], v[1])
	default:
		return fmt.Errorf("ftrusted must be a number or a [lo, hi] pair (line %d)", node.Line)
	}
	return nil
}

// MarshalYAML writes a scalar for fractions and a sequence for ranges.
func (t Trusted) MarshalYAML() (any, error) {
	if t.scalar {
		return t.Lo, nil
	}
	return []float64{t.Lo, t.Hi}, nil
}

// Config holds the multistart and voting options.
// At most one of NOutliers and FTrusted may be set,
// neither means FTrusted = Range(0.5, 1).
type Config struct {
	// Number of initial guesses tried for every trusted count.
	MaxMS int `yaml:"max_ms"`
	// First initial guess, zeros when empty.
	InitGuess []float64 `yaml:"init_guess,omitempty"`
	// Gradient norm tolerance of each LMLOVO run.
	Epsilon float64 `yaml:"epsilon"`
	// Iteration cap of each LMLOVO run.
	MaxIterations int `yaml:"max_iterations"`
	// Exact number of outliers, p = m - NOutliers.
	NOutliers *int `yaml:"noutliers,omitempty"`
	// Fraction or range of fractions of trusted observations.
	FTrusted *Trusted `yaml:"ftrusted,omitempty"`
	// Relative ∞-norm distance under which two solutions vote together.
	// Zero selects the default 1e-3, use a tiny positive value for near exact matching.
	VoteTolerance float64 `yaml:"vote_tolerance"`
	// Relative objective difference under which two runs are considered equally good.
	// Zero selects the default 1e-8, like VoteTolerance.
	VoteFTol float64 `yaml:"vote_ftol"`
	// Maximum concurrent runs, GOMAXPROCS when 0.
	Workers int `yaml:"workers"`
	// Seed of the per run random streams used by the sampler.
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		MaxMS:         1,
		Epsilon:       1e-6,
		MaxIterations: 400,
		VoteTolerance: 1e-3,
		VoteFTol:      1e-8,
	}
}

// WithDefaults returns a copy of c with zero fields replaced by defaults.
// Zero is never a usable tolerance, so VoteTolerance and VoteFTol of 0 are replaced too.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.MaxMS == 0 {
		c.MaxMS = def.MaxMS
	}
	if c.Epsilon == 0 {
		c.Epsilon = def.Epsilon
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.VoteTolerance == 0 {
		c.VoteTolerance = def.VoteTolerance
	}
	if c.VoteFTol == 0 {
		c.VoteFTol = def.VoteFTol
	}
	return c
}

// Validate checks the options that do not depend on the data.
func (c Config) Validate() error {
	switch {
	case c.MaxMS < 1:
		return errors.New("max_ms must greater than 0")
	case c.Workers < 0:
		return errors.New("workers must not less than 0")
	case c.VoteTolerance < 0 || math.IsNaN(c.VoteTolerance):
		return errors.New("vote_tolerance must not less than 0")
	case c.VoteFTol < 0 || math.IsNaN(c.VoteFTol):
		return errors.New("vote_ftol must not less than 0")
	case c.NOutliers != nil && c.FTrusted != nil:
		return ErrConflictingTrusted
	case c.FTrusted != nil:
		return c.FTrusted.validate()
	}
	return nil
}

// Counts resolves the trusted counts to try for m observations.
func (c Config) Counts(m int) ([]int, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.NOutliers != nil {
		k := *c.NOutliers
		if k < 0 || k > m {
			return nil, fmt.Errorf("%w: %d outliers among %d observations", ErrInvalidTrusted, k, m)
		}
		return []int{m - k}, nil
	}

	t := c.FTrusted
	if t == nil {
		t = Range(0.5, 1)
	}
	lo := int(math.Round(t.Lo * float64(m)))
	hi := int(math.Round(t.Hi * float64(m)))
	ps := make([]int, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		ps = append(ps, p)
	}
	return ps, nil
}

// LoadConfig reads a YAML config from path. If the file does not exist, returns defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg.WithDefaults(), nil
}

// SaveConfig writes the config to path as YAML.
func SaveConfig(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
