package domain

import "fmt"

const (
	// DefaultMaxInterpolate is the default longest gap repaired by linear interpolation.
	DefaultMaxInterpolate = 6
	// DefaultMaxImpute is the default longest gap repaired by two-week imputation.
	DefaultMaxImpute = 48
)

// RepairPolicy bounds the gap lengths eligible for each repair strategy.
// Build one with NewRepairPolicy; the fields are read-only after that.
type RepairPolicy struct {
	MaxInterpolate int
	MaxImpute      int
}

// NewRepairPolicy validates and returns a policy. maxImpute must not be
// smaller than maxInterpolate.
func NewRepairPolicy(maxInterpolate, maxImpute int) (RepairPolicy, error) {
	if maxInterpolate < 0 {
		return RepairPolicy{}, fmt.Errorf("max records to interpolate must not be negative, got %d", maxInterpolate)
	}
	if maxImpute < 0 {
		return RepairPolicy{}, fmt.Errorf("max records to impute must not be negative, got %d", maxImpute)
	}
	if maxImpute < maxInterpolate {
		return RepairPolicy{}, fmt.Errorf("max records to impute (%d) must be >= max records to interpolate (%d)", maxImpute, maxInterpolate)
	}
	return RepairPolicy{MaxInterpolate: maxInterpolate, MaxImpute: maxImpute}, nil
}

// DefaultRepairPolicy returns the 6/48 policy.
func DefaultRepairPolicy() RepairPolicy {
	return RepairPolicy{MaxInterpolate: DefaultMaxInterpolate, MaxImpute: DefaultMaxImpute}
}
