package analysis

import "math"

// Bucket is the plan-vs-actual compliance category
type Bucket string

const (
	BucketUnplanned         Bucket = "unplanned"
	BucketMissed            Bucket = "missed"
	BucketPending           Bucket = "pending"
	BucketOnTarget          Bucket = "onTarget"
	BucketModerateDeviation Bucket = "moderateDeviation"
	BucketLargeDeviation    Bucket = "largeDeviation"
)

// Arrow shows whether a deviating workout went over or under plan
type Arrow string

const (
	ArrowNone  Arrow = ""
	ArrowOver  Arrow = "over"
	ArrowUnder Arrow = "under"
)

// Compliance classifies a planned/completed pair
type Compliance struct {
	Bucket Bucket
	Arrow  Arrow
}

// Basis is a metric the completed workout is compared on
type Basis string

const (
	BasisDuration Basis = "duration"
	BasisDistance Basis = "distance"
	BasisTSS      Basis = "tss"
)

// BasisPercent is completed/planned × 100 on a single basis
type BasisPercent struct {
	Basis   Basis
	Percent float64
}

// Compliance band edges, in percent of plan
const (
	onTargetLow  = 80.0
	onTargetHigh = 120.0
	moderateLow  = 50.0
	moderateHigh = 150.0
)

// Percentages returns completed/planned × 100 for every basis the plan
// specifies, in the order duration, distance, TSS.
func (e *Estimator) Percentages(planned, completed Workout) []BasisPercent {
	type basis struct {
		name              Basis
		planned, achieved float64
	}
	bases := []basis{
		{BasisDuration, planned.Minutes(), completed.Minutes()},
		{BasisDistance, planned.Kilometers(), completed.Kilometers()},
		{BasisTSS, e.TSSFor(planned), e.TSSFor(completed)},
	}

	var out []BasisPercent
	for _, b := range bases {
		if b.planned > 0 {
			out = append(out, BasisPercent{Basis: b.name, Percent: b.achieved / b.planned * 100})
		}
	}
	return out
}

// Classify compares a planned workout with what was completed on dayKey.
// Either side may be nil. Day keys are YYYY-MM-DD and compare as strings.
func (e *Estimator) Classify(planned, completed Workout, dayKey, today string) Compliance {
	switch {
	case planned == nil && completed == nil:
		return Compliance{Bucket: BucketPending}
	case planned == nil:
		return Compliance{Bucket: BucketUnplanned}
	case completed == nil:
		if dayKey < today {
			return Compliance{Bucket: BucketMissed}
		}
		return Compliance{Bucket: BucketPending}
	}

	pcts := e.Percentages(planned, completed)
	if len(pcts) == 0 {
		return Compliance{Bucket: BucketUnplanned}
	}

	// Closest to 100 wins; the earlier basis keeps exact ties
	best := pcts[0].Percent
	for _, p := range pcts[1:] {
		if math.Abs(p.Percent-100) < math.Abs(best-100) {
			best = p.Percent
		}
	}

	return bucketFor(best)
}

func bucketFor(pct float64) Compliance {
	switch {
	case pct >= onTargetLow && pct <= onTargetHigh:
		return Compliance{Bucket: BucketOnTarget}
	case pct >= moderateLow && pct <= moderateHigh:
		return Compliance{Bucket: BucketModerateDeviation, Arrow: arrowFor(pct)}
	default:
		return Compliance{Bucket: BucketLargeDeviation, Arrow: arrowFor(pct)}
	}
}

func arrowFor(pct float64) Arrow {
	if pct > onTargetHigh {
		return ArrowOver
	}
	return ArrowUnder
}
