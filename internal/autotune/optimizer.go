// Package autotune searches a filter's parameter space for the candidate
// that best matches operator-specified quality targets. The search runs on
// private config copies and sample frames only; committing the winning
// fragment into the live cascade is the caller's job.
package autotune

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/lucasloyola2015/newIllinoisEyes/internal/filter"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/quality"
)

// ErrNoViableConfiguration is returned when every trial in a session
// scores at or below the viability floor.
var ErrNoViableConfiguration = errors.New("no viable configuration found")

// Budget bounds one tuning session.
type Budget struct {
	// MaxTrials is the hard trial limit.
	MaxTrials int
	// MaxDuration stops the search once elapsed, checked between trials.
	// Zero means no time limit.
	MaxDuration time.Duration
	// Patience stops the search after this many consecutive trials
	// without improvement, once the exploration phase is over.
	Patience int
	// ViabilityFloor: a session whose best score never exceeds this
	// reports ErrNoViableConfiguration.
	ViabilityFloor float64
	// Seed fixes the candidate sequence, making a session reproducible.
	Seed int64
}

// DefaultBudget matches the stock search: 100 trials, 10-trial patience.
func DefaultBudget() Budget {
	return Budget{
		MaxTrials: 100,
		Patience:  10,
		Seed:      1,
	}
}

// Trial is one evaluated candidate parameter set.
type Trial struct {
	Index  int                `json:"index"`
	Params map[string]float64 `json:"params"`
	Score  float64            `json:"score"`
}

// Session records one search: the targets, every trial in search order and
// the best trial seen. Best score is monotonically non-decreasing across
// the trial sequence.
type Session struct {
	ID         string             `json:"id"`
	FilterType filter.Type        `json:"filter_type"`
	Targets    map[string]float64 `json:"targets"`
	Trials     []Trial            `json:"trials"`
	Best       Trial              `json:"best"`
	Converged  bool               `json:"converged"`
	Elapsed    time.Duration      `json:"elapsed"`
}

// Fragment returns the best candidate as a filter spec ready to be
// committed into a cascade by the caller.
func (s *Session) Fragment() filter.Spec {
	params := make(map[string]float64, len(s.Best.Params))
	for k, v := range s.Best.Params {
		params[k] = v
	}
	return filter.Spec{
		ID:      "tuned-" + string(s.FilterType),
		Type:    s.FilterType,
		Enabled: true,
		Params:  params,
	}
}

// exploreTrials is the length of the random-sampling phase before the
// search switches to local perturbation around the best candidate.
const exploreTrials = 20

// Optimizer runs tuning sessions. Stateless between runs.
type Optimizer struct {
	cascade *filter.Cascade
}

// NewOptimizer creates an Optimizer.
func NewOptimizer() *Optimizer {
	return &Optimizer{cascade: filter.NewCascade()}
}

// Run searches the parameter schema of filterType for the candidate that
// scores best against targets over the sample frames. Missing target names
// fall back to the filter type's defaults. The schema defaults are always
// the first trial, so the winner scores at least as well as the untuned
// parameters. The context is checked between trials, never mid-trial; on
// cancellation the partial session is returned alongside the context error
// and nothing live has been touched.
func (o *Optimizer) Run(ctx context.Context, filterType filter.Type, frames []gocv.Mat,
	targets map[string]float64, budget Budget) (*Session, error) {

	schema, err := filter.SchemaFor(filterType)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no sample frames provided")
	}
	if budget.MaxTrials <= 0 {
		budget.MaxTrials = DefaultBudget().MaxTrials
	}
	if budget.Patience <= 0 {
		budget.Patience = DefaultBudget().Patience
	}

	session := &Session{
		ID:         uuid.NewString(),
		FilterType: filterType,
		Targets:    quality.MergeTargets(filterType, targets),
		Best:       Trial{Index: -1, Score: -1},
	}

	rng := rand.New(rand.NewSource(budget.Seed))
	start := time.Now()
	noImprove := 0

	for i := 0; i < budget.MaxTrials; i++ {
		select {
		case <-ctx.Done():
			session.Elapsed = time.Since(start)
			return session, ctx.Err()
		default:
		}
		if budget.MaxDuration > 0 && time.Since(start) > budget.MaxDuration {
			break
		}

		var params map[string]float64
		switch {
		case i == 0:
			// Trial 0 is always the schema defaults, so the monotonic best
			// can never end up below the untuned baseline.
			params = schema.Defaults()
		case i < exploreTrials || session.Best.Index < 0:
			params = randomParams(schema, rng)
		default:
			params = perturbParams(schema, session.Best.Params, rng)
		}

		score := o.evaluate(filterType, params, frames, session.Targets)
		trial := Trial{Index: i, Params: params, Score: score}
		session.Trials = append(session.Trials, trial)

		if score > session.Best.Score {
			session.Best = trial
			noImprove = 0
			log.Printf("[autotune] trial %d: new best score %.4f", i+1, score)
		} else {
			noImprove++
		}

		if i >= exploreTrials && noImprove >= budget.Patience {
			session.Converged = true
			log.Printf("[autotune] converged after %d trials", i+1)
			break
		}
	}
	session.Elapsed = time.Since(start)

	if session.Best.Score <= budget.ViabilityFloor {
		return session, fmt.Errorf("%w: best score %.4f after %d trials",
			ErrNoViableConfiguration, session.Best.Score, len(session.Trials))
	}
	return session, nil
}

// EvaluateDefaults scores the schema-default parameters of a filter type,
// the baseline a tuned fragment is expected to beat or match.
func (o *Optimizer) EvaluateDefaults(filterType filter.Type, frames []gocv.Mat,
	targets map[string]float64) (float64, error) {

	schema, err := filter.SchemaFor(filterType)
	if err != nil {
		return 0, err
	}
	merged := quality.MergeTargets(filterType, targets)
	return o.evaluate(filterType, schema.Defaults(), frames, merged), nil
}

// evaluate applies a single-spec cascade with the candidate parameters to
// every sample frame and averages the quality scores. When the targets ask
// for detection stability, per-frame contour counts over the burst feed
// that sub-metric.
func (o *Optimizer) evaluate(filterType filter.Type, params map[string]float64,
	frames []gocv.Mat, targets map[string]float64) float64 {

	spec := filter.Spec{ID: "candidate", Type: filterType, Enabled: true, Order: 1, Params: params}
	cfg, err := filter.NewCascadeConfig(spec)
	if err != nil {
		return 0
	}

	_, wantStability := targets[quality.MetricDetectionStability]
	var counts []int
	var total float64
	evaluated := 0

	for fi := range frames {
		out, err := o.cascade.Apply(&frames[fi], cfg)
		if err != nil {
			continue
		}
		metrics := quality.Evaluate(&out, targets)
		if wantStability {
			counts = append(counts, contourCount(out))
		}
		out.Close()

		total += quality.Score(metrics, targets)
		evaluated++
	}
	if evaluated == 0 {
		return 0
	}
	score := total / float64(evaluated)

	if wantStability && len(counts) > 1 {
		stability := quality.Stability(counts)
		score = (score*float64(evaluated) + stability) / float64(evaluated+1)
	}
	return score
}

// contourCount binarizes the filtered frame and counts external contours.
func contourCount(frame gocv.Mat) int {
	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, 127, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	return contours.Size()
}

// randomParams samples every schema parameter uniformly within bounds.
func randomParams(schema filter.Schema, rng *rand.Rand) map[string]float64 {
	params := make(map[string]float64, len(schema))
	for _, name := range schema.Names() {
		p := schema[name]
		if p.Integer {
			params[name] = float64(int(p.Min) + rng.Intn(int(p.Max)-int(p.Min)+1))
		} else {
			params[name] = p.Min + rng.Float64()*(p.Max-p.Min)
		}
	}
	return params
}

// perturbParams nudges each parameter of the base candidate: integers by
// up to +-2 steps, floats by up to +-20% of their range, clamped to bounds.
func perturbParams(schema filter.Schema, base map[string]float64, rng *rand.Rand) map[string]float64 {
	params := make(map[string]float64, len(schema))
	for _, name := range schema.Names() {
		p := schema[name]
		v, ok := base[name]
		if !ok {
			v = p.Default
		}
		if p.Integer {
			v += float64(rng.Intn(5) - 2)
		} else {
			v += (rng.Float64()*0.4 - 0.2) * (p.Max - p.Min)
		}
		clamped, err := schema.Clamp(name, v)
		if err != nil {
			clamped = p.Default
		}
		params[name] = clamped
	}
	return params
}
