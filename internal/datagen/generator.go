package datagen

import (
	"fmt"
	"math"
	"math/rand"

	"ncacli/internal/nca"
)

// Simulation constants for the one-compartment models.
const (
	defaultLLOQ         = 0.1
	residualErrorCV     = 0.15
	typicalClearance    = 10.0
	typicalVolume       = 50.0
	typicalKa           = 1.0
	typicalF            = 0.8
	referenceBodyWeight = 70.0
	infusionDuration    = 1.0
)

var (
	ivTimePoints   = []float64{0, 0.083, 0.25, 0.5, 1, 2, 4, 8, 12, 24, 48, 72}
	oralTimePoints = []float64{0, 0.25, 0.5, 1, 2, 4, 6, 8, 12, 24, 36, 48}

	races        = []string{"White", "Black", "Asian", "Hispanic"}
	treatments   = []string{"Treatment_A", "Treatment_B", "Placebo"}
	formulations = []string{"Tablet", "Capsule", "Solution"}
)

// Generator produces synthetic one-compartment concentration-time datasets
// with inter-subject variability and residual error. The same seed always
// yields the same dataset.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator seeded for reproducibility.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// GenerateSubjects simulates n subjects with randomized demographics, dosing
// route and dose, and a noisy one-compartment profile.
func (g *Generator) GenerateSubjects(n int) []nca.Subject {
	subjects := make([]nca.Subject, 0, n)
	for i := 1; i <= n; i++ {
		subjects = append(subjects, g.generateSubject(fmt.Sprintf("%d", i)))
	}
	return subjects
}

func (g *Generator) generateSubject(id string) nca.Subject {
	age := g.uniform(18, 80)
	weight := g.uniform(50, 120)
	height := g.uniform(150, 200)
	sex := "F"
	if g.rng.Float64() < 0.5 {
		sex = "M"
	}
	period := g.rng.Intn(3) + 1

	demographics := nca.Demographics{
		Age:         &age,
		Weight:      &weight,
		Height:      &height,
		Sex:         sex,
		Race:        races[g.rng.Intn(len(races))],
		Treatment:   treatments[g.rng.Intn(len(treatments))],
		StudyDay:    intPtr(1),
		Period:      &period,
		Sequence:    fmt.Sprintf("SEQ%d", g.rng.Intn(4)+1),
		Formulation: formulations[g.rng.Intn(len(formulations))],
	}

	dose := g.uniform(10, 500)
	route := []nca.Route{nca.RouteIVBolus, nca.RouteIVInfusion, nca.RouteOral}[g.rng.Intn(3)]

	event := nca.DosingEvent{Time: 0, Dose: dose, Route: route, EVID: 1}
	if route == nca.RouteIVInfusion {
		duration := infusionDuration
		event.InfusionDuration = &duration
	}

	return nca.Subject{
		ID:           id,
		Observations: g.generateProfile(route, dose, weight),
		DosingEvents: []nca.DosingEvent{event},
		Demographics: demographics,
	}
}

// generateProfile simulates a sampled profile with allometrically scaled
// clearance, log-normal inter-subject variability and 15% residual error.
// Simulated values below the LLOQ are recorded as BLQ with LLOQ/2
// substituted.
func (g *Generator) generateProfile(route nca.Route, dose, weight float64) []nca.Observation {
	cl := g.logNormal(typicalClearance, 0.3) * math.Pow(weight/referenceBodyWeight, 0.75)
	vd := g.logNormal(typicalVolume, 0.4) * (weight / referenceBodyWeight)

	ka, f := 0.0, 1.0
	if route == nca.RouteOral {
		ka = g.logNormal(typicalKa, 0.5)
		f = math.Min(g.logNormal(typicalF, 0.2), 1.0)
	}

	timePoints := ivTimePoints
	if route == nca.RouteOral {
		timePoints = oralTimePoints
	}

	observations := make([]nca.Observation, 0, len(timePoints))
	for _, t := range timePoints {
		c := modelConcentration(route, t, dose, cl, vd, ka, f)
		c = math.Max(c*g.logNormal(1.0, residualErrorCV), 0)

		lloq := defaultLLOQ
		blq := c < lloq
		if blq {
			c = lloq / 2
		}
		observations = append(observations, nca.Observation{
			Time:          t,
			Concentration: c,
			LLOQ:          &lloq,
			BLQ:           blq,
			DV:            c,
		})
	}
	return observations
}

// modelConcentration evaluates the one-compartment model for the route.
func modelConcentration(route nca.Route, t, dose, cl, vd, ka, f float64) float64 {
	k := cl / vd
	switch route {
	case nca.RouteIVInfusion:
		rate := dose / infusionDuration
		if t <= infusionDuration {
			return rate / cl * (1 - math.Exp(-k*t))
		}
		cEnd := rate / cl * (1 - math.Exp(-k*infusionDuration))
		return cEnd * math.Exp(-k*(t-infusionDuration))
	case nca.RouteOral:
		if ka == k {
			return f * dose / vd * t * math.Exp(-k*t)
		}
		return f * dose * ka / (vd * (ka - k)) * (math.Exp(-k*t) - math.Exp(-ka*t))
	default:
		return dose / vd * math.Exp(-k*t)
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// logNormal draws from a log-normal distribution parameterized by its median
// and coefficient of variation.
func (g *Generator) logNormal(median, cv float64) float64 {
	sigma := math.Sqrt(math.Log(1 + cv*cv))
	return median * math.Exp(sigma*g.rng.NormFloat64())
}

func intPtr(v int) *int { return &v }
