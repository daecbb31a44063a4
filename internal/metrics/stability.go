package metrics

// Stability is the fraction of observed steps whose largest relative
// overlap stayed below the threshold. Overlaps of more than a few percent
// of the radius usually mean the time step is too large for the stiffness.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(snap *Snapshot) {
	s.samples++
	if snap.MaxRelativeIndentation > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
