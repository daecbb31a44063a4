package metrics

import "math"

// Contacts is the mean number of touching particle pairs per observed step.
type Contacts struct {
	name    string
	sum     float64
	samples int
}

func NewContacts() *Contacts {
	return &Contacts{name: "contacts"}
}

func (c *Contacts) Name() string {
	return c.name
}

func (c *Contacts) Observe(s *Snapshot) {
	c.sum += float64(s.Contacts)
	c.samples++
}

func (c *Contacts) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *Contacts) Reset() {
	c.sum = 0
	c.samples = 0
}

// Peak records the largest value of one snapshot field.
type Peak struct {
	name  string
	field func(*Snapshot) float64
	max   float64
}

func NewMaxIndentation() *Peak {
	return &Peak{name: "max_indentation", field: func(s *Snapshot) float64 {
		return math.Max(s.MaxIndentation, s.MaxWallIndentation)
	}}
}

func NewWallLoad() *Peak {
	return &Peak{name: "wall_load", field: func(s *Snapshot) float64 { return s.WallLoad }}
}

func (p *Peak) Name() string { return p.name }

func (p *Peak) Observe(s *Snapshot) {
	p.max = math.Max(p.max, p.field(s))
}

func (p *Peak) Value() float64 { return p.max }

func (p *Peak) Reset() { p.max = 0 }
