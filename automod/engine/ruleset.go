package engine

type DetectorFunc = func(c *MessageContext) error

// Ordered list of detectors. Order is precedence: the first detector to report a violation wins, and later detectors are not run.
type RuleSet struct {
	Detectors []DetectorFunc
}

// Runs detectors in order until one reports a violation. A detector error is logged and does not stop the pipeline.
func (r *RuleSet) CallDetectors(c *MessageContext) {
	for _, f := range r.Detectors {
		if err := f(c); err != nil {
			c.Logger.Warn("detector failed", "err", err)
			continue
		}
		if c.Violated() {
			return
		}
	}
}
