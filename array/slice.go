package array

// Slice is a half-open index range [Start, Stop) with a step.
// A zero Step means 1.
type Slice struct {
	Start int
	Stop  int
	Step  int
}

// Len returns the number of indices the slice selects.
func (s Slice) Len() int {
	step := s.StepOrOne()
	if s.Stop <= s.Start || step <= 0 {
		return 0
	}
	return (s.Stop - s.Start + step - 1) / step
}

// StepOrOne returns Step, defaulting to 1.
func (s Slice) StepOrOne() int {
	if s.Step == 0 {
		return 1
	}
	return s.Step
}

// Indices enumerates the selected indices.
func (s Slice) Indices() []int {
	out := make([]int, 0, s.Len())
	step := s.StepOrOne()
	for i := s.Start; i < s.Stop && step > 0; i += step {
		out = append(out, i)
	}
	return out
}
