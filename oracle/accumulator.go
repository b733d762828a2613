package oracle

// Accumulator is the rolling estimator state for one instrument: a circular
// window of 1e8-scaled log returns plus the running Welford mean and sum of
// squared deviations over the values currently in the window.
type Accumulator struct {
	WindowSize   int
	CurrentIndex int     // next slot to overwrite
	Count        int     // valid observations, capped at WindowSize
	Observations []int64 // len == WindowSize; unfilled slots are zero

	Mean int64
	DSQ  int64

	LastTimestamp int64 // period boundary of the last accepted commit
	LastPrice     int64 // 1e8
}

func newAccumulator(windowSize int) Accumulator {
	return Accumulator{
		WindowSize:   windowSize,
		Observations: make([]int64, windowSize),
	}
}

func (a *Accumulator) snapshot() Accumulator {
	cp := *a
	cp.Observations = append([]int64(nil), a.Observations...)
	return cp
}
