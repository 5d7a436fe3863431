package app

import (
	"time"

	"inspection-brain/internal/domain/entity"
)

// StabilityFilter скользящее окно показаний весов.
// Окно стабильно, когда разброс max-min не превышает epsilon.
type StabilityFilter struct {
	window  time.Duration
	epsilon float64
	samples []entity.WeightSample
}

// NewStabilityFilter создаёт фильтр с окном window и допуском шума epsilon.
func NewStabilityFilter(window time.Duration, epsilon float64) *StabilityFilter {
	return &StabilityFilter{window: window, epsilon: epsilon}
}

// Observe добавляет показание и возвращает среднее по окну и признак стабильности.
func (f *StabilityFilter) Observe(sample entity.WeightSample) (float64, bool) {
	f.samples = append(f.samples, sample)
	f.evict(sample.Timestamp)
	return f.Current()
}

// Current возвращает состояние окна без добавления показаний.
// Пустое окно нестабильно, вес 0.
func (f *StabilityFilter) Current() (float64, bool) {
	if len(f.samples) == 0 {
		return 0, false
	}

	lo, hi := f.samples[0].Grams, f.samples[0].Grams
	sum := 0.0
	for _, s := range f.samples {
		sum += s.Grams
		if s.Grams < lo {
			lo = s.Grams
		}
		if s.Grams > hi {
			hi = s.Grams
		}
	}
	return sum / float64(len(f.samples)), hi-lo <= f.epsilon
}

// Len возвращает число показаний в окне.
func (f *StabilityFilter) Len() int {
	return len(f.samples)
}

// evict оставляет только показания не старше window относительно now.
// Показания с меткой позже now (часы весов ушли назад) тоже выбрасываются.
func (f *StabilityFilter) evict(now time.Time) {
	kept := f.samples[:0]
	for _, s := range f.samples {
		age := now.Sub(s.Timestamp)
		if age < 0 || age > f.window {
			continue
		}
		kept = append(kept, s)
	}
	f.samples = kept
}
