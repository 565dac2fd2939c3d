package pipeline

import "go.uber.org/zap"

// Observer receives coarse progress after every record, skipped ones included.
type Observer interface {
	Progress(done, total int)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(done, total int)

// Progress calls f(done, total).
func (f ObserverFunc) Progress(done, total int) {
	f(done, total)
}

type nopObserver struct{}

func (nopObserver) Progress(int, int) {}

// LogObserver logs progress every Every records and on the last one.
type LogObserver struct {
	Every int
	Log   *zap.Logger
}

// Progress implements Observer.
func (o LogObserver) Progress(done, total int) {
	every := o.Every
	if every <= 0 {
		every = 10
	}
	if done%every != 0 && done != total {
		return
	}
	log := o.Log
	if log == nil {
		log = zap.L()
	}
	log.Info("progress", zap.Int("records_done", done), zap.Int("total_records", total))
}
