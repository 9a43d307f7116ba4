package jobs

// Notifier is told about every job record change. Implementations must not
// block; they run on the job goroutine.
type Notifier interface {
	JobChanged(job Job)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Job)

func (f NotifierFunc) JobChanged(job Job) { f(job) }

// MultiNotifier fans a change out to several notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) JobChanged(job Job) {
	for _, n := range m {
		if n != nil {
			n.JobChanged(job)
		}
	}
}
