package services

// Recorder receives business events for metrics. Implementations must be
// safe for concurrent use.
type Recorder interface {
	DonationSubmitted(photos int)
	SubmissionRejected(reason string)
	OrphansRemoved(n int)
}

type nopRecorder struct{}

func (nopRecorder) DonationSubmitted(int)     {}
func (nopRecorder) SubmissionRejected(string) {}
func (nopRecorder) OrphansRemoved(int)        {}
