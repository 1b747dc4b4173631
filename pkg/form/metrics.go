package form

// Recorder receives engine level events. pkg/metrics provides a prometheus
// implementation.
type Recorder interface {
	FormRendered(form string, hasError bool)
	FormSubmitted(form string, failed bool)
	ValidationFailed(form, field string)
}

type nopRecorder struct{}

func (nopRecorder) FormRendered(string, bool)      {}
func (nopRecorder) FormSubmitted(string, bool)     {}
func (nopRecorder) ValidationFailed(string, string) {}
