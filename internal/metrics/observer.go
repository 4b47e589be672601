package metrics

// Observer receives instrumentation callbacks from the queue, the sync
// driver, and the stream hub. The production implementation exports
// prometheus series; tests substitute a no-op.
type Observer interface {
	// stream hub
	IncOnline()
	DecOnline()
	RecordPush()

	// write queue / sync driver
	SetPending(n int64)
	RecordEnqueued(kind string)
	RecordSynced(kind string)
	RecordRetry(kind string)
	RecordTerminalFailure(kind string)
	ObserveDrainDuration(seconds float64)
	SetConnectivity(online bool)
}

// NopObserver discards all observations.
type NopObserver struct{}

func (NopObserver) IncOnline()                      {}
func (NopObserver) DecOnline()                      {}
func (NopObserver) RecordPush()                     {}
func (NopObserver) SetPending(int64)                {}
func (NopObserver) RecordEnqueued(string)           {}
func (NopObserver) RecordSynced(string)             {}
func (NopObserver) RecordRetry(string)              {}
func (NopObserver) RecordTerminalFailure(string)    {}
func (NopObserver) ObserveDrainDuration(float64)    {}
func (NopObserver) SetConnectivity(bool)            {}
