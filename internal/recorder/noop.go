package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordCycle(_ *CycleRecord) error                  { return nil }
func (n *NoopRecorder) RecordAlert(_ *AlertEvent) error                   { return nil }
func (n *NoopRecorder) Recent(_ int) ([]CycleRow, error)                  { return nil, nil }
func (n *NoopRecorder) Contributions(_ string) ([]ContributionRow, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                      { return nil }
