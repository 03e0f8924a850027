package audiomix

// NullSink discards every mixed frame. Used when no OSS/ALSA device is
// present, matching the device-absent degrade-to-silence rule.
type NullSink struct{}

func (NullSink) Write(samples []int16) error { return nil }
func (NullSink) Close() error                { return nil }
