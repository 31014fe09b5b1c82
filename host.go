package clipengine

// Processor is processed by host once per playback callback.
type Processor interface {
	Process(*ProcessArgs)
}

// PlaybackHandle identifies scheduled playback within its host.
type PlaybackHandle int

// Host is the playback destination of columns. It calls scheduled
// processors from its real-time context.
type Host interface {
	SchedulePlayback(Processor) (PlaybackHandle, error)
	CancelPlayback(PlaybackHandle) error
}

// Activate schedules playback of the column on the host.
func (c *Column) Activate(h Host) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host != nil {
		return nil
	}
	handle, err := h.SchedulePlayback(c)
	if err != nil {
		return err
	}
	c.host = h
	c.handle = handle
	c.log.Debug(c, ": activated")
	return nil
}

// Deactivate cancels playback of the column.
func (c *Column) Deactivate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host == nil {
		return ErrColumnInactive
	}
	if err := c.host.CancelPlayback(c.handle); err != nil {
		return err
	}
	c.host = nil
	c.log.Debug(c, ": deactivated")
	return nil
}

// IsActive returns true if column playback is scheduled on a host.
func (c *Column) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host != nil
}
