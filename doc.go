/*
Package clipengine plays and records clips in sync with a host timeline.

Concept

A column is a vertical list of slots. Every slot holds at most one clip and
a clip is material with its supplier chain and play state. The column has
two sides:

    Controller - validates and sends commands, polls events;
    Processor - applies commands and renders clips once per host callback;

They communicate through bounded queues. The processor never blocks: it
drains a batch of commands, processes slots and sends events without
waiting. Commands which don't fit the queue are rejected with a retryable
error. Events which don't fit are kept until the next cycle, positions of
clips are coalesced to the latest one.

Supplier chain

Clip material is decorated by suppliers in fixed order:

    Recorder -> Cache -> Section -> Fader -> Looper -> TimeStretcher -> Resampler -> Amplifier

Every supplier is asked for a block of frames starting at a position and
reports how many frames it wrote and consumed, and where the next block
starts. Looper turns the growing position into position within material,
so clip position keeps growing across cycles.

Timing

Play, stop and record can start immediately or on the next boundary of a
musical grid:

    c.PlayClip(0, &timeline.StartImmediately)
    c.StopClip(0, &timeline.StopUntilEndOfClip)

Nil timing means column defaults. Scheduled transitions are resolved within
the block, so a clip starts at the exact frame of the boundary.

Hosting

Column is scheduled on a host which calls Process for every callback:

    c, err := clipengine.NewColumn(clipengine.WithTimeline(tl), clipengine.WithTransport(tl))
    err = c.Activate(host)
    for {
        time.Sleep(c.PollInterval())
        for _, e := range c.Poll() {
            ...
        }
    }

Package portaudio provides the host which plays through default device.
*/
package clipengine
