package preset_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/clipengine/preset"
	"github.com/dudk/clipengine/source"
	"github.com/dudk/clipengine/timeline"
)

const column = `
settings:
  start_timing: 1/1
  stop_timing: immediately
  record:
    start_timing: 1/4
    length: 2/1
    play_after: true
slots:
  - index: 3
    clip:
      name: drums
      source:
        path: drums.wav
        tempo: 120
      looped: true
      volume: -6
      section:
        start: 100
        length: 48000
  - index: 0
    clip:
      source:
        events:
          - frame: 0
            message: [144, 60, 100]
        frames: 96000
        rate: 48000
      looped: false
      start_timing: immediately
      stop_timing: until-end-of-clip
`

func TestUnmarshal(t *testing.T) {
	c, err := preset.Unmarshal([]byte(column))
	require.Nil(t, err)
	assert.Equal(t, "1/1", c.Settings.StartTiming)
	require.NotNil(t, c.Settings.Record)
	assert.Equal(t, "2/1", c.Settings.Record.Length)
	assert.True(t, c.Settings.Record.PlayAfter)

	require.Equal(t, 2, len(c.Slots))
	drums := c.Slots[0].Clip
	assert.Equal(t, 3, c.Slots[0].Index)
	assert.Equal(t, "drums.wav", drums.Source.Path)
	assert.Equal(t, 120.0, drums.Source.Tempo)
	assert.Equal(t, -6.0, drums.Volume)
	assert.Equal(t, &preset.Section{Start: 100, Length: 48000}, drums.Section)

	notes := c.Slots[1].Clip
	assert.True(t, notes.Source.IsInline())
	assert.Equal(t, []byte{144, 60, 100}, notes.Source.Events[0].Message)
	start, stop, err := notes.Timings()
	assert.Nil(t, err)
	assert.Equal(t, timeline.StartImmediately, *start)
	assert.Equal(t, timeline.StopUntilEndOfClip, *stop)

	start, stop, err = drums.Timings()
	assert.Nil(t, err)
	assert.Nil(t, start)
	assert.Nil(t, stop)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		slots []preset.Slot
		valid bool
	}{
		{name: "empty", valid: true},
		{
			name:  "sparse",
			slots: []preset.Slot{{Index: 10}, {Index: 2}},
			valid: true,
		},
		{
			name:  "negative index",
			slots: []preset.Slot{{Index: -1}},
		},
		{
			name:  "duplicate index",
			slots: []preset.Slot{{Index: 1}, {Index: 1}},
		},
		{
			name:  "invalid timing",
			slots: []preset.Slot{{Index: 1, Clip: preset.Clip{StartTiming: "3/4"}}},
		},
	}
	for _, test := range tests {
		err := preset.Column{Slots: test.slots}.Validate()
		if test.valid {
			assert.Nil(t, err, test.name)
		} else {
			assert.True(t, errors.Is(err, preset.ErrInvalid), test.name)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "column.yaml")
	c := preset.Column{
		Settings: preset.Settings{StartTiming: "1/2", TempoAdaption: "varispeed"},
		Slots: []preset.Slot{
			{Index: 5, Clip: preset.Clip{Name: "five", Source: source.Descriptor{Path: "five.wav"}}},
			{Index: 1, Clip: preset.Clip{Name: "one", Source: source.Descriptor{Path: "one.mid"}, Looped: true}},
		},
	}
	require.Nil(t, preset.Save(path, c))
	assert.Equal(t, 5, c.Slots[0].Index)

	loaded, err := preset.Load(path)
	require.Nil(t, err)
	assert.Equal(t, c.Settings, loaded.Settings)
	assert.Equal(t, []int{1, 5}, []int{loaded.Slots[0].Index, loaded.Slots[1].Index})
	assert.Equal(t, "one", loaded.Slots[0].Clip.Name)
	assert.True(t, loaded.Slots[0].Clip.Looped)

	_, err = preset.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)
	_, err = preset.Unmarshal([]byte("slots: {"))
	assert.NotNil(t, err)
}
