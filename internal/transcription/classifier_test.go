package transcription

import (
	"strings"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/stratplan/companion/internal/model"
)

func TestClassifyDefaultsToMicrophone(t *testing.T) {
	c := Classify(Signals{Text: "olá", At: time.Now()})

	require.Equal(t, model.AudioSourceMicrophone, c.Source)
	require.Equal(t, ColorMicrophone, c.Color)
	require.InDelta(t, 0.8, c.Confidence, 1e-9)
	require.Equal(t, TierDefault, c.Tier)
}

func TestByTrackType(t *testing.T) {
	tests := []struct {
		tag  string
		want model.AudioSource
	}{
		{"cam-audio", model.AudioSourceMicrophone},
		{"mic", model.AudioSourceMicrophone},
		{"screen-audio", model.AudioSourceScreen},
		{"screenAudio", model.AudioSourceScreen},
		{"remote", model.AudioSourceRemote},
	}

	for _, tc := range tests {
		t.Run(tc.tag, func(t *testing.T) {
			c, ok := ByTrackType(Signals{TrackType: fn.Some(tc.tag)})
			require.True(t, ok)
			require.Equal(t, tc.want, c.Source)
			require.InDelta(t, ConfidenceTrackType, c.Confidence, 1e-9)
		})
	}

	_, ok := ByTrackType(Signals{TrackType: fn.Some("cam-video")})
	require.False(t, ok)

	_, ok = ByTrackType(Signals{})
	require.False(t, ok)
}

func TestBySpeaker(t *testing.T) {
	first := fn.Some("spk-0")

	c, ok := BySpeaker(Signals{SpeakerID: fn.Some("spk-0"), FirstSpeaker: first})
	require.True(t, ok)
	require.Equal(t, model.AudioSourceMicrophone, c.Source)
	require.InDelta(t, ConfidenceSpeaker, c.Confidence, 1e-9)

	c, ok = BySpeaker(Signals{
		SpeakerID:      fn.Some("spk-1"),
		FirstSpeaker:   first,
		ScreenCaptured: true,
	})
	require.True(t, ok)
	require.Equal(t, model.AudioSourceScreen, c.Source)

	c, ok = BySpeaker(Signals{SpeakerID: fn.Some("spk-1"), FirstSpeaker: first})
	require.True(t, ok)
	require.Equal(t, model.AudioSourceRemote, c.Source)

	// With no first speaker recorded the speaker itself is the first.
	c, ok = BySpeaker(Signals{SpeakerID: fn.Some("spk-9")})
	require.True(t, ok)
	require.Equal(t, model.AudioSourceMicrophone, c.Source)

	_, ok = BySpeaker(Signals{})
	require.False(t, ok)
}

func TestByTrackState(t *testing.T) {
	c, ok := ByTrackState(Signals{Tracks: TrackSnapshot{
		Microphone:  fn.Some(false),
		ScreenAudio: fn.Some(true),
	}})
	require.True(t, ok)
	require.Equal(t, model.AudioSourceScreen, c.Source)
	require.InDelta(t, ConfidenceTrackState, c.Confidence, 1e-9)

	c, ok = ByTrackState(Signals{Tracks: TrackSnapshot{
		Microphone: fn.Some(true),
	}})
	require.True(t, ok)
	require.Equal(t, model.AudioSourceMicrophone, c.Source)

	_, ok = ByTrackState(Signals{Tracks: TrackSnapshot{
		Microphone:  fn.Some(true),
		ScreenAudio: fn.Some(true),
	}})
	require.False(t, ok)

	_, ok = ByTrackState(Signals{})
	require.False(t, ok)
}

func TestByHeuristic(t *testing.T) {
	_, ok := ByHeuristic(Signals{Text: "curto", At: time.Unix(0, 0)})
	require.False(t, ok)

	c, ok := ByHeuristic(Signals{
		ScreenCaptured: true,
		Text:           strings.Repeat("palavra ", 12),
		At:             time.Unix(0, 0),
	})
	require.True(t, ok)
	require.Equal(t, model.AudioSourceScreen, c.Source)
	require.InDelta(t, ConfidenceHeuristic, c.Confidence, 1e-9)

	c, ok = ByHeuristic(Signals{
		ScreenCaptured: true,
		Text:           "curto",
		At:             time.Unix(5, 0),
	})
	require.True(t, ok)
	require.Equal(t, model.AudioSourceMicrophone, c.Source)

	c, ok = ByHeuristic(Signals{
		ScreenCaptured: true,
		Text:           "curto",
		At:             time.Unix(15, 0),
	})
	require.True(t, ok)
	require.Equal(t, model.AudioSourceScreen, c.Source)
}

func TestClassifyPrecedence(t *testing.T) {
	sig := Signals{
		TrackType:      fn.Some("screen-audio"),
		SpeakerID:      fn.Some("spk-0"),
		FirstSpeaker:   fn.Some("spk-0"),
		ScreenCaptured: true,
		Tracks:         TrackSnapshot{Microphone: fn.Some(true)},
		Text:           "x",
		At:             time.Unix(5, 0),
	}
	require.Equal(t, TierTrackType, Classify(sig).Tier)

	sig.TrackType = fn.None[string]()
	require.Equal(t, TierSpeaker, Classify(sig).Tier)

	sig.SpeakerID = fn.None[string]()
	require.Equal(t, TierTrackState, Classify(sig).Tier)

	sig.Tracks = TrackSnapshot{}
	require.Equal(t, TierHeuristic, Classify(sig).Tier)

	sig.ScreenCaptured = false
	require.Equal(t, TierDefault, Classify(sig).Tier)
}

func TestColorFor(t *testing.T) {
	require.Equal(t, ColorMicrophone, ColorFor(model.AudioSourceMicrophone))
	require.Equal(t, ColorScreen, ColorFor(model.AudioSourceScreen))
	require.Equal(t, ColorRemote, ColorFor(model.AudioSourceRemote))
}
