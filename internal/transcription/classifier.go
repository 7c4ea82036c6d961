package transcription

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/stratplan/companion/internal/model"
)

// Display colors per source.
const (
	ColorMicrophone = "#3B82F6"
	ColorScreen     = "#10B981"
	ColorRemote     = "#F59E0B"
)

// Tier confidences, strongest signal first.
const (
	ConfidenceTrackType  = 0.95
	ConfidenceSpeaker    = 0.85
	ConfidenceTrackState = 0.80
	ConfidenceHeuristic  = 0.60
	ConfidenceDefault    = 0.80
)

const (
	// heuristicLongText is the rune count above which an utterance is
	// attributed to shared-screen audio by the heuristic tier.
	heuristicLongText = 80

	// heuristicBucket is the width of the alternation window.
	heuristicBucket = 10 * time.Second
)

// Tier identifies which rule produced a classification.
type Tier int

const (
	TierTrackType Tier = iota + 1
	TierSpeaker
	TierTrackState
	TierHeuristic
	TierDefault
)

// TrackSnapshot holds the last known sendability of the local tracks. None
// means the track state is unknown.
type TrackSnapshot struct {
	Microphone  fn.Option[bool]
	ScreenAudio fn.Option[bool]
}

// Signals is everything the classifier may look at for one message.
type Signals struct {
	TrackType      fn.Option[string]
	SpeakerID      fn.Option[string]
	FirstSpeaker   fn.Option[string]
	ScreenCaptured bool
	Tracks         TrackSnapshot
	Text           string
	At             time.Time
}

// Classification is the decided source of a message.
type Classification struct {
	Source     model.AudioSource
	Color      string
	Confidence float64
	Tier       Tier
}

// ColorFor returns the display color of a source.
func ColorFor(src model.AudioSource) string {
	switch src {
	case model.AudioSourceScreen:
		return ColorScreen
	case model.AudioSourceRemote:
		return ColorRemote
	default:
		return ColorMicrophone
	}
}

func classified(src model.AudioSource, confidence float64,
	tier Tier) Classification {

	return Classification{
		Source:     src,
		Color:      ColorFor(src),
		Confidence: confidence,
		Tier:       tier,
	}
}

// Classify runs the tiers in order and returns the first decision.
func Classify(sig Signals) Classification {
	tiers := []func(Signals) (Classification, bool){
		ByTrackType,
		BySpeaker,
		ByTrackState,
		ByHeuristic,
	}
	for _, tier := range tiers {
		if c, ok := tier(sig); ok {
			return c
		}
	}
	return Default()
}

// ByTrackType maps a recognized explicit track tag.
func ByTrackType(sig Signals) (Classification, bool) {
	tag, ok := trackTag(sig.TrackType)
	if !ok {
		return Classification{}, false
	}

	switch tag {
	case "cam-audio", "audio", "microphone", "mic":
		return classified(model.AudioSourceMicrophone, ConfidenceTrackType,
			TierTrackType), true
	case "screen-audio", "screenaudio", "screen":
		return classified(model.AudioSourceScreen, ConfidenceTrackType,
			TierTrackType), true
	case "remote", "participant":
		return classified(model.AudioSourceRemote, ConfidenceTrackType,
			TierTrackType), true
	}
	return Classification{}, false
}

func trackTag(o fn.Option[string]) (string, bool) {
	tag := strings.ToLower(strings.TrimSpace(o.UnwrapOr("")))
	return tag, tag != ""
}

// BySpeaker treats the first speaker seen in the session as the local
// microphone. Any other speaker is the shared screen while screen audio is
// being captured and a remote participant otherwise.
func BySpeaker(sig Signals) (Classification, bool) {
	if sig.SpeakerID.IsNone() {
		return Classification{}, false
	}

	speaker := sig.SpeakerID.UnwrapOr("")
	first := sig.FirstSpeaker.UnwrapOr(speaker)

	switch {
	case speaker == first:
		return classified(model.AudioSourceMicrophone, ConfidenceSpeaker,
			TierSpeaker), true
	case sig.ScreenCaptured:
		return classified(model.AudioSourceScreen, ConfidenceSpeaker,
			TierSpeaker), true
	default:
		return classified(model.AudioSourceRemote, ConfidenceSpeaker,
			TierSpeaker), true
	}
}

// ByTrackState decides only when exactly one local audio track is
// sendable.
func ByTrackState(sig Signals) (Classification, bool) {
	mic := sig.Tracks.Microphone.UnwrapOr(false)
	screen := sig.Tracks.ScreenAudio.UnwrapOr(false)

	switch {
	case mic && !screen:
		return classified(model.AudioSourceMicrophone, ConfidenceTrackState,
			TierTrackState), true
	case screen && !mic:
		return classified(model.AudioSourceScreen, ConfidenceTrackState,
			TierTrackState), true
	}
	return Classification{}, false
}

// ByHeuristic applies only while screen audio is captured. Long utterances
// are attributed to the screen; short ones alternate by coarse time bucket.
//
// TODO(transcription): drop the bucket alternation once the bridge forwards
// per-track transcription ids.
func ByHeuristic(sig Signals) (Classification, bool) {
	if !sig.ScreenCaptured {
		return Classification{}, false
	}

	if utf8.RuneCountInString(sig.Text) > heuristicLongText {
		return classified(model.AudioSourceScreen, ConfidenceHeuristic,
			TierHeuristic), true
	}

	bucket := sig.At.UnixNano() / int64(heuristicBucket)
	if bucket%2 == 0 {
		return classified(model.AudioSourceMicrophone, ConfidenceHeuristic,
			TierHeuristic), true
	}
	return classified(model.AudioSourceScreen, ConfidenceHeuristic,
		TierHeuristic), true
}

// Default attributes the message to the microphone.
func Default() Classification {
	return classified(model.AudioSourceMicrophone, ConfidenceDefault,
		TierDefault)
}
