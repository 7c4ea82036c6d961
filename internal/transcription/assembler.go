package transcription

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/stratplan/companion/internal/model"
)

// MaxBlockChars is the ceiling after which a block stops accepting text.
const MaxBlockChars = 500

// Segment is one classified, deduplicated message.
type Segment struct {
	Text           string
	Final          bool
	Source         model.AudioSource
	Color          string
	Confidence     float64
	At             time.Time
	Classification Classification
}

// Assembler groups final segments into display blocks and holds the current
// interim text apart from them. It is not safe for concurrent use.
type Assembler struct {
	newID func() string

	blocks        []model.TranscriptBlock
	interim       string
	interimSource model.AudioSource
	segments      []Segment
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		newID: func() string { return uuid.New().String() },
	}
}

// Add applies one segment. Interim segments replace the current interim
// text and never touch blocks. A final segment clears the interim and is
// appended to the latest block unless the source differs or the block has
// already grown past MaxBlockChars.
func (a *Assembler) Add(seg Segment) {
	a.segments = append(a.segments, seg)

	if !seg.Final {
		a.interim = seg.Text
		a.interimSource = seg.Source
		return
	}

	a.interim = ""
	a.interimSource = ""

	if n := len(a.blocks); n > 0 {
		last := &a.blocks[n-1]
		if last.Source == seg.Source &&
			utf8.RuneCountInString(last.Text) <= MaxBlockChars {

			last.Text += " " + seg.Text
			return
		}
	}

	a.blocks = append(a.blocks, model.TranscriptBlock{
		ID:        a.newID(),
		Source:    seg.Source,
		Color:     seg.Color,
		StartedAt: seg.At,
		Text:      seg.Text,
	})
}

// Blocks returns a copy of the block list.
func (a *Assembler) Blocks() []model.TranscriptBlock {
	out := make([]model.TranscriptBlock, len(a.blocks))
	copy(out, a.blocks)
	return out
}

// Interim returns the current interim text and its source.
func (a *Assembler) Interim() (string, model.AudioSource) {
	return a.interim, a.interimSource
}

// Segments returns a copy of every segment added so far.
func (a *Assembler) Segments() []Segment {
	out := make([]Segment, len(a.segments))
	copy(out, a.segments)
	return out
}

// ClearHistory empties the block list. The interim text and the segment log
// are kept.
func (a *Assembler) ClearHistory() {
	a.blocks = nil
}
