package models

// Mode is one of the four practice categories.
type Mode string

const (
	ModePositional Mode = "positional"
	ModeWord       Mode = "word"
	ModeSentence   Mode = "sentence"
	ModeParagraph  Mode = "paragraph"
)

// DefaultMode is used by leaderboard reads when no mode is given.
const DefaultMode = ModePositional

var practiceModes = map[Mode]bool{
	ModePositional: true,
	ModeWord:       true,
	ModeSentence:   true,
	ModeParagraph:  true,
}

func (m Mode) Valid() bool {
	return practiceModes[m]
}

// ParseMode returns the mode for s, or false when s is not a practice mode.
func ParseMode(s string) (Mode, bool) {
	m := Mode(s)
	return m, m.Valid()
}

// Modes lists all practice modes in display order.
func Modes() []Mode {
	return []Mode{ModePositional, ModeWord, ModeSentence, ModeParagraph}
}
