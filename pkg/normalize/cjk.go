package normalize

import "github.com/liuzl/gocc"

// GoccConverter adapts github.com/liuzl/gocc's OpenCC binding to the CJKConverter interface.
// gocc loads its conversion dictionary lazily from its configured data directory; construction
// fails if that data isn't reachable, so callers should fall back to a no-op converter rather
// than fail pipeline startup over a missing dictionary.
type GoccConverter struct {
	t2s *gocc.OpenCC
}

// NewGoccConverter builds a traditional-to-simplified converter backed by OpenCC's "t2s" config.
func NewGoccConverter() (*GoccConverter, error) {
	t2s, err := gocc.New("t2s")
	if err != nil {
		return nil, err
	}
	return &GoccConverter{t2s: t2s}, nil
}

// ToSimplified converts traditional Chinese characters in text to simplified form.
func (g *GoccConverter) ToSimplified(text string) (string, error) {
	return g.t2s.Convert(text)
}
