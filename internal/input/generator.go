package input

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Character class sets for synthetic generation.
var charsets = map[string]string{
	"upper":       "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"lower":       "abcdefghijklmnopqrstuvwxyz",
	"digits":      "0123456789",
	"alphanum":    "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789",
	"upperdigits": "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
}

// CharsetNames lists the accepted charset selectors.
func CharsetNames() []string {
	return []string{"upper", "lower", "digits", "alphanum", "upperdigits"}
}

// RandomSource lazily generates count random codes of the form
// prefix + <length chars from charset> + suffix, duplicate-free within a run.
type RandomSource struct {
	mu      sync.Mutex
	rng     *rand.Rand
	count   int
	length  int
	charset string
	prefix  string
	suffix  string
	emitted int
	seen    map[string]struct{}
}

// NewRandomSource builds a RandomSource. charsetName must be one of
// CharsetNames; count and length must be positive.
func NewRandomSource(count, length int, charsetName, prefix, suffix string) (*RandomSource, error) {
	charset, ok := charsets[charsetName]
	if !ok {
		return nil, fmt.Errorf("unknown charset %q (accepted: %s)", charsetName, strings.Join(CharsetNames(), ", "))
	}
	if count < 1 || length < 1 {
		return nil, fmt.Errorf("count and length must be positive")
	}
	// Size reflects what the source can actually yield when the keyspace
	// is smaller than the requested count.
	if space := math.Pow(float64(len(charset)), float64(length)); space < float64(count) {
		count = int(space)
	}
	return &RandomSource{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		count:   count,
		length:  length,
		charset: charset,
		prefix:  strings.ToUpper(prefix),
		suffix:  strings.ToUpper(suffix),
		seen:    make(map[string]struct{}),
	}, nil
}

func (s *RandomSource) Next() (Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitted >= s.count {
		return Candidate{}, false
	}
	// The keyspace may be smaller than count; stop once it is exhausted.
	space := math.Pow(float64(len(s.charset)), float64(s.length))
	for {
		if float64(len(s.seen)) >= space {
			s.emitted = s.count
			return Candidate{}, false
		}
		var b strings.Builder
		b.WriteString(s.prefix)
		for i := 0; i < s.length; i++ {
			b.WriteByte(s.charset[s.rng.Intn(len(s.charset))])
		}
		b.WriteString(s.suffix)
		code := b.String()
		if _, dup := s.seen[code]; dup {
			continue
		}
		s.seen[code] = struct{}{}
		s.emitted++
		return Candidate{Code: code, Origin: OriginSynthetic}, true
	}
}

func (s *RandomSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitted = 0
	s.seen = make(map[string]struct{})
}

func (s *RandomSource) Size() int {
	return s.count
}
