package algorithm

import "strconv"

// KeyStream produces the synthetic dotted-decimal keys replayed by the
// disruption check. The stream is fully determined by its seed.
type KeyStream struct {
	state uint32
	i     uint32
	buf   []byte
}

// NewKeyStream creates a stream starting from seed
func NewKeyStream(seed uint32) *KeyStream {
	return &KeyStream{
		state: seed,
		buf:   make([]byte, 0, 16),
	}
}

// Fork returns an independent stream positioned where s is
func (s *KeyStream) Fork() *KeyStream {
	return &KeyStream{
		state: s.state,
		i:     s.i,
		buf:   make([]byte, 0, 16),
	}
}

// Skip advances the stream past n keys without formatting them
func (s *KeyStream) Skip(n int) {
	for k := 0; k < n; k++ {
		s.next()
		s.next()
		s.next()
	}
	s.i += uint32(n)
}

// next advances the linear congruential generator
func (s *KeyStream) next() uint32 {
	s.state = 1103515145*s.state + 12345
	return s.state
}

// Next returns the next key, "2.a.b.c" with each octet (i * rand) % 255.
// The returned slice is reused by the following call.
func (s *KeyStream) Next() []byte {
	i := s.i
	s.i++

	s.buf = append(s.buf[:0], "2"...)
	for k := 0; k < 3; k++ {
		s.buf = append(s.buf, '.')
		s.buf = strconv.AppendUint(s.buf, uint64((i*s.next())%255), 10)
	}
	return s.buf
}
