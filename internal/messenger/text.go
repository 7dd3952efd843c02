package messenger

// SplitText cuts text into chunks of at most limit runes. Empty text gives no chunks.
func SplitText(text string, limit int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/limit+1)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// TextStorage accumulates lines into chunks that each fit one message.
type TextStorage struct {
	limit  int
	chunks []string
}

func NewTextStorage(limit int) *TextStorage {
	return &TextStorage{limit: limit}
}

// Add appends text to the current chunk, or starts new chunks when it does not fit.
func (s *TextStorage) Add(text string) {
	if len(s.chunks) == 0 {
		s.chunks = append(s.chunks, "")
	}

	last := len(s.chunks) - 1
	joined := s.chunks[last] + text
	if s.limit <= 0 || len([]rune(joined)) <= s.limit {
		s.chunks[last] = joined
		return
	}

	if s.chunks[last] == "" {
		s.chunks = s.chunks[:last]
	}
	s.chunks = append(s.chunks, SplitText(text, s.limit)...)
}

func (s *TextStorage) Chunks() []string {
	out := make([]string, 0, len(s.chunks))
	for _, c := range s.chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *TextStorage) Empty() bool {
	return len(s.Chunks()) == 0
}
