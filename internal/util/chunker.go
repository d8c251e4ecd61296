package util

// ChunkText splits text into overlapping sliding-window segments. Chunk i
// starts at rune offset i*(chunkSize-overlap), so concatenating each chunk's
// non-overlapping span reproduces the input exactly. Empty input yields no
// chunks; any non-empty input yields at least one.
func ChunkText(text string, chunkSize, overlap int) []string {
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	step := chunkSize - overlap
	out := make([]string, 0, (len(runes)+step-1)/step)
	for i := 0; ; i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// ChunkOffsets reports the [start, end) rune offsets ChunkText would produce
// for an input of n runes.
func ChunkOffsets(n, chunkSize, overlap int) [][2]int {
	if n <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	step := chunkSize - overlap
	out := make([][2]int, 0, (n+step-1)/step)
	for i := 0; ; i += step {
		end := i + chunkSize
		if end > n {
			end = n
		}
		out = append(out, [2]int{i, end})
		if end == n {
			break
		}
	}
	return out
}
