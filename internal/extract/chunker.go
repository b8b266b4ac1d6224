package extract

import "strings"

// chunk packs a document's sections into chunks of roughly chunkTokens
// tokens, carrying overlapTokens worth of trailing units into the next
// chunk. Units are atomic: a tabular row is never split. Prose units
// larger than the target are windowed word-wise instead.
//
// Chunk boundaries are a pure function of the document text and the
// configured sizes, so processing the same corpus always yields the same
// chunk set.
func (p *Processor) chunk(docID string, sections []section) []Chunk {
	var chunks []Chunk
	seq := 0

	emit := func(header string, units []string) {
		var sb strings.Builder
		if header != "" {
			sb.WriteString(header)
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(units, "\n"))
		text := sb.String()
		chunks = append(chunks, Chunk{
			DocumentID: docID,
			Seq:        seq,
			Text:       text,
			TokenCount: countTokens(text),
		})
		seq++
	}

	for _, sec := range sections {
		var (
			current []string
			tokens  int
		)
		for _, unit := range sec.units {
			for _, piece := range p.splitOversized(unit, sec.header != "") {
				n := countTokens(piece)
				if tokens > 0 && tokens+n > p.chunkTokens {
					emit(sec.header, current)
					current, tokens = p.carryOverlap(current)
				}
				current = append(current, piece)
				tokens += n
			}
		}
		if tokens > 0 {
			emit(sec.header, current)
		}
	}
	return chunks
}

// carryOverlap returns the trailing units of the just-emitted chunk whose
// cumulative token count fits the overlap budget, to seed the next chunk.
func (p *Processor) carryOverlap(units []string) ([]string, int) {
	var (
		kept   []string
		tokens int
	)
	for i := len(units) - 1; i >= 0; i-- {
		n := countTokens(units[i])
		if tokens+n > p.overlapTokens {
			break
		}
		kept = append([]string{units[i]}, kept...)
		tokens += n
	}
	return kept, tokens
}

// splitOversized windows a prose unit larger than the chunk target into
// word-sized pieces with overlap. Tabular rows pass through whole: a row
// larger than the target becomes its own chunk rather than being split.
func (p *Processor) splitOversized(unit string, tabular bool) []string {
	if tabular || countTokens(unit) <= p.chunkTokens {
		return []string{unit}
	}

	words := strings.Fields(unit)
	step := p.chunkTokens - p.overlapTokens
	if step <= 0 {
		step = p.chunkTokens
	}
	var pieces []string
	for start := 0; start < len(words); start += step {
		end := start + p.chunkTokens
		if end > len(words) {
			end = len(words)
		}
		pieces = append(pieces, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return pieces
}
