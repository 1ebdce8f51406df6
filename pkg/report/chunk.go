package report

// DefaultChunkSize is the number of records per group in the HTML layout.
const DefaultChunkSize = 2

// Chunk is one contiguous slice of a file's records.
type Chunk struct {
	File    string
	Records []Record
}

// ChunkTable splits each file's records into groups of at most size records.
// A file with k records yields ceil(k/size) chunks, all keyed by the same
// filename. A size below 1 keeps every file in a single chunk. The table is
// not modified.
func ChunkTable(table *Table, size int) []Chunk {
	var chunks []Chunk
	for _, fc := range table.files {
		n := size
		if n < 1 {
			n = len(fc.Records)
		}
		for start := 0; start < len(fc.Records); start += n {
			end := start + n
			if end > len(fc.Records) {
				end = len(fc.Records)
			}
			group := make([]Record, end-start)
			copy(group, fc.Records[start:end])
			chunks = append(chunks, Chunk{File: fc.File, Records: group})
		}
	}
	return chunks
}
