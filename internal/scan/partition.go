package scan

// Chunk is a row-aligned slice [Start, End) of a table.
type Chunk struct {
	Index int
	Start int64
	End   int64
}

func (c Chunk) Rows() int64 { return c.End - c.Start }

// Plan splits a table into chunks of ChunkRows rows; the last chunk may be
// shorter. Chunks are computed on demand so huge tables cost no memory.
type Plan struct {
	Rows      int64
	ChunkRows int64
	Count     int
}

// NewPlan sizes chunks so each holds about chunkBytes of row data, and at
// least one row.
func NewPlan(rows int64, rowWidth, chunkBytes int) Plan {
	per := max(int64(chunkBytes/max(rowWidth, 1)), 1)
	return Plan{
		Rows:      rows,
		ChunkRows: per,
		Count:     int((rows + per - 1) / per),
	}
}

func (p Plan) Chunk(i int) Chunk {
	start := int64(i) * p.ChunkRows
	return Chunk{Index: i, Start: start, End: min(start+p.ChunkRows, p.Rows)}
}

// Partition returns every chunk of a table.
func Partition(rows int64, rowWidth, chunkBytes int) []Chunk {
	p := NewPlan(rows, rowWidth, chunkBytes)
	out := make([]Chunk, p.Count)
	for i := range out {
		out[i] = p.Chunk(i)
	}
	return out
}
