package scenes

import (
	"fmt"
	"math"
	"sort"
)

// Chunk is one contiguous slice of the input, in seconds.
type Chunk struct {
	Index int
	Start float64
	End   float64
}

// Duration returns the chunk length in seconds.
func (c Chunk) Duration() float64 {
	return c.End - c.Start
}

// Plan is an ordered, gapless partition of the input.
type Plan struct {
	Chunks []Chunk
}

// Validate checks the plan covers [0, duration] without gaps, overlap,
// or reordering.
func (p Plan) Validate(duration float64) error {
	if len(p.Chunks) == 0 {
		return fmt.Errorf("plan has no chunks")
	}
	const eps = 1e-6
	prev := 0.0
	for i, chunk := range p.Chunks {
		if chunk.Index != i {
			return fmt.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if math.Abs(chunk.Start-prev) > eps {
			return fmt.Errorf("chunk %d starts at %.3f, expected %.3f", i, chunk.Start, prev)
		}
		if chunk.End <= chunk.Start {
			return fmt.Errorf("chunk %d is empty", i)
		}
		prev = chunk.End
	}
	if math.Abs(prev-duration) > eps {
		return fmt.Errorf("plan ends at %.3f, expected %.3f", prev, duration)
	}
	return nil
}

// fallbackChunkSeconds sizes fixed chunks when no minimum chunk
// duration is configured.
const fallbackChunkSeconds = 60.0

// buildPlan partitions [0, duration] at the given cut times, merging
// cuts that would produce a chunk shorter than minChunk. Cut times
// outside (0, duration) are ignored.
func buildPlan(cuts []float64, duration, minChunk float64) Plan {
	sorted := make([]float64, 0, len(cuts))
	for _, cut := range cuts {
		if cut > 0 && cut < duration {
			sorted = append(sorted, cut)
		}
	}
	sort.Float64s(sorted)

	bounds := []float64{0}
	for _, cut := range sorted {
		if cut-bounds[len(bounds)-1] < minChunk {
			continue
		}
		if duration-cut < minChunk {
			break
		}
		bounds = append(bounds, cut)
	}
	bounds = append(bounds, duration)

	chunks := make([]Chunk, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		chunks = append(chunks, Chunk{Index: i, Start: bounds[i], End: bounds[i+1]})
	}
	return Plan{Chunks: chunks}
}

// fixedPlan partitions [0, duration] into equal slices of roughly
// minChunk seconds, so scene-less inputs still split for parallel
// encoding.
func fixedPlan(duration, minChunk float64) Plan {
	size := minChunk
	if size <= 0 {
		size = fallbackChunkSeconds
	}
	count := int(duration / size)
	if count < 1 {
		count = 1
	}
	cuts := make([]float64, 0, count-1)
	for i := 1; i < count; i++ {
		cuts = append(cuts, float64(i)*duration/float64(count))
	}
	return buildPlan(cuts, duration, minChunk)
}
