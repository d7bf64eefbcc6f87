package embedding

// meanPool averages the rows of hidden (tokens x dims, row-major) whose mask is set.
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for tok, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[tok*dims : (tok+1)*dims]
		for i, v := range row {
			out[i] += v
		}
		n++
	}
	if n > 0 {
		for i := range out {
			out[i] /= n
		}
	}
	return out
}
