package grouping

// DefaultWindow is the number of groups processed around the current one.
const DefaultWindow = 6

// Sequence returns the processing order for a window around current:
// current first, then two steps forward for every step backward, until
// window entries are collected or both directions are exhausted.
func Sequence(current, total, window int) []int {
	if total <= 0 || current < 0 || current >= total || window <= 0 {
		return nil
	}

	seq := []int{current}
	forward, backward := current+1, current-1

	for len(seq) < window {
		for i := 0; i < 2 && len(seq) < window; i++ {
			if forward < total {
				seq = append(seq, forward)
				forward++
			}
		}
		if len(seq) < window && backward >= 0 {
			seq = append(seq, backward)
			backward--
		}
		if forward >= total && backward < 0 {
			break
		}
	}

	return seq
}
