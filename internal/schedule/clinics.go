package schedule

// ClinicNumbers lists the treatment rooms of a branch, 1..count.
func ClinicNumbers(count int) []int {
	if count < 1 {
		return []int{1}
	}
	out := make([]int, count)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// NextClinic rotates forward through clinic indices.
func NextClinic(index, count int) int {
	if count < 1 {
		return 0
	}
	return (index + 1) % count
}

// PrevClinic rotates backward through clinic indices.
func PrevClinic(index, count int) int {
	if count < 1 {
		return 0
	}
	return (index - 1 + count) % count
}

// ClinicIndex returns the position of number in a 1..count list, or 0.
func ClinicIndex(number, count int) int {
	if number < 1 || number > count {
		return 0
	}
	return number - 1
}
