// Package grid maps linear indices onto a row-major grid. The desktop
// debugger lays out one register panel per core with it.
package grid

// GetGridCoords returns the column and row of index in a grid cols wide.
func GetGridCoords(index, cols int) (x, y int) {
	if cols <= 0 {
		return 0, index
	}
	return index % cols, index / cols
}

// Rows returns how many rows count cells occupy at cols per row.
func Rows(count, cols int) int {
	if count <= 0 {
		return 0
	}
	if cols <= 0 {
		return count
	}
	return (count + cols - 1) / cols
}

// Columns picks a column count for count cells: the smallest square that
// holds them, but never more than limit.
func Columns(count, limit int) int {
	c := 1
	for c*c < count {
		c++
	}
	if limit > 0 && c > limit {
		c = limit
	}
	return c
}
