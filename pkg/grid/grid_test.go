package grid

import "testing"

func TestGetGridCoords(t *testing.T) {
	tests := []struct {
		index int
		cols  int
		wantX int
		wantY int
	}{
		{0, 4, 0, 0},
		{3, 4, 3, 0},
		{4, 4, 0, 1},
		{15, 4, 3, 3},
		{0, 1, 0, 0},
		{5, 1, 0, 5},
		{255, 16, 15, 15},
		{7, 0, 0, 7}, // degenerate width stacks vertically
	}

	for _, tc := range tests {
		gotX, gotY := GetGridCoords(tc.index, tc.cols)
		if gotX != tc.wantX || gotY != tc.wantY {
			t.Errorf("GetGridCoords(%d, %d) = (%d, %d); want (%d, %d)", tc.index, tc.cols, gotX, gotY, tc.wantX, tc.wantY)
		}
	}
}

func TestRows(t *testing.T) {
	tests := []struct{ count, cols, want int }{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{3, 0, 3},
	}
	for _, tc := range tests {
		if got := Rows(tc.count, tc.cols); got != tc.want {
			t.Errorf("Rows(%d, %d) = %d; want %d", tc.count, tc.cols, got, tc.want)
		}
	}
}

func TestColumns(t *testing.T) {
	tests := []struct{ count, limit, want int }{
		{0, 4, 1},
		{1, 4, 1},
		{2, 4, 2},
		{4, 4, 2},
		{5, 4, 3},
		{256, 4, 4},
		{256, 0, 16},
	}
	for _, tc := range tests {
		if got := Columns(tc.count, tc.limit); got != tc.want {
			t.Errorf("Columns(%d, %d) = %d; want %d", tc.count, tc.limit, got, tc.want)
		}
	}
}
