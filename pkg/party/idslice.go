package party

import (
	"golang.org/x/exp/slices"
)

// IDSlice is a sorted list of distinct IDs.
type IDSlice []ID

// NewIDSlice returns a sorted and deduplicated copy of ids.
func NewIDSlice(ids []ID) IDSlice {
	out := make(IDSlice, len(ids))
	copy(out, ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Sorted returns true if partyIDs is sorted and contains no duplicates.
func (partyIDs IDSlice) Sorted() bool {
	for i := range partyIDs {
		if i > 0 && partyIDs[i-1] >= partyIDs[i] {
			return false
		}
	}
	return true
}

// Contains returns true if partyIDs contains id.
// Assumes that partyIDs is sorted.
func (partyIDs IDSlice) Contains(id ID) bool {
	_, ok := partyIDs.Search(id)
	return ok
}

// GetIndex returns the index of id in partyIDs.
// If no index was found, return -1.
// Assumes that partyIDs is sorted.
func (partyIDs IDSlice) GetIndex(id ID) int {
	if idx, ok := partyIDs.Search(id); ok {
		return idx
	}
	return -1
}

// Search returns the position of x in the receiver, and whether it was found.
func (partyIDs IDSlice) Search(x ID) (int, bool) {
	return slices.BinarySearch(partyIDs, x)
}

// Point returns the evaluation point of id, which is 1 + its index in partyIDs.
// It returns 0 if id is absent.
func (partyIDs IDSlice) Point(id ID) int {
	return partyIDs.GetIndex(id) + 1
}

// Points returns the evaluation points 1, …, len(partyIDs).
func (partyIDs IDSlice) Points() []int {
	points := make([]int, len(partyIDs))
	for i := range points {
		points[i] = i + 1
	}
	return points
}

// Copy returns a sorted copy of partyIDs.
func (partyIDs IDSlice) Copy() IDSlice {
	return NewIDSlice(partyIDs)
}

// Strings returns the IDs as strings, in order.
func (partyIDs IDSlice) Strings() []string {
	out := make([]string, len(partyIDs))
	for i, id := range partyIDs {
		out[i] = string(id)
	}
	return out
}
