package annotator

import (
	"fmt"
	"strings"
)

// Filter names a subset of images. The engine only passes it through to the
// collaborator.
type Filter string

const (
	FilterAll         Filter = "all"
	FilterAnnotated   Filter = "annotated"
	FilterUnannotated Filter = "unannotated"
	FilterPredicted   Filter = "predicted"
	FilterEmpty       Filter = "empty"
)

// Filters is the cycle order used by the filter key.
var Filters = []Filter{FilterAll, FilterUnannotated, FilterPredicted, FilterAnnotated, FilterEmpty}

func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FilterAll, nil
	}
	for _, known := range Filters {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// NextFilter returns the filter after f in Filters.
func NextFilter(f Filter) Filter {
	for i, known := range Filters {
		if known == f {
			return Filters[(i+1)%len(Filters)]
		}
	}
	return FilterAll
}

// Navigator is the ordered image list for the active filter and the
// position in it.
type Navigator struct {
	images []string
	index  int
	filter Filter
	done   bool
}

func NewNavigator(filter Filter) *Navigator {
	if filter == "" {
		filter = FilterAll
	}
	return &Navigator{filter: filter}
}

func (n *Navigator) Filter() Filter { return n.filter }

func (n *Navigator) SetFilter(f Filter) {
	n.filter = f
	n.done = false
}

// SetList replaces the list and clamps the index into it. An empty list
// marks the navigator done.
func (n *Navigator) SetList(images []string) {
	n.images = append([]string(nil), images...)
	n.done = len(n.images) == 0
	if n.index >= len(n.images) {
		n.index = len(n.images) - 1
	}
	if n.index < 0 {
		n.index = 0
	}
}

func (n *Navigator) Images() []string { return n.images }
func (n *Navigator) Len() int { return len(n.images) }

// Done reports that the filtered list ran out.
func (n *Navigator) Done() bool { return n.done }

// Current returns the image at the index, or "" for an empty list.
func (n *Navigator) Current() string {
	if len(n.images) == 0 {
		return ""
	}
	return n.images[n.index]
}

// Index is the zero-based position.
func (n *Navigator) Index() int { return n.index }

func (n *Navigator) Next() bool {
	if n.index+1 >= len(n.images) {
		return false
	}
	n.index++
	return true
}

func (n *Navigator) Prev() bool {
	if n.index <= 0 || len(n.images) == 0 {
		return false
	}
	n.index--
	return true
}

// PeekNext returns the image after the current one, if any.
func (n *Navigator) PeekNext() (string, bool) {
	if n.index+1 >= len(n.images) {
		return "", false
	}
	return n.images[n.index+1], true
}

// JumpTo moves to id if it is in the list.
func (n *Navigator) JumpTo(id string) bool {
	for i, img := range n.images {
		if img == id {
			n.index = i
			return true
		}
	}
	return false
}

// SetIndex moves to i clamped into the list.
func (n *Navigator) SetIndex(i int) {
	n.index = i
	if n.index >= len(n.images) {
		n.index = len(n.images) - 1
	}
	if n.index < 0 {
		n.index = 0
	}
}
