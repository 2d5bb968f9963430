package packing

// Rect is an integer rectangle with its minimum corner at (X, Y).
type Rect struct {
	X, Y, W, H int
}

func (r Rect) intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

func (r Rect) contains(o Rect) bool {
	return r.X <= o.X && r.Y <= o.Y && r.X+r.W >= o.X+o.W && r.Y+r.H >= o.Y+o.H
}

// MaxRects is a bin using the maximal rectangles free-space representation
// with the best-short-side-fit placement rule.
type MaxRects struct {
	W, H int
	free []Rect
	used []Rect
}

// NewMaxRects returns an empty w×h bin.
func NewMaxRects(w, h int) *MaxRects {
	return &MaxRects{W: w, H: h, free: []Rect{{0, 0, w, h}}}
}

// Used returns the placed rectangles.
func (b *MaxRects) Used() []Rect { return b.used }

// Insert places a w×h rectangle, trying the 90-degree rotation as well
// when allowRotate is set. It returns the placed rectangle (with swapped
// sides if rotated) and whether a place was found.
func (b *MaxRects) Insert(w, h int, allowRotate bool) (Rect, bool, bool) {
	best := Rect{}
	bestShort, bestLong := -1, -1
	rotated := false
	consider := func(fr Rect, rw, rh int, rot bool) {
		if rw > fr.W || rh > fr.H {
			return
		}
		dw, dh := fr.W-rw, fr.H-rh
		short, long := min(dw, dh), max(dw, dh)
		if bestShort < 0 || short < bestShort || (short == bestShort && long < bestLong) {
			best = Rect{fr.X, fr.Y, rw, rh}
			bestShort, bestLong = short, long
			rotated = rot
		}
	}
	for _, fr := range b.free {
		consider(fr, w, h, false)
		if allowRotate && w != h {
			consider(fr, h, w, true)
		}
	}
	if bestShort < 0 {
		return Rect{}, false, false
	}
	b.place(best)
	return best, rotated, true
}

func (b *MaxRects) place(r Rect) {
	var next []Rect
	for _, fr := range b.free {
		if !fr.intersects(r) {
			next = append(next, fr)
			continue
		}
		if r.X > fr.X {
			next = append(next, Rect{fr.X, fr.Y, r.X - fr.X, fr.H})
		}
		if r.X+r.W < fr.X+fr.W {
			next = append(next, Rect{r.X + r.W, fr.Y, fr.X + fr.W - (r.X + r.W), fr.H})
		}
		if r.Y > fr.Y {
			next = append(next, Rect{fr.X, fr.Y, fr.W, r.Y - fr.Y})
		}
		if r.Y+r.H < fr.Y+fr.H {
			next = append(next, Rect{fr.X, r.Y + r.H, fr.W, fr.Y + fr.H - (r.Y + r.H)})
		}
	}

	// prune rectangles contained in another one
	pruned := make([]Rect, 0, len(next))
	for i, a := range next {
		redundant := false
		for j, o := range next {
			if i == j || !o.contains(a) {
				continue
			}
			// of two equal rectangles keep the first
			if a == o && i < j {
				continue
			}
			redundant = true
			break
		}
		if !redundant {
			pruned = append(pruned, a)
		}
	}
	b.free = pruned
	b.used = append(b.used, r)
}
