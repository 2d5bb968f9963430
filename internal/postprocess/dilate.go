package postprocess

import "image"

// Dilate grows the covered region of img by up to width texels. Each pass
// fills the uncovered texels 8-adjacent to covered ones with the average
// color of their covered neighbors, so bilinear lookups at chart borders
// do not blend in the background. coverage is updated in place.
// It returns the number of filled texels.
func Dilate(img *image.NRGBA, coverage *image.Alpha, width int) int {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || width <= 0 {
		return 0
	}

	covered := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			covered[y*w+x] = coverage.Pix[coverage.PixOffset(b.Min.X+x, b.Min.Y+y)] > 0
		}
	}

	dx := [8]int{-1, 0, 1, -1, 1, -1, 0, 1}
	dy := [8]int{-1, -1, -1, 0, 0, 1, 1, 1}

	// seed the frontier with uncovered texels next to covered ones
	frontier := make([]int, 0, 1024)
	queued := make([]bool, w*h)
	for idx := range covered {
		if covered[idx] {
			continue
		}
		cx, cy := idx%w, idx/w
		for d := 0; d < 8; d++ {
			nx, ny := cx+dx[d], cy+dy[d]
			if nx >= 0 && nx < w && ny >= 0 && ny < h && covered[ny*w+nx] {
				frontier = append(frontier, idx)
				queued[idx] = true
				break
			}
		}
	}

	filled := 0
	type fill struct {
		idx        int
		r, g, b, a uint8
	}
	var pending []fill
	for pass := 0; pass < width && len(frontier) > 0; pass++ {
		pending = pending[:0]
		for _, idx := range frontier {
			cx, cy := idx%w, idx/w
			var sr, sg, sb, sa, n int
			for d := 0; d < 8; d++ {
				nx, ny := cx+dx[d], cy+dy[d]
				if nx < 0 || nx >= w || ny < 0 || ny >= h || !covered[ny*w+nx] {
					continue
				}
				i := img.PixOffset(b.Min.X+nx, b.Min.Y+ny)
				sr += int(img.Pix[i])
				sg += int(img.Pix[i+1])
				sb += int(img.Pix[i+2])
				sa += int(img.Pix[i+3])
				n++
			}
			if n == 0 {
				continue
			}
			pending = append(pending, fill{idx, uint8((sr + n/2) / n), uint8((sg + n/2) / n), uint8((sb + n/2) / n), uint8((sa + n/2) / n)})
		}

		var next []int
		for _, p := range pending {
			cx, cy := p.idx%w, p.idx/w
			i := img.PixOffset(b.Min.X+cx, b.Min.Y+cy)
			img.Pix[i] = p.r
			img.Pix[i+1] = p.g
			img.Pix[i+2] = p.b
			img.Pix[i+3] = p.a
			covered[p.idx] = true
			coverage.Pix[coverage.PixOffset(b.Min.X+cx, b.Min.Y+cy)] = 0xff
			filled++
		}
		for _, p := range pending {
			cx, cy := p.idx%w, p.idx/w
			for d := 0; d < 8; d++ {
				nx, ny := cx+dx[d], cy+dy[d]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if !covered[ni] && !queued[ni] {
					queued[ni] = true
					next = append(next, ni)
				}
			}
		}
		frontier = next
	}
	return filled
}
