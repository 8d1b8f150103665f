package fill

import (
	"math"
	"sort"
)

// node is a vertex in the circular doubly linked polygon list.
type node struct {
	i    int // offset into the flat coordinate array
	x, y float64

	prev, next *node

	z            int
	prevZ, nextZ *node

	steiner bool
}

// Earcut triangulates a flat 2D coordinate array. holes holds the vertex
// index at which each hole ring starts. Returned indices are vertex indices.
func Earcut(data []float64, holes []int) []uint32 {
	const dim = 2
	hasHoles := len(holes) > 0
	outerLen := len(data)
	if hasHoles {
		outerLen = holes[0] * dim
	}

	outer := linkedList(data, 0, outerLen, true)
	if outer == nil || outer.next == outer.prev {
		return nil
	}
	triangles := make([]uint32, 0, (len(data)/dim-2)*3)

	if hasHoles {
		outer = eliminateHoles(data, holes, outer)
	}

	var minX, minY, invSize float64
	// z-order hashing only pays off for larger rings
	if len(data) > 80*dim {
		minX, minY = data[0], data[1]
		maxX, maxY := minX, minY
		for i := dim; i < outerLen; i += dim {
			x, y := data[i], data[i+1]
			minX = math.Min(minX, x)
			minY = math.Min(minY, y)
			maxX = math.Max(maxX, x)
			maxY = math.Max(maxY, y)
		}
		invSize = math.Max(maxX-minX, maxY-minY)
		if invSize != 0 {
			invSize = 32767 / invSize
		}
	}

	e := earcutter{triangles: triangles, minX: minX, minY: minY, invSize: invSize}
	e.linked(outer, 0)
	return e.triangles
}

type earcutter struct {
	triangles  []uint32
	minX, minY float64
	invSize    float64
}

func (e *earcutter) emit(a, b, c *node) {
	e.triangles = append(e.triangles, uint32(a.i/2), uint32(b.i/2), uint32(c.i/2))
}

// linked slices off ears one by one, falling back to progressively more
// forgiving passes when it gets stuck.
func (e *earcutter) linked(ear *node, pass int) {
	if ear == nil {
		return
	}
	if pass == 0 && e.invSize != 0 {
		indexCurve(ear, e.minX, e.minY, e.invSize)
	}

	stop := ear
	for ear.prev != ear.next {
		prev, next := ear.prev, ear.next

		var ok bool
		if e.invSize != 0 {
			ok = isEarHashed(ear, e.minX, e.minY, e.invSize)
		} else {
			ok = isEar(ear)
		}
		if ok {
			e.emit(prev, ear, next)
			removeNode(ear)
			// skipping the next vertex leads to less sliver triangles
			ear = next.next
			stop = next.next
			continue
		}

		ear = next
		if ear != stop {
			continue
		}
		switch pass {
		case 0:
			e.linked(filterPoints(ear, nil), 1)
		case 1:
			ear = e.cureLocalIntersections(filterPoints(ear, nil))
			e.linked(ear, 2)
		case 2:
			e.splitEarcut(ear)
		}
		return
	}
}

func isEar(ear *node) bool {
	a, b, c := ear.prev, ear, ear.next
	if area(a, b, c) >= 0 {
		return false // reflex
	}
	for p := ear.next.next; p != ear.prev; p = p.next {
		if pointInTriangle(a.x, a.y, b.x, b.y, c.x, c.y, p.x, p.y) && area(p.prev, p, p.next) >= 0 {
			return false
		}
	}
	return true
}

func isEarHashed(ear *node, minX, minY, invSize float64) bool {
	a, b, c := ear.prev, ear, ear.next
	if area(a, b, c) >= 0 {
		return false
	}

	minTX := math.Min(a.x, math.Min(b.x, c.x))
	minTY := math.Min(a.y, math.Min(b.y, c.y))
	maxTX := math.Max(a.x, math.Max(b.x, c.x))
	maxTY := math.Max(a.y, math.Max(b.y, c.y))

	minZ := zOrder(minTX, minTY, minX, minY, invSize)
	maxZ := zOrder(maxTX, maxTY, minX, minY, invSize)

	blocks := func(p *node) bool {
		return p != ear.prev && p != ear.next &&
			pointInTriangle(a.x, a.y, b.x, b.y, c.x, c.y, p.x, p.y) &&
			area(p.prev, p, p.next) >= 0
	}

	p, n := ear.prevZ, ear.nextZ
	for p != nil && p.z >= minZ && n != nil && n.z <= maxZ {
		if blocks(p) {
			return false
		}
		p = p.prevZ
		if blocks(n) {
			return false
		}
		n = n.nextZ
	}
	for ; p != nil && p.z >= minZ; p = p.prevZ {
		if blocks(p) {
			return false
		}
	}
	for ; n != nil && n.z <= maxZ; n = n.nextZ {
		if blocks(n) {
			return false
		}
	}
	return true
}

func (e *earcutter) cureLocalIntersections(start *node) *node {
	p := start
	for {
		a, b := p.prev, p.next.next
		if !equals(a, b) && intersects(a, p, p.next, b) && locallyInside(a, b) && locallyInside(b, a) {
			e.emit(a, p, b)
			removeNode(p)
			removeNode(p.next)
			p, start = b, b
		}
		p = p.next
		if p == start {
			break
		}
	}
	return filterPoints(p, nil)
}

func (e *earcutter) splitEarcut(start *node) {
	a := start
	for {
		for b := a.next.next; b != a.prev; b = b.next {
			if a.i != b.i && isValidDiagonal(a, b) {
				c := splitPolygon(a, b)
				a = filterPoints(a, a.next)
				c = filterPoints(c, c.next)
				e.linked(a, 0)
				e.linked(c, 0)
				return
			}
		}
		a = a.next
		if a == start {
			return
		}
	}
}

func linkedList(data []float64, start, end int, clockwise bool) *node {
	var last *node
	if clockwise == (signedArea(data, start, end) > 0) {
		for i := start; i < end; i += 2 {
			last = insertNode(i, data[i], data[i+1], last)
		}
	} else {
		for i := end - 2; i >= start; i -= 2 {
			last = insertNode(i, data[i], data[i+1], last)
		}
	}
	if last != nil && equals(last, last.next) {
		removeNode(last)
		last = last.next
	}
	return last
}

// filterPoints drops duplicate and collinear points
func filterPoints(start, end *node) *node {
	if start == nil {
		return nil
	}
	if end == nil {
		end = start
	}
	p := start
	for {
		again := false
		if !p.steiner && (equals(p, p.next) || area(p.prev, p, p.next) == 0) {
			removeNode(p)
			p = p.prev
			end = p
			if p == p.next {
				break
			}
			again = true
		} else {
			p = p.next
		}
		if !again && p == end {
			break
		}
	}
	return end
}

func eliminateHoles(data []float64, holes []int, outer *node) *node {
	queue := make([]*node, 0, len(holes))
	for i, h := range holes {
		start := h * 2
		end := len(data)
		if i < len(holes)-1 {
			end = holes[i+1] * 2
		}
		list := linkedList(data, start, end, false)
		if list == nil {
			continue
		}
		if list == list.next {
			list.steiner = true
		}
		queue = append(queue, leftmost(list))
	}
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].x != queue[j].x {
			return queue[i].x < queue[j].x
		}
		return queue[i].y < queue[j].y
	})
	for _, h := range queue {
		outer = eliminateHole(h, outer)
	}
	return outer
}

func eliminateHole(hole, outer *node) *node {
	bridge := findHoleBridge(hole, outer)
	if bridge == nil {
		return outer
	}
	reverse := splitPolygon(bridge, hole)
	filterPoints(reverse, reverse.next)
	return filterPoints(bridge, bridge.next)
}

// findHoleBridge uses David Eberly's algorithm to find a visible outer vertex
func findHoleBridge(hole, outer *node) *node {
	p := outer
	hx, hy := hole.x, hole.y
	qx := math.Inf(-1)
	var m *node

	for {
		if hy <= p.y && hy >= p.next.y && p.next.y != p.y {
			x := p.x + (hy-p.y)*(p.next.x-p.x)/(p.next.y-p.y)
			if x <= hx && x > qx {
				qx = x
				m = p
				if p.x >= p.next.x {
					m = p.next
				}
				if x == hx {
					return m
				}
			}
		}
		p = p.next
		if p == outer {
			break
		}
	}
	if m == nil {
		return nil
	}

	stop := m
	mx, my := m.x, m.y
	tanMin := math.Inf(1)
	p = m
	for {
		if hx >= p.x && p.x >= mx && hx != p.x {
			ax, cx := qx, hx
			if hy < my {
				ax, cx = hx, qx
			}
			if pointInTriangle(ax, hy, mx, my, cx, hy, p.x, p.y) {
				tan := math.Abs(hy-p.y) / (hx - p.x)
				if locallyInside(p, hole) &&
					(tan < tanMin || (tan == tanMin && (p.x > m.x || (p.x == m.x && sectorContainsSector(m, p))))) {
					m = p
					tanMin = tan
				}
			}
		}
		p = p.next
		if p == stop {
			break
		}
	}
	return m
}

func sectorContainsSector(m, p *node) bool {
	return area(m.prev, m, p.prev) < 0 && area(p.next, m, m.next) < 0
}

func indexCurve(start *node, minX, minY, invSize float64) {
	p := start
	for {
		p.z = zOrder(p.x, p.y, minX, minY, invSize)
		p.prevZ = p.prev
		p.nextZ = p.next
		p = p.next
		if p == start {
			break
		}
	}
	p.prevZ.nextZ = nil
	p.prevZ = nil
	sortLinked(p)
}

// sortLinked is Simon Tatham's linked list merge sort on z
func sortLinked(list *node) *node {
	inSize := 1
	for {
		p := list
		list = nil
		var tail *node
		merges := 0

		for p != nil {
			merges++
			q := p
			pSize := 0
			for i := 0; i < inSize; i++ {
				pSize++
				q = q.nextZ
				if q == nil {
					break
				}
			}
			qSize := inSize

			for pSize > 0 || (qSize > 0 && q != nil) {
				var e *node
				if pSize != 0 && (qSize == 0 || q == nil || p.z <= q.z) {
					e = p
					p = p.nextZ
					pSize--
				} else {
					e = q
					q = q.nextZ
					qSize--
				}
				if tail != nil {
					tail.nextZ = e
				} else {
					list = e
				}
				e.prevZ = tail
				tail = e
			}
			p = q
		}
		tail.nextZ = nil
		if merges <= 1 {
			return list
		}
		inSize *= 2
	}
}

func zOrder(fx, fy, minX, minY, invSize float64) int {
	x := uint32(math.Max(0, (fx-minX)*invSize))
	y := uint32(math.Max(0, (fy-minY)*invSize))

	x = (x | (x << 8)) & 0x00FF00FF
	x = (x | (x << 4)) & 0x0F0F0F0F
	x = (x | (x << 2)) & 0x33333333
	x = (x | (x << 1)) & 0x55555555

	y = (y | (y << 8)) & 0x00FF00FF
	y = (y | (y << 4)) & 0x0F0F0F0F
	y = (y | (y << 2)) & 0x33333333
	y = (y | (y << 1)) & 0x55555555

	return int(x | (y << 1))
}

func leftmost(start *node) *node {
	p, left := start, start
	for {
		if p.x < left.x || (p.x == left.x && p.y < left.y) {
			left = p
		}
		p = p.next
		if p == start {
			return left
		}
	}
}

func pointInTriangle(ax, ay, bx, by, cx, cy, px, py float64) bool {
	return (cx-px)*(ay-py) >= (ax-px)*(cy-py) &&
		(ax-px)*(by-py) >= (bx-px)*(ay-py) &&
		(bx-px)*(cy-py) >= (cx-px)*(by-py)
}

func isValidDiagonal(a, b *node) bool {
	return a.next.i != b.i && a.prev.i != b.i && !intersectsPolygon(a, b) &&
		((locallyInside(a, b) && locallyInside(b, a) && middleInside(a, b) &&
			(area(a.prev, a, b.prev) != 0 || area(a, b.prev, b) != 0)) ||
			(equals(a, b) && area(a.prev, a, a.next) > 0 && area(b.prev, b, b.next) > 0))
}

// area is twice the signed triangle area
func area(p, q, r *node) float64 {
	return (q.y-p.y)*(r.x-q.x) - (q.x-p.x)*(r.y-q.y)
}

func equals(p1, p2 *node) bool {
	return p1.x == p2.x && p1.y == p2.y
}

func intersects(p1, q1, p2, q2 *node) bool {
	o1 := sign(area(p1, q1, p2))
	o2 := sign(area(p1, q1, q2))
	o3 := sign(area(p2, q2, p1))
	o4 := sign(area(p2, q2, q1))

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if o2 == 0 && onSegment(p1, q2, q1) {
		return true
	}
	if o3 == 0 && onSegment(p2, p1, q2) {
		return true
	}
	if o4 == 0 && onSegment(p2, q1, q2) {
		return true
	}
	return false
}

func onSegment(p, q, r *node) bool {
	return q.x <= math.Max(p.x, r.x) && q.x >= math.Min(p.x, r.x) &&
		q.y <= math.Max(p.y, r.y) && q.y >= math.Min(p.y, r.y)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func intersectsPolygon(a, b *node) bool {
	p := a
	for {
		if p.i != a.i && p.next.i != a.i && p.i != b.i && p.next.i != b.i && intersects(p, p.next, a, b) {
			return true
		}
		p = p.next
		if p == a {
			return false
		}
	}
}

func locallyInside(a, b *node) bool {
	if area(a.prev, a, a.next) < 0 {
		return area(a, b, a.next) >= 0 && area(a, a.prev, b) >= 0
	}
	return area(a, b, a.prev) < 0 || area(a, a.next, b) < 0
}

func middleInside(a, b *node) bool {
	p := a
	inside := false
	px, py := (a.x+b.x)/2, (a.y+b.y)/2
	for {
		if (p.y > py) != (p.next.y > py) && p.next.y != p.y &&
			px < (p.next.x-p.x)*(py-p.y)/(p.next.y-p.y)+p.x {
			inside = !inside
		}
		p = p.next
		if p == a {
			return inside
		}
	}
}

// splitPolygon links a and b with a bridge; if a and b belong to one ring it
// splits the ring in two, if they belong to a ring and a hole it merges them.
func splitPolygon(a, b *node) *node {
	a2 := &node{i: a.i, x: a.x, y: a.y}
	b2 := &node{i: b.i, x: b.x, y: b.y}
	an, bp := a.next, b.prev

	a.next = b
	b.prev = a

	a2.next = an
	an.prev = a2

	b2.next = a2
	a2.prev = b2

	bp.next = b2
	b2.prev = bp

	return b2
}

func insertNode(i int, x, y float64, last *node) *node {
	p := &node{i: i, x: x, y: y}
	if last == nil {
		p.prev = p
		p.next = p
	} else {
		p.next = last.next
		p.prev = last
		last.next.prev = p
		last.next = p
	}
	return p
}

func removeNode(p *node) {
	p.next.prev = p.prev
	p.prev.next = p.next
	if p.prevZ != nil {
		p.prevZ.nextZ = p.nextZ
	}
	if p.nextZ != nil {
		p.nextZ.prevZ = p.prevZ
	}
}

func signedArea(data []float64, start, end int) float64 {
	var sum float64
	for i, j := start, end-2; i < end; i += 2 {
		sum += (data[j] - data[i]) * (data[i+1] + data[j+1])
		j = i
	}
	return sum
}
