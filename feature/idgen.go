package feature

//IDMaxSize 要素id上限, 超过后回绕
const IDMaxSize = 1 << 22

//IDGen 处理单元内的要素id生成器, 各单元步长相同起点不同, 互不冲突
type IDGen struct {
	start uint32
	incr  uint32
	num   uint32
}

//NewIDGen 第unit个单元, 共total个单元
func NewIDGen(unit, total int) *IDGen {
	if total < 1 {
		total = 1
	}
	start := uint32(unit) + 1
	return &IDGen{start: start, incr: uint32(total), num: start}
}

//Next 下一个id
func (g *IDGen) Next() uint32 {
	res := g.num
	g.num += g.incr
	if g.num >= IDMaxSize {
		g.num = g.start
	}
	return res
}
