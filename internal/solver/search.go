package solver

import (
	"context"
	"math"
	"sort"
	"time"
)

const unassigned int8 = -1

type rowKind int8

const (
	rowLE rowKind = iota
	rowGE
	rowPenalty
)

type row struct {
	terms  []Term
	kind   rowKind
	rhs    float64
	weight float64
	maxAbs float64 // 最大的 |coef|，用于跳过不可能产生蕴含的行
	cover  bool
}

type occurrence struct {
	row  int
	coef float64
}

type coverItem struct {
	v      int
	amount float64 // |coef|
	ratio  float64 // max(0, cost) / amount
}

// cover 下界所用的覆盖结构：一个 >= 约束（硬）或一个全负系数的惩罚项（软）。
// 不同 cover 之间的变量集合互不相交，因此它们的下界可以直接相加。
type cover struct {
	row    int
	hard   bool
	weight float64
	items  []coverItem // 按 ratio 升序
}

type search struct {
	ctx      context.Context
	m        *Model
	inc      *incumbent
	deadline time.Time
	gap      float64

	rows         []row
	varRows      [][]occurrence
	covers       []cover
	plainPenalty []int // 不属于任何 cover 的惩罚项

	val         []int8
	fixed       []float64 // 已赋值为 1 的变量的系数之和
	posRest     []float64 // 未赋值变量中正系数之和
	negRest     []float64 // 未赋值变量中负系数之和
	costFixed   float64
	negCostRest float64
	trail       []int

	rootBound  float64
	bestBound  float64   // 目前证明过的最好下界，只增不减
	pending    []float64 // 当前路径上第二个分支还没有探索的节点的下界
	nodes      int64
	stopped    bool
	exhausted  bool
	gapReached bool
}

func newSearch(ctx context.Context, m *Model, inc *incumbent, deadline time.Time, gap float64) *search {
	n := m.NumVars()
	s := &search{
		ctx:      ctx,
		m:        m,
		inc:      inc,
		deadline: deadline,
		gap:      math.Max(0, gap),
		varRows:  make([][]occurrence, n),
		val:      make([]int8, n),
		trail:    make([]int, 0, n),
	}

	for i := range s.val {
		s.val[i] = unassigned
		if c := m.vars[i].Cost; c < 0 {
			s.negCostRest += c
		}
	}

	for _, c := range m.constraints {
		kind := rowLE
		if c.Sense == GreaterEqual {
			kind = rowGE
		}
		s.addRow(row{terms: c.Terms, kind: kind, rhs: c.RHS})
	}
	for _, p := range m.penalties {
		s.addRow(row{terms: p.Terms, kind: rowPenalty, rhs: p.RHS, weight: p.Weight})
	}

	s.buildCovers()

	for r, rw := range s.rows {
		if rw.kind == rowPenalty && !rw.cover {
			s.plainPenalty = append(s.plainPenalty, r)
		}
	}

	return s
}

func (s *search) addRow(rw row) {
	r := len(s.rows)
	pos, neg := 0.0, 0.0
	for _, t := range rw.terms {
		if t.Coef > 0 {
			pos += t.Coef
		} else {
			neg += t.Coef
		}
		rw.maxAbs = math.Max(rw.maxAbs, math.Abs(t.Coef))
		s.varRows[t.Var] = append(s.varRows[t.Var], occurrence{row: r, coef: t.Coef})
	}
	s.rows = append(s.rows, rw)
	s.fixed = append(s.fixed, 0)
	s.posRest = append(s.posRest, pos)
	s.negRest = append(s.negRest, neg)
}

func (s *search) buildCovers() {
	used := make([]bool, len(s.val))

	tryCover := func(r int) {
		rw := &s.rows[r]
		if len(rw.terms) == 0 {
			return
		}

		hard := rw.kind == rowGE
		for _, t := range rw.terms {
			if used[t.Var] {
				return
			}
			if hard && t.Coef <= 0 {
				return
			}
			if !hard && t.Coef >= 0 {
				return
			}
		}

		c := cover{row: r, hard: hard, weight: rw.weight, items: make([]coverItem, 0, len(rw.terms))}
		for _, t := range rw.terms {
			used[t.Var] = true
			amount := math.Abs(t.Coef)
			c.items = append(c.items, coverItem{
				v:      t.Var,
				amount: amount,
				ratio:  math.Max(0, s.m.vars[t.Var].Cost) / amount,
			})
		}
		sort.SliceStable(c.items, func(i, j int) bool {
			if c.items[i].ratio != c.items[j].ratio {
				return c.items[i].ratio < c.items[j].ratio
			}
			return c.items[i].v < c.items[j].v
		})

		rw.cover = true
		s.covers = append(s.covers, c)
	}

	// 硬约束优先占用变量
	for r, rw := range s.rows {
		if rw.kind == rowGE {
			tryCover(r)
		}
	}
	for r, rw := range s.rows {
		if rw.kind == rowPenalty && rw.weight > 0 {
			tryCover(r)
		}
	}
}

func (s *search) assign(v int, b int8) {
	s.val[v] = b
	s.trail = append(s.trail, v)

	c := s.m.vars[v].Cost
	if c < 0 {
		s.negCostRest -= c
	}
	if b == 1 {
		s.costFixed += c
	}

	for _, o := range s.varRows[v] {
		if o.coef > 0 {
			s.posRest[o.row] -= o.coef
		} else {
			s.negRest[o.row] -= o.coef
		}
		if b == 1 {
			s.fixed[o.row] += o.coef
		}
	}
}

func (s *search) undo(mark int) {
	for len(s.trail) > mark {
		v := s.trail[len(s.trail)-1]
		s.trail = s.trail[:len(s.trail)-1]

		b := s.val[v]
		s.val[v] = unassigned

		c := s.m.vars[v].Cost
		if c < 0 {
			s.negCostRest += c
		}
		if b == 1 {
			s.costFixed -= c
		}

		for _, o := range s.varRows[v] {
			if o.coef > 0 {
				s.posRest[o.row] += o.coef
			} else {
				s.negRest[o.row] += o.coef
			}
			if b == 1 {
				s.fixed[o.row] -= o.coef
			}
		}
	}
}

// propagate 从 trail[start] 开始处理新赋值的变量所在的行，可能继续产生新的赋值
func (s *search) propagate(start int) bool {
	for i := start; i < len(s.trail); i++ {
		for _, o := range s.varRows[s.trail[i]] {
			if !s.propagateRow(o.row) {
				return false
			}
		}
	}
	return true
}

func (s *search) propagateRow(r int) bool {
	rw := &s.rows[r]

	switch rw.kind {
	case rowLE:
		// 强制赋值不会改变 fixed + negRest，因此 slack 在循环中保持不变
		slack := rw.rhs - (s.fixed[r] + s.negRest[r])
		if slack < -feasibilityTolerance {
			return false
		}
		if rw.maxAbs <= slack+feasibilityTolerance {
			return true
		}
		for _, t := range rw.terms {
			if s.val[t.Var] != unassigned {
				continue
			}
			if t.Coef > 0 && t.Coef > slack+feasibilityTolerance {
				s.assign(t.Var, 0)
			} else if t.Coef < 0 && -t.Coef > slack+feasibilityTolerance {
				s.assign(t.Var, 1)
			}
		}
	case rowGE:
		surplus := s.fixed[r] + s.posRest[r] - rw.rhs
		if surplus < -feasibilityTolerance {
			return false
		}
		if rw.maxAbs <= surplus+feasibilityTolerance {
			return true
		}
		for _, t := range rw.terms {
			if s.val[t.Var] != unassigned {
				continue
			}
			if t.Coef > 0 && t.Coef > surplus+feasibilityTolerance {
				s.assign(t.Var, 1)
			} else if t.Coef < 0 && -t.Coef > surplus+feasibilityTolerance {
				s.assign(t.Var, 0)
			}
		}
	}

	return true
}

func (s *search) initialize() bool {
	for r := range s.rows {
		if !s.propagateRow(r) {
			return false
		}
	}
	if !s.propagate(0) {
		return false
	}
	s.rootBound = s.bound()
	s.bestBound = s.rootBound
	return true
}

func (s *search) coverNeed(c *cover) float64 {
	rw := &s.rows[c.row]
	if c.hard {
		return rw.rhs - s.fixed[c.row]
	}
	return s.fixed[c.row] - rw.rhs
}

func (s *search) coverBound(c *cover) float64 {
	need := s.coverNeed(c)
	if need <= feasibilityTolerance {
		return 0
	}

	acc := 0.0
	for _, it := range c.items {
		if s.val[it.v] != unassigned {
			continue
		}
		if !c.hard && it.ratio >= c.weight {
			break
		}
		if it.amount >= need {
			return acc + it.ratio*need
		}
		acc += it.ratio * it.amount
		need -= it.amount
	}

	if c.hard {
		// 容量不足的情况由传播负责发现
		return acc
	}
	return acc + c.weight*need
}

// bound 当前节点的目标值下界
func (s *search) bound() float64 {
	b := s.costFixed + s.negCostRest
	for i := range s.covers {
		b += s.coverBound(&s.covers[i])
	}
	for _, r := range s.plainPenalty {
		rw := &s.rows[r]
		b += rw.weight * math.Max(0, s.fixed[r]+s.negRest[r]-rw.rhs)
	}
	return b
}

func (s *search) tolerance(objective float64) float64 {
	abs := math.Abs(objective)
	return math.Max(objectiveTolerance*math.Max(1, abs), s.gap*abs)
}

func (s *search) halted() bool {
	return s.stopped || s.gapReached
}

func (s *search) timeUp() bool {
	if s.ctx.Err() != nil {
		return true
	}
	return !s.deadline.IsZero() && time.Now().After(s.deadline)
}

// globalBound 所有尚未探索的节点的下界。current 是当前节点的下界，当前节点已经探索完时传 +Inf。
// 已经探索完的子树要么被剪枝，要么已经把解交给了 incumbent
func (s *search) globalBound(current float64) float64 {
	b := math.Min(current, s.inc.objective())
	for _, p := range s.pending {
		b = math.Min(b, p)
	}
	if b > s.bestBound && !math.IsInf(b, 1) {
		s.bestBound = b
	}
	return s.bestBound
}

func (s *search) checkGap(current float64) bool {
	inc := s.inc.objective()
	if math.IsInf(inc, 1) {
		return false
	}
	if inc-s.globalBound(current) <= s.tolerance(inc) {
		s.gapReached = true
	}
	return s.gapReached
}

func (s *search) stop(current float64) {
	s.globalBound(current)
	s.stopped = true
}

func (s *search) run() {
	if s.checkGap(s.rootBound) {
		return
	}
	if s.timeUp() {
		s.stop(s.rootBound)
		return
	}
	s.explore()
	if !s.halted() {
		s.exhausted = true
	}
}

func (s *search) explore() {
	if s.halted() {
		return
	}
	s.nodes++
	if len(s.trail) == len(s.val) {
		s.leaf()
		return
	}

	nb := s.bound()
	if s.nodes&255 == 0 && s.timeUp() {
		s.stop(nb)
		return
	}
	if inc := s.inc.objective(); !math.IsInf(inc, 1) && nb >= inc-s.tolerance(inc) {
		return
	}
	// 并行的启发式可能已经找到足够好的解
	if s.nodes&4095 == 0 && s.checkGap(nb) {
		return
	}

	mark := len(s.trail)
	v, first, ok := s.pickBranch()
	if !ok {
		// 所有下限要求都已满足，被支配的变量一次性置 0
		if s.fixDominated() && s.propagate(mark) {
			s.explore()
		}
		s.undo(mark)
		return
	}

	for i, b := range [2]int8{first, 1 - first} {
		if i == 0 {
			s.pending = append(s.pending, nb)
		}
		s.assign(v, b)
		if s.propagate(mark) {
			s.explore()
		}
		s.undo(mark)
		if i == 0 {
			s.pending = s.pending[:len(s.pending)-1]
		}
		if s.halted() {
			return
		}
	}
}

func (s *search) leaf() {
	objective := s.costFixed
	for r, rw := range s.rows {
		if rw.kind == rowPenalty {
			objective += rw.weight * math.Max(0, s.fixed[r]-rw.rhs)
		}
	}

	values := make([]bool, len(s.val))
	for i, b := range s.val {
		values[i] = b == 1
	}

	if s.inc.offer(values, objective) {
		s.checkGap(math.Inf(1))
	}
}

// pickBranch 选择分支变量及优先尝试的取值。
// 返回 ok=false 表示存在可以直接置 0 的被支配变量。
func (s *search) pickBranch() (int, int8, bool) {
	// 1. 覆盖结构：选最便宜的候选
	for i := range s.covers {
		c := &s.covers[i]
		if s.coverNeed(c) <= feasibilityTolerance {
			continue
		}
		for _, it := range c.items {
			if s.val[it.v] != unassigned {
				continue
			}
			if c.hard || it.ratio < c.weight {
				return it.v, 1, true
			}
			break
		}
	}

	// 2. 其余尚未保证满足的 >= 约束
	for r := range s.rows {
		rw := &s.rows[r]
		if rw.kind != rowGE || rw.cover {
			continue
		}
		if s.fixed[r]+s.negRest[r] >= rw.rhs-feasibilityTolerance {
			continue
		}
		best, bestCost := -1, math.Inf(1)
		for _, t := range rw.terms {
			if t.Coef > 0 && s.val[t.Var] == unassigned && s.m.vars[t.Var].Cost < bestCost {
				best, bestCost = t.Var, s.m.vars[t.Var].Cost
			}
		}
		if best >= 0 {
			return best, 1, true
		}
	}

	// 3. 剩余变量
	candidate := -1
	for v := range s.val {
		if s.val[v] != unassigned {
			continue
		}
		if s.dominated(v) {
			return -1, 0, false
		}
		if candidate < 0 {
			candidate = v
		}
	}

	return candidate, s.preferredValue(candidate), true
}

// dominated 判断把 v 置 0 是否一定不劣于置 1
func (s *search) dominated(v int) bool {
	if s.m.vars[v].Cost < 0 {
		return false
	}
	for _, o := range s.varRows[v] {
		rw := &s.rows[o.row]
		switch rw.kind {
		case rowLE, rowPenalty:
			if o.coef < 0 {
				return false
			}
		case rowGE:
			if o.coef > 0 && s.fixed[o.row]+s.negRest[o.row] < rw.rhs-feasibilityTolerance {
				return false
			}
		}
	}
	return true
}

func (s *search) fixDominated() bool {
	fixed := false
	for v := range s.val {
		if s.val[v] == unassigned && s.dominated(v) {
			s.assign(v, 0)
			fixed = true
		}
	}
	return fixed
}

// preferredValue 估计 v 置 1 的边际收益：成本减去它能降低的惩罚
func (s *search) preferredValue(v int) int8 {
	gain := -s.m.vars[v].Cost
	for _, o := range s.varRows[v] {
		rw := &s.rows[o.row]
		if rw.kind == rowPenalty && o.coef < 0 && s.fixed[o.row]-rw.rhs > feasibilityTolerance {
			gain += rw.weight * math.Min(-o.coef, s.fixed[o.row]-rw.rhs)
		}
	}
	if gain > 0 {
		return 1
	}
	return 0
}
