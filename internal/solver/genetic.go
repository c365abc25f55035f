package solver

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"
)

// 遗传算法参数
type HeuristicParameters struct {
	PopulationSize int32   // 种群大小
	MaxGenerations int32   // 最大迭代次数
	CrossoverRate  float64 // 交叉概率
	MutationRate   float64 // 变异概率
	EliteCount     int32   // 精英数量
}

func (p HeuristicParameters) withDefaults() HeuristicParameters {
	if p.PopulationSize <= 0 {
		p.PopulationSize = 20
	}
	if p.MaxGenerations <= 0 {
		p.MaxGenerations = 30
	}
	if p.CrossoverRate <= 0 {
		p.CrossoverRate = 0.8
	}
	if p.MutationRate <= 0 {
		p.MutationRate = 0.01
	}
	if p.EliteCount <= 0 {
		p.EliteCount = 2
	}
	if p.EliteCount > p.PopulationSize {
		p.EliteCount = p.PopulationSize
	}
	return p
}

// Chromosome: 一组完整的变量取值
type Chromosome struct {
	genes     []bool
	fitness   float64
	objective float64
	violation float64
}

func (ch *Chromosome) clone() *Chromosome {
	return &Chromosome{
		genes:     append([]bool(nil), ch.genes...),
		fitness:   ch.fitness,
		objective: ch.objective,
		violation: ch.violation,
	}
}

type genetic struct {
	m          *Model
	parameters HeuristicParameters
	rng        *rand.Rand

	varCons    [][]occurrence // 变量 -> 所在的硬约束
	geRows     []int          // >= 约束
	softCovers []int          // 全负系数的惩罚项，选中变量可以降低惩罚
	bigM       float64        // 违反硬约束时的惩罚系数，保证可行解总是优于不可行解
}

func newGenetic(m *Model, parameters HeuristicParameters, seed int64) *genetic {
	g := &genetic{
		m:          m,
		parameters: parameters.withDefaults(),
		rng:        rand.New(rand.NewSource(seed)),
		varCons:    make([][]occurrence, m.NumVars()),
		bigM:       1,
	}

	for _, v := range m.vars {
		g.bigM += math.Abs(v.Cost)
	}

	for ci, c := range m.constraints {
		for _, t := range c.Terms {
			g.varCons[t.Var] = append(g.varCons[t.Var], occurrence{row: ci, coef: t.Coef})
		}
		if c.Sense == GreaterEqual {
			g.geRows = append(g.geRows, ci)
		}
	}

	for pi, p := range m.penalties {
		allNegative := len(p.Terms) > 0 && p.Weight > 0
		for _, t := range p.Terms {
			g.bigM += p.Weight * math.Abs(t.Coef)
			if t.Coef >= 0 {
				allNegative = false
			}
		}
		if allNegative {
			g.softCovers = append(g.softCovers, pi)
		}
	}

	return g
}

// run 执行一轮完整的进化，返回找到的最好的可行解
func (g *genetic) run(ctx context.Context, deadline time.Time) ([]bool, float64, bool) {
	if g.m.NumVars() == 0 {
		objective, violation := g.m.Evaluate(nil)
		return []bool{}, objective, violation <= feasibilityTolerance
	}

	stop := func() bool {
		return ctx.Err() != nil || (!deadline.IsZero() && time.Now().After(deadline))
	}

	size := int(g.parameters.PopulationSize)

	// 生成初始种群
	pop := make([]*Chromosome, size)
	for i := range pop {
		pop[i] = g.randomInitChromosome()
		g.calcFitness(pop[i])
	}

	var best *Chromosome
	keepBest := func() {
		for _, ch := range pop {
			if ch.violation > feasibilityTolerance {
				continue
			}
			if best == nil || ch.objective < best.objective {
				// 深拷贝，防止后续繁殖的过程中基因被修改
				best = ch.clone()
			}
		}
	}

	for gen := 0; gen < int(g.parameters.MaxGenerations); gen++ {
		keepBest()
		if stop() {
			break
		}

		// 保留精英
		sort.SliceStable(pop, func(i, j int) bool {
			return pop[i].fitness > pop[j].fitness
		})
		newPop := make([]*Chromosome, 0, size)
		for _, elite := range pop[:int(g.parameters.EliteCount)] {
			newPop = append(newPop, elite.clone())
		}

		// 交叉和变异作用在父本的副本上
		for len(newPop) < size {
			c1 := g.selectByRoulette(pop).clone()
			c2 := g.selectByRoulette(pop).clone()

			if g.rng.Float64() < g.parameters.CrossoverRate {
				g.singlePointCrossover(c1, c2)
			}

			for _, child := range []*Chromosome{c1, c2} {
				if len(newPop) >= size {
					break
				}
				g.mutate(child)
				g.repair(child.genes)
				g.calcFitness(child)
				newPop = append(newPop, child)
			}
		}

		pop = newPop
	}
	keepBest()

	if best == nil {
		return nil, math.Inf(1), false
	}
	return best.genes, best.objective, true
}

func (g *genetic) randomInitChromosome() *Chromosome {
	ch := &Chromosome{genes: make([]bool, g.m.NumVars())}
	g.repair(ch.genes)
	return ch
}

// fitness = -objective - bigM * violation
func (g *genetic) calcFitness(ch *Chromosome) {
	ch.objective, ch.violation = g.m.Evaluate(ch.genes)
	ch.fitness = -ch.objective - g.bigM*ch.violation
}

// 使用轮盘赌来进行选择。适应度可能为负，先平移到正数区间
func (g *genetic) selectByRoulette(pop []*Chromosome) *Chromosome {
	minFit, maxFit := math.Inf(1), math.Inf(-1)
	for _, ch := range pop {
		minFit = math.Min(minFit, ch.fitness)
		maxFit = math.Max(maxFit, ch.fitness)
	}
	epsilon := 1e-9 + 0.01*(maxFit-minFit)

	sumFit := 0.0
	for _, ch := range pop {
		sumFit += ch.fitness - minFit + epsilon
	}
	pick := g.rng.Float64() * sumFit
	partial := 0.0

	for _, ch := range pop {
		partial += ch.fitness - minFit + epsilon
		if partial >= pick {
			return ch
		}
	}

	return pop[len(pop)-1]
}

// 单点交叉
func (g *genetic) singlePointCrossover(ch1 *Chromosome, ch2 *Chromosome) {
	length := len(ch1.genes)
	if length != len(ch2.genes) || length == 0 {
		return
	}

	point := g.rng.Intn(length)
	for i := point; i < length; i++ {
		ch1.genes[i], ch2.genes[i] = ch2.genes[i], ch1.genes[i]
	}
}

// 变异：每个基因以 MutationRate 的概率翻转
func (g *genetic) mutate(ch *Chromosome) {
	for i := range ch.genes {
		if g.rng.Float64() < g.parameters.MutationRate {
			ch.genes[i] = !ch.genes[i]
		}
	}
}

// repair 尽量把一组取值修复为可行解：
// 先去掉违反 <= 约束的变量，再补足 >= 约束，最后在划算时降低软约束的惩罚
func (g *genetic) repair(genes []bool) {
	m := g.m
	lhs := make([]float64, len(m.constraints))
	for ci, c := range m.constraints {
		for _, t := range c.Terms {
			if genes[t.Var] {
				lhs[ci] += t.Coef
			}
		}
	}

	set := func(v int, on bool) {
		genes[v] = on
		for _, o := range g.varCons[v] {
			if on {
				lhs[o.row] += o.coef
			} else {
				lhs[o.row] -= o.coef
			}
		}
	}

	// 打开 v 之后是否仍满足所有 <= 约束
	canTurnOn := func(v int) bool {
		for _, o := range g.varCons[v] {
			c := &m.constraints[o.row]
			if c.Sense == LessEqual && lhs[o.row]+o.coef > c.RHS+feasibilityTolerance {
				return false
			}
		}
		return true
	}

	// 1. 修复违反的 <= 约束：优先去掉成本最高的变量
	for ci := range m.constraints {
		c := &m.constraints[ci]
		if c.Sense != LessEqual {
			continue
		}
		for lhs[ci] > c.RHS+feasibilityTolerance {
			drop := -1
			for _, t := range c.Terms {
				if t.Coef > 0 && genes[t.Var] && (drop < 0 || m.vars[t.Var].Cost > m.vars[drop].Cost) {
					drop = t.Var
				}
			}
			if drop < 0 {
				break
			}
			set(drop, false)
		}
	}

	// 2. 补足 >= 约束：一半概率选最便宜的候选，一半概率随机选
	for _, i := range g.rng.Perm(len(g.geRows)) {
		ci := g.geRows[i]
		c := &m.constraints[ci]
		for lhs[ci] < c.RHS-feasibilityTolerance {
			candidates := make([]int, 0)
			for _, t := range c.Terms {
				if t.Coef > 0 && !genes[t.Var] && canTurnOn(t.Var) {
					candidates = append(candidates, t.Var)
				}
			}
			if len(candidates) == 0 {
				break
			}

			chosen := candidates[g.rng.Intn(len(candidates))]
			if g.rng.Float64() < 0.5 {
				for _, v := range candidates {
					if m.vars[v].Cost < m.vars[chosen].Cost {
						chosen = v
					}
				}
			}
			set(chosen, true)
		}
	}

	// 3. 软约束：只有成本低于惩罚时才值得选
	for _, i := range g.rng.Perm(len(g.softCovers)) {
		p := &m.penalties[g.softCovers[i]]
		for {
			excess := -p.RHS
			for _, t := range p.Terms {
				if genes[t.Var] {
					excess += t.Coef
				}
			}
			if excess <= feasibilityTolerance {
				break
			}

			chosen, bestRatio := -1, p.Weight
			for _, t := range p.Terms {
				if genes[t.Var] || !canTurnOn(t.Var) {
					continue
				}
				ratio := m.vars[t.Var].Cost / -t.Coef
				if ratio < bestRatio {
					chosen, bestRatio = t.Var, ratio
				}
			}
			if chosen < 0 {
				break
			}
			set(chosen, true)
		}
	}
}
