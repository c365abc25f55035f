package solver

import (
	"fmt"
	"math"
)

// Sense 线性约束的方向
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

type Term struct {
	Var  int
	Coef float64
}

type Variable struct {
	Name string
	Cost float64
}

// Constraint: sum(Coef * x) Sense RHS
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Penalty: Weight * max(0, sum(Coef * x) - RHS)，即软约束
type Penalty struct {
	Name   string
	Terms  []Term
	RHS    float64
	Weight float64
}

// Model 0-1 整数规划模型：所有变量都是二元变量，目标为最小化
type Model struct {
	vars        []Variable
	constraints []Constraint
	penalties   []Penalty
}

func NewModel() *Model {
	return &Model{}
}

func (m *Model) AddVar(name string, cost float64) int {
	m.vars = append(m.vars, Variable{Name: name, Cost: cost})
	return len(m.vars) - 1
}

func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) int {
	m.constraints = append(m.constraints, Constraint{
		Name:  name,
		Terms: append([]Term(nil), terms...),
		Sense: sense,
		RHS:   rhs,
	})
	return len(m.constraints) - 1
}

func (m *Model) AddPenalty(name string, terms []Term, rhs float64, weight float64) int {
	m.penalties = append(m.penalties, Penalty{
		Name:   name,
		Terms:  append([]Term(nil), terms...),
		RHS:    rhs,
		Weight: weight,
	})
	return len(m.penalties) - 1
}

func (m *Model) NumVars() int {
	return len(m.vars)
}

func (m *Model) NumConstraints() int {
	return len(m.constraints)
}

func (m *Model) NumPenalties() int {
	return len(m.penalties)
}

func (m *Model) Var(i int) Variable {
	return m.vars[i]
}

func (m *Model) Constraint(i int) Constraint {
	return m.constraints[i]
}

func (m *Model) Penalty(i int) Penalty {
	return m.penalties[i]
}

// Validate 检查模型本身是否合法（与可行性无关）
func (m *Model) Validate() error {
	finite := func(v float64) bool {
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	}

	for i, v := range m.vars {
		if !finite(v.Cost) {
			return fmt.Errorf("变量 %d (%s) 的目标系数非法: %v", i, v.Name, v.Cost)
		}
	}

	checkTerms := func(kind string, name string, terms []Term) error {
		seen := make(map[int]bool, len(terms))
		for _, t := range terms {
			if t.Var < 0 || t.Var >= len(m.vars) {
				return fmt.Errorf("%s %s 引用了不存在的变量 %d", kind, name, t.Var)
			}
			if seen[t.Var] {
				return fmt.Errorf("%s %s 中变量 %d 重复出现", kind, name, t.Var)
			}
			seen[t.Var] = true
			if !finite(t.Coef) {
				return fmt.Errorf("%s %s 中变量 %d 的系数非法: %v", kind, name, t.Var, t.Coef)
			}
		}
		return nil
	}

	for _, c := range m.constraints {
		if err := checkTerms("约束", c.Name, c.Terms); err != nil {
			return err
		}
		if !finite(c.RHS) {
			return fmt.Errorf("约束 %s 的右端项非法: %v", c.Name, c.RHS)
		}
		if c.Sense != LessEqual && c.Sense != GreaterEqual {
			return fmt.Errorf("约束 %s 的方向非法: %v", c.Name, c.Sense)
		}
	}

	for _, p := range m.penalties {
		if err := checkTerms("惩罚项", p.Name, p.Terms); err != nil {
			return err
		}
		if !finite(p.RHS) || !finite(p.Weight) {
			return fmt.Errorf("惩罚项 %s 的参数非法", p.Name)
		}
		if p.Weight < 0 {
			// 负权重会使惩罚项非凸，定界不再成立
			return fmt.Errorf("惩罚项 %s 的权重不能为负: %v", p.Name, p.Weight)
		}
	}

	return nil
}

// Evaluate 计算给定解的目标值以及硬约束的违反量（0 表示可行）
func (m *Model) Evaluate(values []bool) (objective float64, violation float64) {
	for i, v := range m.vars {
		if values[i] {
			objective += v.Cost
		}
	}

	for _, p := range m.penalties {
		lhs := 0.0
		for _, t := range p.Terms {
			if values[t.Var] {
				lhs += t.Coef
			}
		}
		objective += p.Weight * math.Max(0, lhs-p.RHS)
	}

	for _, c := range m.constraints {
		lhs := 0.0
		for _, t := range c.Terms {
			if values[t.Var] {
				lhs += t.Coef
			}
		}
		switch c.Sense {
		case LessEqual:
			violation += math.Max(0, lhs-c.RHS)
		case GreaterEqual:
			violation += math.Max(0, c.RHS-lhs)
		}
	}

	return objective, violation
}

// IsFeasible 判断给定解是否满足所有硬约束
func (m *Model) IsFeasible(values []bool) bool {
	_, violation := m.Evaluate(values)
	return violation <= feasibilityTolerance
}
