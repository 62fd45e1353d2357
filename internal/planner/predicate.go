package planner

import (
	"fmt"
	"strings"

	"ordergraph/internal/domain"
	"ordergraph/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// Operator is the comparison applied by a Condition.
type Operator string

const (
	// OpEqual matches the column value exactly.
	OpEqual Operator = "eq"
	// OpContains matches a string anywhere in the column, wildcards taken literally.
	OpContains Operator = "contains"
)

// Condition is one (column, operator, value) filter term. Conditions are combined with AND.
type Condition struct {
	Column   string
	Operator Operator
	Value    interface{}
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.Column, c.Operator, c.Value)
}

// OrderSearch carries the optional root filters for order listings.
type OrderSearch struct {
	Status     *domain.OrderStatus
	MemberName string
}

// Conditions converts the search into filter terms. Absent filters produce no term.
func (s OrderSearch) Conditions() []Condition {
	var conds []Condition
	if s.Status != nil {
		conds = append(conds, Condition{Column: ColumnOrderStatus, Operator: OpEqual, Value: string(*s.Status)})
	}
	if name := strings.TrimSpace(s.MemberName); name != "" {
		conds = append(conds, Condition{Column: ColumnMemberName, Operator: OpContains, Value: name})
	}
	return conds
}

// ByOrderID returns a single equality term on the order identifier.
func ByOrderID(id int64) []Condition {
	return []Condition{{Column: ColumnOrderID, Operator: OpEqual, Value: id}}
}

func (c Condition) sqlizer() (sq.Sqlizer, error) {
	if strings.TrimSpace(c.Column) == "" {
		return nil, fmt.Errorf("condition has no column")
	}
	switch c.Operator {
	case OpEqual:
		return sq.Eq{c.Column: c.Value}, nil
	case OpContains:
		s, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("contains on %s requires a string value, got %T", c.Column, c.Value)
		}
		return sq.Expr(c.Column+" LIKE ? ESCAPE '"+string(sqlutil.LikeEscape)+"'", sqlutil.ContainsPattern(s)), nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", c.Operator)
	}
}

// applyConditions appends every condition as an AND-ed WHERE term.
func applyConditions(builder sq.SelectBuilder, conds []Condition) (sq.SelectBuilder, error) {
	for _, cond := range conds {
		pred, err := cond.sqlizer()
		if err != nil {
			return builder, err
		}
		builder = builder.Where(pred)
	}
	return builder, nil
}
