package types

// Column is a named column identity. Name comparison is case
// sensitive. Uniqueness is enforced per table, not globally.
type Column struct {
	Name string
}

func NewColumn(name string) Column {
	return Column{Name: name}
}

func (self Column) Equal(other Column) bool {
	return self.Name == other.Name
}

func (self Column) String() string {
	return self.Name
}

// ColumnNames extracts the name list in column order.
func ColumnNames(columns []Column) []string {
	result := make([]string, 0, len(columns))
	for _, c := range columns {
		result = append(result, c.Name)
	}
	return result
}

// MakeColumns builds a column list from names.
func MakeColumns(names []string) []Column {
	result := make([]Column, 0, len(names))
	for _, n := range names {
		result = append(result, NewColumn(n))
	}
	return result
}
