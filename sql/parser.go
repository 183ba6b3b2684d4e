package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nickyhof/crossdb/core"
)

type StatementType int

const (
	SelectStatementType StatementType = iota
	InsertStatementType
	UpdateStatementType
	DeleteStatementType
	CreateTableStatementType
	DropTableStatementType
	BeginStatementType
	CommitStatementType
	RollbackStatementType
)

func (t StatementType) String() string {
	switch t {
	case SelectStatementType:
		return "SELECT"
	case InsertStatementType:
		return "INSERT"
	case UpdateStatementType:
		return "UPDATE"
	case DeleteStatementType:
		return "DELETE"
	case CreateTableStatementType:
		return "CREATE TABLE"
	case DropTableStatementType:
		return "DROP TABLE"
	case BeginStatementType:
		return "BEGIN"
	case CommitStatementType:
		return "COMMIT"
	case RollbackStatementType:
		return "ROLLBACK"
	default:
		return "UNKNOWN"
	}
}

// Class groups statements the way the executor dispatches them.
type Class int

const (
	DDL Class = iota
	DML
	Query
	TransactionControl
)

func (t StatementType) Class() Class {
	switch t {
	case SelectStatementType:
		return Query
	case InsertStatementType, UpdateStatementType, DeleteStatementType:
		return DML
	case CreateTableStatementType, DropTableStatementType:
		return DDL
	default:
		return TransactionControl
	}
}

type Statement interface {
	Type() StatementType
}

type SelectStatement struct {
	Table    string
	Columns  []string // empty means *
	CountAll bool
	Where    WhereClause
	OrderBy  []OrderByClause
	Limit    int // -1 means no limit
	Offset   int
}

type InsertStatement struct {
	Table   string
	Columns []string // empty means all columns in table order
	Rows    [][]core.Value
}

type UpdateStatement struct {
	Table   string
	Updates []SetClause
	Where   WhereClause
}

type SetClause struct {
	Column string
	Value  core.Value
}

type DeleteStatement struct {
	Table string
	Where WhereClause
}

type CreateTableStatement struct {
	Table       string
	Columns     []core.Column
	IfNotExists bool
}

type DropTableStatement struct {
	Table    string
	IfExists bool
}

type BeginStatement struct{}
type CommitStatement struct{}
type RollbackStatement struct{}

type WhereClause struct {
	Conditions []WhereCondition
	LogicalOps []LogicalOperator // AND/OR between conditions
}

type LogicalOperator int

const (
	LogicalAnd LogicalOperator = iota
	LogicalOr
)

type WhereCondition struct {
	Column   string
	Operator WhereOperator
	Value    core.Value
}

type WhereOperator int

const (
	EqualsOperator WhereOperator = iota
	NotEqualsOperator
	LessThanOperator
	GreaterThanOperator
	LessThanOrEqualOperator
	GreaterThanOrEqualOperator
	IsNullOperator
	IsNotNullOperator
)

type OrderByClause struct {
	Column     string
	Descending bool
}

func (s SelectStatement) Type() StatementType      { return SelectStatementType }
func (s InsertStatement) Type() StatementType      { return InsertStatementType }
func (s UpdateStatement) Type() StatementType      { return UpdateStatementType }
func (s DeleteStatement) Type() StatementType      { return DeleteStatementType }
func (s CreateTableStatement) Type() StatementType { return CreateTableStatementType }
func (s DropTableStatement) Type() StatementType   { return DropTableStatementType }
func (s BeginStatement) Type() StatementType       { return BeginStatementType }
func (s CommitStatement) Type() StatementType      { return CommitStatementType }
func (s RollbackStatement) Type() StatementType    { return RollbackStatementType }

// Classify returns the statement type from the leading keyword without
// parsing the rest of the statement.
func Classify(sql string) (StatementType, error) {
	lexer := NewLexer(sql)
	token := lexer.NextToken()
	switch token.Type {
	case Select:
		return SelectStatementType, nil
	case Insert:
		return InsertStatementType, nil
	case Update:
		return UpdateStatementType, nil
	case Delete:
		return DeleteStatementType, nil
	case Create:
		return CreateTableStatementType, nil
	case Drop:
		return DropTableStatementType, nil
	case Begin:
		return BeginStatementType, nil
	case Commit:
		return CommitStatementType, nil
	case Rollback:
		return RollbackStatementType, nil
	case EOF:
		return 0, core.Errorf(core.SyntaxError, "empty statement")
	default:
		return 0, core.Errorf(core.SyntaxError, "unrecognized statement starting with %q", token.Value)
	}
}

type Parser struct {
	lexer *Lexer
}

func NewParser(sql string) *Parser {
	lexer := NewLexer(sql)
	return &Parser{lexer: lexer}
}

// Parse parses exactly one statement. A trailing semicolon is allowed;
// anything after it is a syntax error.
func (parser *Parser) Parse() (Statement, error) {
	var statement Statement
	var err error

	token := parser.lexer.NextToken()
	switch token.Type {
	case Select:
		statement, err = ParseSelect(parser)
	case Insert:
		statement, err = ParseInsert(parser)
	case Update:
		statement, err = ParseUpdate(parser)
	case Delete:
		statement, err = ParseDelete(parser)
	case Create:
		statement, err = ParseCreate(parser)
	case Drop:
		statement, err = ParseDrop(parser)
	case Begin:
		parser.optional(Transaction)
		statement = BeginStatement{}
	case Commit:
		parser.optional(Transaction)
		statement = CommitStatement{}
	case Rollback:
		parser.optional(Transaction)
		statement = RollbackStatement{}
	case EOF:
		return nil, core.Errorf(core.SyntaxError, "empty statement")
	default:
		return nil, core.Errorf(core.SyntaxError, "unrecognized statement starting with %q", token.Value)
	}
	if err != nil {
		return nil, err
	}

	if err := parser.end(); err != nil {
		return nil, err
	}
	return statement, nil
}

func (parser *Parser) end() error {
	token := parser.lexer.NextToken()
	if token.Type == Semicolon {
		token = parser.lexer.NextToken()
	}
	if token.Type != EOF {
		return syntaxError(token, "end of statement")
	}
	return nil
}

func (parser *Parser) optional(tokenType TokenType) bool {
	if parser.lexer.PeekToken().Type == tokenType {
		parser.lexer.NextToken()
		return true
	}
	return false
}

func (parser *Parser) expect(tokenType TokenType, what string) (Token, error) {
	token := parser.lexer.NextToken()
	if token.Type != tokenType {
		return token, syntaxError(token, what)
	}
	return token, nil
}

func syntaxError(token Token, expected string) error {
	found := token.Value
	if token.Type == EOF {
		found = "end of input"
	}
	return core.Errorf(core.SyntaxError, "expected %s at position %d, found %q", expected, token.Pos, found)
}

// parseLiteral reads an integer, string or NULL literal.
func (parser *Parser) parseLiteral() (core.Value, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Int:
		n, err := strconv.ParseInt(token.Value, 10, 64)
		if err != nil {
			return core.Value{}, core.Errorf(core.TypeMismatch, "integer literal %s out of range", token.Value)
		}
		return core.Int(n), nil
	case String:
		return core.Text(token.Value), nil
	case Null:
		return core.Null(), nil
	default:
		return core.Value{}, syntaxError(token, "literal value")
	}
}

func ParseSelect(parser *Parser) (Statement, error) {
	selectStatement := SelectStatement{Limit: -1}

	token := parser.lexer.NextToken()
	switch token.Type {
	case Wildcard:
	case Count:
		if _, err := parser.expect(ParenOpen, "'(' after COUNT"); err != nil {
			return nil, err
		}
		if _, err := parser.expect(Wildcard, "'*' in COUNT(*)"); err != nil {
			return nil, err
		}
		if _, err := parser.expect(ParenClose, "')' after COUNT(*"); err != nil {
			return nil, err
		}
		selectStatement.CountAll = true
	case Identifier:
		selectStatement.Columns = append(selectStatement.Columns, token.Value)
		for parser.optional(Comma) {
			token, err := parser.expect(Identifier, "column name")
			if err != nil {
				return nil, err
			}
			selectStatement.Columns = append(selectStatement.Columns, token.Value)
		}
	default:
		return nil, syntaxError(token, "column list or '*'")
	}

	if _, err := parser.expect(From, "FROM"); err != nil {
		return nil, err
	}

	token, err := parser.expect(Identifier, "table name after FROM")
	if err != nil {
		return nil, err
	}
	selectStatement.Table = token.Value

	if parser.optional(Where) {
		selectStatement.Where, err = ParseWhere(parser)
		if err != nil {
			return nil, err
		}
	}

	if parser.optional(Order) {
		if _, err := parser.expect(By, "BY after ORDER"); err != nil {
			return nil, err
		}
		for {
			token, err := parser.expect(Identifier, "column name in ORDER BY")
			if err != nil {
				return nil, err
			}
			clause := OrderByClause{Column: token.Value}
			if parser.optional(Desc) {
				clause.Descending = true
			} else {
				parser.optional(Asc)
			}
			selectStatement.OrderBy = append(selectStatement.OrderBy, clause)
			if !parser.optional(Comma) {
				break
			}
		}
	}

	if parser.optional(Limit) {
		selectStatement.Limit, err = parser.parseCount("LIMIT")
		if err != nil {
			return nil, err
		}
		if parser.optional(Offset) {
			selectStatement.Offset, err = parser.parseCount("OFFSET")
			if err != nil {
				return nil, err
			}
		}
	}

	return selectStatement, nil
}

func (parser *Parser) parseCount(clause string) (int, error) {
	token, err := parser.expect(Int, "number after "+clause)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(token.Value)
	if err != nil || n < 0 {
		return 0, core.Errorf(core.SyntaxError, "invalid %s value %s", clause, token.Value)
	}
	return n, nil
}

func ParseWhere(parser *Parser) (WhereClause, error) {
	var whereClause WhereClause

	for {
		token, err := parser.expect(Identifier, "column name in WHERE clause")
		if err != nil {
			return whereClause, err
		}
		condition := WhereCondition{Column: token.Value}

		token = parser.lexer.NextToken()
		switch token.Type {
		case Is:
			condition.Operator = IsNullOperator
			if parser.optional(Not) {
				condition.Operator = IsNotNullOperator
			}
			if _, err := parser.expect(Null, "NULL after IS"); err != nil {
				return whereClause, err
			}
		case Equals, NotEquals, LessThan, GreaterThan, LessThanOrEqual, GreaterThanOrEqual:
			condition.Operator = comparisonOperators[token.Type]
			condition.Value, err = parser.parseLiteral()
			if err != nil {
				return whereClause, err
			}
			if condition.Value.IsNull() {
				return whereClause, core.Errorf(core.SyntaxError, "use IS NULL to compare with NULL")
			}
		default:
			return whereClause, syntaxError(token, "operator in WHERE clause")
		}

		whereClause.Conditions = append(whereClause.Conditions, condition)

		switch {
		case parser.optional(And):
			whereClause.LogicalOps = append(whereClause.LogicalOps, LogicalAnd)
		case parser.optional(Or):
			whereClause.LogicalOps = append(whereClause.LogicalOps, LogicalOr)
		default:
			return whereClause, nil
		}
	}
}

var comparisonOperators = map[TokenType]WhereOperator{
	Equals:             EqualsOperator,
	NotEquals:          NotEqualsOperator,
	LessThan:           LessThanOperator,
	GreaterThan:        GreaterThanOperator,
	LessThanOrEqual:    LessThanOrEqualOperator,
	GreaterThanOrEqual: GreaterThanOrEqualOperator,
}

func ParseInsert(parser *Parser) (Statement, error) {
	var insertStatement InsertStatement

	if _, err := parser.expect(Into, "INTO after INSERT"); err != nil {
		return nil, err
	}

	token, err := parser.expect(Identifier, "table name after INSERT INTO")
	if err != nil {
		return nil, err
	}
	insertStatement.Table = token.Value

	// Optional column list
	if parser.optional(ParenOpen) {
		for {
			token, err := parser.expect(Identifier, "column name")
			if err != nil {
				return nil, err
			}
			insertStatement.Columns = append(insertStatement.Columns, token.Value)

			token = parser.lexer.NextToken()
			if token.Type == ParenClose {
				break
			}
			if token.Type != Comma {
				return nil, syntaxError(token, "',' or ')' in column list")
			}
		}
	}

	if _, err := parser.expect(Values, "VALUES"); err != nil {
		return nil, err
	}

	for {
		if _, err := parser.expect(ParenOpen, "'(' before value list"); err != nil {
			return nil, err
		}

		var row []core.Value
		for {
			value, err := parser.parseLiteral()
			if err != nil {
				return nil, err
			}
			row = append(row, value)

			token := parser.lexer.NextToken()
			if token.Type == ParenClose {
				break
			}
			if token.Type != Comma {
				return nil, syntaxError(token, "',' or ')' in value list")
			}
		}
		insertStatement.Rows = append(insertStatement.Rows, row)

		if !parser.optional(Comma) {
			break
		}
	}

	return insertStatement, nil
}

func ParseUpdate(parser *Parser) (Statement, error) {
	var updateStatement UpdateStatement

	token, err := parser.expect(Identifier, "table name after UPDATE")
	if err != nil {
		return nil, err
	}
	updateStatement.Table = token.Value

	if _, err := parser.expect(Set, "SET after table name"); err != nil {
		return nil, err
	}

	for {
		token, err := parser.expect(Identifier, "column name in SET clause")
		if err != nil {
			return nil, err
		}
		column := token.Value

		if _, err := parser.expect(Equals, "'=' in SET clause"); err != nil {
			return nil, err
		}

		value, err := parser.parseLiteral()
		if err != nil {
			return nil, err
		}

		updateStatement.Updates = append(updateStatement.Updates, SetClause{
			Column: column,
			Value:  value,
		})

		if !parser.optional(Comma) {
			break
		}
	}

	if parser.optional(Where) {
		updateStatement.Where, err = ParseWhere(parser)
		if err != nil {
			return nil, err
		}
	}

	return updateStatement, nil
}

func ParseDelete(parser *Parser) (Statement, error) {
	var deleteStatement DeleteStatement

	if _, err := parser.expect(From, "FROM after DELETE"); err != nil {
		return nil, err
	}

	token, err := parser.expect(Identifier, "table name after FROM")
	if err != nil {
		return nil, err
	}
	deleteStatement.Table = token.Value

	if parser.optional(Where) {
		deleteStatement.Where, err = ParseWhere(parser)
		if err != nil {
			return nil, err
		}
	}

	return deleteStatement, nil
}

func ParseCreate(parser *Parser) (Statement, error) {
	if _, err := parser.expect(TableIdentifier, "TABLE after CREATE"); err != nil {
		return nil, err
	}
	return ParseCreateTable(parser)
}

func ParseCreateTable(parser *Parser) (Statement, error) {
	var createTableStatement CreateTableStatement

	if parser.optional(If) {
		if _, err := parser.expect(Not, "NOT after IF"); err != nil {
			return nil, err
		}
		if _, err := parser.expect(Exists, "EXISTS after IF NOT"); err != nil {
			return nil, err
		}
		createTableStatement.IfNotExists = true
	}

	token, err := parser.expect(Identifier, "table name after TABLE")
	if err != nil {
		return nil, err
	}
	createTableStatement.Table = token.Value

	if _, err := parser.expect(ParenOpen, "'(' after table name"); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	primaryKeys := 0
	for {
		token, err := parser.expect(Identifier, "column name")
		if err != nil {
			return nil, err
		}
		column := core.Column{Name: token.Value}
		if seen[toUpper(column.Name)] {
			return nil, core.Errorf(core.SyntaxError, "duplicate column name %s", column.Name)
		}
		seen[toUpper(column.Name)] = true

		if err := parser.parseColumnType(&column); err != nil {
			return nil, err
		}

		if parser.optional(PrimaryKey) {
			column.PrimaryKey = true
			primaryKeys++
		}

		createTableStatement.Columns = append(createTableStatement.Columns, column)

		token = parser.lexer.NextToken()
		if token.Type == ParenClose {
			break
		}
		if token.Type != Comma {
			return nil, syntaxError(token, "',' or ')' in column list")
		}
	}

	if primaryKeys > 1 {
		return nil, core.Errorf(core.SyntaxError, "table %s declares more than one primary key", createTableStatement.Table)
	}

	return createTableStatement, nil
}

func (parser *Parser) parseColumnType(column *core.Column) error {
	token := parser.lexer.NextToken()
	if token.Type != Identifier {
		return syntaxError(token, "column type")
	}

	switch toUpper(token.Value) {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT":
		column.Type = core.IntType
	case "TEXT", "STRING":
		column.Type = core.TextType
	case "CHAR", "VARCHAR":
		column.Type = core.TextType
		if parser.optional(ParenOpen) {
			width, err := parser.expect(Int, "width in "+toUpper(token.Value)+"(n)")
			if err != nil {
				return err
			}
			column.Width, err = strconv.Atoi(width.Value)
			if err != nil || column.Width <= 0 {
				return core.Errorf(core.SyntaxError, "invalid width %s for column %s", width.Value, column.Name)
			}
			if _, err := parser.expect(ParenClose, "')' after width"); err != nil {
				return err
			}
		}
	default:
		return core.Errorf(core.SyntaxError, "unsupported column type %s (expected %s)", token.Value,
			strings.Join([]string{"INT", "INTEGER", "BIGINT", "TEXT", "STRING", "CHAR(n)", "VARCHAR(n)"}, ", "))
	}
	return nil
}

func ParseDrop(parser *Parser) (Statement, error) {
	var dropTableStatement DropTableStatement

	if _, err := parser.expect(TableIdentifier, "TABLE after DROP"); err != nil {
		return nil, err
	}

	if parser.optional(If) {
		if _, err := parser.expect(Exists, "EXISTS after IF"); err != nil {
			return nil, err
		}
		dropTableStatement.IfExists = true
	}

	token, err := parser.expect(Identifier, "table name after TABLE")
	if err != nil {
		return nil, err
	}
	dropTableStatement.Table = token.Value

	return dropTableStatement, nil
}

// Parse parses a single statement.
func Parse(sql string) (Statement, error) {
	statement, err := NewParser(sql).Parse()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", truncate(sql, 60), err)
	}
	return statement, nil
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
