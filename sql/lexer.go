package sql

type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

type TokenType int

const (
	Identifier TokenType = iota
	TableIdentifier
	Wildcard
	String
	Int
	PrimaryKey
	Comma
	Semicolon
	ParenOpen
	ParenClose
	Equals
	NotEquals
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	And
	Or
	Not
	Is
	Null
	If
	Exists
	Select
	From
	Where
	Limit
	Offset
	Order
	By
	Asc
	Desc
	Count
	Create
	Drop
	Insert
	Update
	Delete
	Set
	Into
	Values
	Begin
	Commit
	Rollback
	Transaction
	EOF
	Unknown
)

var tokenNames = map[TokenType]string{
	TableIdentifier:    "TableIdentifier",
	Wildcard:           "Wildcard",
	PrimaryKey:         "PrimaryKey",
	Comma:              "Comma",
	Semicolon:          "Semicolon",
	ParenOpen:          "ParenOpen",
	ParenClose:         "ParenClose",
	Equals:             "Equals",
	NotEquals:          "NotEquals",
	LessThan:           "LessThan",
	GreaterThan:        "GreaterThan",
	LessThanOrEqual:    "LessThanOrEqual",
	GreaterThanOrEqual: "GreaterThanOrEqual",
	And:                "And",
	Or:                 "Or",
	Not:                "Not",
	Is:                 "Is",
	Null:               "Null",
	If:                 "If",
	Exists:             "Exists",
	Select:             "Select",
	From:               "From",
	Where:              "Where",
	Limit:              "Limit",
	Offset:             "Offset",
	Order:              "Order",
	By:                 "By",
	Asc:                "Asc",
	Desc:               "Desc",
	Count:              "Count",
	Create:             "Create",
	Drop:               "Drop",
	Insert:             "Insert",
	Update:             "Update",
	Delete:             "Delete",
	Set:                "Set",
	Into:               "Into",
	Values:             "Values",
	Begin:              "Begin",
	Commit:             "Commit",
	Rollback:           "Rollback",
	Transaction:        "Transaction",
	EOF:                "EOF",
}

func (token Token) String() string {
	switch token.Type {
	case Identifier:
		return "Identifier(" + token.Value + ")"
	case String:
		return "String(" + token.Value + ")"
	case Int:
		return "Int(" + token.Value + ")"
	}
	if name, ok := tokenNames[token.Type]; ok {
		return name
	}
	return "Unknown(" + token.Value + ")"
}

type Lexer struct {
	sql          string
	position     int
	readPosition int
	ch           byte
}

func NewLexer(sql string) *Lexer {
	lexer := &Lexer{sql: sql}
	lexer.readChar()
	return lexer
}

func (lexer *Lexer) readChar() {
	if lexer.readPosition >= len(lexer.sql) {
		lexer.ch = 0
	} else {
		lexer.ch = lexer.sql[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
}

// atEnd reports whether the whole input has been consumed. A NUL byte in
// the input is an ordinary character, not the end.
func (lexer *Lexer) atEnd() bool {
	return lexer.position >= len(lexer.sql)
}

func (lexer *Lexer) peekChar() byte {
	if lexer.readPosition >= len(lexer.sql) {
		return 0
	}
	return lexer.sql[lexer.readPosition]
}

func (lexer *Lexer) NextToken() Token {
	var token Token

	lexer.skipWhitespace()
	start := lexer.position

	if lexer.atEnd() {
		return Token{Type: EOF, Pos: start}
	}

	switch lexer.ch {
	case ',':
		token = Token{Type: Comma, Value: ","}
	case ';':
		token = Token{Type: Semicolon, Value: ";"}
	case '(':
		token = Token{Type: ParenOpen, Value: "("}
	case ')':
		token = Token{Type: ParenClose, Value: ")"}
	case '*':
		token = Token{Type: Wildcard, Value: "*"}
	case '\'':
		value, ok := lexer.readString()
		if !ok {
			return Token{Type: Unknown, Value: "'" + value, Pos: start}
		}
		token = Token{Type: String, Value: value}
	default:
		switch {
		case isOperator(lexer.ch):
			operator := lexer.readOperator()
			switch operator {
			case "=":
				return Token{Type: Equals, Value: operator, Pos: start}
			case "!=", "<>":
				return Token{Type: NotEquals, Value: operator, Pos: start}
			case "<":
				return Token{Type: LessThan, Value: operator, Pos: start}
			case ">":
				return Token{Type: GreaterThan, Value: operator, Pos: start}
			case "<=":
				return Token{Type: LessThanOrEqual, Value: operator, Pos: start}
			case ">=":
				return Token{Type: GreaterThanOrEqual, Value: operator, Pos: start}
			default:
				return Token{Type: Unknown, Value: operator, Pos: start}
			}
		case isDigit(lexer.ch), lexer.ch == '-' && isDigit(lexer.peekChar()):
			sign := ""
			if lexer.ch == '-' {
				sign = "-"
				lexer.readChar()
			}
			return Token{Type: Int, Value: sign + lexer.readNumber(), Pos: start}
		case isAlphaNumeric(lexer.ch):
			literal := lexer.readIdentifier()
			if toUpper(literal) == "PRIMARY" {
				// PRIMARY must be followed by KEY
				lexer.skipWhitespace()
				nextLiteral := lexer.readIdentifier()
				if toUpper(nextLiteral) == "KEY" {
					return Token{Type: PrimaryKey, Value: "PRIMARY KEY", Pos: start}
				}
				return Token{Type: Unknown, Value: literal + " " + nextLiteral, Pos: start}
			}
			return Token{Type: lookupIdentifier(literal), Value: literal, Pos: start}
		default:
			token = Token{Type: Unknown, Value: string(lexer.ch)}
		}
	}

	token.Pos = start
	lexer.readChar()
	return token
}

func (lexer *Lexer) PeekToken() Token {
	savedPosition := lexer.position
	savedReadPosition := lexer.readPosition
	savedCh := lexer.ch

	token := lexer.NextToken()

	lexer.position = savedPosition
	lexer.readPosition = savedReadPosition
	lexer.ch = savedCh

	return token
}

func (lexer *Lexer) skipWhitespace() {
	for lexer.ch == ' ' || lexer.ch == '\t' || lexer.ch == '\n' || lexer.ch == '\r' {
		lexer.readChar()
	}
}

func (lexer *Lexer) readIdentifier() string {
	position := lexer.position
	for isAlphaNumeric(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

// readString reads a single-quoted literal; '' inside it stands for one
// quote. It leaves the lexer on the closing quote and reports false if
// the literal is unterminated.
func (lexer *Lexer) readString() (string, bool) {
	var out []byte
	for {
		lexer.readChar()
		if lexer.atEnd() {
			return string(out), false
		}
		switch lexer.ch {
		case '\'':
			if lexer.peekChar() != '\'' {
				return string(out), true
			}
			lexer.readChar()
		}
		out = append(out, lexer.ch)
	}
}

func (lexer *Lexer) readNumber() string {
	position := lexer.position
	for isDigit(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

func (lexer *Lexer) readOperator() string {
	position := lexer.position
	for isOperator(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

func isAlphaNumeric(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_' || isDigit(ch)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isOperator(ch byte) bool {
	return ch == '=' || ch == '!' || ch == '<' || ch == '>'
}

var keywords = map[string]TokenType{
	"TABLE":       TableIdentifier,
	"AND":         And,
	"OR":          Or,
	"NOT":         Not,
	"IS":          Is,
	"NULL":        Null,
	"IF":          If,
	"EXISTS":      Exists,
	"SELECT":      Select,
	"FROM":        From,
	"WHERE":       Where,
	"LIMIT":       Limit,
	"OFFSET":      Offset,
	"ORDER":       Order,
	"BY":          By,
	"ASC":         Asc,
	"DESC":        Desc,
	"COUNT":       Count,
	"CREATE":      Create,
	"DROP":        Drop,
	"INSERT":      Insert,
	"UPDATE":      Update,
	"DELETE":      Delete,
	"SET":         Set,
	"INTO":        Into,
	"VALUES":      Values,
	"BEGIN":       Begin,
	"START":       Begin,
	"COMMIT":      Commit,
	"ROLLBACK":    Rollback,
	"TRANSACTION": Transaction,
}

func lookupIdentifier(id string) TokenType {
	if tokenType, ok := keywords[toUpper(id)]; ok {
		return tokenType
	}
	return Identifier
}

// toUpper converts a string to uppercase without allocating for ASCII strings
func toUpper(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			b := make([]byte, len(s))
			for j := 0; j < len(s); j++ {
				if s[j] >= 'a' && s[j] <= 'z' {
					b[j] = s[j] - 32
				} else {
					b[j] = s[j]
				}
			}
			return string(b)
		}
	}
	return s
}

func tokenize(sql string) []Token {
	lexer := NewLexer(sql)

	var tokens []Token

	for {
		token := lexer.NextToken()
		if token.Type == EOF {
			return append(tokens, token)
		}
		tokens = append(tokens, token)
	}
}
