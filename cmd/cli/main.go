package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/nickyhof/crossdb"
	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/db"
	"github.com/nickyhof/crossdb/internal/logging"
	"github.com/nickyhof/crossdb/sql"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

const maxHistory = 1000

var flags struct {
	Database string `arg:"" optional:"" default:":memory:" help:"Database directory, or :memory:."`
	SQLFile  string `name:"sql-file" type:"existingfile" help:"SQL file to execute (non-interactive)."`
	Name     string `default:"crossdb"                   help:"Author name for persisted commits."`
	Email    string `default:"cli@crossdb.local"         help:"Author email for persisted commits."`

	Log struct {
		Level  string `default:"warn"    help:"${help_log_level}"`
		Format string `default:"console" help:"${help_log_format}" enum:"${enum_log_format}"`
	} `embed:"" prefix:"log-"`

	S3 struct {
		AccessKey string `help:"S3 access key for .import and .export."`
		SecretKey string `help:"S3 secret key for .import and .export."`
		Region    string `help:"S3 region."`
		Endpoint  string `help:"S3 endpoint, for S3 compatible stores."`
	} `embed:"" prefix:"s3-"`
}

var kongOptions = []kong.Option{
	kong.Vars{
		"enum_log_format": strings.Join(logging.Formats, ","),
		"help_log_format": fmt.Sprintf("Log format: '%s'.", strings.Join(logging.Formats, "', '")),
		"help_log_level":  fmt.Sprintf("Log level: '%s'.", strings.Join(logging.Levels, "', '")),
	},
	kong.DefaultEnvars("CROSSDB"),
	kong.Description("Interactive shell for crossdb databases."),
}

// CLI holds the shell state
type CLI struct {
	conn        *crossdb.Connection
	out         io.Writer
	history     []string
	historyFile string
	s3          *db.S3Config
	logger      *zap.Logger
}

func main() {
	kong.Parse(&flags, kongOptions...)

	logger, err := logging.New(flags.Log.Level, flags.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(2)
	}
	defer logger.Sync()

	conn, err := crossdb.Open(flags.Database,
		crossdb.WithLogger(logger),
		crossdb.WithIdentity(core.Identity{Name: flags.Name, Email: flags.Email}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}
	defer conn.Close()

	shell := &CLI{
		conn:        conn,
		out:         os.Stdout,
		historyFile: getHistoryPath(),
		logger:      logger,
	}
	if flags.S3.AccessKey != "" || flags.S3.Region != "" || flags.S3.Endpoint != "" {
		shell.s3 = &db.S3Config{
			AccessKey: flags.S3.AccessKey,
			SecretKey: flags.S3.SecretKey,
			Region:    flags.S3.Region,
			Endpoint:  flags.S3.Endpoint,
		}
	}

	if flags.SQLFile != "" {
		if failed := shell.loadFile(flags.SQLFile); failed > 0 {
			os.Exit(1)
		}
		return
	}

	shell.printBanner()
	if flags.Database == crossdb.MemoryIdentifier {
		fmt.Fprintf(shell.out, "%sUsing memory persistence%s\n\n", SuccessColor, ResetColor)
	} else {
		fmt.Fprintf(shell.out, "%sUsing file persistence: %s%s\n\n", SuccessColor, flags.Database, ResetColor)
	}

	shell.loadHistory()
	shell.run(os.Stdin)
	shell.saveHistory()
}

func (cli *CLI) printBanner() {
	fmt.Fprintln(cli.out)
	bannerWidth := 39 // inner width of the banner box
	versionLine := fmt.Sprintf("crossdb v%s", crossdb.Version())
	padding := max(bannerWidth-len(versionLine)-2, 0)
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Fprintf(cli.out, "%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintf(cli.out, "%s%s║ %*s%s%*s ║%s\n", BoldColor, PromptColor, leftPad, "", versionLine, rightPad, "", ResetColor)
	fmt.Fprintf(cli.out, "%s%s║   Embeddable SQL Database Engine      ║%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintf(cli.out, "%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out)
	fmt.Fprintln(cli.out, "Type .help for commands, .quit to exit")
}

// run reads statements until EOF or .quit. Statements may span lines and
// end with a semicolon.
func (cli *CLI) run(in io.Reader) {
	reader := bufio.NewReader(in)
	var multiLineBuffer strings.Builder

	for {
		fmt.Fprint(cli.out, cli.getPrompt(multiLineBuffer.Len() > 0))

		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			fmt.Fprintf(cli.out, "\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			return
		}

		input = strings.TrimRight(input, "\r\n")
		if strings.TrimSpace(input) == "" {
			continue
		}

		if multiLineBuffer.Len() == 0 && strings.HasPrefix(strings.TrimSpace(input), ".") {
			if quit := cli.handleCommand(input); quit {
				fmt.Fprintf(cli.out, "%sGoodbye!%s\n", SuccessColor, ResetColor)
				return
			}
			continue
		}

		multiLineBuffer.WriteString(input)

		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			multiLineBuffer.WriteString(" ")
			continue
		}

		query := strings.TrimSuffix(trimmed, ";")
		multiLineBuffer.Reset()

		if strings.TrimSpace(query) == "" {
			continue
		}

		cli.addToHistory(query + ";")
		cli.execute(query)
	}
}

func (cli *CLI) execute(query string) {
	result, err := cli.conn.Execute(query)
	if err != nil {
		cli.printError(err)
		return
	}
	defer result.Release()

	if err := result.Display(cli.out); err != nil {
		cli.printError(err)
	}
}

func (cli *CLI) printError(err error) {
	fmt.Fprintf(cli.out, "%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return fmt.Sprintf("%s   ...>%s ", PromptColor, ResetColor)
	}

	if cli.conn.InTransaction() {
		return fmt.Sprintf("%scrossdb*>%s ", PromptColor, ResetColor)
	}
	return fmt.Sprintf("%scrossdb>%s ", PromptColor, ResetColor)
}

// handleCommand runs a dot command and reports whether the shell should
// exit.
func (cli *CLI) handleCommand(input string) bool {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return false
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		return true

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".tables":
		cli.showTables()

	case ".clear", ".cls":
		fmt.Fprint(cli.out, "\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".log":
		cli.printLog()

	case ".version":
		fmt.Fprintf(cli.out, "crossdb version %s\n", crossdb.Version())

	case ".load":
		if len(parts) != 2 {
			fmt.Fprintf(cli.out, "%s✗ Usage: .load <file.sql>%s\n", ErrorColor, ResetColor)
			break
		}
		cli.loadFile(parts[1])

	case ".import":
		if len(parts) != 3 {
			fmt.Fprintf(cli.out, "%s✗ Usage: .import <table> <file.csv|url>%s\n", ErrorColor, ResetColor)
			break
		}
		n, err := cli.conn.ImportTable(context.Background(), parts[1], parts[2], cli.s3)
		if err != nil {
			cli.printError(err)
			break
		}
		fmt.Fprintf(cli.out, "%s✓ Imported %d row(s) into %s%s\n", SuccessColor, n, parts[1], ResetColor)

	case ".export":
		if len(parts) != 3 {
			fmt.Fprintf(cli.out, "%s✗ Usage: .export <table> <file.csv|url>%s\n", ErrorColor, ResetColor)
			break
		}
		n, err := cli.conn.ExportTable(context.Background(), parts[1], parts[2], cli.s3)
		if err != nil {
			cli.printError(err)
			break
		}
		fmt.Fprintf(cli.out, "%s✓ Exported %d row(s) from %s%s\n", SuccessColor, n, parts[1], ResetColor)

	default:
		fmt.Fprintf(cli.out, "%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, parts[0], ResetColor)
	}

	return false
}

func (cli *CLI) printHelp() {
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out, "  .help, .h              Show this help message")
	fmt.Fprintln(cli.out, "  .quit, .exit           Exit the shell")
	fmt.Fprintln(cli.out, "  .tables                List tables")
	fmt.Fprintln(cli.out, "  .load <file>           Execute SQL statements from a file")
	fmt.Fprintln(cli.out, "  .import <table> <src>  Insert CSV rows from a file, http(s):// or s3:// URL")
	fmt.Fprintln(cli.out, "  .export <table> <dst>  Write a table as CSV to a file or s3:// URL")
	fmt.Fprintln(cli.out, "  .history               Show command history")
	fmt.Fprintln(cli.out, "  .log                   Show committed transactions")
	fmt.Fprintln(cli.out, "  .clear                 Clear the screen")
	fmt.Fprintln(cli.out, "  .version               Show version info")
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s%sSQL Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out, "  CREATE TABLE [IF NOT EXISTS] <table> (<column> <type> [PRIMARY KEY], ...);")
	fmt.Fprintln(cli.out, "  DROP TABLE [IF EXISTS] <table>;")
	fmt.Fprintln(cli.out, "  INSERT INTO <table> [(<cols>)] VALUES (<vals>), ...;")
	fmt.Fprintln(cli.out, "  SELECT <cols>|*|COUNT(*) FROM <table> [WHERE ...] [ORDER BY ...] [LIMIT n [OFFSET m]];")
	fmt.Fprintln(cli.out, "  UPDATE <table> SET <col>=<val>, ... [WHERE ...];")
	fmt.Fprintln(cli.out, "  DELETE FROM <table> [WHERE ...];")
	fmt.Fprintln(cli.out, "  BEGIN; COMMIT; ROLLBACK;")
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s%sTypes:%s INT, TEXT, CHAR(n), VARCHAR(n), STRING\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out)
}

func (cli *CLI) showTables() {
	names, err := cli.conn.TableNames()
	if err != nil {
		cli.printError(err)
		return
	}
	if len(names) == 0 {
		fmt.Fprintln(cli.out, "No tables")
		return
	}

	table := db.NewTable(cli.out)
	table.Header([]string{"table"})
	for _, name := range names {
		table.Row([]string{name})
	}
	table.Render()
}

func (cli *CLI) printLog() {
	txns, err := cli.conn.History(time.Time{})
	if err != nil {
		cli.printError(err)
		return
	}
	if len(txns) == 0 {
		fmt.Fprintln(cli.out, "No committed transactions")
		return
	}

	for _, txn := range txns[:min(len(txns), 20)] {
		fmt.Fprintf(cli.out, "  %s  %s  %s\n", txn.Id[:min(len(txn.Id), 12)], txn.When.Format(time.DateTime), txn.Author)
	}
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	if len(cli.history) > maxHistory {
		cli.history = cli.history[len(cli.history)-maxHistory:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Fprintln(cli.out, "No command history")
		return
	}

	start := max(len(cli.history)-20, 0)
	for i := start; i < len(cli.history); i++ {
		fmt.Fprintf(cli.out, "  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".crossdb_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		cli.logger.Warn("Failed to save history", zap.String("path", cli.historyFile), zap.Error(err))
		return
	}
	defer file.Close()

	start := max(len(cli.history)-maxHistory, 0)
	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}

// loadFile executes the statements of a SQL file and returns how many
// failed.
func (cli *CLI) loadFile(filename string) int {
	data, err := os.ReadFile(filename)
	if err != nil {
		cli.printError(fmt.Errorf("failed to read file: %w", err))
		return 1
	}

	successCount := 0
	errorCount := 0

	for i, stmt := range splitStatements(string(data)) {
		result, err := cli.conn.Execute(stmt)
		if err != nil {
			fmt.Fprintf(cli.out, "%s[%d] ✗ %s%s\n", ErrorColor, i+1, truncate(stmt, 50), ResetColor)
			fmt.Fprintf(cli.out, "      Error: %v\n", err)
			errorCount++
			continue
		}

		successCount++
		detail := ""
		if kind, err := result.StatementType(); err == nil {
			if kind.Class() == sql.Query {
				n, _ := result.RowCount()
				detail = fmt.Sprintf(" (%d rows)", n)
			} else if n, _ := result.RowsAffected(); n > 0 {
				detail = fmt.Sprintf(" (%d affected)", n)
			}
		}
		result.Release()

		fmt.Fprintf(cli.out, "%s[%d] ✓ %s%s%s\n", SuccessColor, i+1, truncate(stmt, 50), detail, ResetColor)
	}

	fmt.Fprintf(cli.out, "\n%s✓ Load complete: %d succeeded, %d failed%s\n",
		SuccessColor, successCount, errorCount, ResetColor)

	return errorCount
}

// splitStatements splits SQL content into statements, dropping comments
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder
	inString := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		// '' inside a literal toggles twice and stays in the string
		if ch == '\'' {
			inString = !inString
		}

		if !inString && ch == '-' && i+1 < len(content) && content[i+1] == '-' {
			for i < len(content) && content[i] != '\n' {
				i++
			}
			continue
		}

		if !inString && ch == ';' {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// truncate shortens a string to max runes with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
