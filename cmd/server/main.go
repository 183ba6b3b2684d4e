package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/nickyhof/crossdb"
	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/internal/logging"
)

var flags struct {
	Addr     string `default:":3306"     help:"Listen TCP address."`
	Database string `default:":memory:"  help:"Database directory, or :memory:."`
	Name     string `default:"crossdb"   help:"Author name for commits of unauthenticated clients."`
	Email    string `default:"server@crossdb.local" help:"Author email for commits of unauthenticated clients."`
	Version  bool   `default:"false"     help:"Print version to stdout and exit." env:"-"`

	TLS struct {
		CertFile string `help:"TLS cert file path."`
		KeyFile  string `help:"TLS key file path."`
	} `embed:"" prefix:"tls-"`

	JWT struct {
		Secret     string `help:"HMAC secret; when set, clients must AUTH JWT <token>."`
		Issuer     string `help:"Expected iss claim."`
		Audience   string `help:"Expected aud claim."`
		NameClaim  string `default:"name"  help:"Claim holding the author name."`
		EmailClaim string `default:"email" help:"Claim holding the author email."`
	} `embed:"" prefix:"jwt-"`

	Log struct {
		Level  string `default:"info"    help:"${help_log_level}"`
		Format string `default:"console" help:"${help_log_format}" enum:"${enum_log_format}"`
	} `embed:"" prefix:"log-"`
}

var kongOptions = []kong.Option{
	kong.Vars{
		"enum_log_format": strings.Join(logging.Formats, ","),
		"help_log_format": fmt.Sprintf("Log format: '%s'.", strings.Join(logging.Formats, "', '")),
		"help_log_level":  fmt.Sprintf("Log level: '%s'.", strings.Join(logging.Levels, "', '")),
	},
	kong.DefaultEnvars("CROSSDB"),
	kong.Description("Line-oriented TCP SQL server for crossdb."),
}

func main() {
	kong.Parse(&flags, kongOptions...)

	if flags.Version {
		fmt.Printf("crossdb SQL server v%s\n", crossdb.Version())
		return
	}

	logger, err := logging.New(flags.Log.Level, flags.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	identity := core.Identity{Name: flags.Name, Email: flags.Email}

	conn, err := crossdb.Open(flags.Database, crossdb.WithLogger(logger), crossdb.WithIdentity(identity))
	if err != nil {
		logger.Fatal("Failed to open database", zap.String("database", flags.Database), zap.Error(err))
	}
	defer conn.Close()

	var server *Server
	if flags.JWT.Secret != "" {
		server = NewServerWithAuth(conn, &AuthConfig{
			Enabled:    true,
			JWTSecret:  flags.JWT.Secret,
			Issuer:     flags.JWT.Issuer,
			Audience:   flags.JWT.Audience,
			NameClaim:  flags.JWT.NameClaim,
			EmailClaim: flags.JWT.EmailClaim,
		}, logger)
	} else {
		server = NewServer(conn, identity, logger)
	}

	if flags.TLS.CertFile != "" || flags.TLS.KeyFile != "" {
		err = server.StartTLS(flags.Addr, flags.TLS.CertFile, flags.TLS.KeyFile)
	} else {
		err = server.Start(flags.Addr)
	}
	if err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("Starting crossdb SQL server "+crossdb.Version(),
		zap.String("database", flags.Database),
		zap.Bool("auth", flags.JWT.Secret != ""),
		zap.Bool("tls", flags.TLS.CertFile != ""),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	if err := server.Stop(); err != nil {
		logger.Warn("Failed to roll back open transaction", zap.Error(err))
	}
	logger.Info("Server stopped")
}
