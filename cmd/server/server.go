package main

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nickyhof/crossdb"
	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/db"
	"github.com/nickyhof/crossdb/sql"
)

// Server is a TCP SQL server sharing one connection between its clients.
type Server struct {
	listener   net.Listener
	conn       *crossdb.Connection
	identity   core.Identity
	authConfig *AuthConfig
	logger     *zap.Logger

	// mu serializes statements on conn; txOwner is the session holding
	// the open transaction, if any
	mu      sync.Mutex
	txOwner *session

	done chan struct{}
	wg   sync.WaitGroup
}

// session is the state of one client connection.
type session struct {
	remote string
	auth   ConnectionState
}

// NewServer creates a server executing statements on conn. Commits are
// authored by identity.
func NewServer(conn *crossdb.Connection, identity core.Identity, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		conn:     conn,
		identity: identity,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// NewServerWithAuth creates a server requiring AUTH before any statement.
// Commits are authored by the identity in the client's token.
func NewServerWithAuth(conn *crossdb.Connection, authConfig *AuthConfig, logger *zap.Logger) *Server {
	s := NewServer(conn, core.Identity{}, logger)
	s.authConfig = authConfig
	return s
}

func (s *Server) authRequired() bool {
	return s.authConfig != nil && s.authConfig.Enabled
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	s.logger.Info("SQL server listening", zap.String("addr", listener.Addr().String()))

	go s.acceptLoop()
	return nil
}

// StartTLS begins listening for TLS connections on the specified address.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	config := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	listener, err := tls.Listen("tcp", addr, config)
	if err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.listener = listener

	s.logger.Info("SQL server listening with TLS", zap.String("addr", listener.Addr().String()))

	go s.acceptLoop()
	return nil
}

// Stop closes the listener, waits for the clients to finish and rolls
// back a transaction left open.
func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txOwner != nil {
		s.txOwner = nil
		return s.conn.Rollback()
	}
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Warn("Accept error", zap.Error(err))
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sess := &session{remote: conn.RemoteAddr().String()}
	logger := s.logger.With(zap.String("client", sess.remote))
	logger.Info("Client connected")
	defer s.disconnect(sess, logger)

	// unblock the read below on shutdown
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-s.done:
			conn.SetReadDeadline(time.Now())
		case <-closed:
		}
	}()

	reader := bufio.NewReader(conn)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				logger.Debug("Read error", zap.Error(err))
			}
			return
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}

		if cmd := strings.ToLower(query); cmd == "quit" || cmd == "exit" {
			return
		}

		var response Response
		if strings.HasPrefix(strings.ToUpper(query), "AUTH ") {
			response = s.handleAuth(query, &sess.auth)
		} else {
			response = s.executeQuery(sess, query)
		}

		data, err := EncodeResponse(response)
		if err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
			continue
		}

		if _, err := conn.Write(data); err != nil {
			logger.Debug("Write error", zap.Error(err))
			return
		}
	}
}

// disconnect rolls back the transaction of a client that goes away.
func (s *Server) disconnect(sess *session, logger *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txOwner == sess {
		s.txOwner = nil
		if err := s.conn.Rollback(); err != nil {
			logger.Warn("Failed to roll back abandoned transaction", zap.Error(err))
		} else {
			logger.Info("Rolled back abandoned transaction")
		}
	}
	logger.Info("Client disconnected")
}

func errorResponse(err error) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
		Code:    core.KindOf(err).String(),
	}
}

func (s *Server) executeQuery(sess *session, query string) Response {
	identity := s.identity
	if s.authRequired() {
		if !sess.auth.IsAuthenticated() {
			return Response{Success: false, Error: "authentication required: send AUTH JWT <token>"}
		}
		if !sess.auth.tokenExpiry.IsZero() && time.Now().After(sess.auth.tokenExpiry) {
			sess.auth = ConnectionState{}
			return Response{Success: false, Error: "authentication required: token expired"}
		}
		identity = *sess.auth.Identity()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txOwner != nil && s.txOwner != sess {
		return errorResponse(core.Errorf(core.TransactionAlreadyActive, "another client holds the open transaction"))
	}

	s.conn.SetIdentity(identity)

	start := time.Now()
	result, err := s.conn.Execute(query)
	s.trackTransaction(sess)
	if err != nil {
		return errorResponse(err)
	}
	defer result.Release()

	response, err := buildResponse(result, time.Since(start))
	if err != nil {
		return errorResponse(err)
	}
	return response
}

func (s *Server) trackTransaction(sess *session) {
	if s.conn.InTransaction() {
		s.txOwner = sess
	} else {
		s.txOwner = nil
	}
}

func buildResponse(result *db.ResultSet, elapsed time.Duration) (Response, error) {
	statement, err := result.StatementType()
	if err != nil {
		return Response{}, err
	}
	timeMs := float64(elapsed.Microseconds()) / 1000

	if statement.Class() != sql.Query {
		affected, err := result.RowsAffected()
		if err != nil {
			return Response{}, err
		}
		txn, err := result.Transaction()
		if err != nil {
			return Response{}, err
		}

		return encodeResult("exec", ExecResponse{
			Statement:    statement.String(),
			RowsAffected: affected,
			Transaction:  txn.Id,
			TimeMs:       timeMs,
		}), nil
	}

	columns, err := result.Columns()
	if err != nil {
		return Response{}, err
	}
	types, err := result.ColumnTypes()
	if err != nil {
		return Response{}, err
	}

	qr := QueryResponse{
		Columns: columns,
		Types:   make([]string, len(types)),
		Data:    [][]*string{},
		TimeMs:  timeMs,
	}
	for i, typ := range types {
		qr.Types[i] = typ.String()
	}

	for {
		row, err := result.Next()
		if err != nil {
			return Response{}, err
		}
		if row == nil {
			break
		}

		cells := make([]*string, row.Len())
		for i := range cells {
			text, ok, err := row.Text(i)
			if err != nil {
				return Response{}, err
			}
			if ok {
				cells[i] = &text
			}
		}
		qr.Data = append(qr.Data, cells)
	}
	qr.Rows = len(qr.Data)

	return encodeResult("query", qr), nil
}
