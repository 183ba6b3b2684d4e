// Package main provides a TCP SQL server for crossdb.
//
// Clients send one statement per line and receive one JSON response per
// line. AUTH JWT <token> authenticates the connection when the server
// requires it; quit or exit closes the connection.
package main

import (
	"encoding/json"
)

// Response represents the server's response to a line.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"` // error kind, e.g. "UnknownTable"
	Type    string          `json:"type,omitempty"` // "query", "exec" or "auth"
	Result  json.RawMessage `json:"result,omitempty"`
}

// QueryResponse contains tabular query results. NULL cells are JSON null.
type QueryResponse struct {
	Columns []string    `json:"columns"`
	Types   []string    `json:"types"`
	Data    [][]*string `json:"data"`
	Rows    int         `json:"rows"`
	TimeMs  float64     `json:"time_ms"`
}

// ExecResponse describes a statement that returns no rows.
type ExecResponse struct {
	Statement    string  `json:"statement"`
	RowsAffected int     `json:"rows_affected"`
	Transaction  string  `json:"transaction,omitempty"` // commit id, when one was persisted
	TimeMs       float64 `json:"time_ms"`
}

// AuthResponse contains authentication result.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"` // seconds until token expiry
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func encodeResult(typ string, v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return Response{Success: false, Type: typ, Error: err.Error()}
	}
	return Response{Success: true, Type: typ, Result: data}
}
