// Table export and import as CSV, to and from local files, HTTP URLs and
// S3 objects.
package db

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/op"
	"github.com/nickyhof/crossdb/ps"
)

// NullMarker is how SQL NULL is written in CSV cells. Text cells that
// start with a backslash get one more, so a literal \N reads back as text.
const NullMarker = `\N`

func escapeCell(s string) string {
	if strings.HasPrefix(s, `\`) {
		return `\` + s
	}
	return s
}

func unescapeCell(s string) string {
	return strings.TrimPrefix(s, `\`)
}

// S3Config holds optional S3 settings. Empty fields fall back to the AWS
// default credential chain and region.
type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string // custom S3-compatible endpoint, uses path-style addressing
}

type urlScheme string

const (
	schemeFile  urlScheme = "file"
	schemeS3    urlScheme = "s3"
	schemeHTTP  urlScheme = "http"
	schemeHTTPS urlScheme = "https"
	schemeLocal urlScheme = "local" // no scheme, local path
)

func detectScheme(path string) urlScheme {
	lowerPath := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lowerPath, "s3://"):
		return schemeS3
	case strings.HasPrefix(lowerPath, "https://"):
		return schemeHTTPS
	case strings.HasPrefix(lowerPath, "http://"):
		return schemeHTTP
	case strings.HasPrefix(lowerPath, "file://"):
		return schemeFile
	default:
		return schemeLocal
	}
}

// ExportTable writes a table as CSV with a header row. It reads the
// table as the next statement would see it.
func (engine *Engine) ExportTable(ctx context.Context, table, path string, cfg *S3Config) (int, error) {
	if err := engine.checkOpen(); err != nil {
		return 0, err
	}

	tableOp, err := op.GetTable(table, engine.tx.View())
	if err != nil {
		return 0, err
	}
	columns, rows, err := tableOp.Select(op.Query{Limit: -1})
	if err != nil {
		return 0, err
	}

	w, err := openRemoteWriter(ctx, path, cfg)
	if err != nil {
		return 0, core.Wrap(core.StorageError, err, "failed to open "+path)
	}

	if err := writeCSV(w, columns, rows); err != nil {
		w.Close()
		return 0, core.Wrap(core.StorageError, err, "failed to write "+path)
	}
	if err := w.Close(); err != nil {
		return 0, core.Wrap(core.StorageError, err, "failed to write "+path)
	}

	engine.logger.Info("Exported table",
		zap.String("table", tableOp.Table.Name),
		zap.String("path", path),
		zap.Int("rows", len(rows)))
	return len(rows), nil
}

func writeCSV(w io.Writer, columns []core.Column, rows [][]core.Value) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, v := range row {
			s, ok := v.Text()
			switch {
			case !ok:
				s = NullMarker
			case v.Kind() == core.TextKind:
				s = escapeCell(s)
			}
			record[i] = s
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ImportTable inserts the rows of a CSV file into an existing table. The
// header row names the target columns. The import is one statement: it
// either inserts every row or none.
func (engine *Engine) ImportTable(ctx context.Context, table, path string, cfg *S3Config) (int, error) {
	if err := engine.checkOpen(); err != nil {
		return 0, err
	}

	r, err := openRemoteReader(ctx, path, cfg)
	if err != nil {
		return 0, core.Wrap(core.StorageError, err, "failed to open "+path)
	}
	defer r.Close()

	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return 0, core.Wrap(core.StorageError, err, "failed to read "+path)
	}
	if len(records) == 0 {
		return 0, core.Errorf(core.SyntaxError, "%s has no header row", path)
	}

	var inserted int
	_, err = engine.tx.Run("Import "+table+" from "+path, func(overlay *ps.Overlay) error {
		tableOp, err := op.OpenTable(table, overlay)
		if err != nil {
			return err
		}

		header := records[0]
		types := make([]core.ColumnType, len(header))
		for i, name := range header {
			pos, err := tableOp.ColumnIndex(name)
			if err != nil {
				return err
			}
			types[i] = tableOp.Table.Columns[pos].Type
		}

		rows := make([][]core.Value, 0, len(records)-1)
		for line, record := range records[1:] {
			values, err := parseRecord(record, types)
			if err != nil {
				return fmt.Errorf("line %d: %w", line+2, err)
			}
			rows = append(rows, values)
		}

		inserted, err = tableOp.Insert(header, rows)
		return err
	})
	if err != nil {
		return 0, err
	}

	engine.logger.Info("Imported table",
		zap.String("table", table),
		zap.String("path", path),
		zap.Int("rows", inserted))
	return inserted, nil
}

func parseRecord(record []string, types []core.ColumnType) ([]core.Value, error) {
	values := make([]core.Value, len(record))
	for i, cell := range record {
		if cell == NullMarker || i >= len(types) {
			continue
		}
		if types[i] == core.TextType {
			values[i] = core.Text(unescapeCell(cell))
			continue
		}

		n, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
		if err != nil {
			return nil, core.Errorf(core.TypeMismatch, "%q is not an integer", cell)
		}
		values[i] = core.Int(n)
	}
	return values, nil
}

func openRemoteReader(ctx context.Context, path string, cfg *S3Config) (io.ReadCloser, error) {
	switch scheme := detectScheme(path); scheme {
	case schemeLocal, schemeFile:
		return osOpen(strings.TrimPrefix(path, "file://"))
	case schemeHTTP, schemeHTTPS:
		return openHTTPReader(ctx, path)
	case schemeS3:
		return openS3Reader(ctx, path, cfg)
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", path)
	}
}

func openRemoteWriter(ctx context.Context, path string, cfg *S3Config) (io.WriteCloser, error) {
	switch scheme := detectScheme(path); scheme {
	case schemeLocal, schemeFile:
		return osCreate(strings.TrimPrefix(path, "file://"))
	case schemeHTTP, schemeHTTPS:
		return nil, errors.New("HTTP/HTTPS does not support writing")
	case schemeS3:
		return openS3Writer(ctx, path, cfg)
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", path)
	}
}

func openHTTPReader(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// parseS3URL parses s3://bucket/key into bucket and key parts
func parseS3URL(url string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(url, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", url)
	}
	return bucket, key, nil
}

func getS3Client(ctx context.Context, cfg *S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error

	if cfg != nil && cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg != nil && cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg != nil && cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

func openS3Reader(ctx context.Context, url string, cfg *S3Config) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}

	client, err := getS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}

	return resp.Body, nil
}

// s3Writer buffers the whole object and uploads it on Close.
type s3Writer struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	buffer bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("writer is closed")
	}
	return w.buffer.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.buffer.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

func openS3Writer(ctx context.Context, url string, cfg *S3Config) (io.WriteCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}

	client, err := getS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &s3Writer{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
	}, nil
}

// osOpen wraps os.Open - used to allow the function to be swapped in tests
var osOpen = func(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// osCreate wraps os.Create - used to allow the function to be swapped in tests
var osCreate = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}
