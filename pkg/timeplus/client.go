package timeplus

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/timeplus-io/proton-go-driver/v2"
	"github.com/timeplus-io/proton-go-driver/v2/lib/driver"

	"github.com/timeplus-io/lead-alert-gateway/pkg/config"
)

// Column represents a column definition
type Column struct {
	Name     string
	Type     string
	Nullable bool // Whether the column can be NULL
}

// Client is a wrapper around the Timeplus Proton Go driver connection
type Client struct {
	conn      driver.Conn
	workspace string
	address   string
	opts      *proton.Options
}

// Ensure Client implements TimeplusClient
var _ TimeplusClient = (*Client)(nil)

// connectionAddress strips any scheme and fills in the native port
func connectionAddress(address string) string {
	address = strings.TrimPrefix(address, "http://")
	address = strings.TrimPrefix(address, "https://")

	host := address
	port := "8464" // Default native port
	if strings.Contains(address, ":") {
		parts := strings.SplitN(address, ":", 2)
		host = parts[0]
		port = parts[1]
	}
	return host + ":" + port
}

// NewClient creates a new Timeplus client
func NewClient(cfg *config.TimeplusConfig) (*Client, error) {
	connectionAddr := connectionAddress(cfg.Address)
	logrus.Infof("Connecting to Timeplus native protocol at %s (workspace: %s)", connectionAddr, cfg.Workspace)

	opts := &proton.Options{
		Addr: []string{connectionAddr},
		Auth: proton.Auth{
			Database: cfg.Workspace,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    20,
		MaxIdleConns:    10,
		ConnMaxLifetime: 2 * time.Hour,
		Compression: &proton.Compression{
			Method: proton.CompressionLZ4,
		},
	}

	conn, err := proton.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to Timeplus: %w", err)
	}

	var pingErr error
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pingErr = conn.Ping(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		logrus.Warnf("Failed to ping Timeplus (attempt %d/5): %v", i+1, pingErr)
		time.Sleep(2 * time.Second)
	}
	if pingErr != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping Timeplus after multiple attempts: %w", pingErr)
	}

	logrus.Info("Successfully connected to Timeplus")

	return &Client{
		conn:      conn,
		workspace: cfg.Workspace,
		address:   connectionAddr,
		opts:      opts,
	}, nil
}

// Close closes the underlying connection
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// CreateStream creates a new stream with the given name and schema
func (c *Client) CreateStream(ctx context.Context, name string, schema []Column) error {
	query := fmt.Sprintf("CREATE STREAM IF NOT EXISTS `%s` %s", name, columnsDDL(schema))
	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create stream '%s': %w", name, err)
	}
	return nil
}

// columnsDDL renders a column list for CREATE STREAM
func columnsDDL(schema []Column) string {
	if len(schema) == 0 {
		return ""
	}
	fields := make([]string, len(schema))
	for i, col := range schema {
		if col.Nullable {
			fields[i] = fmt.Sprintf("`%s` nullable(%s)", col.Name, col.Type)
		} else {
			fields[i] = fmt.Sprintf("`%s` %s", col.Name, col.Type)
		}
	}
	return "(" + strings.Join(fields, ", ") + ")"
}

// DeleteStream deletes a stream
func (c *Client) DeleteStream(ctx context.Context, name string) error {
	exists, err := c.StreamExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	query := fmt.Sprintf("DROP STREAM `%s`", name)
	if err = c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to delete stream '%s': %w", name, err)
	}
	return nil
}

// StreamExists checks if a stream exists
func (c *Client) StreamExists(ctx context.Context, name string) (bool, error) {
	query := fmt.Sprintf("SHOW STREAMS LIKE '%s'", escapeString(name))
	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to execute SHOW STREAMS: %w", err)
	}
	defer rows.Close()

	exists := rows.Next()
	if rows.Err() != nil {
		return false, fmt.Errorf("error checking rows from SHOW STREAMS: %w", rows.Err())
	}
	return exists, nil
}

// ExecuteQuery executes a historical query and returns the result rows
func (c *Client) ExecuteQuery(ctx context.Context, query string) ([]map[string]interface{}, error) {
	maxRetries := 3
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			logrus.Warnf("Retrying query execution (attempt %d/%d) after error: %v", attempt+1, maxRetries, lastErr)
			c.reconnectOnEOF(lastErr)
			if err := sleepCtx(ctx, backoff(attempt, 10*time.Second)); err != nil {
				return nil, err
			}
		}

		result, err := c.query(ctx, query)
		if err == nil {
			logrus.Debugf("Executed query with %d rows", len(result))
			return result, nil
		}
		lastErr = err
		logrus.Warnf("Query failed (attempt %d/%d): %v", attempt+1, maxRetries, err)
	}

	return nil, fmt.Errorf("failed to execute query after %d attempts: %w", maxRetries, lastErr)
}

// query runs one attempt of ExecuteQuery
func (c *Client) query(ctx context.Context, query string) ([]map[string]interface{}, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	rows, err := c.conn.Query(queryCtx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnNames := rows.Columns()
	columnTypes := rows.ColumnTypes()

	result := make([]map[string]interface{}, 0)
	for rows.Next() {
		scanArgs := make([]interface{}, len(columnNames))
		for i, ct := range columnTypes {
			scanArgs[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]interface{}, len(columnNames))
		for i, name := range columnNames {
			rowMap[name] = reflect.ValueOf(scanArgs[i]).Elem().Interface()
		}
		result = append(result, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// InsertIntoStream inserts one row into a stream
func (c *Client) InsertIntoStream(ctx context.Context, streamName string, columns []string, values []interface{}) error {
	if len(columns) != len(values) {
		return fmt.Errorf("insert into %s: %d columns but %d values", streamName, len(columns), len(values))
	}

	query := fmt.Sprintf("INSERT INTO `%s` (%s) VALUES (%s)",
		streamName, strings.Join(columns, ", "), strings.Join(formatValues(values), ", "))

	maxRetries := 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			logrus.Warnf("Retrying insertion to stream '%s' (attempt %d/%d) after error: %v",
				streamName, attempt+1, maxRetries, lastErr)
			c.reconnectOnEOF(lastErr)
			if err := sleepCtx(ctx, backoff(attempt, 5*time.Second)); err != nil {
				return err
			}
		}

		err := c.conn.Exec(ctx, query)
		if err == nil {
			return nil
		}
		lastErr = err
		logrus.Warnf("Insert failed (attempt %d/%d): %v", attempt+1, maxRetries, err)
	}

	return fmt.Errorf("failed to insert into stream after %d attempts: %w", maxRetries, lastErr)
}

// reconnectOnEOF reopens the connection when the server dropped it
func (c *Client) reconnectOnEOF(lastErr error) {
	if lastErr == nil || !strings.Contains(lastErr.Error(), "EOF") {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.reconnect(ctx); err != nil {
		logrus.Errorf("Failed to reconnect: %v", err)
	}
}

// reconnect tries to reestablish the connection with retries
func (c *Client) reconnect(ctx context.Context) error {
	logrus.Info("Attempting to reconnect to Timeplus...")

	if c.conn != nil {
		c.conn.Close()
	}

	maxRetries := 3
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = sleepCtx(ctx, backoff(i+1, 10*time.Second)); err != nil {
			return err
		}

		var conn driver.Conn
		conn, err = proton.Open(c.opts)
		if err != nil {
			logrus.Warnf("Failed to reconnect: %v", err)
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = conn.Ping(pingCtx)
		cancel()
		if err == nil {
			c.conn = conn
			logrus.Info("Successfully reconnected to Timeplus")
			return nil
		}
		logrus.Warnf("Connection established but ping failed: %v", err)
		conn.Close()
	}

	return fmt.Errorf("failed to reconnect after %d attempts: %w", maxRetries, err)
}

// backoff returns an exponential delay with jitter, capped at max
func backoff(attempt int, max time.Duration) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
	if delay > max {
		delay = max
	}
	return time.Duration(float64(delay) * (0.75 + 0.5*float64(time.Now().Nanosecond())/1e9))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// formatValues renders Go values as SQL literals
func formatValues(values []interface{}) []string {
	formatted := make([]string, len(values))
	for i, val := range values {
		switch v := val.(type) {
		case nil:
			formatted[i] = "null"
		case string:
			formatted[i] = fmt.Sprintf("'%s'", escapeString(v))
		case time.Time:
			formatted[i] = fmt.Sprintf("'%s'", v.UTC().Format("2006-01-02 15:04:05.000"))
		case bool:
			formatted[i] = fmt.Sprintf("%t", v)
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			formatted[i] = fmt.Sprintf("%d", v)
		case float32, float64:
			formatted[i] = fmt.Sprintf("%f", v)
		default:
			formatted[i] = fmt.Sprintf("'%s'", escapeString(fmt.Sprintf("%v", v)))
		}
	}
	return formatted
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", "''")
}
