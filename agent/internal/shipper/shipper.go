package shipper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/focusmonitor/focusmonitor/agent/internal/compute"
	"github.com/focusmonitor/focusmonitor/agent/internal/config"
	"github.com/focusmonitor/focusmonitor/pkg/report"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers reports and sends them to focusmonitor-server via gRPC.
// It is a monitor sink: OnSecondSummary and OnScoreResult never block, and
// when the buffer is full the oldest report is evicted.
// Run must be called in a goroutine to drain the buffer.
type Shipper struct {
	cfg       config.AgentConfig
	sessionID string
	md        metadata.MD // per-call auth metadata, nil without an API key
	buf       chan *report.Report
	dialFn    dialFunc // injectable for tests
	now       func() time.Time
}

// dialFunc opens a gRPC connection; tests swap it for a local listener.
type dialFunc func(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error)

// New creates a Shipper that labels every report with sessionID.
func New(cfg config.AgentConfig, sessionID string) *Shipper {
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultBufferSize
	}
	s := &Shipper{
		cfg:       cfg,
		sessionID: sessionID,
		buf:       make(chan *report.Report, size),
		dialFn:    defaultDial,
		now:       time.Now,
	}
	if cfg.ServerAuth.Mode == "apikey" {
		s.md = metadata.Pairs(cfg.ServerAuth.EffectiveHeader(), cfg.ServerAuth.Key())
	}
	return s
}

// OnSecondSummary enqueues a second report. It never fails.
func (s *Shipper) OnSecondSummary(sum compute.SecondSummary) error {
	s.Ship(secondReport(s.sessionID, sum, s.now()))
	return nil
}

// OnScoreResult enqueues a score report. It never fails.
func (s *Shipper) OnScoreResult(res compute.ScoreResult) error {
	s.Ship(scoreReport(s.sessionID, res, s.now()))
	return nil
}

// Ship enqueues r, evicting the oldest buffered report when full.
func (s *Shipper) Ship(r *report.Report) {
	select {
	case s.buf <- r:
	default:
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest report",
				"session", old.SessionID, "kind", old.Kind, "buffer_cap", cap(s.buf))
		default:
		}
		select {
		case s.buf <- r:
		default:
		}
	}
}

// Pending returns the number of buffered reports.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run drains the buffer, reconnecting with exponential backoff when the
// connection is lost. Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	attempt := 0
	for ctx.Err() == nil {
		conn, err := s.dialFn(ctx, s.cfg.ServerEndpoint, s.cfg)
		if err == nil {
			slog.Info("shipper: connected", "endpoint", s.cfg.ServerEndpoint, "pending", s.Pending())
			attempt = 0
			err = s.drain(ctx, report.NewReportServiceClient(conn))
			conn.Close()
			if ctx.Err() != nil {
				return
			}
		}

		wait := retryDelay(attempt)
		attempt++
		slog.Warn("shipper: server unavailable, will retry",
			"endpoint", s.cfg.ServerEndpoint,
			"err", err,
			"attempt", attempt,
			"retry_in", wait,
		)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// drain sends buffered reports until a transient send error or ctx is done.
func (s *Shipper) drain(ctx context.Context, client report.ReportServiceClient) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case r := <-s.buf:
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			if s.md != nil {
				sendCtx = metadata.NewOutgoingContext(sendCtx, s.md)
			}

			resp, err := client.SendReport(sendCtx, r)
			cancel()

			if err != nil {
				if isPermanentError(err) {
					slog.Error("shipper: permanent send error, discarding report",
						"session", r.SessionID, "kind", r.Kind, "err", err)
					continue
				}
				// Requeue for the next connection if there is room.
				select {
				case s.buf <- r:
				default:
				}
				return fmt.Errorf("send: %w", err)
			}

			if !resp.Ok {
				slog.Warn("shipper: server rejected report",
					"session", r.SessionID, "kind", r.Kind, "message", resp.Message)
			} else {
				slog.Debug("shipper: report delivered", "session", r.SessionID, "kind", r.Kind)
			}
		}
	}
}

// isPermanentError reports whether retrying err cannot succeed.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

func defaultDial(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	return grpc.DialContext(ctx, endpoint, opts...) //nolint:staticcheck // NewClient needs grpc 1.63
}

// dialOptions picks transport credentials for the configured auth mode.
// The API key travels as per-call metadata, see drain.
func dialOptions(cfg config.AgentConfig) ([]grpc.DialOption, error) {
	if cfg.ServerAuth.Mode == "mtls" {
		creds, err := buildMTLSCreds(cfg.ServerAuth)
		if err != nil {
			return nil, fmt.Errorf("shipper: build mtls creds: %w", err)
		}
		return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil
	}
	return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
}

func buildMTLSCreds(auth config.AuthConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return credentials.NewTLS(tlsCfg), nil
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryDelay returns the wait before reconnect attempt n (0-based): the
// initial delay doubled n times, capped at backoffMax, with ±25% jitter.
func retryDelay(n int) time.Duration {
	d := backoffInitial
	for i := 0; i < n && d < backoffMax; i++ {
		d = time.Duration(float64(d) * backoffMultiplier)
	}
	if d > backoffMax {
		d = backoffMax
	}
	jitter := time.Duration(float64(d) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	return d + jitter
}
