package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"research-chat/internal/config"
	"research-chat/internal/integrations/agentapi"
	"research-chat/internal/integrations/paramstore"
	"research-chat/internal/observability"
	"research-chat/internal/session"
	"research-chat/internal/timeline"
	"research-chat/internal/usecase"
)

// app is one wired client session.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	client  *agentapi.Client
	session session.Session
	orch    *usecase.Orchestrator
}

// baseURLResolver looks up the service location in a parameter store.
type baseURLResolver interface {
	BaseURL(ctx context.Context, name string) (string, error)
}

type resolverFactory func(ctx context.Context) (baseURLResolver, error)

func ssmResolver(ctx context.Context) (baseURLResolver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	pc, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func resolveBaseURL(ctx context.Context, cfg config.Config, newResolver resolverFactory) (string, error) {
	if cfg.BaseURLParam == "" {
		return cfg.BaseURL, nil
	}
	r, err := newResolver(ctx)
	if err != nil {
		return "", err
	}
	return r.BaseURL(ctx, cfg.BaseURLParam)
}

func newApp(ctx context.Context, cfg config.Config, logOut io.Writer, newResolver resolverFactory) (*app, error) {
	logger := observability.NewLogger(logOut, cfg.LogLevel)

	baseURL, err := resolveBaseURL(ctx, cfg, newResolver)
	if err != nil {
		return nil, fmt.Errorf("resolve base URL: %w", err)
	}
	client, err := agentapi.NewClient(baseURL, agentapi.WithTimeout(cfg.HTTPTimeout))
	if err != nil {
		return nil, err
	}
	sess, err := session.New()
	if err != nil {
		return nil, err
	}
	orch, err := usecase.NewOrchestrator(client, timeline.NewStore(), sess.ThreadID(), usecase.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	logger.Debug("session started", "base_url", client.BaseURL(), "thread_id", sess.ThreadID())
	return &app{cfg: cfg, log: logger, client: client, session: sess, orch: orch}, nil
}

func (a *app) openDocument(path string) (usecase.Document, error) {
	return usecase.OpenDocument(path, a.cfg.MaxUploadBytes())
}

// setup loads the configuration and wires a session. Logs go to the
// configured file, or to fallback when none is set. The returned func closes
// the log file.
func setup(ctx context.Context, fallback io.Writer) (*app, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logOut, closeLog, err := openLog(cfg.LogFile, fallback)
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(ctx, cfg, logOut, ssmResolver)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	return a, closeLog, nil
}

func openLog(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
