package athena

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"

	"github.com/lakerun/lakerun/internal/engine"
	"github.com/lakerun/lakerun/internal/evidence"
	"github.com/lakerun/lakerun/internal/storage"
)

const mode = "cloud"

// queryAPI is the slice of the Athena client the adapter uses; the real
// *athena.Client satisfies it, tests provide a stub.
type queryAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

type Config struct {
	Database       string
	WorkGroup      string
	OutputLocation string
}

// Adapter executes statements against AWS Athena. Submit starts an
// asynchronous execution and returns immediately; Poll maps engine states;
// Fetch materializes the result CSV from the engine's S3 output location
// into the evidence directory.
type Adapter struct {
	client   queryAPI
	cfg      Config
	store    storage.ObjectStore
	bucket   string
	evidence *evidence.Store
	logger   *slog.Logger
}

func New(client queryAPI, cfg Config, store storage.ObjectStore, resultBucket string, ev *evidence.Store, logger *slog.Logger) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("athena client is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("database is required")
	}
	if strings.TrimSpace(cfg.OutputLocation) == "" {
		return nil, fmt.Errorf("output location is required")
	}
	if cfg.WorkGroup == "" {
		cfg.WorkGroup = "primary"
	}
	return &Adapter{
		client:   client,
		cfg:      cfg,
		store:    store,
		bucket:   strings.TrimSpace(resultBucket),
		evidence: ev,
		logger:   logger,
	}, nil
}

func (a *Adapter) Submit(ctx context.Context, stmt engine.Statement) (engine.Handle, error) {
	out, err := a.client.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString:           aws.String(stmt.SQL),
		QueryExecutionContext: &types.QueryExecutionContext{Database: aws.String(a.cfg.Database)},
		ResultConfiguration:   &types.ResultConfiguration{OutputLocation: aws.String(a.cfg.OutputLocation)},
		WorkGroup:             aws.String(a.cfg.WorkGroup),
	})
	if err != nil {
		return engine.Handle{}, fmt.Errorf("start query execution for %q: %w", stmt.Name, err)
	}

	handle := engine.Handle{
		ID:     aws.ToString(out.QueryExecutionId),
		Name:   stmt.Name,
		DDL:    stmt.DDL,
		Status: engine.StatusSubmitted,
	}
	if a.logger != nil {
		a.logger.InfoContext(ctx, "athena query submitted",
			slog.String("query", stmt.Name),
			slog.String("query_execution_id", handle.ID),
			slog.String("database", a.cfg.Database),
		)
	}
	return handle, nil
}

func (a *Adapter) Poll(ctx context.Context, handle engine.Handle) (engine.Status, error) {
	execution, err := a.describe(ctx, handle)
	if err != nil {
		return "", err
	}

	switch execution.Status.State {
	case types.QueryExecutionStateSucceeded:
		return engine.StatusSucceeded, nil
	case types.QueryExecutionStateFailed:
		return engine.StatusFailed, &engine.ExecutionError{
			Query:      handle.Name,
			Mode:       mode,
			State:      engine.StatusFailed,
			Diagnostic: aws.ToString(execution.Status.StateChangeReason),
		}
	case types.QueryExecutionStateCancelled:
		return engine.StatusCancelled, &engine.ExecutionError{
			Query:      handle.Name,
			Mode:       mode,
			State:      engine.StatusCancelled,
			Diagnostic: aws.ToString(execution.Status.StateChangeReason),
		}
	case types.QueryExecutionStateQueued:
		return engine.StatusSubmitted, nil
	default:
		return engine.StatusRunning, nil
	}
}

func (a *Adapter) Fetch(ctx context.Context, handle engine.Handle) (engine.Artifact, error) {
	execution, err := a.describe(ctx, handle)
	if err != nil {
		return engine.Artifact{}, err
	}

	outputLocation := ""
	if execution.ResultConfiguration != nil {
		outputLocation = aws.ToString(execution.ResultConfiguration.OutputLocation)
	}
	if outputLocation == "" {
		return engine.Artifact{}, fmt.Errorf("query %q reported no result location", handle.Name)
	}

	// DDL executions produce no tabular result object worth copying; the
	// engine location itself is the evidence.
	if handle.DDL {
		return engine.Artifact{Location: outputLocation, RowCount: -1}, nil
	}
	if a.store == nil || a.evidence == nil {
		return engine.Artifact{Location: outputLocation, RowCount: -1}, nil
	}

	bucket, key, err := splitS3URI(outputLocation)
	if err != nil {
		return engine.Artifact{}, err
	}
	if a.bucket != "" && bucket != a.bucket {
		return engine.Artifact{}, fmt.Errorf("result bucket %q does not match configured bucket %q", bucket, a.bucket)
	}

	body, err := a.store.Get(ctx, key)
	if err != nil {
		return engine.Artifact{}, fmt.Errorf("download result object %q: %w", key, err)
	}
	defer func() { _ = body.Close() }()

	artifactName := fmt.Sprintf("%s-%s.csv", handle.Name, handle.ID)
	localPath, err := a.evidence.WriteStream("athena", artifactName, body)
	if err != nil {
		return engine.Artifact{}, err
	}
	return engine.Artifact{Location: localPath, RowCount: -1}, nil
}

func (a *Adapter) describe(ctx context.Context, handle engine.Handle) (*types.QueryExecution, error) {
	out, err := a.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(handle.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("get query execution %q: %w", handle.ID, err)
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return nil, fmt.Errorf("query execution %q has no status", handle.ID)
	}
	return out.QueryExecution, nil
}

func splitS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	if trimmed == uri {
		return "", "", fmt.Errorf("result location %q is not an s3 URI", uri)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("result location %q has no object key", uri)
	}
	return parts[0], parts[1], nil
}
