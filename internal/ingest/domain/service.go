package domain

import (
	"context"
	"io"

	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
)

type Request struct {
	Filename string
	Source   uploaddomain.Source
	Body     io.Reader
}

type Service interface {
	// Ingest decodes a delimited file and runs it through the pipeline.
	Ingest(ctx context.Context, req Request) (*Result, error)
	// IngestTable runs an already decoded table through the pipeline.
	IngestTable(ctx context.Context, table RawTable, origin Origin) (*Result, error)
}
