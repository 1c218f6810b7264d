// Package runexport provides the "RunHistoryExport" task type. It writes the finished run history
// of a batch to a Parquet object, staged and promoted like a file publication.
package runexport

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/component/tasktype/filepublication"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/parameter"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// Name is the task type name.
const Name = "RunHistoryExport"

// Parameter names.
const (
	ParamStorage = "storage"
	ParamTarget  = "target"
	ParamBatch   = "batch"
)

// RunRecord is one exported row.
type RunRecord struct {
	Batch      string `parquet:"name=batch, type=BYTE_ARRAY, convertedtype=UTF8"`
	BatchRunID string `parquet:"name=batch_run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	RunID      string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Task       string `parquet:"name=task, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status     string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	Start      int64  `parquet:"name=start, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	End        *int64 `parquet:"name=end, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL"`
	Message    string `parquet:"name=message, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// RunExportTaskType exports run history read from the repository.
type RunExportTaskType struct {
	repo     repository.Repository
	resolver storage.StorageConnectionResolver
}

var (
	_ tasktype.TaskType = (*RunExportTaskType)(nil)
	_ tasktype.Cleaner  = (*RunExportTaskType)(nil)
)

// New returns the task type.
func New(repo repository.Repository, resolver storage.StorageConnectionResolver) *RunExportTaskType {
	return &RunExportTaskType{repo: repo, resolver: resolver}
}

func (t *RunExportTaskType) Name() string { return Name }

func (t *RunExportTaskType) ParameterInfo() map[string]tasktype.ParameterInfo {
	return map[string]tasktype.ParameterInfo{
		ParamStorage: {Type: parameter.String, Required: true},
		ParamTarget:  {Type: parameter.String, Required: true},
		ParamBatch:   {Type: parameter.String, Required: true},
	}
}

func (t *RunExportTaskType) Execute(ctx context.Context, tc *tasktype.TaskContext) error {
	records, err := t.History(ctx, tc.String(ParamBatch))
	if err != nil {
		return err
	}
	buf, err := Encode(records)
	if err != nil {
		return err
	}
	conn, err := t.resolver.ResolveStorageConnection(ctx, tc.String(ParamStorage))
	if err != nil {
		return err
	}
	target := tc.String(ParamTarget)
	if err := conn.Upload(ctx, target+filepublication.TempSuffix, buf, "application/vnd.apache.parquet"); err != nil {
		return err
	}
	logger.Infof("Task '%s' exported %d runs of batch '%s'.", tc.Task.Name, len(records), tc.String(ParamBatch))
	return nil
}

func (t *RunExportTaskType) Commit(ctx context.Context, tc *tasktype.TaskContext) error {
	conn, err := t.resolver.ResolveStorageConnection(ctx, tc.String(ParamStorage))
	if err != nil {
		return err
	}
	return filepublication.Promote(ctx, conn, tc.String(ParamTarget))
}

func (t *RunExportTaskType) Rollback(ctx context.Context, tc *tasktype.TaskContext) error {
	conn, err := t.resolver.ResolveStorageConnection(ctx, tc.String(ParamStorage))
	if err != nil {
		return err
	}
	wasCommitted := tc.Run != nil && (tc.Run.Status == model.RunStatusCommitted || tc.Run.Status == model.RunStatusCommitting)
	return filepublication.Demote(ctx, conn, tc.String(ParamTarget), wasCommitted)
}

func (t *RunExportTaskType) Cleanup(ctx context.Context, tc *tasktype.TaskContext) error {
	conn, err := t.resolver.ResolveStorageConnection(ctx, tc.String(ParamStorage))
	if err != nil {
		return err
	}
	target := tc.String(ParamTarget)
	if err := conn.DeleteObject(ctx, target+filepublication.TempSuffix); err != nil {
		return err
	}
	return conn.DeleteObject(ctx, target)
}

// History returns the runs of every finished batch run of the batch, oldest batch run first.
func (t *RunExportTaskType) History(ctx context.Context, fullName string) ([]RunRecord, error) {
	batch, err := t.repo.GetBatch(ctx, fullName)
	if err != nil {
		return nil, err
	}
	taskNames := make(map[string]string, len(batch.Elements))
	for _, el := range batch.Elements {
		taskNames[el.ID] = el.TaskName
	}
	batchRuns, err := t.repo.GetBatchRuns(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	var records []RunRecord
	for i := len(batchRuns) - 1; i >= 0; i-- {
		br := batchRuns[i]
		if br.End == nil {
			continue
		}
		for _, run := range br.Runs {
			rec := RunRecord{
				Batch:      fullName,
				BatchRunID: br.ID,
				RunID:      run.ID,
				Task:       taskNames[run.BatchElementID],
				Status:     string(run.Status),
				Start:      run.Start.UnixMilli(),
				Message:    run.Message,
			}
			if run.End != nil {
				end := run.End.UnixMilli()
				rec.End = &end
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// Encode writes records as a single-row-group, snappy-compressed Parquet file.
func Encode(records []RunRecord) (buf *bytes.Buffer, err error) {
	buf = new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(RunRecord), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i := range records {
		if err := pw.Write(records[i]); err != nil {
			return nil, fmt.Errorf("failed to write run '%s' to Parquet: %w", records[i].RunID, err)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize Parquet file: %w", err)
	}
	return buf, nil
}
