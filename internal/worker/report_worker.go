package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/repository"
)

const (
	ReportBatchSize    = 50
	ReportBatchTimeout = 2 * time.Second
	ReportPollTimeout  = 1 * time.Second
)

// reportPayload is the queue wire format between the sink and the worker.
type reportPayload struct {
	DeviceID  string                 `json:"device_id"`
	ExamID    string                 `json:"exam_id"`
	Report    model.ScoreReport      `json:"report"`
	AnswerLog []model.AnswerLogEntry `json:"answer_log"`
}

// QueueReportSink pushes completed reports onto the Redis archive queue.
// Archiving is fire-and-forget from the exam engine's point of view; a push
// failure is logged and the candidate still sees their result.
type QueueReportSink struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewQueueReportSink creates a new QueueReportSink.
func NewQueueReportSink(rdb *redis.Client, log zerolog.Logger) *QueueReportSink {
	return &QueueReportSink{rdb: rdb, log: log.With().Str("component", "report_sink").Logger()}
}

// Archive enqueues the report for asynchronous persistence.
func (s *QueueReportSink) Archive(ctx context.Context, deviceID, examID string, report model.ScoreReport, answerLog []model.AnswerLogEntry) {
	raw, err := json.Marshal(reportPayload{
		DeviceID:  deviceID,
		ExamID:    examID,
		Report:    report,
		AnswerLog: answerLog,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("encode report payload")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistReportsQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Str("device_id", deviceID).Msg("enqueue report")
	}
}

// ReportWorker drains the archive queue into Postgres in batches.
type ReportWorker struct {
	rdb     *redis.Client
	reports *repository.ReportRepository
	log     zerolog.Logger
}

// NewReportWorker creates a new ReportWorker.
func NewReportWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ReportWorker {
	return &ReportWorker{
		rdb:     rdb,
		reports: repository.NewReportRepository(pool),
		log:     log.With().Str("component", "report_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ReportWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ReportWorker started")

	batch := make([]*reportPayload, 0, ReportBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ReportBatchSize || time.Since(lastFlush) >= ReportBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ReportPollTimeout, config.WorkerKey.PersistReportsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p reportPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert wrapper with single-row fallback
// ----------------------------------------------------------------

func (w *ReportWorker) flushSafe(ctx context.Context, batch []*reportPayload) {
	if len(batch) == 0 {
		return
	}

	rows := make([]repository.ReportRow, 0, len(batch))
	sources := make([]*reportPayload, 0, len(batch))
	for _, p := range batch {
		row, err := toRow(p)
		if err != nil {
			w.log.Error().Err(err).Str("device_id", p.DeviceID).Msg("unarchivable payload dropped")
			continue
		}
		rows = append(rows, row)
		sources = append(sources, p)
	}

	if err := w.reports.InsertBatch(ctx, rows); err != nil {
		w.log.Warn().Err(err).Msg("bulk report insert failed, using fallback")

		for i, row := range rows {
			if err := w.reports.Insert(ctx, row); err != nil {
				w.log.Error().Err(err).Msg("single insert failed, requeueing")
				raw, _ := json.Marshal(sources[i])
				w.rdb.RPush(ctx, config.WorkerKey.PersistReportsQueue, raw)
			}
		}
	}
}

func toRow(p *reportPayload) (repository.ReportRow, error) {
	rawLog, err := json.Marshal(p.AnswerLog)
	if err != nil {
		return repository.ReportRow{}, err
	}
	return repository.ReportRow{
		DeviceID:        p.DeviceID,
		ExamID:          p.ExamID,
		Total:           p.Report.Total,
		Correct:         p.Report.Correct,
		Score:           p.Report.Score,
		Passed:          p.Report.Passed,
		WeakestCategory: p.Report.WeakestCategory,
		ElapsedMinutes:  p.Report.ElapsedMinutes,
		AnswerLog:       rawLog,
	}, nil
}
