package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"medquery-orchestrator/internal/domain"
	"medquery-orchestrator/internal/usecase"
)

// Sample is one dataset entry.
type Sample struct {
	Query       string   `json:"query"`
	RelevantIDs []string `json:"relevant_ids"`
	Reference   string   `json:"reference,omitempty"`
}

// LoadDataset reads a JSON array of samples.
func LoadDataset(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var samples []Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return samples, nil
}

// GradeResult is the judge's per-sample quality assessment.
type GradeResult struct {
	ContextRelevance float64 `json:"context_relevance"`
	Faithfulness     float64 `json:"faithfulness"`
	Correctness      float64 `json:"correctness"`
	ReasonRelevance  string  `json:"reason_context_relevance"`
	ReasonFaith      string  `json:"reason_faithfulness"`
	ReasonCorrect    string  `json:"reason_correctness"`
}

func (g GradeResult) Validate() error {
	for _, v := range []float64{g.ContextRelevance, g.Faithfulness, g.Correctness} {
		if v < 0 || v > 1 {
			return fmt.Errorf("grade %f out of range [0,1]", v)
		}
	}
	return nil
}

var gradeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"context_relevance":        map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"faithfulness":             map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"correctness":              map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"reason_context_relevance": map[string]any{"type": "string"},
		"reason_faithfulness":      map[string]any{"type": "string"},
		"reason_correctness":       map[string]any{"type": "string"},
	},
	"required": []string{
		"context_relevance", "faithfulness", "correctness",
		"reason_context_relevance", "reason_faithfulness", "reason_correctness",
	},
}

// Runner drives the evaluation: for every unprocessed sample it retrieves,
// answers through the pipeline, grades the result, and persists a record
// plus the checkpoint so an interrupted run resumes where it stopped.
type Runner struct {
	pipeline   usecase.MedicalQueryPipelineUsecase
	retriever  usecase.RetrievePassagesUsecase
	grader     domain.StructuredLLM
	limiter    *rate.Limiter
	checkpoint *CheckpointManager
	writer     *RecordWriter
	topK       int
	logger     *slog.Logger
}

func NewRunner(
	pipeline usecase.MedicalQueryPipelineUsecase,
	retriever usecase.RetrievePassagesUsecase,
	grader domain.StructuredLLM,
	limiter *rate.Limiter,
	checkpoint *CheckpointManager,
	writer *RecordWriter,
	topK int,
	logger *slog.Logger,
) *Runner {
	if topK <= 0 {
		topK = 5
	}
	return &Runner{
		pipeline:   pipeline,
		retriever:  retriever,
		grader:     grader,
		limiter:    limiter,
		checkpoint: checkpoint,
		writer:     writer,
		topK:       topK,
		logger:     logger,
	}
}

// Run processes the dataset. It stops at the first persistent-state error;
// per-sample pipeline failures are recorded and do not abort the run.
func (r *Runner) Run(ctx context.Context, samples []Sample) error {
	cp, err := r.checkpoint.Load()
	if err != nil {
		return err
	}

	for _, sample := range samples {
		if cp.Contains(sample.Query) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		record, err := r.evaluateSample(ctx, sample)
		if err != nil {
			return err
		}
		if err := r.writer.Append(record); err != nil {
			return err
		}

		cp.Queries = append(cp.Queries, sample.Query)
		if err := r.checkpoint.Save(cp); err != nil {
			return err
		}

		r.logger.Info("sample_evaluated",
			slog.Int("processed", len(cp.Queries)),
			slog.Int("total", len(samples)))
	}
	return nil
}

func (r *Runner) evaluateSample(ctx context.Context, sample Sample) (SampleRecord, error) {
	record := SampleRecord{Query: sample.Query, RetrievedIDs: []string{}}

	hits, err := r.retriever.Retrieve(ctx, sample.Query, r.topK)
	if err != nil {
		r.logger.Warn("eval_retrieval_failed",
			slog.String("error", err.Error()))
	}
	var contextText string
	for _, hit := range hits {
		record.RetrievedIDs = append(record.RetrievedIDs, hit.ID)
		contextText += hit.Text + "\n\n"
	}
	record.Retrieval = ComputeRetrievalMetrics(record.RetrievedIDs, sample.RelevantIDs, r.topK)

	final, err := r.pipeline.Process(ctx, sample.Query)
	if err != nil {
		return record, fmt.Errorf("pipeline failed for sample: %w", err)
	}
	record.Answer = final.Answer

	grade, err := usecase.InvokeStructured[GradeResult](ctx, r.grader, buildGradePrompt(sample, contextText, final.Answer), gradeSchema)
	if err != nil {
		r.logger.Warn("eval_grading_failed",
			slog.String("error", err.Error()))
		return record, nil
	}

	record.ContextRelevance = grade.ContextRelevance
	record.Faithfulness = grade.Faithfulness
	record.Correctness = grade.Correctness
	record.ReasonRelevance = grade.ReasonRelevance
	record.ReasonFaith = grade.ReasonFaith
	record.ReasonCorrect = grade.ReasonCorrect
	return record, nil
}

func buildGradePrompt(sample Sample, contextText, answer string) string {
	reference := sample.Reference
	if reference == "" {
		reference = "(no reference answer provided)"
	}
	return fmt.Sprintf(`Grade the answer on three axes, each in [0,1], with a short reason for each:
- context_relevance: does the retrieved context bear on the question?
- faithfulness: is the answer supported by the retrieved context?
- correctness: does the answer match the reference?

Question: %s

Retrieved context:
%s

Reference answer: %s

Answer under evaluation: %s`, sample.Query, contextText, reference, answer)
}
