// internal/workers/quote/recalculate-quote/handler.go
package recalculatequote

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	commonerrors "github.com/026iFly/foam-sub000/internal/common/errors"
	"github.com/026iFly/foam-sub000/internal/common/logger"
	"github.com/026iFly/foam-sub000/internal/common/metrics"
	"github.com/026iFly/foam-sub000/internal/costing"
	"github.com/026iFly/foam-sub000/internal/insulation"
	"github.com/026iFly/foam-sub000/internal/models"
	"github.com/026iFly/foam-sub000/internal/settings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "recalculate-quote"
)

var (
	ErrVariableSource = errors.New("VARIABLE_SOURCE_FAILED")
	ErrQuotePersist   = errors.New("QUOTE_PERSIST_FAILED")
)

type Handler struct {
	config   *Config
	db       *sql.DB
	redis    *redis.Client
	es       *elasticsearch.Client
	settings *settings.Source
	quotes   *models.QuoteRepository
	logger   logger.Logger
}

func NewHandler(config *Config, db *sql.DB, redisClient *redis.Client, esClient *elasticsearch.Client, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		db:       db,
		redis:    redisClient,
		es:       esClient,
		settings: settings.NewSource(db, redisClient, config.CacheTTL, log),
		quotes:   models.NewQuoteRepository(db),
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	raw := []byte(job.Variables)
	if err := validateInput(raw); err != nil {
		h.failJob(client, job, commonerrors.ConvertToBPMNError(
			commonerrors.NewQuoteValidationFailedError(err.Error())))
		return
	}

	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		h.failJob(client, job, &commonerrors.BPMNError{
			Code:    "PARSE_ERROR",
			Message: fmt.Sprintf("parse input: %v", err),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, commonerrors.ConvertToBPMNError(standardError(err)))
		return
	}

	h.completeJob(client, job, output)
}

// standardError maps execute failures onto the shared taxonomy so the
// process model gets stable error codes and retry hints.
func standardError(err error) *commonerrors.StandardError {
	switch {
	case errors.Is(err, ErrVariableSource):
		return commonerrors.NewVariableSourceFailedError(err)
	case errors.Is(err, ErrQuotePersist):
		return commonerrors.NewQuotePersistFailedError(err)
	default:
		return commonerrors.NewQuoteCalculationFailedError(err)
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	vars, err := h.settings.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVariableSource, err)
	}

	mats := insulation.DefaultMaterials()
	warnings := mats.ApplyOverrides(vars)
	for _, w := range warnings {
		h.logger.Warn("variable override rejected", map[string]interface{}{
			"quoteId": input.QuoteID,
			"reason":  w,
		})
	}

	indoorTemp := input.IndoorTemp
	if indoorTemp == 0 {
		indoorTemp = h.config.DefaultIndoorTemp
	}
	indoorRH := input.IndoorRH
	if indoorRH == 0 {
		indoorRH = h.config.DefaultIndoorRH
	}
	outdoorTemp, err := h.outdoorTemp(input)
	if err != nil {
		return nil, err
	}

	recommendations := make([]PartRecommendation, 0, len(input.Parts))
	costParts := make([]costing.PartInput, 0, len(input.Parts))
	overall := insulation.RiskLow

	for _, p := range input.Parts {
		rec := insulation.Recommend(insulation.RecommendInput{
			PartType:          insulation.PartType(p.PartType),
			HasVaporBarrier:   p.HasVaporBarrier,
			IndoorTemp:        indoorTemp,
			OutdoorTemp:       outdoorTemp,
			IndoorRH:          indoorRH,
			TargetThicknessMm: p.TargetThicknessMm,
		}, mats)

		recommendations = append(recommendations, PartRecommendation{
			PartID:         p.PartID,
			PartType:       p.PartType,
			Area:           p.Area,
			Recommendation: rec,
		})
		costParts = append(costParts, costing.PartInput{
			PartID:       p.PartID,
			PartType:     insulation.PartType(p.PartType),
			Area:         p.Area,
			Config:       rec.Config,
			ClosedCellMm: rec.ClosedCellMm,
			OpenCellMm:   rec.OpenCellMm,
		})
		if rec.Condensation != nil {
			overall = worseRisk(overall, rec.Condensation.Risk)
		}
	}

	totals := costing.Rollup(costParts, settings.CostVariables(vars), costing.RollupOptions{
		CrewSize:                    input.CrewSize,
		DefaultCrewSize:             h.config.DefaultCrewSize,
		SingleInstallerSurchargePct: settings.Value(vars, "single_installer_surcharge_pct"),
		RotEligible:                 input.RotEligible,
		RotPercent:                  h.config.RotPercent,
		RotCapPerPerson:             settings.Value(vars, "rot_cap_per_person"),
		RotShares:                   input.RotShares,
		PartTypeMultipliers:         h.config.PartTypeMultipliers,
	})

	metrics.QuoteCalculations.WithLabelValues(string(overall)).Inc()

	output := &Output{
		QuoteID:         input.QuoteID,
		Recommendations: recommendations,
		Totals:          totals,
		OverallRisk:     string(overall),
		Warnings:        warnings,
	}

	quote := buildQuote(input, output, time.Now())
	if err := h.quotes.Save(ctx, quote); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuotePersist, err)
	}

	// Search indexing is best effort, a broken index never fails the
	// quote.
	h.indexQuote(ctx, quote)

	h.logger.Info("quote recalculated", map[string]interface{}{
		"quoteId":     input.QuoteID,
		"parts":       len(input.Parts),
		"overallRisk": string(overall),
		"finalTotal":  totals.FinalTotal,
	})

	return output, nil
}

func (h *Handler) outdoorTemp(input *Input) (float64, error) {
	if input.OutdoorTemp != nil {
		return *input.OutdoorTemp, nil
	}
	zone := input.ClimateZone
	if zone == "" {
		zone = h.config.DefaultZone
	}
	temp, ok := h.config.ZoneOutdoorTemp[zone]
	if !ok {
		return 0, fmt.Errorf("unknown climate zone %q", zone)
	}
	return temp, nil
}

func worseRisk(a, b insulation.RiskLevel) insulation.RiskLevel {
	rank := map[insulation.RiskLevel]int{
		insulation.RiskLow:     0,
		insulation.RiskUnknown: 1,
		insulation.RiskMedium:  2,
		insulation.RiskHigh:    3,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func buildQuote(input *Input, output *Output, now time.Time) *models.Quote {
	quote := &models.Quote{
		ID:           input.QuoteID,
		CustomerID:   input.CustomerID,
		TotalExclVat: output.Totals.TotalExclVat,
		TotalInclVat: output.Totals.TotalInclVat,
		Vat:          output.Totals.Vat,
		RotDeduction: output.Totals.RotDeduction,
		FinalTotal:   output.Totals.FinalTotal,
		OverallRisk:  output.OverallRisk,
		CalculatedAt: now,
	}

	costByPart := map[string]costing.PartCost{}
	for _, pc := range output.Totals.Parts {
		costByPart[pc.PartID] = pc
	}

	for _, rec := range output.Recommendations {
		risk := ""
		if rec.Recommendation.Condensation != nil {
			risk = string(rec.Recommendation.Condensation.Risk)
		}
		cost := costByPart[rec.PartID]
		quote.Parts = append(quote.Parts, models.QuotePart{
			PartID:       rec.PartID,
			PartType:     rec.PartType,
			Area:         rec.Area,
			Config:       string(rec.Recommendation.Config),
			ClosedCellMm: rec.Recommendation.ClosedCellMm,
			OpenCellMm:   rec.Recommendation.OpenCellMm,
			UValue:       rec.Recommendation.UValue,
			RiskLevel:    risk,
			MaterialCost: cost.MaterialCost,
			LaborCost:    cost.LaborCost,
			TotalCost:    cost.TotalCost,
		})
	}

	return quote
}

func (h *Handler) indexQuote(ctx context.Context, quote *models.Quote) {
	if h.es == nil {
		return
	}

	doc, err := json.Marshal(quote)
	if err != nil {
		h.logger.Warn("quote document marshal failed", map[string]interface{}{
			"quoteId": quote.ID,
			"error":   err,
		})
		return
	}

	res, err := h.es.Index(
		h.config.QuoteIndex,
		bytes.NewReader(doc),
		h.es.Index.WithDocumentID(quote.ID),
		h.es.Index.WithContext(ctx),
	)
	if err != nil {
		stdErr := commonerrors.NewIndexingFailedError(err)
		h.logger.Warn("quote indexing failed", map[string]interface{}{
			"quoteId":   quote.ID,
			"errorCode": string(stdErr.Code),
			"error":     stdErr.Details,
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		h.logger.Warn("quote indexing rejected", map[string]interface{}{
			"quoteId": quote.ID,
			"status":  res.Status(),
		})
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, bpmnErr *commonerrors.BPMNError) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    bpmnErr.Code,
		"errorMessage": bpmnErr.Message,
		"retryable":    bpmnErr.Retryable,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
