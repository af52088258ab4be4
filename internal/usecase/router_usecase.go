package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"medquery-orchestrator/internal/domain"
)

// RouterUsecase classifies a sub-query into a datasource.
type RouterUsecase interface {
	Route(ctx context.Context, query string) domain.RouteDecision
}

type routerUsecase struct {
	llm    domain.StructuredLLM
	logger *slog.Logger
}

func NewRouterUsecase(llm domain.StructuredLLM, logger *slog.Logger) RouterUsecase {
	return &routerUsecase{llm: llm, logger: logger}
}

// Route fails closed: on any failure of the underlying call it returns the
// medical_knowledge default so routing errors never abort the pipeline.
func (u *routerUsecase) Route(ctx context.Context, query string) domain.RouteDecision {
	prompt := buildRoutePrompt(query)

	decision, err := InvokeStructured[domain.RouteDecision](ctx, u.llm, prompt, routeSchema)
	if err != nil {
		u.logger.Warn("routing_failed_defaulting_to_medical",
			slog.String("error", err.Error()))
		return domain.RouteDecision{
			Datasource: domain.DatasourceMedicalKnowledge,
			Reasoning:  "fallback due to routing error",
		}
	}

	u.logger.Info("query_routed",
		slog.String("datasource", string(decision.Datasource)))

	return decision
}

func buildRoutePrompt(query string) string {
	return fmt.Sprintf(`Classify the question into exactly one datasource.
- medical_knowledge: questions about symptoms, diseases, treatments, medication, health advice
- store_database: questions about clinic appointments, staff, billing, inventory
- other: anything else

Question: %s`, query)
}
