package reply

import (
	"context"
	"time"

	"github.com/accordohq/accordo/internal/circuitbreaker"
	"github.com/accordohq/accordo/internal/logging"
	"github.com/accordohq/accordo/internal/metrics"
)

// breakerKey identifies the single LLM backend in the circuit breaker.
const breakerKey = "llm"

// Generator produces the final outbound message: it asks the LLM writer
// for a draft, validates it, and falls back to templates on error or
// rejection. With a nil LLM writer it renders templates directly, which
// keeps the negotiation fully deterministic.
//
// A circuit breaker guards the LLM path so a down or flapping backend
// stops eating the reply timeout on every turn. While the circuit is
// open, replies come straight from templates.
type Generator struct {
	llm       Writer
	templates *TemplateWriter
	breaker   *circuitbreaker.Breaker
}

func NewGenerator(llm Writer) *Generator {
	return &Generator{
		llm:       llm,
		templates: NewTemplateWriter(),
		breaker:   circuitbreaker.New(5, 30*time.Second),
	}
}

// Generate never fails: the template path has no error cases.
func (g *Generator) Generate(ctx context.Context, req Request) string {
	intent := string(req.Intent)

	if g.llm == nil {
		metrics.ReplyRequestsTotal.WithLabelValues(intent, "template").Inc()
		text, _ := g.templates.Write(ctx, req)
		return text
	}

	if !g.breaker.Allow(breakerKey) {
		metrics.ReplyFallbacksTotal.WithLabelValues("circuit_open").Inc()
		metrics.ReplyRequestsTotal.WithLabelValues(intent, "template").Inc()
		text, _ := g.templates.Write(ctx, req)
		return text
	}

	start := time.Now()
	draft, err := g.llm.Write(ctx, req)
	metrics.ReplyLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		g.breaker.RecordFailure(breakerKey)
		logging.L(ctx).Warn("llm reply failed, using template",
			"intent", intent, "error", err)
		metrics.ReplyFallbacksTotal.WithLabelValues("llm_error").Inc()
		metrics.ReplyRequestsTotal.WithLabelValues(intent, "template").Inc()
		text, _ := g.templates.Write(ctx, req)
		return text
	}
	g.breaker.RecordSuccess(breakerKey)

	if err := Validate(req, draft); err != nil {
		logging.L(ctx).Warn("llm reply rejected, using template",
			"intent", intent, "reason", err)
		metrics.ReplyFallbacksTotal.WithLabelValues("validation").Inc()
		metrics.ReplyRequestsTotal.WithLabelValues(intent, "template").Inc()
		text, _ := g.templates.Write(ctx, req)
		return text
	}

	metrics.ReplyRequestsTotal.WithLabelValues(intent, "llm").Inc()
	return draft
}
