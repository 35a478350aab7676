package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"datachat/config"
	"datachat/dataset"
)

// Graph node names. These are also the planner's routing vocabulary.
const (
	nodePlanner   = "planner"
	nodeExecutor  = "executor"
	nodeSQL       = "sql_node"
	nodeViz       = "viz_node"
	nodeResponder = "responder"
)

// Agent is the full question-answering pipeline: planner, analyst, SQL
// generator, chart generator, and responder, orchestrated as a graph.
type Agent struct {
	cfg       config.Config
	planner   *Planner
	analyst   *Analyst
	sqlGen    *SQLGenerator
	vizGen    *VizGenerator
	responder *Responder
	log       func(string)
}

// New builds an agent from config, creating the shared eino model builder.
func New(cfg config.Config, log func(string)) *Agent {
	return NewWithModels(cfg, NewModelBuilder(cfg), log)
}

// NewWithModels builds an agent with an explicit model builder. Tests use
// this to substitute scripted models.
func NewWithModels(cfg config.Config, models ModelBuilder, log func(string)) *Agent {
	if log == nil {
		log = func(string) {}
	}
	return &Agent{
		cfg:       cfg,
		planner:   NewPlanner(models, log),
		analyst:   NewAnalyst(models, cfg.MaxRetries, log),
		sqlGen:    NewSQLGenerator(models, cfg.SQLTableName, log),
		vizGen:    NewVizGenerator(models, cfg.MaxRetries, log),
		responder: NewResponder(models, cfg.AnswerWordLimit, cfg.MaxPreviewRows, log),
		log:       log,
	}
}

// Ask runs the pipeline for one question over one dataset. The handle may
// be nil; executor-type nodes then fail fast and the responder explains it.
func (a *Agent) Ask(ctx context.Context, question string, h dataset.Handle) (*PipelineState, error) {
	st := &PipelineState{Question: question, Dataset: h}

	runnable, err := a.buildGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pipeline graph: %w", err)
	}
	return runnable.Invoke(ctx, st)
}

// buildGraph wires the five nodes per the transition table: planner routes
// to one worker node, executor chains into viz when the plan asks for a
// chart, and everything funnels into the responder.
func (a *Agent) buildGraph(ctx context.Context) (compose.Runnable[*PipelineState, *PipelineState], error) {
	g := compose.NewGraph[*PipelineState, *PipelineState]()

	nodes := map[string]func(context.Context, *PipelineState) (*PipelineState, error){
		nodePlanner:   a.plannerNode,
		nodeExecutor:  a.executorNode,
		nodeSQL:       a.sqlNode,
		nodeViz:       a.vizNode,
		nodeResponder: a.responderNode,
	}
	for name, fn := range nodes {
		if err := g.AddLambdaNode(name, compose.InvokableLambda(fn)); err != nil {
			return nil, err
		}
	}

	if err := g.AddEdge(compose.START, nodePlanner); err != nil {
		return nil, err
	}

	err := g.AddBranch(nodePlanner, compose.NewGraphBranch(
		func(ctx context.Context, st *PipelineState) (string, error) {
			return st.Plan.NextNode(), nil
		},
		map[string]bool{nodeExecutor: true, nodeSQL: true, nodeViz: true, nodeResponder: true},
	))
	if err != nil {
		return nil, err
	}

	err = g.AddBranch(nodeExecutor, compose.NewGraphBranch(
		func(ctx context.Context, st *PipelineState) (string, error) {
			if st.Plan.RequiresViz && st.AnalysisResult != nil {
				return nodeViz, nil
			}
			return nodeResponder, nil
		},
		map[string]bool{nodeViz: true, nodeResponder: true},
	))
	if err != nil {
		return nil, err
	}

	if err := g.AddEdge(nodeSQL, nodeResponder); err != nil {
		return nil, err
	}
	if err := g.AddEdge(nodeViz, nodeResponder); err != nil {
		return nil, err
	}
	if err := g.AddEdge(nodeResponder, compose.END); err != nil {
		return nil, err
	}

	return g.Compile(ctx)
}

// plannerNode produces the plan and applies feature toggles: routes the
// plan away from disabled SQL or chart stages.
func (a *Agent) plannerNode(ctx context.Context, st *PipelineState) (*PipelineState, error) {
	plan := a.planner.Plan(ctx, st.Question, st.Dataset)

	if !a.cfg.EnableSQL && plan.NextNode() == nodeSQL {
		a.log("[graph] sql stage disabled, rerouting to executor")
		plan.Routing = nodeExecutor
		plan.RequiresSQL = false
	}
	if !a.cfg.EnableViz {
		if plan.NextNode() == nodeViz {
			plan.Routing = nodeExecutor
		}
		plan.RequiresViz = false
	}

	st.Apply(StateUpdate{Plan: plan})
	return st, nil
}

// executorNode runs the self-healing analysis loop.
func (a *Agent) executorNode(ctx context.Context, st *PipelineState) (*PipelineState, error) {
	if st.Dataset == nil {
		st.Apply(StateUpdate{Errors: []string{"no dataset is loaded"}})
		return st, nil
	}

	res := a.analyst.Analyze(ctx, st.Question, st.Dataset)
	if !res.Success {
		st.Apply(StateUpdate{Errors: []string{fmt.Sprintf("analysis failed after %d attempts: %v", res.Attempts, res.Err)}})
		return st, nil
	}
	st.Apply(StateUpdate{AnalysisResult: res.Frame, AnalysisCode: strPtr(res.Code)})
	return st, nil
}

// sqlNode runs the single-shot SQL path.
func (a *Agent) sqlNode(ctx context.Context, st *PipelineState) (*PipelineState, error) {
	if st.Dataset == nil {
		st.Apply(StateUpdate{Errors: []string{"no dataset is loaded"}})
		return st, nil
	}

	res := a.sqlGen.Generate(ctx, st.Question, st.Dataset)
	if res.Query != "" {
		st.Apply(StateUpdate{SQLQuery: strPtr(res.Query)})
	}
	if !res.Success {
		st.Apply(StateUpdate{Errors: []string{fmt.Sprintf("sql generation failed: %v", res.Err)}})
		return st, nil
	}
	st.Apply(StateUpdate{SQLResult: res.Frame})
	return st, nil
}

// vizNode runs the self-healing chart loop. It charts the analysis result
// when present; on the direct viz route it materializes the raw dataset.
func (a *Agent) vizNode(ctx context.Context, st *PipelineState) (*PipelineState, error) {
	if st.Dataset == nil {
		st.Apply(StateUpdate{Errors: []string{"no dataset is loaded"}})
		return st, nil
	}

	frame := st.AnalysisResult
	if frame == nil {
		f, err := st.Dataset.Materialize()
		if err != nil {
			st.Apply(StateUpdate{Errors: []string{fmt.Sprintf("failed to load dataset for charting: %v", err)}})
			return st, nil
		}
		frame = f
	}

	// Generators always see the user's own words. PrimaryTask is a lossy
	// model summary and stays planner metadata.
	task := st.Question
	if st.Plan.ChartType != "" {
		task = fmt.Sprintf("%s chart: %s", st.Plan.ChartType, task)
	}

	res := a.vizGen.Generate(ctx, task, frame)
	if !res.Success {
		st.Apply(StateUpdate{Errors: []string{fmt.Sprintf("chart generation failed after %d attempts: %v", res.Attempts, res.Err)}})
		return st, nil
	}
	st.Apply(StateUpdate{Chart: res.Chart, ChartCode: strPtr(res.Code)})
	return st, nil
}

// responderNode always produces an answer, even from a fully failed run.
func (a *Agent) responderNode(ctx context.Context, st *PipelineState) (*PipelineState, error) {
	st.Apply(StateUpdate{Answer: strPtr(a.responder.Respond(ctx, st))})
	return st, nil
}
