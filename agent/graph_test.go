package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.APIKey = "test"
	return cfg
}

func TestAskAnalysisOnly(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: planResponse("executor", false, "")},
		{text: codeResponse(`result = lf.sort("total_revenue", descending=True).head(5).collect()`)},
		{text: "Stark leads with 700."},
	}}
	a := NewWithModels(testConfig(), &fakeBuilder{cm: cm}, noLog)

	st, err := a.Ask(context.Background(), "Top 5 suppliers by total revenue?", suppliersHandle(t))
	require.NoError(t, err)

	assert.Equal(t, "Stark leads with 700.", st.Answer)
	require.NotNil(t, st.AnalysisResult)
	assert.Len(t, st.AnalysisResult.Rows, 5)
	assert.Equal(t, 700.0, st.AnalysisResult.Rows[0][1])
	assert.Nil(t, st.Chart)
	assert.Nil(t, st.SQLResult)
	assert.Empty(t, st.Errors)
	assert.Equal(t, 3, cm.calls)
	// The analyst is prompted with the user's question, not the planner's
	// task summary.
	assert.Contains(t, cm.prompts[1], "Top 5 suppliers by total revenue?")
	assert.NotContains(t, cm.prompts[1], "do it")
}

func TestAskAnalysisThenChart(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: planResponse("multi", true, "bar")},
		{text: codeResponse(`result = lf.group_by("supplier_name").agg(agg.sum("total_revenue", "revenue_total")).collect()`)},
		{text: codeResponse(`fig = chart.bar(df, x="supplier_name", y="revenue_total", title="Revenue by supplier")`)},
		{text: "Here is the chart."},
	}}
	a := NewWithModels(testConfig(), &fakeBuilder{cm: cm}, noLog)

	st, err := a.Ask(context.Background(), "Bar chart of revenue by supplier", suppliersHandle(t))
	require.NoError(t, err)

	require.NotNil(t, st.AnalysisResult)
	require.NotNil(t, st.Chart)
	assert.Equal(t, "bar", st.Chart.Type)
	assert.Equal(t, "Revenue by supplier", st.Chart.Title)
	assert.Empty(t, st.Errors)
	assert.Equal(t, 4, cm.calls)

	// The chart stage saw the analysis output: revenue_total only exists
	// there, never in the raw dataset.
	assert.Contains(t, cm.prompts[2], "revenue_total")
	// The plan's chart hint prefixes the user's own request.
	assert.Contains(t, cm.prompts[2], "bar chart: Bar chart of revenue by supplier")
}

func TestAskSQLRoute(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: planResponse("sql_node", false, "")},
		{text: "<sql>SELECT supplier_name FROM sc_data WHERE total_revenue > 100</sql>"},
		{text: "Four suppliers exceed 100."},
	}}
	a := NewWithModels(testConfig(), &fakeBuilder{cm: cm}, noLog)

	st, err := a.Ask(context.Background(), "SQL for big suppliers", suppliersHandle(t))
	require.NoError(t, err)

	require.NotNil(t, st.SQLResult)
	assert.Len(t, st.SQLResult.Rows, 4)
	assert.Equal(t, "SELECT supplier_name FROM sc_data WHERE total_revenue > 100", st.SQLQuery)
	// No code-generation loop on this path.
	assert.Nil(t, st.AnalysisResult)
	assert.Equal(t, 3, cm.calls)
	assert.Contains(t, cm.prompts[1], "SQL for big suppliers")
}

func TestAskWithoutDataset(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: "not a plan"},
		{text: "There is no dataset loaded, please upload one first."},
	}}
	a := NewWithModels(testConfig(), &fakeBuilder{cm: cm}, noLog)

	st, err := a.Ask(context.Background(), "Top suppliers?", nil)
	require.NoError(t, err)

	assert.Contains(t, st.Errors, "no dataset is loaded")
	assert.Contains(t, st.Answer, "no dataset")
	// Planner and responder only: the executor fails fast without a model
	// call.
	assert.Equal(t, 2, cm.calls)
	assert.Contains(t, cm.prompts[1], "no dataset is loaded")
}

func TestAskDirectVizRoute(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: planResponse("viz_node", true, "pie")},
		{text: codeResponse(`fig = chart.pie(df, names="supplier_name", values="total_revenue", title="Share")`)},
		{text: "Here is the pie chart."},
	}}
	a := NewWithModels(testConfig(), &fakeBuilder{cm: cm}, noLog)

	st, err := a.Ask(context.Background(), "Pie of revenue share", suppliersHandle(t))
	require.NoError(t, err)

	require.NotNil(t, st.Chart)
	assert.Equal(t, "pie", st.Chart.Type)
	assert.Nil(t, st.AnalysisResult)
	assert.Equal(t, 3, cm.calls)
}

func TestAskSQLDisabledReroutesToExecutor(t *testing.T) {
	cfg := testConfig()
	cfg.EnableSQL = false

	cm := &scriptedModel{script: []scripted{
		{text: planResponse("sql_node", false, "")},
		{text: codeResponse(`result = lf.head(3).collect()`)},
		{text: "Here are the first rows."},
	}}
	a := NewWithModels(cfg, &fakeBuilder{cm: cm}, noLog)

	st, err := a.Ask(context.Background(), "SQL for anything", suppliersHandle(t))
	require.NoError(t, err)

	assert.Nil(t, st.SQLResult)
	require.NotNil(t, st.AnalysisResult)
	assert.Len(t, st.AnalysisResult.Rows, 3)
}

func TestAskVizDisabledSkipsChart(t *testing.T) {
	cfg := testConfig()
	cfg.EnableViz = false

	cm := &scriptedModel{script: []scripted{
		{text: planResponse("multi", true, "bar")},
		{text: codeResponse(`result = lf.head(3).collect()`)},
		{text: "Table only."},
	}}
	a := NewWithModels(cfg, &fakeBuilder{cm: cm}, noLog)

	st, err := a.Ask(context.Background(), "Bar chart of revenue", suppliersHandle(t))
	require.NoError(t, err)

	assert.Nil(t, st.Chart)
	require.NotNil(t, st.AnalysisResult)
	assert.Equal(t, 3, cm.calls)
}

func TestAskAnalysisFailureStillAnswers(t *testing.T) {
	cm := &scriptedModel{script: []scripted{
		{text: planResponse("executor", false, "")},
		{text: "no code"}, {text: "no code"}, {text: "no code"}, {text: "no code"},
		{text: "I was unable to analyze the data."},
	}}
	a := NewWithModels(testConfig(), &fakeBuilder{cm: cm}, noLog)

	st, err := a.Ask(context.Background(), "Top suppliers?", suppliersHandle(t))
	require.NoError(t, err)

	assert.NotEmpty(t, st.Answer)
	require.Len(t, st.Errors, 1)
	assert.Contains(t, st.Errors[0], "analysis failed after 4 attempts")
}
