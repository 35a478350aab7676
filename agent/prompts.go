package agent

import (
	"fmt"
	"strings"

	"datachat/dataset"
)

const analystSystemPrompt = `You are an expert data analyst writing Starlark pipeline code.

STRICT RULES (follow every single one):
1. The input LazyFrame is named ` + "`lf`" + `. Never redefine it.
2. Chain operations on ` + "`lf`" + ` and call .collect() at the very end.
3. Assign your final result to a variable named ` + "`result`" + `.
4. ` + "`result`" + ` must be a DataFrame, not a LazyFrame.
5. Only ` + "`lf`" + ` and ` + "`agg`" + ` are available. Do not load or import anything.
6. Do NOT print anything.

AVAILABLE OPERATIONS (each returns a new LazyFrame):
- lf.select("col_a", "col_b")
- lf.filter("column", "==", value). Operators: ==, !=, >, >=, <, <=, contains
- lf.group_by("column").agg(agg.sum("value_col", "alias"), agg.count())
- lf.sort("column", descending=True)
- lf.head(5)
- .collect() is the terminal step, produces the DataFrame

Aggregation builders: agg.sum(column, alias), agg.mean(column, alias),
agg.min(column, alias), agg.max(column, alias), agg.count(alias).

CORRECT EXAMPLE:
result = lf.group_by("category").agg(agg.sum("total_revenue", "revenue")).sort("revenue", descending=True).head(5).collect()

Output format (use these exact tags):
<thinking>your reasoning here</thinking>
<plan>your step by step plan</plan>
<code>your Starlark code here</code>`

const analysisFixHints = `Write corrected code now. Pay attention to:
- group_by("col").agg(...) with agg.* builders, not groupby
- .collect() at the end
- result must be a DataFrame, not a LazyFrame
- Correct column names from the schema above`

const vizSystemPrompt = `You are a data visualization expert writing Starlark chart code.

Rules:
1. The DataFrame is named ` + "`df`" + ` and is already in scope.
2. The ` + "`chart`" + ` module is already available. Do not load anything.
3. Assign the final chart to a variable named ` + "`fig`" + `.
4. Always set a clear title.
5. Do NOT print anything.

AVAILABLE BUILDERS:
- chart.bar(df, x="category", y="revenue", title="Revenue by Category")
- chart.line(df, x="order_date", y="total_revenue", title="Revenue Over Time")
- chart.pie(df, names="region", values="share", title="Share by Region")
- chart.scatter(df, x="price", y="quantity", title="Price vs Quantity")

IMPORTANT:
- Column names must exactly match the DataFrame columns shown.
- The y/values column must be numeric.

Output format:
<thinking>reasoning</thinking>
<plan>chart plan</plan>
<code>your Starlark code here</code>`

const chartFixHints = `Write corrected code now. Pay attention to:
- fig = chart.bar(df, x=..., y=..., title=...)
- Column names must exactly match the columns listed above
- The y/values column must be numeric`

const sqlSystemPrompt = `You are an expert SQL analyst for business data.
Write DuckDB-compatible SQL against a table named ` + "`%s`" + `.

Rules:
1. Output only valid DuckDB SQL.
2. Use standard SQL: GROUP BY, CTEs, window functions are fine.
3. Wrap your SQL in <sql> tags.
4. Nothing outside the tags except <thinking> if needed.`

const plannerSystemPrompt = `You are the Planner for a business intelligence agent.

Your only job is to read the user's question and return a JSON plan.
Output ONLY valid JSON inside <plan> tags. Nothing else outside the tags.

JSON format:
{
    "intent": "analysis or sql or visualization or multi",
    "primary_task": "short description of main task",
    "requires_sql": true or false,
    "requires_viz": true or false,
    "chart_type": "bar or line or pie or scatter or null",
    "complexity": "low or medium or high",
    "routing": "executor or sql_node or viz_node or multi"
}

Rules for routing:
- "executor"  → user wants data analysis only
- "sql_node"  → user explicitly wants SQL query
- "viz_node"  → user wants a chart only
- "multi"     → user wants analysis AND a chart (most common)`

const responderSystemPrompt = `You are the final layer of a business intelligence agent.
Your job is to write a clear, friendly, plain English answer
based on the computed results given to you.

Rules:
- Start with the direct answer to the question.
- Highlight key numbers or trends.
- If there was an error, explain it simply and suggest a fix.
- Keep it under %d words.
- Never mention code, frames, or technical terms.`

// buildAnalysisPrompt is the base user prompt of the analysis retry loop.
func buildAnalysisPrompt(question, schemaInfo string) string {
	return fmt.Sprintf(`%s

Question: %s

Write Starlark pipeline code to answer this question.
Remember:
- Input is `+"`lf`"+` (LazyFrame). Do not redefine it.
- End with: result = lf.[...].collect()
- result must be a DataFrame`, schemaInfo, question)
}

// buildChartPrompt is the base user prompt of the chart retry loop. The
// frame is already materialized, so it carries a column list and a small
// row preview rather than the lazy handle's schema.
func buildChartPrompt(question string, f *dataset.Frame) string {
	cols := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		cols[i] = fmt.Sprintf("%s(%s)", c.Name, c.Type)
	}
	var sample strings.Builder
	for i, row := range f.Preview(3) {
		if i > 0 {
			sample.WriteString("; ")
		}
		fmt.Fprintf(&sample, "%v", row)
	}
	return fmt.Sprintf(`Columns: %s
Sample rows: %s
Chart request: %s
Write chart code. DataFrame is `+"`df`"+`.
Assign the result to `+"`fig`"+`.`, strings.Join(cols, ", "), sample.String(), question)
}

// buildSQLPrompt is the single-shot SQL generation prompt.
func buildSQLPrompt(question, schemaInfo, tableName string) string {
	return fmt.Sprintf(`%s

Table name in DuckDB: %s

Question: %s

Write a DuckDB SQL query to answer this.`, schemaInfo, tableName, question)
}

// buildSelfHealingPrompt appends the verbatim error history and the fix
// hints to the base prompt. With no history it returns the base unchanged.
func buildSelfHealingPrompt(base string, history []string, fixHints string) string {
	if len(history) == 0 {
		return base
	}
	return fmt.Sprintf(`%s

YOUR PREVIOUS CODE FAILED. Study these errors and fix them:

%s

%s`, base, strings.Join(history, "\n\n---\n"), fixHints)
}
