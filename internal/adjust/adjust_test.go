package adjust

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risparmi/internal/core"
)

func expenses(t *testing.T, kv ...any) core.ExpenseMap {
	t.Helper()
	var m core.ExpenseMap
	for i := 0; i < len(kv); i += 2 {
		require.NoError(t, m.Set(kv[i].(string), decimal.RequireFromString(kv[i+1].(string))))
	}
	return m
}

func request(t *testing.T, m core.ExpenseMap, goal int, excluded string) core.AdjustmentRequest {
	t.Helper()
	req, err := core.NewAdjustmentRequest(m, goal, excluded)
	require.NoError(t, err)
	return req
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single span verbatim", `Sure! {"Rent": 860, "Food": 500} Hope this helps.`, `{"Rent": 860, "Food": 500}`},
		{"no brace", "I cannot help with that.", ""},
		{"empty input", "", ""},
		{"nested", `x {"a": {"b": 1}} y`, `{"a": {"b": 1}}`},
		{"first of two spans", `{'Rent': 1} then {'Rent': 2}`, `{'Rent': 1}`},
		{"brace inside key", `{"we{ird": 1, "cl}ose": 2}`, `{"we{ird": 1, "cl}ose": 2}`},
		{"escaped quote", `{"a\"}": 1}`, `{"a\"}": 1}`},
		{"unterminated", `Result: {"Rent": 860`, ""},
		{"closing before opening", `} {"a": 1}`, `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.in))
		})
	}
}

func TestExtractSpanIsSubstring(t *testing.T) {
	inputs := []string{
		"abc {1} def",
		"{{}}",
		"{'x': '}'}",
		"lead {\"a\": 1, \"b\": {\"c\": 2}} trail {\"d\": 3}",
	}
	for _, in := range inputs {
		got := Extract(in)
		require.NotEmpty(t, got)
		assert.True(t, strings.Contains(in, got))
		assert.True(t, strings.HasPrefix(got, "{") && strings.HasSuffix(got, "}"))
	}
}

func TestParseMapping(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want core.ExpenseMap
	}{
		{"json", `{"Rent": 860, "Food": 500}`, expenses(t, "Rent", "860", "Food", "500")},
		{"python quotes", `{'Rent': 860.0, 'Food': 500.5}`, expenses(t, "Rent", "860", "Food", "500.5")},
		{"trailing comma", "{\n  'Rent': 860,\n  'Food': 500,\n}", expenses(t, "Rent", "860", "Food", "500")},
		{"signs and exponent", `{"a": -1.5, "b": +2, "c": 1e2, "d": .5}`, expenses(t, "a", "-1.5", "b", "2", "c", "100", "d", "0.5")},
		{"escapes", `{"Kid\"s": 1, 'Caffè': 2}`, expenses(t, `Kid"s`, "1", "Caffè", "2")},
		{"empty", `{}`, core.ExpenseMap{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMapping(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestParseMappingPreservesOrder(t *testing.T) {
	got, err := ParseMapping(`{"Utilities": 1, "Rent": 2, "Food": 3}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Utilities", "Rent", "Food"}, got.Categories())
}

func TestParseMappingRejects(t *testing.T) {
	inputs := []string{
		`{'a': __import__('os').system('rm -rf /')}`,
		`{'a': 1 + 2}`,
		`{a: 1}`,
		`{"a": "1"}`,
		`{"a": null}`,
		`{"a": True}`,
		`{"a": [1]}`,
		`{"a": {"b": 1}}`,
		`{"a": 1_000}`,
		`{"a": 1, "a": 2}`,
		`{"Rent": 1e2000000000, "Food": 500}`,
		`{"Rent": 1e-2000000000}`,
		`{"Rent": 1234567890123456789012345678901}`,
		`{"": 1}`,
		`{"a": 1} extra`,
		`{"a": 1`,
		`{"a" 1}`,
		`{"a": 1,,}`,
		`{,}`,
		`[1, 2]`,
		``,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseMapping(in)
			require.ErrorIs(t, err, core.ErrMalformedOutput)
		})
	}
}

func TestInterpret(t *testing.T) {
	reply := "Here is your plan:\n{'Rent': 860, 'Food': 500}\nGood luck!"
	got, err := Interpret(reply)
	require.NoError(t, err)
	assert.True(t, got.Equal(expenses(t, "Rent", "860", "Food", "500")))

	_, err = Interpret("I am unable to compute that.")
	require.ErrorIs(t, err, core.ErrMalformedOutput)

	// A preliminary example in the reply is what gets extracted.
	got, err = Interpret(`For example {"X": 1}. Answer: {"Rent": 860}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, got.Categories())
}

func TestInterpretOutOfRangeAmount(t *testing.T) {
	_, err := Interpret(`Plan: {"Rent": 1e2000000000, "Food": 500}`)
	require.ErrorIs(t, err, core.ErrMalformedOutput)
	require.ErrorIs(t, err, core.ErrNonNumeric)
}

func TestPromptRender(t *testing.T) {
	req := request(t, expenses(t, "Rent", "1200", "Food", "500"), 20, "Food")

	text, err := MustPrompt("").Render(req)
	require.NoError(t, err)
	assert.Contains(t, text, `{"Rent": 1200, "Food": 500}`)
	assert.Contains(t, text, "20%")
	assert.Contains(t, text, `"Food"`)
	assert.NotContains(t, text, "{{")
}

func TestPromptCustomTemplate(t *testing.T) {
	req := request(t, expenses(t, "Rent", "10"), 5, "Rent")

	p, err := NewPrompt("save {{.SavingsGoal}} of {{.Expenses}} keep {{.Excluded}}")
	require.NoError(t, err)
	text, err := p.Render(req)
	require.NoError(t, err)
	assert.Equal(t, `save 5 of {"Rent": 10} keep Rent`, text)

	_, err = NewPrompt("{{.Broken")
	require.Error(t, err)

	p, err = NewPrompt("{{.Unknown}}")
	require.NoError(t, err)
	_, err = p.Render(req)
	require.Error(t, err)
}

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
	calls  int
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.reply, f.err
}

func TestModelAdjusterEndToEnd(t *testing.T) {
	fc := &fakeCompleter{reply: "Adjusted: {\"Rent\": 860, \"Food\": 500}"}
	a := NewModelAdjuster(fc, nil, "huggingface", "test-model")
	req := request(t, expenses(t, "Rent", "1200", "Food", "500"), 20, "Food")

	reply, err := a.Adjust(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, fc.reply, reply)
	assert.Contains(t, fc.prompt, `{"Rent": 1200, "Food": 500}`)

	out, err := a.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, out.Adjusted.Equal(expenses(t, "Rent", "860", "Food", "500")))
	assert.Equal(t, "test-model", out.Model)
	assert.Equal(t, fc.reply, out.Reply)
	assert.Equal(t, core.StrategyModel, a.Strategy())
}

func TestModelAdjusterUpstreamFailure(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("503 service unavailable")}
	a := NewModelAdjuster(fc, nil, "huggingface", "m")
	req := request(t, expenses(t, "Rent", "1200"), 10, "Food")

	_, err := a.Plan(context.Background(), req)
	var up *core.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, "huggingface: 503 service unavailable", err.Error())
	assert.Equal(t, 1, fc.calls, "no retries")
}

func TestModelAdjusterKeepsUpstreamProvider(t *testing.T) {
	inner := &core.UpstreamError{Provider: "openai", Err: errors.New("quota")}
	a := NewModelAdjuster(&fakeCompleter{err: inner}, nil, "other", "m")
	req := request(t, expenses(t, "Rent", "1"), 10, "Rent")

	_, err := a.Adjust(context.Background(), req)
	assert.Equal(t, "openai: quota", err.Error())
}

func TestModelAdjusterMalformedReply(t *testing.T) {
	a := NewModelAdjuster(&fakeCompleter{reply: "no idea"}, nil, "hf", "m")
	req := request(t, expenses(t, "Rent", "1"), 10, "Rent")

	out, err := a.Plan(context.Background(), req)
	require.ErrorIs(t, err, core.ErrMalformedOutput)
	assert.Equal(t, "no idea", out.Reply)
}

func TestLocalCalculator(t *testing.T) {
	req := request(t, expenses(t, "Rent", "1200", "Food", "500"), 20, "Food")

	out, err := LocalCalculator{}.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, out.Adjusted.Equal(expenses(t, "Rent", "860", "Food", "500")), "got %s", out.Adjusted)
	assert.Empty(t, out.Reply)
}

func TestLocalCalculatorProportional(t *testing.T) {
	req := request(t, expenses(t, "Rent", "1000", "Food", "500", "Fun", "500"), 10, "Rent")

	out, err := LocalCalculator{}.Plan(context.Background(), req)
	require.NoError(t, err)
	// 10% of 2000 = 200 taken from the 1000 adjustable.
	assert.True(t, out.Adjusted.Equal(expenses(t, "Rent", "1000", "Food", "400", "Fun", "400")), "got %s", out.Adjusted)
	assert.Equal(t, []string{"Rent", "Food", "Fun"}, out.Adjusted.Categories())
}

func TestLocalCalculatorExcludedCaseInsensitive(t *testing.T) {
	req := request(t, expenses(t, "Rent", "1200", "Food", "500"), 20, "food")

	out, err := LocalCalculator{}.Plan(context.Background(), req)
	require.NoError(t, err)
	food, _ := out.Adjusted.Amount("Food")
	assert.Equal(t, "500", food.String())
}

func TestLocalCalculatorMissingExcludedReducesAll(t *testing.T) {
	req := request(t, expenses(t, "Rent", "800", "Food", "200"), 50, "Travel")

	out, err := LocalCalculator{}.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, out.Adjusted.Equal(expenses(t, "Rent", "400", "Food", "100")), "got %s", out.Adjusted)
}

func TestLocalCalculatorZeroGoal(t *testing.T) {
	in := expenses(t, "Rent", "1200.33", "Food", "500")
	out, err := LocalCalculator{}.Plan(context.Background(), request(t, in, 0, "Food"))
	require.NoError(t, err)
	assert.True(t, out.Adjusted.Equal(in))
}

func TestLocalCalculatorUnreachable(t *testing.T) {
	// 60% of 1000 is 600 but only 100 can be reduced.
	req := request(t, expenses(t, "Rent", "900", "Food", "100"), 60, "Rent")
	_, err := LocalCalculator{}.Plan(context.Background(), req)
	require.ErrorIs(t, err, core.ErrGoalUnreachable)

	req = request(t, expenses(t, "Rent", "900"), 10, "Rent")
	_, err = LocalCalculator{}.Plan(context.Background(), req)
	require.ErrorIs(t, err, core.ErrGoalUnreachable)
}

func TestLocalCalculatorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LocalCalculator{}.Plan(ctx, request(t, expenses(t, "Rent", "1"), 1, "Rent"))
	require.ErrorIs(t, err, context.Canceled)
}
