package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"aqpanel/internal/cleaning"
	"aqpanel/internal/collinearity"
	"aqpanel/internal/panel"
	"aqpanel/internal/stats"
)

// Settings are the analysis parameters echoed in the narrative
type Settings struct {
	ZeroAsMissing        bool
	CorrelationThreshold float64
	AbsoluteCorrelation  bool
	VIFCeiling           float64
	MaxIterations        int
}

// Run gathers everything the reporter renders
type Run struct {
	RunID       string
	GeneratedAt time.Time
	Source      string
	Settings    Settings

	Raw        *panel.Table
	Cleaned    *panel.Table
	Normalized *panel.Table
	Final      *panel.Table

	Repairs []cleaning.Repair
	Scaler  *cleaning.Scaler
	Prune   *collinearity.PruneResult
	VIF     *collinearity.VIFResult
}

// NegativeColumn flags a column holding negative values. OriginalMin is
// Min mapped back through the scaler, or Min itself for unscaled columns.
type NegativeColumn struct {
	Name        string
	Count       int
	Min         float64
	OriginalMin float64
}

// NegativeColumns lists the predictor and response columns of t that
// contain negative values, in column order. scaler may be nil.
func NegativeColumns(t *panel.Table, scaler *cleaning.Scaler) []NegativeColumn {
	var out []NegativeColumn
	check := func(col panel.Column) {
		n, lowest := 0, math.Inf(1)
		for _, v := range col.Values {
			if v < 0 {
				n++
				lowest = math.Min(lowest, v)
			}
		}
		if n == 0 {
			return
		}
		original := lowest
		if scaler != nil {
			if v, ok := scaler.Inverse(col.Name, lowest); ok {
				original = v
			}
		}
		out = append(out, NegativeColumn{Name: col.Name, Count: n, Min: lowest, OriginalMin: original})
	}
	for _, col := range t.Features {
		check(col)
	}
	check(t.Response)
	return out
}

// WriteNarrative renders the markdown summary of run to w
func WriteNarrative(w io.Writer, run *Run) error {
	nw := &narrativeWriter{w: w}

	nw.printf("# Collinearity report\n\n")
	nw.printf("- Run: `%s`\n", run.RunID)
	nw.printf("- Generated: %s\n", run.GeneratedAt.Format("2006-01-02 15:04:05"))
	nw.printf("- Source: `%s`\n\n", run.Source)

	nw.input(run)
	nw.repairs(run)
	nw.describe(run)
	nw.scaler(run)
	nw.pruning(run)
	nw.vif(run)
	nw.final(run)

	return nw.err
}

type narrativeWriter struct {
	w   io.Writer
	err error
}

func (n *narrativeWriter) printf(format string, args ...any) {
	if n.err != nil {
		return
	}
	_, n.err = fmt.Fprintf(n.w, format, args...)
}

func (n *narrativeWriter) input(run *Run) {
	t := run.Raw
	entities := make(map[string]struct{})
	minPeriod, maxPeriod := math.MaxInt, math.MinInt
	for _, k := range t.Index {
		entities[k.Entity] = struct{}{}
		minPeriod = min(minPeriod, k.Period)
		maxPeriod = max(maxPeriod, k.Period)
	}

	n.printf("## Input\n\n")
	n.printf("- Observations: %d\n", t.Len())
	n.printf("- Entities (%s): %d\n", t.EntityName, len(entities))
	if t.Len() > 0 {
		n.printf("- Periods (%s): %d to %d\n", t.PeriodName, minPeriod, maxPeriod)
	}
	n.printf("- Response: `%s`\n", t.Response.Name)
	n.printf("- Predictors: %d\n\n", len(t.Features))
}

func (n *narrativeWriter) repairs(run *Run) {
	n.printf("## Cleaning\n\n")
	if run.Settings.ZeroAsMissing {
		n.printf("Zeros were treated as missing. ")
	}
	n.printf("Gaps were filled by linear interpolation in row order, boundary gaps from the nearest observed value. ")
	n.printf("Remaining non-positive values were replaced with the column mean.\n\n")

	n.printf("| column | missing | zeros | interpolated | mean filled | fill mean |\n")
	n.printf("|---|---:|---:|---:|---:|---:|\n")
	for _, r := range run.Repairs {
		n.printf("| %s | %d | %d | %d | %d | %s |\n",
			r.Column, r.Missing, r.Zeros, r.Interpolated, r.MeanFilled, num(r.FillMean))
	}
	n.printf("\n")
}

func (n *narrativeWriter) describe(run *Run) {
	n.printf("## Descriptive statistics (after cleaning, before scaling)\n\n")
	n.printf("| column | count | mean | std | min | max |\n")
	n.printf("|---|---:|---:|---:|---:|---:|\n")
	summaries := cleaning.Describe(run.Cleaned)
	for _, name := range run.Cleaned.FeatureNames() {
		s := summaries[name]
		n.printf("| %s | %d | %s | %s | %s | %s |\n",
			name, s.Count, num(s.Mean), num(s.Std), num(s.Min), num(s.Max))
	}
	resp := stats.Describe(run.Cleaned.Response.Values)
	n.printf("| %s (response) | %d | %s | %s | %s | %s |\n\n",
		run.Cleaned.Response.Name, resp.Count, num(resp.Mean), num(resp.Std), num(resp.Min), num(resp.Max))
}

func (n *narrativeWriter) scaler(run *Run) {
	n.printf("## Standardization\n\n")
	n.printf("Each predictor was rescaled to zero mean and unit population standard deviation.\n\n")
	n.printf("| column | mean | std |\n")
	n.printf("|---|---:|---:|\n")
	for _, p := range run.Scaler.Params {
		n.printf("| %s | %s | %s |\n", p.Column, num(p.Mean), num(p.Std))
	}
	n.printf("\n")
}

func (n *narrativeWriter) pruning(run *Run) {
	res := run.Prune
	direction := "r"
	if run.Settings.AbsoluteCorrelation {
		direction = "|r|"
	}

	n.printf("## Correlation pruning\n\n")
	n.printf("Pairs with %s > %s were examined once each (upper triangle); ", direction, num(run.Settings.CorrelationThreshold))
	n.printf("the later feature of each pair was removed in a single pass.\n\n")
	n.printf("- Features examined: %d\n", res.Correlation.Size())
	n.printf("- Removed: %d\n", len(res.Removed))
	n.printf("- Retained: %d\n\n", res.Features.Len())

	if len(res.Removed) > 0 {
		n.printf("| removed | partner | correlation | p-value |\n")
		n.printf("|---|---|---:|---:|\n")
		for _, r := range res.Removed {
			n.printf("| %s | %s | %s | %s |\n", r.Feature, r.Partner, num(r.Correlation), num(r.PValue))
		}
		n.printf("\n")
	}
}

func (n *narrativeWriter) vif(run *Run) {
	res := run.VIF
	n.printf("## Variance inflation\n\n")
	n.printf("The feature with the largest VIF was removed until every VIF was at most %s (limit %d iterations).\n\n",
		num(run.Settings.VIFCeiling), run.Settings.MaxIterations)
	n.printf("- Status: %s\n", res.Status)
	n.printf("- Iterations: %d\n", res.Iterations)
	n.printf("- Removed: %d\n", len(res.Removed))
	n.printf("- Retained: %d\n\n", res.Features.Len())

	switch res.Status {
	case collinearity.StatusIterationLimit:
		n.printf("> **Warning:** the iteration limit was reached before all VIFs fell within the ceiling. ")
		n.printf("The remaining features were accepted as final.\n\n")
	case collinearity.StatusNumericFailure:
		n.printf("> **Warning:** VIF computation failed and the loop stopped early. ")
		n.printf("The remaining features were accepted as final and no final VIF values are available.\n")
		if res.Diagnostic != nil {
			n.printf(">\n> Diagnostic: `%s`\n", res.Diagnostic.Error())
		}
		n.printf("\n")
	}

	if len(res.Removed) > 0 {
		n.printf("| iteration | removed | VIF |\n")
		n.printf("|---:|---|---:|\n")
		for i, r := range res.Removed {
			n.printf("| %d | %s | %s |\n", i+1, r.Feature, num(r.VIF))
		}
		n.printf("\n")
	}
	if len(res.Final) > 0 {
		n.printf("| retained | VIF |\n")
		n.printf("|---|---:|\n")
		for _, r := range res.Final {
			n.printf("| %s | %s |\n", r.Feature, num(r.VIF))
		}
		n.printf("\n")
	}
}

func (n *narrativeWriter) final(run *Run) {
	n.printf("## Final dataset\n\n")
	n.printf("- Observations: %d\n", run.Final.Len())
	n.printf("- Features: %s\n\n", strings.Join(run.Final.FeatureNames(), ", "))

	negatives := NegativeColumns(run.Final, run.Scaler)
	if len(negatives) == 0 {
		n.printf("No negative values were found in the final dataset.\n")
		return
	}

	n.printf("> **Warning:** negative values were detected in the final dataset. ")
	n.printf("Standardized predictors are centered on zero, so negatives are expected there; ")
	n.printf("use the original-scale minimum below before any log or ratio analysis.\n\n")
	n.printf("| column | negative values | minimum | original minimum |\n")
	n.printf("|---|---:|---:|---:|\n")
	for _, c := range negatives {
		n.printf("| %s | %d | %s | %s |\n", c.Name, c.Count, num(c.Min), num(c.OriginalMin))
	}
}

func num(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v != 0 && math.Abs(v) < 1e-4:
		return fmt.Sprintf("%.3e", v)
	}
	return fmt.Sprintf("%.4f", v)
}
