package sim

import (
	"fmt"
	"io"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/taurusgroup/vhss/pkg/share"
)

// Report is the result of a simulation run.
type Report struct {
	RunID        string
	Construction share.Construction
	Rounds       []*RoundResult

	// Valid counts the rounds accepted by the verifier, Incorrect the rounds whose
	// verdict differs from the expected one.
	Valid, Incorrect int
	// Latency statistics, in milliseconds, over the rounds after warmup.
	Mean, Median, StdDev, P95 float64
}

func (r *Report) summarize() {
	var latencies stats.Float64Data
	r.Valid, r.Incorrect = 0, 0
	for _, round := range r.Rounds {
		if round.Outcome.Valid {
			r.Valid++
		}
		if !round.Correct() {
			r.Incorrect++
		}
		if !round.Warmup {
			latencies = append(latencies, float64(round.Latency)/float64(time.Millisecond))
		}
	}
	if len(latencies) == 0 {
		return
	}
	r.Mean, _ = stats.Mean(latencies)
	r.Median, _ = stats.Median(latencies)
	r.StdDev, _ = stats.StandardDeviation(latencies)
	r.P95, _ = stats.Percentile(latencies, 95)
}

// Print writes a human readable summary of r to w.
func (r *Report) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "run %s (%s): %d rounds, %d valid, %d incorrect\n", r.RunID, r.Construction, len(r.Rounds), r.Valid, r.Incorrect)
	if err != nil {
		return err
	}
	for _, round := range r.Rounds {
		status := "valid"
		if !round.Outcome.Valid {
			status = "invalid: " + round.Outcome.Reason
		}
		if _, err = fmt.Fprintf(w, "  %-32s sum=%-12s expected=%-12s %8.3f ms  %s\n",
			round.RoundKey, round.Outcome.Sum, round.Expected, float64(round.Latency)/float64(time.Millisecond), status); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "latency: mean %.3f ms, median %.3f ms, stddev %.3f ms, p95 %.3f ms\n", r.Mean, r.Median, r.StdDev, r.P95)
	return err
}
